package allocation

import (
	"github.com/shopspring/decimal"

	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
	"github.com/dhanya-cpu/disaster-ai-system/pkg/money"
)

// Status is the terminal outcome of an allocation.
type Status string

const (
	// StatusOptimal: the plan is cost-minimal and within budget.
	StatusOptimal Status = "Optimal"
	// StatusInsufficientBudget: the budget cannot cover demand; the plan is the
	// minimum required and Balance holds the shortfall.
	StatusInsufficientBudget Status = "InsufficientBudget"
)

// PlanLine is one resource of a plan.
type PlanLine struct {
	Resource string          `json:"resource"`
	Quantity int64           `json:"quantity"`
	Demand   int64           `json:"demand"`
	UnitCost decimal.Decimal `json:"unit_cost"`
	Cost     decimal.Decimal `json:"cost"`
}

// Result is a formatted allocation.
type Result struct {
	Status   Status                `json:"status"`
	Severity catalog.SeverityLevel `json:"severity_level"`
	Currency money.Currency        `json:"currency"`
	Budget   decimal.Decimal       `json:"budget"`

	// Plan maps resource name to quantity; Lines holds the same plan in
	// catalog order with costs.
	Plan      map[string]int64 `json:"resource_plan"`
	Lines     []PlanLine       `json:"cost_lines"`
	TotalCost decimal.Decimal  `json:"total_cost"`

	// Balance is the budget remaining when Optimal and the shortfall when
	// InsufficientBudget. It is never negative.
	Balance decimal.Decimal `json:"balance"`

	Method      string `json:"method"`
	Nodes       int    `json:"nodes"`
	CatalogHash string `json:"catalog_hash"`
}

// Remaining returns the unspent budget, zero unless Optimal.
func (r *Result) Remaining() decimal.Decimal {
	if r.Status == StatusOptimal {
		return r.Balance
	}
	return decimal.Zero
}

// Shortfall returns the missing budget, zero unless InsufficientBudget.
func (r *Result) Shortfall() decimal.Decimal {
	if r.Status == StatusInsufficientBudget {
		return r.Balance
	}
	return decimal.Zero
}

// Draft is an unformatted outcome from the solver or the fallback.
type Draft struct {
	Status Status
	Level  catalog.SeverityLevel
	Budget decimal.Decimal
	Plan   map[string]int64
	Method string
	Nodes  int
}

// Format checks a draft against the catalog and produces the final result with
// every amount rounded half-up to the catalog currency's smallest unit.
func Format(cat *catalog.Catalog, d Draft) (*Result, error) {
	if d.Status != StatusOptimal && d.Status != StatusInsufficientBudget {
		return nil, apperrors.NewInvariantViolationError("unknown allocation status %q", d.Status)
	}
	if !d.Level.Valid() {
		return nil, apperrors.NewInvalidSeverityLevelError(string(d.Level))
	}
	for name := range d.Plan {
		if !cat.Has(name) {
			return nil, apperrors.NewInvariantViolationError("plan contains resource %q missing from the catalog", name)
		}
	}

	cur := cat.Currency()
	lines := make([]PlanLine, 0, cat.Len())
	plan := make(map[string]int64, cat.Len())
	total := decimal.Zero

	for _, r := range cat.Resources() {
		q, ok := d.Plan[r.Name]
		if !ok {
			return nil, apperrors.NewInvariantViolationError("plan has no quantity for %s", r.Name)
		}
		demand, err := cat.DemandOf(d.Level, r.Name)
		if err != nil {
			return nil, err
		}
		if q < demand {
			return nil, apperrors.NewInvariantViolationError("%s quantity %d is below demand %d", r.Name, q, demand)
		}
		cost := r.UnitCost.Mul(decimal.NewFromInt(q))
		total = total.Add(cost)
		plan[r.Name] = q
		lines = append(lines, PlanLine{
			Resource: r.Name,
			Quantity: q,
			Demand:   demand,
			UnitCost: r.UnitCost,
			Cost:     money.ToCurrencyUnit(cost, cur),
		})
	}

	var balance decimal.Decimal
	switch d.Status {
	case StatusOptimal:
		if total.GreaterThan(d.Budget) {
			return nil, apperrors.NewInvariantViolationError("optimal plan costs %s, over the budget %s", total, d.Budget)
		}
		balance = d.Budget.Sub(total)
	case StatusInsufficientBudget:
		if total.LessThanOrEqual(d.Budget) {
			return nil, apperrors.NewInvariantViolationError("plan costing %s fits the budget %s but was reported insufficient", total, d.Budget)
		}
		balance = total.Sub(d.Budget)
	}

	rounded := money.ToCurrencyUnit(balance, cur)
	if d.Status == StatusInsufficientBudget && !rounded.IsPositive() {
		// A shortfall under half a minor unit would round to zero.
		rounded = money.MinorUnit(cur)
	}

	return &Result{
		Status:      d.Status,
		Severity:    d.Level,
		Currency:    cur,
		Budget:      money.ToCurrencyUnit(d.Budget, cur),
		Plan:        plan,
		Lines:       lines,
		TotalCost:   money.ToCurrencyUnit(total, cur),
		Balance:     rounded,
		Method:      d.Method,
		Nodes:       d.Nodes,
		CatalogHash: cat.Hash(),
	}, nil
}

// Package allocation turns a severity level and a budget into a procurement
// plan: it builds the integer model from the catalog, solves it, falls back to
// the demand floor when the budget cannot cover it, and formats the result.
package allocation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	"github.com/dhanya-cpu/disaster-ai-system/decision/ilp"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// BudgetConstraint names the Σ cost·quantity ≤ budget row.
const BudgetConstraint = "budget"

// BuildOption adds optional constraints to the allocation model.
type BuildOption func(*buildConfig)

type buildConfig struct {
	maxQuantities map[string]int64
	extra         []ilp.Constraint
	noBudget      bool
}

// withoutBudget drops the budget row; used to find the minimum plan.
func withoutBudget() BuildOption {
	return func(c *buildConfig) { c.noBudget = true }
}

// WithMaxQuantities caps the quantity of individual resources.
func WithMaxQuantities(max map[string]int64) BuildOption {
	return func(c *buildConfig) {
		if len(max) == 0 {
			return
		}
		if c.maxQuantities == nil {
			c.maxQuantities = make(map[string]int64, len(max))
		}
		for name, q := range max {
			c.maxQuantities[name] = q
		}
	}
}

// WithConstraints appends extra linear constraints over resource quantities.
// Terms must name catalog resources.
func WithConstraints(cs ...ilp.Constraint) BuildOption {
	return func(c *buildConfig) {
		c.extra = append(c.extra, cs...)
	}
}

// Build constructs the allocation model for one severity level: one integer
// variable per resource bounded below by its demand, unit costs as objective
// coefficients and a single budget constraint, plus any optional constraints.
func Build(cat *catalog.Catalog, level catalog.SeverityLevel, budget decimal.Decimal, opts ...BuildOption) (*ilp.Model, error) {
	cfg := &buildConfig{}
	for _, opt := range opts {
		opt(cfg)
	}

	demand, err := cat.Demand(level)
	if err != nil {
		return nil, err
	}
	if err := validateCeilings(cat, demand, cfg.maxQuantities); err != nil {
		return nil, err
	}

	m := ilp.NewModel("allocation/" + level.String())
	budgetRow := ilp.Constraint{Name: BudgetConstraint, Sense: ilp.LessEqual, RHS: budget}

	for _, r := range cat.Resources() {
		v := ilp.Variable{Name: r.Name, Lower: demand[r.Name]}
		if ceiling, ok := cfg.maxQuantities[r.Name]; ok {
			v.Upper, v.HasUpper = ceiling, true
		}
		if err := m.AddVariable(v); err != nil {
			return nil, err
		}
		if err := m.SetObjective(r.Name, r.UnitCost); err != nil {
			return nil, err
		}
		budgetRow.Terms = append(budgetRow.Terms, ilp.Term{Var: r.Name, Coef: r.UnitCost})
	}
	if !cfg.noBudget {
		if err := m.AddConstraint(budgetRow); err != nil {
			return nil, err
		}
	}

	for _, c := range cfg.extra {
		if c.Name == "" || c.Name == BudgetConstraint {
			return nil, apperrors.NewInvalidConstraintError("constraints", "constraint name %q is empty or reserved", c.Name)
		}
		if len(c.Terms) == 0 {
			return nil, apperrors.NewInvalidConstraintError(c.Name, "constraint %q has no terms", c.Name)
		}
		if c.Sense != ilp.LessEqual && c.Sense != ilp.GreaterEqual {
			return nil, apperrors.NewInvalidConstraintError(c.Name, "constraint %q has unknown sense", c.Name)
		}
		for _, t := range c.Terms {
			if !cat.Has(t.Var) {
				return nil, apperrors.NewUnknownResourceError(t.Var)
			}
		}
		if err := m.AddConstraint(c); err != nil {
			return nil, err
		}
	}

	return m, nil
}

// validateCeilings rejects ceilings on unknown resources and ceilings below the
// demand floor, so that a capped model is infeasible only because of money.
func validateCeilings(cat *catalog.Catalog, demand map[string]int64, max map[string]int64) error {
	names := make([]string, 0, len(max))
	for name := range max {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !cat.Has(name) {
			return apperrors.NewUnknownResourceError(name)
		}
		q := max[name]
		if q < 0 {
			return apperrors.NewInvalidConstraintError(name, "maximum quantity for %s must not be negative, got %d", name, q)
		}
		if q < demand[name] {
			return apperrors.NewInvalidConstraintError(name, "maximum quantity %d for %s is below the required demand of %d", q, name, demand[name])
		}
	}
	return nil
}

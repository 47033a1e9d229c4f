package allocation

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	"github.com/dhanya-cpu/disaster-ai-system/decision/ilp"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// Fallback is the plan reported when the budget cannot cover demand: the
// cheapest plan that meets every requirement except the budget, with the
// exact amount the budget falls short by.
type Fallback struct {
	Plan      map[string]int64
	Cost      decimal.Decimal
	Shortfall decimal.Decimal
	Method    string
	Nodes     int
}

// FallbackPlan solves the allocation without its budget row. With only demand
// floors (and ceilings) that is the demand floor itself. It must only run after
// the budgeted model came back infeasible; a minimum plan that fits the budget
// means the solver and the model disagree.
func FallbackPlan(ctx context.Context, solver ilp.Solver, cat *catalog.Catalog, level catalog.SeverityLevel, budget decimal.Decimal, opts ...BuildOption) (*Fallback, error) {
	relaxed, err := Build(cat, level, budget, append(opts[:len(opts):len(opts)], withoutBudget())...)
	if err != nil {
		return nil, err
	}
	sol, err := solver.Solve(ctx, relaxed)
	if err != nil {
		return nil, err
	}
	if !sol.Feasible() {
		return nil, apperrors.NewInvalidConstraintError("constraints",
			"constraints for %s cannot be satisfied at any budget", level)
	}
	if sol.Objective.LessThanOrEqual(budget) {
		return nil, apperrors.NewInvariantViolationError(
			"allocation for %s reported infeasible but the minimum plan costing %s fits the budget %s",
			level, sol.Objective.String(), budget.String())
	}
	return &Fallback{
		Plan:      sol.Values,
		Cost:      sol.Objective,
		Shortfall: sol.Objective.Sub(budget),
		Method:    sol.Method,
		Nodes:     sol.Nodes,
	}, nil
}

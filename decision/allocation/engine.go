package allocation

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/dhanya-cpu/disaster-ai-system/decision/catalog"
	"github.com/dhanya-cpu/disaster-ai-system/decision/ilp"
	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// Engine allocates relief resources against an injected catalog.
// It holds no mutable state and is safe for concurrent use.
type Engine struct {
	catalog *catalog.Catalog
	solver  ilp.Solver
	log     zerolog.Logger
}

// NewEngine creates an engine. A nil solver selects the auto strategy with the
// default node cap.
func NewEngine(cat *catalog.Catalog, solver ilp.Solver, log zerolog.Logger) (*Engine, error) {
	if cat == nil {
		return nil, fmt.Errorf("allocation engine requires a catalog")
	}
	if solver == nil {
		var err error
		solver, err = ilp.NewSolver(ilp.Options{Strategy: ilp.StrategyAuto, Log: log})
		if err != nil {
			return nil, err
		}
	}
	return &Engine{
		catalog: cat,
		solver:  solver,
		log:     log.With().Str("component", "allocation").Logger(),
	}, nil
}

// Catalog returns the catalog the engine allocates from.
func (e *Engine) Catalog() *catalog.Catalog { return e.catalog }

// Request contains inputs for an allocation.
type Request struct {
	SeverityLevel string
	Budget        decimal.Decimal

	// MaxQuantities optionally caps individual resources. A cap below the
	// demand floor is rejected.
	MaxQuantities map[string]int64

	// Constraints are extra linear constraints over resource quantities.
	Constraints []ilp.Constraint
}

// AllocateLevel is Allocate without optional constraints.
func (e *Engine) AllocateLevel(ctx context.Context, level string, budget decimal.Decimal) (*Result, error) {
	return e.Allocate(ctx, Request{SeverityLevel: level, Budget: budget})
}

// Allocate computes the cost-minimal plan meeting the demand for the requested
// severity level within budget. A budget that cannot cover demand yields an
// InsufficientBudget result, not an error.
func (e *Engine) Allocate(ctx context.Context, req Request) (*Result, error) {
	level, err := catalog.ParseSeverityLevel(req.SeverityLevel)
	if err != nil {
		return nil, err
	}

	opts := []BuildOption{WithMaxQuantities(req.MaxQuantities)}
	if len(req.Constraints) > 0 {
		opts = append(opts, WithConstraints(req.Constraints...))
	}

	model, err := Build(e.catalog, level, req.Budget, opts...)
	if err != nil {
		return nil, err
	}

	sol, err := e.solver.Solve(ctx, model)
	if err != nil {
		e.log.Error().Err(err).Str("severity", level.String()).Msg("Solver failed")
		return nil, fmt.Errorf("solve %s: %w", model.Name, solverError(err))
	}

	if sol.Feasible() {
		e.log.Debug().
			Str("severity", level.String()).
			Str("method", sol.Method).
			Int("nodes", sol.Nodes).
			Str("cost", sol.Objective.String()).
			Msg("Allocation optimal")
		return Format(e.catalog, Draft{
			Status: StatusOptimal,
			Level:  level,
			Budget: req.Budget,
			Plan:   sol.Values,
			Method: sol.Method,
			Nodes:  sol.Nodes,
		})
	}

	fb, err := FallbackPlan(ctx, e.solver, e.catalog, level, req.Budget, opts...)
	if err != nil {
		return nil, solverError(err)
	}
	e.log.Info().
		Str("severity", level.String()).
		Str("budget", req.Budget.String()).
		Str("required", fb.Cost.String()).
		Str("shortfall", fb.Shortfall.String()).
		Msg("Budget below minimum demand, reporting fallback plan")

	return Format(e.catalog, Draft{
		Status: StatusInsufficientBudget,
		Level:  level,
		Budget: req.Budget,
		Plan:   fb.Plan,
		Method: fb.Method,
		Nodes:  sol.Nodes + fb.Nodes,
	})
}

// solverError reports a solve cut short by a deadline as a solver timeout so
// callers see one code for both node and time limits.
func solverError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return apperrors.NewSolverDeadlineError(err)
	}
	return err
}

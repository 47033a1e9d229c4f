package ilp

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// Status is the outcome of a solve.
type Status string

const (
	StatusFeasible   Status = "Feasible"
	StatusInfeasible Status = "Infeasible"
)

// Method names reported in Solution.Method.
const (
	MethodFloor          = "floor"
	MethodBranchAndBound = "branch-and-bound"
)

// Solution is an optimal integer assignment, or the fact that none exists.
type Solution struct {
	Status    Status
	Values    map[string]int64
	Objective decimal.Decimal
	Method    string
	Nodes     int
}

// Feasible reports whether the solve found an assignment.
func (s *Solution) Feasible() bool { return s.Status == StatusFeasible }

// Solver computes a cost-minimising integer assignment for a model.
type Solver interface {
	Solve(ctx context.Context, m *Model) (*Solution, error)
}

// Strategy selects which solver handles a model.
type Strategy string

const (
	// StrategyAuto uses the floor fast path when the model shape allows it and
	// branch-and-bound otherwise.
	StrategyAuto Strategy = "auto"
	// StrategyBranchAndBound always runs the general search.
	StrategyBranchAndBound Strategy = "branch-and-bound"
)

// DefaultMaxNodes bounds branch-and-bound when no cap is configured.
const DefaultMaxNodes = 10000

// Options configures NewSolver.
type Options struct {
	Strategy Strategy
	MaxNodes int
	Log      zerolog.Logger
}

// ParseStrategy validates a strategy name. Empty means auto.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case "", StrategyAuto:
		return StrategyAuto, nil
	case StrategyBranchAndBound:
		return StrategyBranchAndBound, nil
	}
	return "", fmt.Errorf("unknown solver strategy %q (want %s or %s)", s, StrategyAuto, StrategyBranchAndBound)
}

// NewSolver builds the solver for a strategy.
func NewSolver(opts Options) (Solver, error) {
	strategy, err := ParseStrategy(string(opts.Strategy))
	if err != nil {
		return nil, err
	}
	general := NewBranchAndBound(opts.MaxNodes, opts.Log)
	if strategy == StrategyBranchAndBound {
		return general, nil
	}
	return &autoSolver{
		general: general,
		log:     opts.Log.With().Str("component", "solver").Logger(),
	}, nil
}

type autoSolver struct {
	fast    FloorSolver
	general *BranchAndBound
	log     zerolog.Logger
}

func (s *autoSolver) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if m.FloorApplicable() {
		s.log.Debug().Str("model", m.Name).Msg("Using floor fast path")
		return s.fast.Solve(ctx, m)
	}
	s.log.Debug().Str("model", m.Name).Msg("Model outside fast-path shape, using branch-and-bound")
	return s.general.Solve(ctx, m)
}

// FloorSolver is the closed-form solver for models where FloorApplicable holds.
// The lower-bound vector is then the global minimum if it is feasible at all,
// because the feasible region only shrinks as any variable grows.
type FloorSolver struct{}

// Solve returns the lower bounds when they satisfy every constraint, otherwise Infeasible.
func (FloorSolver) Solve(_ context.Context, m *Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}
	if !m.FloorApplicable() {
		return nil, apperrors.NewSolverInternalError("model %s: floor solver needs positive costs and non-negative <= constraints", m.Name)
	}

	floor := m.LowerBounds()
	if !m.Feasible(floor) {
		return &Solution{Status: StatusInfeasible, Method: MethodFloor}, nil
	}
	return &Solution{
		Status:    StatusFeasible,
		Values:    floor,
		Objective: m.Evaluate(floor),
		Method:    MethodFloor,
	}, nil
}

package ilp

import (
	"context"
	"errors"
	"math"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/optimize/convex/lp"

	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

const (
	integralityTol = 1e-6
	simplexTol     = 1e-9
	pruneRelTol    = 1e-9
)

// BranchAndBound solves any Model by depth-first branch-and-bound over LP
// relaxations. Relaxations run in float64 through gonum's simplex; integer
// candidates are re-checked and costed exactly before they are accepted.
type BranchAndBound struct {
	maxNodes int
	log      zerolog.Logger
}

// NewBranchAndBound creates a solver that gives up after maxNodes relaxations.
// A non-positive cap selects DefaultMaxNodes.
func NewBranchAndBound(maxNodes int, log zerolog.Logger) *BranchAndBound {
	if maxNodes <= 0 {
		maxNodes = DefaultMaxNodes
	}
	return &BranchAndBound{
		maxNodes: maxNodes,
		log:      log.With().Str("component", "branch_and_bound").Logger(),
	}
}

// MaxNodes returns the node cap.
func (b *BranchAndBound) MaxNodes() int { return b.maxNodes }

// node is a subproblem: the model with tightened variable bounds.
type node struct {
	lo    []int64
	hi    []int64
	hasHi []bool
}

func (n node) clone() node {
	c := node{
		lo:    make([]int64, len(n.lo)),
		hi:    make([]int64, len(n.hi)),
		hasHi: make([]bool, len(n.hasHi)),
	}
	copy(c.lo, n.lo)
	copy(c.hi, n.hi)
	copy(c.hasHi, n.hasHi)
	return c
}

// firstFree returns the first variable whose bounds do not fix it, or -1.
func (n node) firstFree() int {
	for j := range n.lo {
		if !n.hasHi[j] || n.lo[j] < n.hi[j] {
			return j
		}
	}
	return -1
}

// splitAround partitions the node on variable j into x_j < v, x_j > v and
// x_j = v. Empty ranges are left out; v is clamped into the bounds.
func (n node) splitAround(j int, v int64) []node {
	if v < n.lo[j] {
		v = n.lo[j]
	}
	if n.hasHi[j] && v > n.hi[j] {
		v = n.hi[j]
	}

	var out []node
	if v-1 >= n.lo[j] {
		below := n.clone()
		below.hi[j] = v - 1
		below.hasHi[j] = true
		out = append(out, below)
	}
	if !n.hasHi[j] || v+1 <= n.hi[j] {
		above := n.clone()
		above.lo[j] = v + 1
		out = append(out, above)
	}
	fixed := n.clone()
	fixed.lo[j] = v
	fixed.hi[j] = v
	fixed.hasHi[j] = true
	return append(out, fixed)
}

// Solve runs the search. It returns SolverTimeout once the node cap is hit
// with work remaining, and the context error if ctx is done.
func (b *BranchAndBound) Solve(ctx context.Context, m *Model) (*Solution, error) {
	if err := m.Validate(); err != nil {
		return nil, err
	}

	prob := project(m)
	root := node{
		lo:    make([]int64, len(m.vars)),
		hi:    make([]int64, len(m.vars)),
		hasHi: make([]bool, len(m.vars)),
	}
	for j, v := range m.vars {
		root.lo[j] = v.Lower
		root.hi[j] = v.Upper
		root.hasHi[j] = v.HasUpper
	}

	var (
		best    map[string]int64
		bestObj decimal.Decimal
		bestF   = math.Inf(1)
		nodes   int
		stack   = []node{root}
	)

	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if nodes >= b.maxNodes {
			b.log.Warn().
				Str("model", m.Name).
				Int("nodes", nodes).
				Int("open", len(stack)).
				Msg("Branch-and-bound node limit reached")
			return nil, apperrors.NewSolverTimeoutError(nodes)
		}

		nd := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		nodes++

		status, obj, x, err := prob.relax(nd)
		if err != nil {
			return nil, err
		}
		switch status {
		case relaxInfeasible:
			continue
		case relaxUnbounded:
			return nil, apperrors.NewSolverInternalError("model %s: objective is unbounded below", m.Name)
		}

		if best != nil && obj >= bestF-pruneRelTol*math.Max(1, math.Abs(bestF)) {
			continue
		}

		j := mostFractional(x)
		if j < 0 {
			values := make(map[string]int64, len(m.vars))
			for i, v := range m.vars {
				values[v.Name] = int64(math.Round(x[i]))
			}
			if violated := m.Violated(values); violated != "" {
				// The float relaxation landed on an integer point the exact
				// check rejects. Other integer points may remain in this node,
				// so split around the rounded value of a free variable.
				f := nd.firstFree()
				b.log.Debug().
					Str("model", m.Name).
					Str("violated", violated).
					Int("split_var", f).
					Msg("Rounded relaxation failed exact check")
				if f >= 0 {
					stack = append(stack, nd.splitAround(f, values[m.vars[f].Name])...)
				}
				continue
			}
			value := m.Evaluate(values)
			if best == nil || value.LessThan(bestObj) {
				best, bestObj, bestF = values, value, value.InexactFloat64()
			}
			continue
		}

		split := math.Floor(x[j])
		down := nd.clone()
		down.hi[j] = int64(split)
		down.hasHi[j] = true
		up := nd.clone()
		up.lo[j] = int64(split) + 1

		// The branch nearer the relaxed value is pushed last so it is explored first.
		if x[j]-split >= 0.5 {
			stack = append(stack, down, up)
		} else {
			stack = append(stack, up, down)
		}
	}

	b.log.Debug().Str("model", m.Name).Int("nodes", nodes).Bool("feasible", best != nil).Msg("Branch-and-bound finished")

	if best == nil {
		return &Solution{Status: StatusInfeasible, Method: MethodBranchAndBound, Nodes: nodes}, nil
	}
	return &Solution{
		Status:    StatusFeasible,
		Values:    best,
		Objective: bestObj,
		Method:    MethodBranchAndBound,
		Nodes:     nodes,
	}, nil
}

// mostFractional returns the index of the variable furthest from an integer,
// or -1 when x is integral within tolerance.
func mostFractional(x []float64) int {
	idx, worst := -1, integralityTol
	for j, v := range x {
		frac := math.Abs(v - math.Round(v))
		if frac > worst {
			idx, worst = j, frac
		}
	}
	return idx
}

type relaxStatus int

const (
	relaxOptimal relaxStatus = iota
	relaxInfeasible
	relaxUnbounded
)

// lpProblem is the float64 projection of a Model.
type lpProblem struct {
	cost   []float64
	rows   [][]float64
	senses []Sense
	rhs    []float64
}

func project(m *Model) *lpProblem {
	p := &lpProblem{
		cost:   make([]float64, len(m.vars)),
		rows:   make([][]float64, len(m.constraints)),
		senses: make([]Sense, len(m.constraints)),
		rhs:    make([]float64, len(m.constraints)),
	}
	for j, c := range m.objective {
		p.cost[j] = c.InexactFloat64()
	}
	for i, c := range m.constraints {
		row := make([]float64, len(m.vars))
		for _, t := range c.Terms {
			row[m.index[t.Var]] += t.Coef.InexactFloat64()
		}
		p.rows[i] = row
		p.senses[i] = c.Sense
		p.rhs[i] = c.RHS.InexactFloat64()
	}
	return p
}

type lpRow struct {
	coef  []float64
	sense Sense
	rhs   float64
}

// relax solves the LP relaxation of a node. Variables are shifted by their
// lower bounds (y = x - lo >= 0), upper bounds become rows, and every row gets
// its own slack or surplus column, which keeps the equality system full rank
// for lp.Simplex.
func (p *lpProblem) relax(nd node) (relaxStatus, float64, []float64, error) {
	n := len(p.cost)
	lo := make([]float64, n)
	constant := 0.0
	for j := 0; j < n; j++ {
		if nd.hasHi[j] && nd.lo[j] > nd.hi[j] {
			return relaxInfeasible, 0, nil, nil
		}
		lo[j] = float64(nd.lo[j])
		constant += p.cost[j] * lo[j]
	}

	rows := make([]lpRow, 0, len(p.rows)+n)
	for i, coef := range p.rows {
		shift := 0.0
		for j, a := range coef {
			shift += a * lo[j]
		}
		rows = append(rows, lpRow{coef: coef, sense: p.senses[i], rhs: p.rhs[i] - shift})
	}
	for j := 0; j < n; j++ {
		if !nd.hasHi[j] {
			continue
		}
		coef := make([]float64, n)
		coef[j] = 1
		rows = append(rows, lpRow{coef: coef, sense: LessEqual, rhs: float64(nd.hi[j] - nd.lo[j])})
	}

	// Columns that appear in no row stay at their lower bound, unless lowering
	// the objective by raising them is free of limits.
	active := make([]int, 0, n)
	for j := 0; j < n; j++ {
		used := false
		for _, r := range rows {
			if r.coef[j] != 0 {
				used = true
				break
			}
		}
		switch {
		case used:
			active = append(active, j)
		case p.cost[j] < 0:
			return relaxUnbounded, 0, nil, nil
		}
	}

	x := make([]float64, n)
	copy(x, lo)

	if len(active) == 0 {
		for _, r := range rows {
			if (r.sense == LessEqual && r.rhs < -simplexTol) || (r.sense == GreaterEqual && r.rhs > simplexTol) {
				return relaxInfeasible, 0, nil, nil
			}
		}
		return relaxOptimal, constant, x, nil
	}

	cols := len(active) + len(rows)
	a := mat.NewDense(len(rows), cols, nil)
	b := make([]float64, len(rows))
	c := make([]float64, cols)
	for k, j := range active {
		c[k] = p.cost[j]
	}
	for i, r := range rows {
		sign := 1.0
		if r.rhs < 0 {
			sign = -1
		}
		for k, j := range active {
			a.Set(i, k, sign*r.coef[j])
		}
		slack := 1.0
		if r.sense == GreaterEqual {
			slack = -1
		}
		a.Set(i, len(active)+i, sign*slack)
		b[i] = sign * r.rhs
	}

	optF, optX, err := lp.Simplex(c, a, b, simplexTol, nil)
	switch {
	case errors.Is(err, lp.ErrInfeasible):
		return relaxInfeasible, 0, nil, nil
	case errors.Is(err, lp.ErrUnbounded):
		return relaxUnbounded, 0, nil, nil
	case err != nil:
		return 0, 0, nil, apperrors.NewSolverInternalError("LP relaxation failed: %v", err)
	}

	for k, j := range active {
		x[j] = lo[j] + optX[k]
	}
	return relaxOptimal, constant + optF, x, nil
}

// Package ilp describes small integer linear programs and solves them.
//
// A Model is a set of named integer variables with bounds, a linear objective
// to minimise and linear ≤ / ≥ constraints. Coefficients are decimals so that
// objective values and feasibility checks are exact; floating point is only
// used inside the LP relaxation of the branch-and-bound solver.
package ilp

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	apperrors "github.com/dhanya-cpu/disaster-ai-system/pkg/errors"
)

// Sense is the direction of a linear constraint.
type Sense int

const (
	LessEqual Sense = iota
	GreaterEqual
)

func (s Sense) String() string {
	switch s {
	case LessEqual:
		return "<="
	case GreaterEqual:
		return ">="
	default:
		return "?"
	}
}

// Variable is an integer decision variable. Without HasUpper it is unbounded above.
type Variable struct {
	Name     string
	Lower    int64
	Upper    int64
	HasUpper bool
}

// Term is coefficient × variable.
type Term struct {
	Var  string
	Coef decimal.Decimal
}

// Constraint is Σ terms (sense) RHS.
type Constraint struct {
	Name  string
	Terms []Term
	Sense Sense
	RHS   decimal.Decimal
}

// LHS evaluates the constraint's left-hand side exactly.
func (c Constraint) LHS(values map[string]int64) decimal.Decimal {
	total := decimal.Zero
	for _, t := range c.Terms {
		total = total.Add(t.Coef.Mul(decimal.NewFromInt(values[t.Var])))
	}
	return total
}

// Holds reports whether values satisfy the constraint.
func (c Constraint) Holds(values map[string]int64) bool {
	lhs := c.LHS(values)
	if c.Sense == GreaterEqual {
		return lhs.GreaterThanOrEqual(c.RHS)
	}
	return lhs.LessThanOrEqual(c.RHS)
}

func (c Constraint) String() string {
	parts := make([]string, len(c.Terms))
	for i, t := range c.Terms {
		parts[i] = fmt.Sprintf("%s*%s", t.Coef, t.Var)
	}
	return fmt.Sprintf("%s: %s %s %s", c.Name, strings.Join(parts, " + "), c.Sense, c.RHS)
}

// Model is a minimisation problem over integer variables.
type Model struct {
	Name        string
	vars        []Variable
	index       map[string]int
	objective   []decimal.Decimal
	constraints []Constraint
}

// NewModel creates an empty model.
func NewModel(name string) *Model {
	return &Model{Name: name, index: make(map[string]int)}
}

// AddVariable declares an integer variable.
func (m *Model) AddVariable(v Variable) error {
	if v.Name == "" {
		return apperrors.NewSolverInternalError("model %s: variable with empty name", m.Name)
	}
	if _, dup := m.index[v.Name]; dup {
		return apperrors.NewSolverInternalError("model %s: duplicate variable %q", m.Name, v.Name)
	}
	if v.Lower < 0 {
		return apperrors.NewSolverInternalError("model %s: variable %q has negative lower bound %d", m.Name, v.Name, v.Lower)
	}
	if v.HasUpper && v.Upper < v.Lower {
		return apperrors.NewSolverInternalError("model %s: variable %q has upper bound %d below lower bound %d", m.Name, v.Name, v.Upper, v.Lower)
	}
	m.index[v.Name] = len(m.vars)
	m.vars = append(m.vars, v)
	m.objective = append(m.objective, decimal.Zero)
	return nil
}

// SetObjective sets the cost coefficient of a variable.
func (m *Model) SetObjective(name string, coef decimal.Decimal) error {
	i, ok := m.index[name]
	if !ok {
		return apperrors.NewSolverInternalError("model %s: objective references unknown variable %q", m.Name, name)
	}
	m.objective[i] = coef
	return nil
}

// AddConstraint appends a linear constraint.
func (m *Model) AddConstraint(c Constraint) error {
	if c.Sense != LessEqual && c.Sense != GreaterEqual {
		return apperrors.NewSolverInternalError("model %s: constraint %q has unknown sense %d", m.Name, c.Name, c.Sense)
	}
	for _, t := range c.Terms {
		if _, ok := m.index[t.Var]; !ok {
			return apperrors.NewSolverInternalError("model %s: constraint %q references unknown variable %q", m.Name, c.Name, t.Var)
		}
	}
	terms := make([]Term, len(c.Terms))
	copy(terms, c.Terms)
	c.Terms = terms
	m.constraints = append(m.constraints, c)
	return nil
}

// Variables returns the variables in declaration order.
func (m *Model) Variables() []Variable {
	out := make([]Variable, len(m.vars))
	copy(out, m.vars)
	return out
}

// Variable looks up a variable by name.
func (m *Model) Variable(name string) (Variable, bool) {
	i, ok := m.index[name]
	if !ok {
		return Variable{}, false
	}
	return m.vars[i], true
}

// Constraints returns the constraints in insertion order.
func (m *Model) Constraints() []Constraint {
	out := make([]Constraint, len(m.constraints))
	copy(out, m.constraints)
	return out
}

// ObjectiveCoef returns the cost coefficient of a variable.
func (m *Model) ObjectiveCoef(name string) decimal.Decimal {
	i, ok := m.index[name]
	if !ok {
		return decimal.Zero
	}
	return m.objective[i]
}

// Validate checks the model is solvable in principle.
func (m *Model) Validate() error {
	if len(m.vars) == 0 {
		return apperrors.NewSolverInternalError("model %s has no variables", m.Name)
	}
	return nil
}

// LowerBounds returns every variable at its lower bound.
func (m *Model) LowerBounds() map[string]int64 {
	out := make(map[string]int64, len(m.vars))
	for _, v := range m.vars {
		out[v.Name] = v.Lower
	}
	return out
}

// Evaluate computes the objective value exactly.
func (m *Model) Evaluate(values map[string]int64) decimal.Decimal {
	total := decimal.Zero
	for i, v := range m.vars {
		total = total.Add(m.objective[i].Mul(decimal.NewFromInt(values[v.Name])))
	}
	return total
}

// Violated returns the first bound or constraint that values break, or "".
func (m *Model) Violated(values map[string]int64) string {
	for _, v := range m.vars {
		q := values[v.Name]
		if q < v.Lower {
			return fmt.Sprintf("%s >= %d", v.Name, v.Lower)
		}
		if v.HasUpper && q > v.Upper {
			return fmt.Sprintf("%s <= %d", v.Name, v.Upper)
		}
	}
	for _, c := range m.constraints {
		if !c.Holds(values) {
			return c.Name
		}
	}
	return ""
}

// Feasible reports whether values satisfy every bound and constraint.
func (m *Model) Feasible(values map[string]int64) bool {
	return m.Violated(values) == ""
}

// FloorApplicable reports whether the lower-bound vector is optimal whenever it
// is feasible: every objective coefficient is positive and every constraint is
// a ≤ with non-negative coefficients. Raising a variable then only adds cost and
// can never repair a violated constraint.
func (m *Model) FloorApplicable() bool {
	for _, coef := range m.objective {
		if !coef.IsPositive() {
			return false
		}
	}
	for _, c := range m.constraints {
		if c.Sense != LessEqual {
			return false
		}
		for _, t := range c.Terms {
			if t.Coef.IsNegative() {
				return false
			}
		}
	}
	return true
}

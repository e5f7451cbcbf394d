// constraint.go: the post-and-propagate constraint contract plus the
// concrete constraints the engine ships with.
//
// A constraint contributes two things: Post registers its demons on the
// variables it watches, and InitialPropagate enforces it once against the
// initial domains. Solver.AddConstraint runs both inside one scoped
// context so that a failure during model building marks the solver
// broken instead of leaking a half-posted constraint.
package cpsolver

import (
	"fmt"
	"strings"
)

// Constraint is the propagation contract. Implementations narrow domains
// through variable mutators and raise failure through the solver when
// they detect infeasibility.
type Constraint interface {
	// Solver returns the owning solver.
	Solver() *Solver
	// Post registers the constraint's demons on its variables.
	Post()
	// InitialPropagate enforces the constraint on the initial domains.
	InitialPropagate()
	// String renders the constraint for traces and errors.
	String() string
}

// linkExprVar channels an expression and its shadow variable: each side's
// bounds are propagated onto the other whenever either moves. Posted
// automatically by IntExpr.Var.
type linkExprVar struct {
	s    *Solver
	expr IntExpr
	v    IntVar
}

func newLinkExprVar(s *Solver, expr IntExpr, v IntVar) Constraint {
	return &linkExprVar{s: s, expr: expr, v: v}
}

func (c *linkExprVar) Solver() *Solver { return c.s }

func (c *linkExprVar) Post() {
	d := c.s.MakeDemon(fmt.Sprintf("link(%s)", c.expr), func(s *Solver) {
		c.InitialPropagate()
	})
	c.expr.WhenRange(d)
	c.v.WhenRange(d)
}

func (c *linkExprVar) InitialPropagate() {
	c.v.SetRange(c.expr.Min(), c.expr.Max())
	c.expr.SetRange(c.v.Min(), c.v.Max())
}

func (c *linkExprVar) String() string {
	return fmt.Sprintf("%s == %s", c.v, c.expr)
}

// equality enforces x == y by bounds channeling.
type equality struct {
	s    *Solver
	x, y IntVar
}

// NewEquality returns the constraint x == y.
func (s *Solver) NewEquality(x, y IntVar) Constraint {
	return &equality{s: s, x: x, y: y}
}

func (c *equality) Solver() *Solver { return c.s }

func (c *equality) Post() {
	d := c.s.MakeDemon(c.String(), func(s *Solver) {
		c.InitialPropagate()
	})
	c.x.WhenRange(d)
	c.y.WhenRange(d)
}

func (c *equality) InitialPropagate() {
	c.x.SetRange(c.y.Min(), c.y.Max())
	c.y.SetRange(c.x.Min(), c.x.Max())
}

func (c *equality) String() string {
	return fmt.Sprintf("%s == %s", c.x, c.y)
}

// lessOrEqual enforces x <= y by bounds propagation.
type lessOrEqual struct {
	s    *Solver
	x, y IntVar
}

// NewLessOrEqual returns the constraint x <= y.
func (s *Solver) NewLessOrEqual(x, y IntVar) Constraint {
	return &lessOrEqual{s: s, x: x, y: y}
}

func (c *lessOrEqual) Solver() *Solver { return c.s }

func (c *lessOrEqual) Post() {
	d := c.s.MakeDemon(c.String(), func(s *Solver) {
		c.InitialPropagate()
	})
	c.x.WhenRange(d)
	c.y.WhenRange(d)
}

func (c *lessOrEqual) InitialPropagate() {
	c.y.SetMin(c.x.Min())
	c.x.SetMax(c.y.Max())
}

func (c *lessOrEqual) String() string {
	return fmt.Sprintf("%s <= %s", c.x, c.y)
}

// memberCst pins a variable against a constant: x == value, x <= value,
// x >= value or x != value. enforceLiteral applies the same shapes
// directly; the symmetry manager uses only its != form, on refutation.
type memberCst struct {
	s     *Solver
	x     IntVar
	op    LiteralOp
	value int64
}

// LiteralOp is a comparison against a constant.
type LiteralOp int

const (
	LiteralEq LiteralOp = iota
	LiteralNeq
	LiteralLe
	LiteralGe
)

func (op LiteralOp) String() string {
	switch op {
	case LiteralEq:
		return "=="
	case LiteralNeq:
		return "!="
	case LiteralLe:
		return "<="
	case LiteralGe:
		return ">="
	default:
		return "?"
	}
}

// NewLiteral returns the constraint "x op value".
func (s *Solver) NewLiteral(x IntVar, op LiteralOp, value int64) Constraint {
	return &memberCst{s: s, x: x, op: op, value: value}
}

func (c *memberCst) Solver() *Solver { return c.s }

func (c *memberCst) Post() {
	// Constant comparisons are enforced once; no demons needed.
}

func (c *memberCst) InitialPropagate() {
	switch c.op {
	case LiteralEq:
		c.x.SetValue(c.value)
	case LiteralNeq:
		c.x.RemoveValue(c.value)
	case LiteralLe:
		c.x.SetMax(c.value)
	case LiteralGe:
		c.x.SetMin(c.value)
	}
}

func (c *memberCst) String() string {
	return fmt.Sprintf("%s %s %d", c.x, c.op, c.value)
}

// enforceLiteral applies the literal directly to the domain, for use
// inside an active propagation (the symmetry manager's refutation hook).
func enforceLiteral(x IntVar, op LiteralOp, value int64) {
	switch op {
	case LiteralEq:
		x.SetValue(value)
	case LiteralNeq:
		x.RemoveValue(value)
	case LiteralLe:
		x.SetMax(value)
	case LiteralGe:
		x.SetMin(value)
	}
}

// allDifferent enforces pairwise distinctness with value propagation:
// when a variable binds, its value is removed from every other domain.
type allDifferent struct {
	s    *Solver
	vars []IntVar
	// done records which variables have already had their bound value
	// swept out of the other domains, reversibly.
	done *RevBitSet
}

// NewAllDifferent returns a constraint forcing all vars to take distinct
// values. Filtering is value-based: each bound variable removes its value
// from the others.
func (s *Solver) NewAllDifferent(vars []IntVar) Constraint {
	vs := make([]IntVar, len(vars))
	copy(vs, vars)
	return &allDifferent{s: s, vars: vs, done: NewRevBitSet(len(vs))}
}

func (c *allDifferent) Solver() *Solver { return c.s }

func (c *allDifferent) Post() {
	for i := range c.vars {
		i := i
		d := c.s.MakeDemon(fmt.Sprintf("alldiff[%d]", i), func(s *Solver) {
			c.propagateBound(i)
		})
		c.vars[i].WhenBound(d)
	}
}

func (c *allDifferent) InitialPropagate() {
	for i, v := range c.vars {
		if v.Bound() {
			c.propagateBound(i)
		}
	}
}

// propagateBound removes vars[i]'s value from every other domain, once.
func (c *allDifferent) propagateBound(i int) {
	if c.done.Bit(i) {
		return
	}
	c.done.SetBit(c.s, i)
	value := c.vars[i].Value()
	for j, other := range c.vars {
		if j != i {
			other.RemoveValue(value)
		}
	}
}

func (c *allDifferent) String() string {
	names := make([]string, len(c.vars))
	for i, v := range c.vars {
		names[i] = v.String()
	}
	return fmt.Sprintf("AllDifferent(%s)", strings.Join(names, ", "))
}

// sumEquality enforces sum(vars) == total with bounds propagation in both
// directions. The re-scan is linear in the number of variables, so the
// demon runs at delayed priority.
type sumEquality struct {
	s     *Solver
	vars  []IntVar
	total IntVar
}

// NewSumEquality returns the constraint sum(vars) == total.
func (s *Solver) NewSumEquality(vars []IntVar, total IntVar) Constraint {
	vs := make([]IntVar, len(vars))
	copy(vs, vars)
	return &sumEquality{s: s, vars: vs, total: total}
}

func (c *sumEquality) Solver() *Solver { return c.s }

func (c *sumEquality) Post() {
	d := c.s.MakeDelayedDemon(c.String(), func(_ *Demon, s *Solver) {
		c.InitialPropagate()
	})
	for _, v := range c.vars {
		v.WhenRange(d)
	}
	c.total.WhenRange(d)
}

func (c *sumEquality) InitialPropagate() {
	sumMin, sumMax := int64(0), int64(0)
	for _, v := range c.vars {
		sumMin += v.Min()
		sumMax += v.Max()
	}
	c.total.SetRange(sumMin, sumMax)
	// Push the total back onto each term using the others' slack.
	for _, v := range c.vars {
		otherMin := sumMin - v.Min()
		otherMax := sumMax - v.Max()
		v.SetRange(c.total.Min()-otherMax, c.total.Max()-otherMin)
	}
}

func (c *sumEquality) String() string {
	return fmt.Sprintf("Sum(%d vars) == %s", len(c.vars), c.total)
}

// element enforces target == values[index].
type element struct {
	s      *Solver
	values []int64
	index  IntVar
	target IntVar
}

// NewElement returns the constraint target == values[index]. The index
// variable is restricted to [0, len(values)-1].
func (s *Solver) NewElement(values []int64, index, target IntVar) Constraint {
	vs := make([]int64, len(values))
	copy(vs, values)
	return &element{s: s, values: vs, index: index, target: target}
}

func (c *element) Solver() *Solver { return c.s }

func (c *element) Post() {
	d := c.s.MakeDemon(c.String(), func(s *Solver) {
		c.propagateElement()
	})
	c.index.WhenDomain(d)
	c.target.WhenRange(d)
}

func (c *element) InitialPropagate() {
	c.index.SetRange(0, int64(len(c.values)-1))
	c.propagateElement()
}

// propagateElement prunes index values whose table entry falls outside
// the target's bounds, then tightens the target to the reachable entries.
func (c *element) propagateElement() {
	lo, hi := c.target.Min(), c.target.Max()
	newLo, newHi := int64(1)<<62, -(int64(1) << 62)
	for i := c.index.Min(); i <= c.index.Max(); i++ {
		if !c.index.Contains(i) {
			continue
		}
		val := c.values[i]
		if val < lo || val > hi {
			c.index.RemoveValue(i)
			continue
		}
		if val < newLo {
			newLo = val
		}
		if val > newHi {
			newHi = val
		}
	}
	c.target.SetRange(newLo, newHi)
}

func (c *element) String() string {
	return fmt.Sprintf("%s == element(%d values, %s)", c.target, len(c.values), c.index)
}

// expr.go: stateless integer expressions.
//
// Expressions compute bounds on the fly from their operands and narrow by
// delegating to them; they hold no reversible state of their own. Var
// casts an expression to a stateful variable by allocating a shadow
// variable spanning the expression's bounds and posting the channeling
// constraint between the two. The shadow is interned per solver, so
// repeated casts return the same variable.
package cpsolver

import "fmt"

// castToVar returns the interned shadow variable for e, creating it and
// posting the channeling constraint on first use.
func (s *Solver) castToVar(e IntExpr) IntVar {
	if v, ok := s.castVars[e]; ok {
		return v
	}
	v := s.MakeIntVar(e.Min(), e.Max(), fmt.Sprintf("cast<%s>", e))
	s.castVars[e] = v
	if err := s.AddConstraint(newLinkExprVar(s, e, v)); err != nil {
		panic(fmt.Sprintf("cpsolver: casting %s produced an infeasible model: %v", e, err))
	}
	return v
}

// sumExpr is left + right.
type sumExpr struct {
	s           *Solver
	left, right IntExpr
}

// MakeSum returns the expression left + right.
func (s *Solver) MakeSum(left, right IntExpr) IntExpr {
	return &sumExpr{s: s, left: left, right: right}
}

func (e *sumExpr) Solver() *Solver { return e.s }
func (e *sumExpr) Min() int64      { return e.left.Min() + e.right.Min() }
func (e *sumExpr) Max() int64      { return e.left.Max() + e.right.Max() }
func (e *sumExpr) Bound() bool     { return e.left.Bound() && e.right.Bound() }
func (e *sumExpr) Var() IntVar     { return e.s.castToVar(e) }

func (e *sumExpr) SetMin(v int64) {
	e.left.SetMin(v - e.right.Max())
	e.right.SetMin(v - e.left.Max())
}

func (e *sumExpr) SetMax(v int64) {
	e.left.SetMax(v - e.right.Min())
	e.right.SetMax(v - e.left.Min())
}

func (e *sumExpr) SetRange(lo, hi int64) {
	e.SetMin(lo)
	e.SetMax(hi)
}

func (e *sumExpr) SetValue(v int64) {
	e.SetRange(v, v)
}

func (e *sumExpr) WhenRange(d *Demon) {
	e.left.WhenRange(d)
	e.right.WhenRange(d)
}

func (e *sumExpr) String() string {
	return fmt.Sprintf("(%s + %s)", e.left, e.right)
}

// affineExpr is a*x + b with a != 0.
type affineExpr struct {
	s    *Solver
	x    IntExpr
	a, b int64
}

// MakeAffine returns the expression a*x + b. The coefficient a must be
// nonzero; for a plain offset use MakeSumCst.
func (s *Solver) MakeAffine(x IntExpr, a, b int64) IntExpr {
	if a == 0 {
		panic("cpsolver: affine expression with zero coefficient")
	}
	return &affineExpr{s: s, x: x, a: a, b: b}
}

// MakeSumCst returns the expression x + c.
func (s *Solver) MakeSumCst(x IntExpr, c int64) IntExpr {
	return s.MakeAffine(x, 1, c)
}

// MakeOpposite returns the expression -x.
func (s *Solver) MakeOpposite(x IntExpr) IntExpr {
	return s.MakeAffine(x, -1, 0)
}

func (e *affineExpr) Solver() *Solver { return e.s }
func (e *affineExpr) Bound() bool     { return e.x.Bound() }
func (e *affineExpr) Var() IntVar     { return e.s.castToVar(e) }

func (e *affineExpr) Min() int64 {
	if e.a > 0 {
		return e.a*e.x.Min() + e.b
	}
	return e.a*e.x.Max() + e.b
}

func (e *affineExpr) Max() int64 {
	if e.a > 0 {
		return e.a*e.x.Max() + e.b
	}
	return e.a*e.x.Min() + e.b
}

func (e *affineExpr) SetMin(v int64) {
	if e.a > 0 {
		e.x.SetMin(ceilDiv(v-e.b, e.a))
	} else {
		e.x.SetMax(floorDiv(v-e.b, e.a))
	}
}

func (e *affineExpr) SetMax(v int64) {
	if e.a > 0 {
		e.x.SetMax(floorDiv(v-e.b, e.a))
	} else {
		e.x.SetMin(ceilDiv(v-e.b, e.a))
	}
}

func (e *affineExpr) SetRange(lo, hi int64) {
	e.SetMin(lo)
	e.SetMax(hi)
}

func (e *affineExpr) SetValue(v int64) {
	if (v-e.b)%e.a != 0 {
		e.s.Fail()
	}
	e.x.SetValue((v - e.b) / e.a)
}

func (e *affineExpr) WhenRange(d *Demon) {
	e.x.WhenRange(d)
}

func (e *affineExpr) String() string {
	return fmt.Sprintf("(%d*%s + %d)", e.a, e.x, e.b)
}

// scalProdExpr is sum(coeffs[i] * vars[i]).
type scalProdExpr struct {
	s      *Solver
	vars   []IntVar
	coeffs []int64
}

// MakeScalProd returns the expression sum over i of coeffs[i]*vars[i].
// The two slices must have the same length.
func (s *Solver) MakeScalProd(vars []IntVar, coeffs []int64) IntExpr {
	if len(vars) != len(coeffs) {
		panic("cpsolver: scalar product arity mismatch")
	}
	vs := make([]IntVar, len(vars))
	cs := make([]int64, len(coeffs))
	copy(vs, vars)
	copy(cs, coeffs)
	return &scalProdExpr{s: s, vars: vs, coeffs: cs}
}

func (e *scalProdExpr) Solver() *Solver { return e.s }
func (e *scalProdExpr) Var() IntVar     { return e.s.castToVar(e) }

func (e *scalProdExpr) Bound() bool {
	for _, v := range e.vars {
		if !v.Bound() {
			return false
		}
	}
	return true
}

func (e *scalProdExpr) Min() int64 {
	total := int64(0)
	for i, v := range e.vars {
		if e.coeffs[i] >= 0 {
			total += e.coeffs[i] * v.Min()
		} else {
			total += e.coeffs[i] * v.Max()
		}
	}
	return total
}

func (e *scalProdExpr) Max() int64 {
	total := int64(0)
	for i, v := range e.vars {
		if e.coeffs[i] >= 0 {
			total += e.coeffs[i] * v.Max()
		} else {
			total += e.coeffs[i] * v.Min()
		}
	}
	return total
}

// SetMin narrows each term against the slack left by the others.
func (e *scalProdExpr) SetMin(v int64) {
	max := e.Max()
	if max < v {
		e.s.Fail()
	}
	for i, x := range e.vars {
		c := e.coeffs[i]
		if c == 0 {
			continue
		}
		// Term i must reach at least v minus what the others can supply.
		var termMax int64
		if c > 0 {
			termMax = c * x.Max()
		} else {
			termMax = c * x.Min()
		}
		need := v - (max - termMax)
		if c > 0 {
			x.SetMin(ceilDiv(need, c))
		} else {
			x.SetMax(floorDiv(need, c))
		}
	}
}

// SetMax narrows each term against the slack left by the others.
func (e *scalProdExpr) SetMax(v int64) {
	min := e.Min()
	if min > v {
		e.s.Fail()
	}
	for i, x := range e.vars {
		c := e.coeffs[i]
		if c == 0 {
			continue
		}
		var termMin int64
		if c > 0 {
			termMin = c * x.Min()
		} else {
			termMin = c * x.Max()
		}
		allow := v - (min - termMin)
		if c > 0 {
			x.SetMax(floorDiv(allow, c))
		} else {
			x.SetMin(ceilDiv(allow, c))
		}
	}
}

func (e *scalProdExpr) SetRange(lo, hi int64) {
	e.SetMin(lo)
	e.SetMax(hi)
}

func (e *scalProdExpr) SetValue(v int64) {
	e.SetRange(v, v)
}

func (e *scalProdExpr) WhenRange(d *Demon) {
	for _, x := range e.vars {
		x.WhenRange(d)
	}
}

func (e *scalProdExpr) String() string {
	return fmt.Sprintf("scalprod(%d terms)", len(e.vars))
}

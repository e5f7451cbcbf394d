// intvar.go: finite-domain integer variables.
//
// A variable's domain is a pair of reversible bounds plus, once a value
// strictly inside the bounds is removed, a lazily allocated hole bitset.
// All writes go through the trail, so every narrowing is undone by the
// enclosing backtrack. Mutators are monotone: a successful mutation only
// ever shrinks the domain, and an empty domain raises failure instead of
// existing.
//
// Three event channels carry domain changes to demons:
//   - DOMAIN: any change at all
//   - RANGE: a bound moved
//   - BOUND: the domain became a singleton
//
// Demon registrations are reversible FIFOs, so demons registered inside a
// search branch disappear when the branch is undone.
package cpsolver

import "fmt"

// maxHoleWidth bounds the original domain width for which interior value
// removal is supported. Wider variables may only be narrowed through
// their bounds; removing an interior value from one is a contract
// violation.
const maxHoleWidth = 1 << 24

// IntExpr is an integer expression: something with queryable and
// narrowable bounds. Expressions are stateless; Min and Max are
// recomputed from operands on every call. An expression is turned into a
// stateful variable with Var.
type IntExpr interface {
	// Solver returns the owning solver.
	Solver() *Solver
	// Min returns the smallest admissible value.
	Min() int64
	// Max returns the largest admissible value.
	Max() int64
	// SetMin narrows the expression from below. Fails if v exceeds Max.
	SetMin(v int64)
	// SetMax narrows the expression from above. Fails if v is below Min.
	SetMax(v int64)
	// SetRange narrows both bounds at once.
	SetRange(lo, hi int64)
	// SetValue binds the expression to a single value.
	SetValue(v int64)
	// Bound reports whether Min equals Max.
	Bound() bool
	// WhenRange registers d to run whenever the expression's bounds move.
	WhenRange(d *Demon)
	// Var returns the variable shadowing this expression, casting the
	// expression on first use. At most one shadow exists per expression.
	Var() IntVar
	// String renders the expression with its current bounds.
	String() string
}

// IntVar is a finite-domain integer variable. Beyond the expression
// surface it supports value removal, domain membership and the full set
// of event registrations.
type IntVar interface {
	IntExpr
	// Value returns the bound value. Calling Value on an unbound
	// variable is a contract violation.
	Value() int64
	// RemoveValue removes a single value from the domain.
	RemoveValue(v int64)
	// RemoveInterval removes every value in [lo, hi] from the domain.
	RemoveInterval(lo, hi int64)
	// Contains reports whether v is currently admissible.
	Contains(v int64) bool
	// Size returns the number of admissible values.
	Size() int64
	// OldMin returns Min as it was at the previous propagation fixpoint.
	OldMin() int64
	// OldMax returns Max as it was at the previous propagation fixpoint.
	OldMax() int64
	// WhenBound registers d to run when the variable becomes bound.
	WhenBound(d *Demon)
	// WhenDomain registers d to run on any domain change.
	WhenDomain(d *Demon)
	// VarIndex returns the dense per-solver index of the variable.
	VarIndex() int
}

// domainIntVar is the standard variable implementation: reversible bounds
// plus a lazy hole bitset over the original width.
type domainIntVar struct {
	s     *Solver
	name  string
	index int

	min, max         int64
	origMin, origMax int64
	holes            *RevBitSet // nil until an interior value is removed

	oldMin, oldMax int64
	roundStamp     uint64

	boundDemons  SimpleRevFIFO[*Demon]
	rangeDemons  SimpleRevFIFO[*Demon]
	domainDemons SimpleRevFIFO[*Demon]
}

// MakeIntVar returns a new variable with domain [lo, hi].
func (s *Solver) MakeIntVar(lo, hi int64, name string) IntVar {
	if lo > hi {
		panic(fmt.Sprintf("cpsolver: empty initial domain [%d, %d] for %q", lo, hi, name))
	}
	v := &domainIntVar{
		s:       s,
		name:    name,
		min:     lo,
		max:     hi,
		origMin: lo,
		origMax: hi,
		oldMin:  lo,
		oldMax:  hi,
	}
	v.index = s.registerVar(v)
	return v
}

// MakeBoolVar returns a new 0/1 variable.
func (s *Solver) MakeBoolVar(name string) IntVar {
	return s.MakeIntVar(0, 1, name)
}

// MakeIntVarFromValues returns a variable whose domain is exactly the
// given value set.
func (s *Solver) MakeIntVarFromValues(values []int64, name string) IntVar {
	if len(values) == 0 {
		panic(fmt.Sprintf("cpsolver: empty value set for %q", name))
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}
	iv := s.MakeIntVar(lo, hi, name).(*domainIntVar)
	present := make(map[int64]bool, len(values))
	for _, v := range values {
		present[v] = true
	}
	for v := lo + 1; v < hi; v++ {
		if !present[v] {
			iv.RemoveValue(v)
		}
	}
	return iv
}

func (v *domainIntVar) Solver() *Solver { return v.s }
func (v *domainIntVar) Min() int64      { return v.min }
func (v *domainIntVar) Max() int64      { return v.max }
func (v *domainIntVar) Bound() bool     { return v.min == v.max }
func (v *domainIntVar) VarIndex() int   { return v.index }
func (v *domainIntVar) OldMin() int64   { return v.oldMin }
func (v *domainIntVar) OldMax() int64   { return v.oldMax }
func (v *domainIntVar) Var() IntVar     { return v }

func (v *domainIntVar) Value() int64 {
	if v.min != v.max {
		panic(fmt.Sprintf("cpsolver: Value() on unbound variable %s", v))
	}
	return v.min
}

func (v *domainIntVar) String() string {
	if v.min == v.max {
		return fmt.Sprintf("%s(%d)", v.name, v.min)
	}
	return fmt.Sprintf("%s(%d..%d)", v.name, v.min, v.max)
}

// captureOldBounds snapshots the bounds the first time the variable moves
// after a propagation fixpoint, giving incremental propagators a stable
// "previous" state to diff against.
func (v *domainIntVar) captureOldBounds() {
	if v.roundStamp == v.s.propagateRound {
		return
	}
	SaveValue(&v.s.trail, &v.oldMin)
	SaveValue(&v.s.trail, &v.oldMax)
	SaveAndSetValue(&v.s.trail, &v.roundStamp, v.s.propagateRound)
	v.oldMin = v.min
	v.oldMax = v.max
}

// holeIndex maps a value to its bit index in the hole set.
func (v *domainIntVar) holeIndex(value int64) int {
	return int(value - v.origMin)
}

// ensureHoles materializes the hole bitset, seeding every value of the
// original width as present. Bits are only ever cleared by RemoveValue;
// bounds narrowing leaves them set, which keeps backtracking consistent.
func (v *domainIntVar) ensureHoles() {
	if v.holes != nil {
		return
	}
	width := v.origMax - v.origMin + 1
	if width > maxHoleWidth {
		panic(fmt.Sprintf("cpsolver: variable %s is too wide for value removal", v.name))
	}
	h := NewRevBitSet(int(width))
	for i := 0; i < int(width); i++ {
		h.words[i/64] |= 1 << (uint(i) % 64)
	}
	SaveAndSetValue(&v.s.trail, &v.holes, h)
}

func (v *domainIntVar) Contains(value int64) bool {
	if value < v.min || value > v.max {
		return false
	}
	if v.holes == nil {
		return true
	}
	return v.holes.Bit(v.holeIndex(value))
}

func (v *domainIntVar) Size() int64 {
	if v.holes == nil {
		return v.max - v.min + 1
	}
	n := int64(0)
	for val := v.min; val <= v.max; val++ {
		if v.holes.Bit(v.holeIndex(val)) {
			n++
		}
	}
	return n
}

// fire enqueues the demons matching a mutation. Any change fires DOMAIN;
// a bounds move fires RANGE; reaching a singleton fires BOUND.
func (v *domainIntVar) fire(rangeMoved bool) {
	bound := v.min == v.max
	if bound {
		v.boundDemons.ForEach(v.s.EnqueueDemon)
	}
	if rangeMoved {
		v.rangeDemons.ForEach(v.s.EnqueueDemon)
	}
	v.domainDemons.ForEach(v.s.EnqueueDemon)
}

// nextPresentUp returns the smallest admissible value >= from, assuming
// the hole set exists.
func (v *domainIntVar) nextPresentUp(from int64) (int64, bool) {
	i := v.holes.GetFirstBit(v.holeIndex(from))
	if i < 0 {
		return 0, false
	}
	return v.origMin + int64(i), true
}

// nextPresentDown returns the largest admissible value <= from, assuming
// the hole set exists.
func (v *domainIntVar) nextPresentDown(from int64) (int64, bool) {
	i := v.holes.GetLastBit(v.holeIndex(from))
	if i < 0 {
		return 0, false
	}
	return v.origMin + int64(i), true
}

func (v *domainIntVar) SetMin(value int64) {
	if value <= v.min {
		return
	}
	if value > v.max {
		v.s.Fail()
	}
	if v.holes != nil {
		next, ok := v.nextPresentUp(value)
		if !ok || next > v.max {
			v.s.Fail()
		}
		value = next
	}
	v.captureOldBounds()
	SaveAndSetValue(&v.s.trail, &v.min, value)
	v.s.notifyVarEvent(EventSetMin, v)
	v.fire(true)
}

func (v *domainIntVar) SetMax(value int64) {
	if value >= v.max {
		return
	}
	if value < v.min {
		v.s.Fail()
	}
	if v.holes != nil {
		next, ok := v.nextPresentDown(value)
		if !ok || next < v.min {
			v.s.Fail()
		}
		value = next
	}
	v.captureOldBounds()
	SaveAndSetValue(&v.s.trail, &v.max, value)
	v.s.notifyVarEvent(EventSetMax, v)
	v.fire(true)
}

func (v *domainIntVar) SetRange(lo, hi int64) {
	if lo > hi {
		v.s.Fail()
	}
	v.SetMin(lo)
	v.SetMax(hi)
}

func (v *domainIntVar) SetValue(value int64) {
	if !v.Contains(value) {
		v.s.Fail()
	}
	v.SetRange(value, value)
}

func (v *domainIntVar) RemoveValue(value int64) {
	if value < v.min || value > v.max {
		return
	}
	if v.min == v.max {
		// Removing the only value empties the domain.
		v.s.Fail()
	}
	switch value {
	case v.min:
		v.SetMin(value + 1)
	case v.max:
		v.SetMax(value - 1)
	default:
		v.ensureHoles()
		idx := v.holeIndex(value)
		if !v.holes.Bit(idx) {
			return
		}
		v.holes.ClearBit(v.s, idx)
		v.s.notifyVarEvent(EventRemoveValue, v)
		v.fire(false)
	}
}

func (v *domainIntVar) RemoveInterval(lo, hi int64) {
	if lo > hi {
		return
	}
	if lo <= v.min && hi >= v.max {
		v.s.Fail()
	}
	if lo <= v.min {
		v.SetMin(hi + 1)
		return
	}
	if hi >= v.max {
		v.SetMax(lo - 1)
		return
	}
	for value := lo; value <= hi; value++ {
		v.RemoveValue(value)
	}
}

func (v *domainIntVar) WhenBound(d *Demon)  { v.boundDemons.PushIfNotTop(v.s, d) }
func (v *domainIntVar) WhenRange(d *Demon)  { v.rangeDemons.PushIfNotTop(v.s, d) }
func (v *domainIntVar) WhenDomain(d *Demon) { v.domainDemons.PushIfNotTop(v.s, d) }

// constIntVar is the constant subtype: a variable permanently bound to
// one value. Mutators either no-op or fail; demons never run.
type constIntVar struct {
	s     *Solver
	value int64
	index int
}

// MakeIntConst returns a variable permanently bound to value.
func (s *Solver) MakeIntConst(value int64) IntVar {
	v := &constIntVar{s: s, value: value}
	v.index = s.registerVar(v)
	return v
}

func (v *constIntVar) Solver() *Solver { return v.s }
func (v *constIntVar) Min() int64      { return v.value }
func (v *constIntVar) Max() int64      { return v.value }
func (v *constIntVar) Value() int64    { return v.value }
func (v *constIntVar) Bound() bool     { return true }
func (v *constIntVar) Size() int64     { return 1 }
func (v *constIntVar) OldMin() int64   { return v.value }
func (v *constIntVar) OldMax() int64   { return v.value }
func (v *constIntVar) VarIndex() int   { return v.index }
func (v *constIntVar) Var() IntVar     { return v }

func (v *constIntVar) Contains(value int64) bool { return value == v.value }

func (v *constIntVar) SetMin(value int64) {
	if value > v.value {
		v.s.Fail()
	}
}

func (v *constIntVar) SetMax(value int64) {
	if value < v.value {
		v.s.Fail()
	}
}

func (v *constIntVar) SetRange(lo, hi int64) {
	if lo > v.value || hi < v.value {
		v.s.Fail()
	}
}

func (v *constIntVar) SetValue(value int64) {
	if value != v.value {
		v.s.Fail()
	}
}

func (v *constIntVar) RemoveValue(value int64) {
	if value == v.value {
		v.s.Fail()
	}
}

func (v *constIntVar) RemoveInterval(lo, hi int64) {
	if lo <= v.value && v.value <= hi {
		v.s.Fail()
	}
}

func (v *constIntVar) WhenBound(*Demon)  {}
func (v *constIntVar) WhenRange(*Demon)  {}
func (v *constIntVar) WhenDomain(*Demon) {}

func (v *constIntVar) String() string {
	return fmt.Sprintf("const(%d)", v.value)
}

// transformedIntVar is the affine subtype a*x+b over an underlying
// variable, with a != 0. Negation is the a = -1, b = 0 instance. All
// state lives in the underlying variable; this wrapper only translates
// coordinates, so demon registrations delegate directly.
type transformedIntVar struct {
	x    IntVar
	a, b int64
}

// MakeAffineVar returns the variable view of a*x+b. The coefficient a
// must be nonzero.
func (s *Solver) MakeAffineVar(x IntVar, a, b int64) IntVar {
	if a == 0 {
		panic("cpsolver: affine variable with zero coefficient")
	}
	return &transformedIntVar{x: x, a: a, b: b}
}

// MakeOppositeVar returns the negation view of x.
func (s *Solver) MakeOppositeVar(x IntVar) IntVar {
	return s.MakeAffineVar(x, -1, 0)
}

func (v *transformedIntVar) Solver() *Solver { return v.x.Solver() }
func (v *transformedIntVar) VarIndex() int   { return v.x.VarIndex() }
func (v *transformedIntVar) Bound() bool     { return v.x.Bound() }
func (v *transformedIntVar) Size() int64     { return v.x.Size() }
func (v *transformedIntVar) Var() IntVar     { return v }

func (v *transformedIntVar) Min() int64 {
	if v.a > 0 {
		return v.a*v.x.Min() + v.b
	}
	return v.a*v.x.Max() + v.b
}

func (v *transformedIntVar) Max() int64 {
	if v.a > 0 {
		return v.a*v.x.Max() + v.b
	}
	return v.a*v.x.Min() + v.b
}

func (v *transformedIntVar) OldMin() int64 {
	if v.a > 0 {
		return v.a*v.x.OldMin() + v.b
	}
	return v.a*v.x.OldMax() + v.b
}

func (v *transformedIntVar) OldMax() int64 {
	if v.a > 0 {
		return v.a*v.x.OldMax() + v.b
	}
	return v.a*v.x.OldMin() + v.b
}

func (v *transformedIntVar) Value() int64 {
	return v.a*v.x.Value() + v.b
}

// floorDiv and ceilDiv round toward minus and plus infinity respectively,
// which is what bound translation through a negative coefficient needs.
func floorDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}

func ceilDiv(a, b int64) int64 {
	q := a / b
	if (a%b != 0) && ((a < 0) == (b < 0)) {
		q++
	}
	return q
}

func (v *transformedIntVar) SetMin(value int64) {
	if v.a > 0 {
		v.x.SetMin(ceilDiv(value-v.b, v.a))
	} else {
		v.x.SetMax(floorDiv(value-v.b, v.a))
	}
}

func (v *transformedIntVar) SetMax(value int64) {
	if v.a > 0 {
		v.x.SetMax(floorDiv(value-v.b, v.a))
	} else {
		v.x.SetMin(ceilDiv(value-v.b, v.a))
	}
}

func (v *transformedIntVar) SetRange(lo, hi int64) {
	v.SetMin(lo)
	v.SetMax(hi)
}

func (v *transformedIntVar) SetValue(value int64) {
	if (value-v.b)%v.a != 0 {
		v.Solver().Fail()
	}
	v.x.SetValue((value - v.b) / v.a)
}

func (v *transformedIntVar) Contains(value int64) bool {
	if (value-v.b)%v.a != 0 {
		return false
	}
	return v.x.Contains((value - v.b) / v.a)
}

func (v *transformedIntVar) RemoveValue(value int64) {
	if (value-v.b)%v.a != 0 {
		return
	}
	v.x.RemoveValue((value - v.b) / v.a)
}

func (v *transformedIntVar) RemoveInterval(lo, hi int64) {
	for value := lo; value <= hi; value++ {
		v.RemoveValue(value)
	}
}

func (v *transformedIntVar) WhenBound(d *Demon)  { v.x.WhenBound(d) }
func (v *transformedIntVar) WhenRange(d *Demon)  { v.x.WhenRange(d) }
func (v *transformedIntVar) WhenDomain(d *Demon) { v.x.WhenDomain(d) }

func (v *transformedIntVar) String() string {
	return fmt.Sprintf("(%d*%s+%d)", v.a, v.x, v.b)
}

// Package cpsolver provides reversible state management for backtracking search.
// This file implements the trail: the sequential log of primitive mutations
// that lets the solver undo any amount of work by replaying entries in reverse.
//
// Every piece of solver state that changes during search is written through
// the trail. Backtracking to a mark restores each tracked cell to the exact
// value it held when the mark was taken, which is the property the rest of
// the engine is built on: domains, demon registrations, reversible containers and
// the arena all rely on it.
//
// Entries are typed records rather than raw address/byte-width pairs: each
// record captures a pointer to the mutated cell together with the previous
// value, so restoring is a plain typed store. This keeps the trail memory
// safe while preserving the "byte-identical after undo" guarantee.
package cpsolver

// Marker is an opaque token identifying a trail depth. Markers are totally
// ordered: a marker taken later compares greater than one taken earlier.
// UndoTo with a stale (already undone) marker is a contract violation.
type Marker int

// restorer is a single undo record. Records are pushed on mutation and
// popped LIFO by UndoTo.
type restorer interface {
	restore()
}

// cellRecord is the undo record for a typed cell: the cell address and the
// value it held before the tracked mutation.
type cellRecord[T any] struct {
	addr *T
	old  T
}

func (c cellRecord[T]) restore() {
	*c.addr = c.old
}

// Trail is the mutation log. A solver owns exactly one Trail; concurrent
// writers are a contract violation.
type Trail struct {
	entries []restorer
}

// Mark returns a token for the current trail depth. Passing it to UndoTo
// restores every tracked cell to its value at the time of the call.
func (t *Trail) Mark() Marker {
	return Marker(len(t.entries))
}

// Len returns the number of entries currently on the trail.
func (t *Trail) Len() int {
	return len(t.entries)
}

// UndoTo pops and restores entries until the trail depth matches m.
// Entries are restored newest-first, so cells mutated several times since
// the mark end up holding their value from the time of the mark.
func (t *Trail) UndoTo(m Marker) {
	if int(m) > len(t.entries) {
		panic("cpsolver: UndoTo with a marker from an undone region")
	}
	for i := len(t.entries) - 1; i >= int(m); i-- {
		t.entries[i].restore()
		t.entries[i] = nil
	}
	t.entries = t.entries[:m]
}

// SaveValue records the current value of the cell at addr so that a later
// UndoTo restores it. The caller may then mutate the cell directly.
func SaveValue[T any](t *Trail, addr *T) {
	t.entries = append(t.entries, cellRecord[T]{addr: addr, old: *addr})
}

// SaveAndSetValue records the current value of the cell at addr and then
// overwrites it with v.
func SaveAndSetValue[T any](t *Trail, addr *T, v T) {
	t.entries = append(t.entries, cellRecord[T]{addr: addr, old: *addr})
	*addr = v
}

// Rev is a reversible cell holding a single value. All mutation must go
// through SetValue so the previous value lands on the trail; writing the
// field directly bypasses backtracking and is a contract violation.
//
// The zero Rev holds the zero value of T. Use NewRev to seed a different
// initial value outside of search.
type Rev[T comparable] struct {
	value T
}

// NewRev returns a reversible cell holding v. Setting the initial value
// this way does not touch the trail and must happen before search starts.
func NewRev[T comparable](v T) Rev[T] {
	return Rev[T]{value: v}
}

// Value returns the current value of the cell.
func (r *Rev[T]) Value() T {
	return r.value
}

// SetValue overwrites the cell through the solver's trail. Storing a value
// equal to the current one is a no-op and adds no trail entry.
func (r *Rev[T]) SetValue(s *Solver, v T) {
	if r.value == v {
		return
	}
	SaveAndSetValue(&s.trail, &r.value, v)
}

// Integer constrains the numeric reversible cells to machine integers.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64
}

// NumericalRev is a reversible cell over an integer type with increment and
// decrement helpers, handy for reversible counters.
type NumericalRev[T Integer] struct {
	Rev[T]
}

// NewNumericalRev returns a reversible numeric cell holding v.
func NewNumericalRev[T Integer](v T) NumericalRev[T] {
	return NumericalRev[T]{Rev: NewRev(v)}
}

// Incr adds one to the cell through the trail.
func (r *NumericalRev[T]) Incr(s *Solver) {
	r.Add(s, 1)
}

// Decr subtracts one from the cell through the trail.
func (r *NumericalRev[T]) Decr(s *Solver) {
	SaveAndSetValue(&s.trail, &r.value, r.value-1)
}

// Add adds delta to the cell through the trail.
func (r *NumericalRev[T]) Add(s *Solver, delta T) {
	SaveAndSetValue(&s.trail, &r.value, r.value+delta)
}

// RevSwitch is a one-way reversible flag. It starts false, can be switched
// to true exactly once per search branch, and reverts to false when the
// branch is undone.
type RevSwitch struct {
	on bool
}

// Switched reports whether the switch has been turned on in the current
// branch.
func (r *RevSwitch) Switched() bool {
	return r.on
}

// Switch turns the flag on through the trail. Switching an already-on
// switch is a no-op.
func (r *RevSwitch) Switch(s *Solver) {
	if !r.on {
		SaveAndSetValue(&s.trail, &r.on, true)
	}
}

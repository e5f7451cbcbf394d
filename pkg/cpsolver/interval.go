// interval.go: scheduling variables.
//
// An IntervalVar models a task with a start window, a duration window and
// a three-state performed flag (must / may / cannot be performed). The
// end window is derived: end = start + duration. A SequenceVar orders a
// set of intervals by ranking them first or last, one at a time, the way
// a scheduling decision builder fixes a machine's order.
package cpsolver

import (
	"fmt"
	"strings"
)

// IntervalVar is a scheduling variable: start, duration and end windows
// plus a performed state, all reversible.
type IntervalVar struct {
	s    *Solver
	name string

	startMin, startMax int64
	durMin, durMax     int64
	// performed bounds: [0,1] = may be performed, [1,1] = must,
	// [0,0] = cannot.
	perfMin, perfMax int64

	demons SimpleRevFIFO[*Demon]
}

// MakeIntervalVar returns an interval with the given start window and
// fixed duration, optional if optional is true.
func (s *Solver) MakeIntervalVar(startMin, startMax, duration int64, optional bool, name string) *IntervalVar {
	if startMin > startMax || duration < 0 {
		panic(fmt.Sprintf("cpsolver: bad interval bounds for %q", name))
	}
	iv := &IntervalVar{
		s:        s,
		name:     name,
		startMin: startMin,
		startMax: startMax,
		durMin:   duration,
		durMax:   duration,
		perfMin:  0,
		perfMax:  1,
	}
	if !optional {
		iv.perfMin = 1
	}
	s.intervals = append(s.intervals, iv)
	return iv
}

func (iv *IntervalVar) Solver() *Solver { return iv.s }
func (iv *IntervalVar) Name() string    { return iv.name }

// StartMin returns the earliest admissible start.
func (iv *IntervalVar) StartMin() int64 { return iv.startMin }

// StartMax returns the latest admissible start.
func (iv *IntervalVar) StartMax() int64 { return iv.startMax }

// DurationMin returns the smallest admissible duration.
func (iv *IntervalVar) DurationMin() int64 { return iv.durMin }

// DurationMax returns the largest admissible duration.
func (iv *IntervalVar) DurationMax() int64 { return iv.durMax }

// EndMin returns the earliest admissible end (start + duration).
func (iv *IntervalVar) EndMin() int64 { return iv.startMin + iv.durMin }

// EndMax returns the latest admissible end.
func (iv *IntervalVar) EndMax() int64 { return iv.startMax + iv.durMax }

// MustBePerformed reports whether the interval is known performed.
func (iv *IntervalVar) MustBePerformed() bool { return iv.perfMin == 1 }

// MayBePerformed reports whether the interval can still be performed.
func (iv *IntervalVar) MayBePerformed() bool { return iv.perfMax == 1 }

// fire wakes every demon registered on the interval.
func (iv *IntervalVar) fire() {
	iv.s.notifyIntervalEvent(iv)
	iv.demons.ForEach(iv.s.EnqueueDemon)
}

// SetStartMin narrows the start window from below.
func (iv *IntervalVar) SetStartMin(v int64) {
	if v <= iv.startMin {
		return
	}
	if v > iv.startMax {
		iv.failOrUnperform()
		return
	}
	SaveAndSetValue(&iv.s.trail, &iv.startMin, v)
	iv.fire()
}

// SetStartMax narrows the start window from above.
func (iv *IntervalVar) SetStartMax(v int64) {
	if v >= iv.startMax {
		return
	}
	if v < iv.startMin {
		iv.failOrUnperform()
		return
	}
	SaveAndSetValue(&iv.s.trail, &iv.startMax, v)
	iv.fire()
}

// SetStartRange narrows both start bounds.
func (iv *IntervalVar) SetStartRange(lo, hi int64) {
	iv.SetStartMin(lo)
	iv.SetStartMax(hi)
}

// SetDurationMin narrows the duration window from below.
func (iv *IntervalVar) SetDurationMin(v int64) {
	if v <= iv.durMin {
		return
	}
	if v > iv.durMax {
		iv.failOrUnperform()
		return
	}
	SaveAndSetValue(&iv.s.trail, &iv.durMin, v)
	iv.fire()
}

// SetDurationMax narrows the duration window from above.
func (iv *IntervalVar) SetDurationMax(v int64) {
	if v >= iv.durMax {
		return
	}
	if v < iv.durMin {
		iv.failOrUnperform()
		return
	}
	SaveAndSetValue(&iv.s.trail, &iv.durMax, v)
	iv.fire()
}

// SetEndMin narrows the end window from below by pushing the start.
func (iv *IntervalVar) SetEndMin(v int64) {
	iv.SetStartMin(v - iv.durMax)
}

// SetEndMax narrows the end window from above by pulling the start.
func (iv *IntervalVar) SetEndMax(v int64) {
	iv.SetStartMax(v - iv.durMin)
}

// SetPerformed fixes the performed state. Forcing an impossible state
// fails.
func (iv *IntervalVar) SetPerformed(performed bool) {
	if performed {
		if iv.perfMax == 0 {
			iv.s.Fail()
		}
		if iv.perfMin == 0 {
			SaveAndSetValue(&iv.s.trail, &iv.perfMin, int64(1))
			iv.fire()
		}
	} else {
		if iv.perfMin == 1 {
			iv.s.Fail()
		}
		if iv.perfMax == 1 {
			SaveAndSetValue(&iv.s.trail, &iv.perfMax, int64(0))
			iv.fire()
		}
	}
}

// failOrUnperform handles an empty window: an optional interval becomes
// unperformed, a mandatory one fails the branch.
func (iv *IntervalVar) failOrUnperform() {
	if iv.perfMin == 1 {
		iv.s.Fail()
	}
	iv.SetPerformed(false)
}

// WhenAnything registers d to run on any change to the interval.
func (iv *IntervalVar) WhenAnything(d *Demon) {
	iv.demons.PushIfNotTop(iv.s, d)
}

func (iv *IntervalVar) String() string {
	perf := "may"
	switch {
	case iv.perfMin == 1:
		perf = "must"
	case iv.perfMax == 0:
		perf = "never"
	}
	return fmt.Sprintf("%s(start %d..%d, dur %d..%d, %s)",
		iv.name, iv.startMin, iv.startMax, iv.durMin, iv.durMax, perf)
}

// SequenceVar orders a set of intervals. Ranking proceeds from both ends:
// RankFirst appends to the head order, RankLast appends to the tail
// order, and intervals forced unperformed drop out. The ranked sets and
// orders are reversible.
type SequenceVar struct {
	s         *Solver
	name      string
	intervals []*IntervalVar

	rankedFirst SimpleRevFIFO[int] // head order, oldest = first in sequence
	rankedLast  SimpleRevFIFO[int] // tail order, oldest = last in sequence
	ranked      *RevBitSet
	demons      SimpleRevFIFO[*Demon]
}

// MakeSequenceVar returns a sequence over the given intervals.
func (s *Solver) MakeSequenceVar(intervals []*IntervalVar, name string) *SequenceVar {
	ivs := make([]*IntervalVar, len(intervals))
	copy(ivs, intervals)
	sv := &SequenceVar{
		s:         s,
		name:      name,
		intervals: ivs,
		ranked:    NewRevBitSet(len(ivs)),
	}
	s.sequences = append(s.sequences, sv)
	return sv
}

func (sv *SequenceVar) Solver() *Solver { return sv.s }
func (sv *SequenceVar) Name() string    { return sv.name }

// Size returns the number of intervals in the sequence.
func (sv *SequenceVar) Size() int { return len(sv.intervals) }

// Interval returns the i-th interval.
func (sv *SequenceVar) Interval(i int) *IntervalVar { return sv.intervals[i] }

// Ranked reports whether interval i has been ranked first or last.
func (sv *SequenceVar) Ranked(i int) bool { return sv.ranked.Bit(i) }

// RankFirst places interval i next in the head order. The interval must
// be performable and not yet ranked.
func (sv *SequenceVar) RankFirst(i int) {
	sv.checkRankable(i)
	sv.intervals[i].SetPerformed(true)
	sv.ranked.SetBit(sv.s, i)
	sv.rankedFirst.Push(sv.s, i)
	// Everything unranked starts no earlier than this interval ends.
	for j, iv := range sv.intervals {
		if j != i && !sv.ranked.Bit(j) && iv.MayBePerformed() {
			iv.SetStartMin(sv.intervals[i].EndMin())
		}
	}
	sv.s.notifySequenceEvent(sv)
	sv.demons.ForEach(sv.s.EnqueueDemon)
}

// RankLast places interval i next in the tail order.
func (sv *SequenceVar) RankLast(i int) {
	sv.checkRankable(i)
	sv.intervals[i].SetPerformed(true)
	sv.ranked.SetBit(sv.s, i)
	sv.rankedLast.Push(sv.s, i)
	for j, iv := range sv.intervals {
		if j != i && !sv.ranked.Bit(j) && iv.MayBePerformed() {
			iv.SetEndMax(sv.intervals[i].StartMax())
		}
	}
	sv.s.notifySequenceEvent(sv)
	sv.demons.ForEach(sv.s.EnqueueDemon)
}

// MarkUnperformed drops interval i from the sequence.
func (sv *SequenceVar) MarkUnperformed(i int) {
	sv.checkIndex(i)
	sv.intervals[i].SetPerformed(false)
	sv.s.notifySequenceEvent(sv)
	sv.demons.ForEach(sv.s.EnqueueDemon)
}

// ComputeStatistics returns how many intervals are ranked, unranked but
// performable, and unperformed.
func (sv *SequenceVar) ComputeStatistics() (ranked, notRanked, unperformed int) {
	for i, iv := range sv.intervals {
		switch {
		case sv.ranked.Bit(i):
			ranked++
		case !iv.MayBePerformed():
			unperformed++
		default:
			notRanked++
		}
	}
	return
}

// RankedFirstOrder returns the indices ranked first, in sequence order.
func (sv *SequenceVar) RankedFirstOrder() []int {
	var rev []int
	sv.rankedFirst.ForEach(func(i int) { rev = append(rev, i) })
	// The FIFO iterates newest-first; sequence order is oldest-first.
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}

// RankedLastOrder returns the indices ranked last, from the sequence's
// end inward.
func (sv *SequenceVar) RankedLastOrder() []int {
	var rev []int
	sv.rankedLast.ForEach(func(i int) { rev = append(rev, i) })
	for l, r := 0, len(rev)-1; l < r; l, r = l+1, r-1 {
		rev[l], rev[r] = rev[r], rev[l]
	}
	return rev
}

// WhenAnything registers d to run on any ranking change.
func (sv *SequenceVar) WhenAnything(d *Demon) {
	sv.demons.PushIfNotTop(sv.s, d)
}

func (sv *SequenceVar) checkIndex(i int) {
	if i < 0 || i >= len(sv.intervals) {
		panic(fmt.Sprintf("cpsolver: interval index %d out of range in %s", i, sv.name))
	}
}

func (sv *SequenceVar) checkRankable(i int) {
	sv.checkIndex(i)
	if sv.ranked.Bit(i) {
		panic(fmt.Sprintf("cpsolver: interval %d already ranked in %s", i, sv.name))
	}
}

func (sv *SequenceVar) String() string {
	parts := make([]string, len(sv.intervals))
	for i, iv := range sv.intervals {
		parts[i] = iv.Name()
	}
	return fmt.Sprintf("%s[%s]", sv.name, strings.Join(parts, ", "))
}

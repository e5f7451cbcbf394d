// Package cpsolver implements the core of a finite-domain constraint
// programming engine: reversible state with a trail, priority-scheduled
// propagation to fixpoint, depth-first search with decision builders, and
// a local-search driver with path-based neighborhood operators.
//
// # Architecture Overview
//
// The solver mutates domains in place and undoes mutations on backtrack:
//
//	Trail (mutation log):
//	  - Every reversible write pushes an undo record
//	  - Backtracking replays records in reverse to a mark
//	  - Containers (FIFO, multi-map, bitsets) build on the same log
//
//	Propagation (two-tier demon queue):
//	  - Variable mutators fire events
//	  - Events enqueue registered demons
//	  - The queue drains normal demons in order, then promotes
//	    delayed demons one at a time, until fixpoint
//
//	Search (depth-first with decisions):
//	  - A decision builder produces decisions
//	  - Apply branch, propagate, recurse; on failure undo and refute
//	  - Monitors observe every phase of the search
//
// # How Failure Works
//
// A propagation failure (empty domain, violated constraint) performs a
// non-local transfer to the nearest enclosing search frame, which unwinds
// the trail to the frame's mark. The transfer is an internal panic with a
// private sentinel; it never escapes the package. A failure while posting
// constraints marks the solver broken: further Solve calls return
// SearchFailed without searching.
//
// Thread safety: a Solver is single-threaded and cooperative. Demons and
// monitors run synchronously on the solver's context; no cross-thread
// access to variables, trail or arena is permitted.
package cpsolver

import (
	"fmt"

	"github.com/pkg/errors"
)

// searchFailure is the sentinel carried by the internal failure panic.
type searchFailure struct{}

// solverStateKind tracks the high-level lifecycle of the solver.
type solverStateKind int

const (
	solverOutsideSearch solverStateKind = iota
	solverInSearch
	solverAtSolution
	solverBroken
)

// Solver owns every variable, constraint and demon of one model and
// drives propagation and search over them. Create one with NewSolver,
// declare variables and constraints, then call Solve or the
// NewSearch/NextSolution/EndSearch triple.
type Solver struct {
	name  string
	trail Trail
	arena *Arena
	queue demonQueue

	// stamp is the current search depth generation used by stamped
	// bitsets. It increases on every mark and every undo, never reuses a
	// value, and therefore invalidates per-word save stamps after any
	// backtrack.
	stamp uint64

	constraints []Constraint
	castVars    map[IntExpr]IntVar
	vars        []IntVar
	intervals   []*IntervalVar
	sequences   []*SequenceVar

	propMonitor PropagationMonitor

	state  solverStateKind
	search *Search

	branches  int64
	failures  int64
	solutions int64
	demonRuns int64

	// propagateRound counts completed propagation drains; variables use
	// it to decide when to re-snapshot their old bounds.
	propagateRound uint64
}

// NewSolver returns an empty solver with the given model name.
func NewSolver(name string) *Solver {
	return &Solver{
		name:     name,
		arena:    NewArena(),
		castVars: make(map[IntExpr]IntVar),
		stamp:    1,
	}
}

// Name returns the model name given at construction.
func (s *Solver) Name() string {
	return s.name
}

// Fail raises a propagation failure: both demon queues are cleared and
// control transfers to the nearest enclosing search frame, which unwinds
// the trail. Calling Fail outside propagation or search aborts the
// surrounding operation (AddConstraint reports a broken model, Solve
// returns SearchFailed).
func (s *Solver) Fail() {
	s.failures++
	s.queue.clear()
	panic(searchFailure{})
}

// Failures returns the number of failures raised since construction.
func (s *Solver) Failures() int64 {
	return s.failures
}

// Branches returns the number of decision branches explored.
func (s *Solver) Branches() int64 {
	return s.branches
}

// Solutions returns the number of solutions found.
func (s *Solver) Solutions() int64 {
	return s.solutions
}

// DemonRuns returns the number of demon executions.
func (s *Solver) DemonRuns() int64 {
	return s.demonRuns
}

// Broken reports whether a failure occurred while building the model.
// A broken solver refuses to search.
func (s *Solver) Broken() bool {
	return s.state == solverBroken
}

// Mark opens a reversible scope: it records the trail depth and the arena
// region and bumps the depth stamp. The returned marker must be passed to
// UndoTo in LIFO order.
func (s *Solver) Mark() SolverMarker {
	s.stamp++
	return SolverMarker{trail: s.trail.Mark(), arena: s.arena.Mark()}
}

// UndoTo unwinds the trail and releases the arena back to the scope m.
// Every tracked cell returns to the exact value it held when m was taken.
func (s *Solver) UndoTo(m SolverMarker) {
	s.trail.UndoTo(m.trail)
	s.arena.Release(m.arena)
	s.stamp++
}

// SolverMarker identifies a reversible scope: paired trail and arena
// boundaries taken at the same instant.
type SolverMarker struct {
	trail Marker
	arena int
}

// AddConstraint posts c and runs its initial propagation to fixpoint.
// On failure the solver enters a permanent broken state and the error
// describes the offending constraint; subsequent Solve calls return
// SearchFailed without searching.
func (s *Solver) AddConstraint(c Constraint) (err error) {
	if s.state == solverBroken {
		return errors.Errorf("solver %q is broken, cannot add %v", s.name, c)
	}
	if s.state == solverInSearch {
		return errors.Errorf("cannot add constraint %v during search", c)
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(searchFailure); !ok {
				panic(r)
			}
			s.state = solverBroken
			err = errors.Errorf("initial propagation of %v failed, model is infeasible", c)
		}
	}()
	s.constraints = append(s.constraints, c)
	if s.propMonitor != nil {
		s.propMonitor.OnEvent(PropagationEvent{Kind: EventBeginConstraintInitialPropagation, Constraint: c})
	}
	c.Post()
	c.InitialPropagate()
	s.propagate()
	if s.propMonitor != nil {
		s.propMonitor.OnEvent(PropagationEvent{Kind: EventEndConstraintInitialPropagation, Constraint: c})
	}
	return nil
}

// Constraints returns the number of constraints posted so far.
func (s *Solver) Constraints() int {
	return len(s.constraints)
}

// SetPropagationMonitor installs m as the observer of every domain
// mutation and demon run. Passing nil removes the current monitor. The
// monitor is strictly observational and must not mutate solver state.
func (s *Solver) SetPropagationMonitor(m PropagationMonitor) {
	s.propMonitor = m
}

// CheckAssignment reports whether the given assignment is feasible under
// the posted constraints. The check runs inside a reversible scope:
// domains are restricted to the assignment, propagation is run to
// fixpoint, and all effects are undone before returning.
func (s *Solver) CheckAssignment(a *Assignment) (feasible bool) {
	if s.state == solverBroken {
		return false
	}
	m := s.Mark()
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(searchFailure); !ok {
				panic(r)
			}
			feasible = false
		}
		s.UndoTo(m)
	}()
	a.restrict(s)
	s.propagate()
	return true
}

// registerVar gives v a dense index and records it for assignment lookups.
func (s *Solver) registerVar(v IntVar) int {
	s.vars = append(s.vars, v)
	return len(s.vars) - 1
}

func (s *Solver) String() string {
	return fmt.Sprintf("Solver(%s, %d vars, %d constraints)", s.name, len(s.vars), len(s.constraints))
}

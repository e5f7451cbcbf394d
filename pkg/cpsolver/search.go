// search.go: depth-first search over decisions.
//
// A decision builder produces the next decision for the current state.
// The engine marks the trail, applies the decision's left branch and
// propagates; on failure it unwinds to the mark and applies the right
// branch (the refutation). Search monitors observe every phase: entering
// and leaving the search, decision application and refutation, failures,
// solutions and initial propagation.
//
// The engine keeps an explicit frame stack instead of recursing so that
// NextSolution can hand control back to the caller at every solution and
// resume exactly where it stopped.
package cpsolver

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// SearchStatus is the tri-state outcome of a Solve call (plus the
// aborted variants produced by limits).
type SearchStatus int

const (
	// SearchSuccess: at least one solution was found.
	SearchSuccess SearchStatus = iota
	// SearchFailed: the tree was exhausted without a solution, or the
	// model was already broken.
	SearchFailed
	// SearchTimeout: the time limit cut the search.
	SearchTimeout
	// SearchAborted: a solution or failure limit cut the search.
	SearchAborted
)

func (st SearchStatus) String() string {
	switch st {
	case SearchSuccess:
		return "success"
	case SearchFailed:
		return "failed"
	case SearchTimeout:
		return "timeout"
	case SearchAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Decision is one split of the search tree: Apply commits the left
// branch, Refute commits the right branch. Accept lets decision visitors
// (the symmetry machinery) inspect the decision's shape.
type Decision interface {
	Apply(s *Solver)
	Refute(s *Solver)
	Accept(v DecisionVisitor)
	String() string
}

// DecisionVisitor inspects applied decisions. Visitors receive exactly
// one Visit call per decision.
type DecisionVisitor interface {
	// VisitSetVariableValue: the decision binds var to value on the left
	// branch and removes value on the right branch.
	VisitSetVariableValue(v IntVar, value int64)
	// VisitSplitVariableDomain: the decision posts var <= value (lower
	// true) or var > value (lower false) on the left branch.
	VisitSplitVariableDomain(v IntVar, value int64, lower bool)
	// VisitRankFirst: the decision ranks interval index first on sv.
	VisitRankFirst(sv *SequenceVar, index int)
	// VisitUnknownDecision: the decision has no standard shape.
	VisitUnknownDecision()
}

// DecisionBuilder produces the decisions driving a search. Next returns
// nil when every variable the builder cares about is fixed, which the
// engine treats as a solution.
type DecisionBuilder interface {
	Next(s *Solver) Decision
	String() string
}

// assignDecision binds a variable on apply and removes the value on
// refute.
type assignDecision struct {
	v     IntVar
	value int64
}

// NewAssignDecision returns the decision "v == value, else v != value".
func NewAssignDecision(v IntVar, value int64) Decision {
	return &assignDecision{v: v, value: value}
}

func (d *assignDecision) Apply(s *Solver)  { d.v.SetValue(d.value) }
func (d *assignDecision) Refute(s *Solver) { d.v.RemoveValue(d.value) }
func (d *assignDecision) Accept(v DecisionVisitor) {
	v.VisitSetVariableValue(d.v, d.value)
}
func (d *assignDecision) String() string {
	return fmt.Sprintf("[%s == %d]", d.v, d.value)
}

// splitDecision halves a domain at value: lower keeps [min, value] on
// apply and [value+1, max] on refute.
type splitDecision struct {
	v     IntVar
	value int64
	lower bool
}

// NewSplitDecision returns a domain-splitting decision around value.
func NewSplitDecision(v IntVar, value int64, lower bool) Decision {
	return &splitDecision{v: v, value: value, lower: lower}
}

func (d *splitDecision) Apply(s *Solver) {
	if d.lower {
		d.v.SetMax(d.value)
	} else {
		d.v.SetMin(d.value + 1)
	}
}

func (d *splitDecision) Refute(s *Solver) {
	if d.lower {
		d.v.SetMin(d.value + 1)
	} else {
		d.v.SetMax(d.value)
	}
}

func (d *splitDecision) Accept(v DecisionVisitor) {
	v.VisitSplitVariableDomain(d.v, d.value, d.lower)
}

func (d *splitDecision) String() string {
	if d.lower {
		return fmt.Sprintf("[%s <= %d]", d.v, d.value)
	}
	return fmt.Sprintf("[%s > %d]", d.v, d.value)
}

// VariableStrategy selects the next variable to branch on.
type VariableStrategy int

const (
	// ChooseFirstUnbound picks the first unbound variable in order.
	ChooseFirstUnbound VariableStrategy = iota
	// ChooseMinSize picks the unbound variable with the smallest domain.
	ChooseMinSize
	// ChooseLowestMin picks the unbound variable with the lowest minimum.
	ChooseLowestMin
)

// ValueStrategy selects the value to try first.
type ValueStrategy int

const (
	// AssignMinValue tries the domain minimum first.
	AssignMinValue ValueStrategy = iota
	// AssignMaxValue tries the domain maximum first.
	AssignMaxValue
	// SplitLowerHalf splits the domain and explores the lower half first.
	SplitLowerHalf
)

// assignVariablesPhase is the standard labeling decision builder.
type assignVariablesPhase struct {
	vars        []IntVar
	varStrategy VariableStrategy
	valStrategy ValueStrategy
}

// NewAssignVariablesPhase returns a decision builder labeling vars with
// the given strategies.
func NewAssignVariablesPhase(vars []IntVar, varStrategy VariableStrategy, valStrategy ValueStrategy) DecisionBuilder {
	vs := make([]IntVar, len(vars))
	copy(vs, vars)
	return &assignVariablesPhase{vars: vs, varStrategy: varStrategy, valStrategy: valStrategy}
}

func (p *assignVariablesPhase) Next(s *Solver) Decision {
	var pick IntVar
	for _, v := range p.vars {
		if v.Bound() {
			continue
		}
		switch p.varStrategy {
		case ChooseFirstUnbound:
			pick = v
		case ChooseMinSize:
			if pick == nil || v.Size() < pick.Size() {
				pick = v
			}
		case ChooseLowestMin:
			if pick == nil || v.Min() < pick.Min() {
				pick = v
			}
		}
		if pick != nil && p.varStrategy == ChooseFirstUnbound {
			break
		}
	}
	if pick == nil {
		return nil
	}
	switch p.valStrategy {
	case AssignMaxValue:
		return NewAssignDecision(pick, pick.Max())
	case SplitLowerHalf:
		mid := pick.Min() + (pick.Max()-pick.Min())/2
		return NewSplitDecision(pick, mid, true)
	default:
		return NewAssignDecision(pick, pick.Min())
	}
}

func (p *assignVariablesPhase) String() string {
	return fmt.Sprintf("AssignVariables(%d vars)", len(p.vars))
}

// SearchMonitor observes search events. Embed BaseSearchMonitor to get
// no-op defaults and override only the hooks of interest.
type SearchMonitor interface {
	// EnterSearch runs once when the search starts.
	EnterSearch(s *Solver)
	// ExitSearch runs once when the search ends.
	ExitSearch(s *Solver)
	// BeginNextDecision runs before the builder is asked for a decision.
	BeginNextDecision(s *Solver, db DecisionBuilder)
	// ApplyDecision runs before a decision's left branch.
	ApplyDecision(s *Solver, d Decision)
	// RefuteDecision runs before a decision's right branch.
	RefuteDecision(s *Solver, d Decision)
	// BeginFail runs when a failure starts unwinding.
	BeginFail(s *Solver)
	// AtSolution runs at every solution; returning false stops the
	// search.
	AtSolution(s *Solver) bool
	// BeginInitialPropagation / EndInitialPropagation bracket the root
	// propagation.
	BeginInitialPropagation(s *Solver)
	EndInitialPropagation(s *Solver)
	// PeriodicCheck runs at every search node.
	PeriodicCheck(s *Solver)
}

// BaseSearchMonitor provides no-op implementations of every hook.
type BaseSearchMonitor struct{}

func (BaseSearchMonitor) EnterSearch(*Solver)                         {}
func (BaseSearchMonitor) ExitSearch(*Solver)                          {}
func (BaseSearchMonitor) BeginNextDecision(*Solver, DecisionBuilder)  {}
func (BaseSearchMonitor) ApplyDecision(*Solver, Decision)             {}
func (BaseSearchMonitor) RefuteDecision(*Solver, Decision)            {}
func (BaseSearchMonitor) BeginFail(*Solver)                           {}
func (BaseSearchMonitor) AtSolution(*Solver) bool                     { return true }
func (BaseSearchMonitor) BeginInitialPropagation(*Solver)             {}
func (BaseSearchMonitor) EndInitialPropagation(*Solver)               {}
func (BaseSearchMonitor) PeriodicCheck(*Solver)                       {}

// searchFrame is one node of the explicit DFS stack.
type searchFrame struct {
	mark     SolverMarker
	decision Decision
	refuted  bool
}

// Search is an in-progress search. Obtain one with Solver.NewSearch,
// pull solutions with NextSolution and finish with EndSearch.
type Search struct {
	solver   *Solver
	db       DecisionBuilder
	monitors []SearchMonitor

	rootMark SolverMarker
	frames   []searchFrame

	started        bool
	done           bool
	afterSolution  bool
	status         SearchStatus
	statusSet      bool
	startSolutions int64
}

// NewSearch prepares a search driven by db and observed by monitors.
// The solver stays positioned on each solution until NextSolution is
// called again or EndSearch unwinds everything.
func (s *Solver) NewSearch(db DecisionBuilder, monitors ...SearchMonitor) *Search {
	se := &Search{solver: s, db: db, monitors: monitors}
	s.search = se
	return se
}

// Depth returns the number of open decisions.
func (se *Search) Depth() int {
	return len(se.frames)
}

// setStatus records a terminal status; the first writer wins.
func (se *Search) setStatus(st SearchStatus) {
	if !se.statusSet {
		se.status = st
		se.statusSet = true
	}
}

// Status returns the recorded terminal status.
func (se *Search) Status() SearchStatus {
	if se.statusSet {
		return se.status
	}
	if se.solver.solutions > se.startSolutions {
		return SearchSuccess
	}
	return SearchFailed
}

// guard runs f and converts an internal failure panic into a false
// return, invoking BeginFail hooks.
func (se *Search) guard(f func()) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			if _, isFail := r.(searchFailure); !isFail {
				panic(r)
			}
			for _, m := range se.monitors {
				m.BeginFail(se.solver)
			}
			ok = false
		}
	}()
	f()
	return true
}

// NextSolution advances the search to the next solution. It returns true
// with the solver positioned on the solution (all decision effects still
// applied), or false when the tree is exhausted or a monitor stopped the
// search.
func (se *Search) NextSolution() bool {
	s := se.solver
	if se.done || s.state == solverBroken {
		return false
	}
	if !se.started {
		se.started = true
		se.startSolutions = s.solutions
		s.state = solverInSearch
		se.rootMark = s.Mark()
		for _, m := range se.monitors {
			m.EnterSearch(s)
		}
		for _, m := range se.monitors {
			m.BeginInitialPropagation(s)
		}
		if !se.guard(func() { s.propagate() }) {
			se.finish()
			return false
		}
		for _, m := range se.monitors {
			m.EndInitialPropagation(s)
		}
	}
	if se.afterSolution {
		// The previous solution's subtree is done; treat it as failed to
		// move to the next branch.
		se.afterSolution = false
		if !se.backtrack() {
			se.finish()
			return false
		}
	}
	for {
		var d Decision
		ok := se.guard(func() {
			for _, m := range se.monitors {
				m.PeriodicCheck(s)
			}
			for _, m := range se.monitors {
				m.BeginNextDecision(s, se.db)
			}
			d = se.db.Next(s)
		})
		if !ok {
			if !se.backtrack() {
				se.finish()
				return false
			}
			continue
		}
		if d == nil {
			s.solutions++
			wantMore := true
			for _, m := range se.monitors {
				if !m.AtSolution(s) {
					wantMore = false
				}
			}
			if !wantMore {
				se.setStatus(SearchAborted)
				se.afterSolution = false
				se.done = true
				s.state = solverAtSolution
				return true
			}
			se.afterSolution = true
			s.state = solverAtSolution
			return true
		}
		s.state = solverInSearch

		se.frames = append(se.frames, searchFrame{mark: s.Mark(), decision: d})
		s.branches++
		if !se.guard(func() {
			for _, m := range se.monitors {
				m.ApplyDecision(s, d)
			}
			d.Apply(s)
			s.propagate()
		}) {
			if !se.backtrack() {
				se.finish()
				return false
			}
		}
	}
}

// backtrack unwinds to the deepest frame with an untried right branch,
// applies the refutation and returns true, or returns false when the
// tree is exhausted.
func (se *Search) backtrack() bool {
	s := se.solver
	for len(se.frames) > 0 {
		f := &se.frames[len(se.frames)-1]
		if f.refuted {
			s.UndoTo(f.mark)
			se.frames = se.frames[:len(se.frames)-1]
			continue
		}
		s.UndoTo(f.mark)
		f.refuted = true
		f.mark = s.Mark()
		s.branches++
		if se.guard(func() {
			for _, m := range se.monitors {
				m.RefuteDecision(s, f.decision)
			}
			f.decision.Refute(s)
			s.propagate()
		}) {
			return true
		}
		// The refutation failed too; keep unwinding.
	}
	return false
}

// finish closes the search and restores the root state.
func (se *Search) finish() {
	s := se.solver
	se.done = true
	for len(se.frames) > 0 {
		f := se.frames[len(se.frames)-1]
		s.UndoTo(f.mark)
		se.frames = se.frames[:len(se.frames)-1]
	}
	s.UndoTo(se.rootMark)
	for _, m := range se.monitors {
		m.ExitSearch(s)
	}
	s.state = solverOutsideSearch
	s.search = nil
}

// EndSearch terminates the search, unwinding every open decision.
func (se *Search) EndSearch() {
	if !se.started || se.solver.search != se {
		return
	}
	se.finish()
}

// Solve runs a complete search: it pulls solutions until the tree is
// exhausted, a monitor stops the search, or a limit fires, then restores
// the root state and returns the terminal status.
func (s *Solver) Solve(db DecisionBuilder, monitors ...SearchMonitor) SearchStatus {
	if s.state == solverBroken {
		return SearchFailed
	}
	search := s.NewSearch(db, monitors...)
	for search.NextSolution() {
		if search.done {
			break
		}
	}
	search.EndSearch()
	return search.Status()
}

// searchLimit cuts the search when a budget is exhausted. Budgets
// compose: any exceeded budget fires.
type searchLimit struct {
	BaseSearchMonitor
	timeLimit     time.Duration
	failureLimit  int64
	solutionLimit int64

	start         time.Time
	startFailures int64
	solutions     int64
}

// SearchOption configures a search limit monitor.
type SearchOption func(*searchLimit)

// WithTimeLimit stops the search after d of wall clock.
func WithTimeLimit(d time.Duration) SearchOption {
	return func(l *searchLimit) { l.timeLimit = d }
}

// WithFailureLimit stops the search after n failures.
func WithFailureLimit(n int64) SearchOption {
	return func(l *searchLimit) { l.failureLimit = n }
}

// WithSolutionLimit stops the search after n solutions.
func WithSolutionLimit(n int64) SearchOption {
	return func(l *searchLimit) { l.solutionLimit = n }
}

// NewSearchLimit returns a monitor enforcing the given budgets. When a
// budget is exceeded the current subtree fails and the search stops with
// SearchTimeout (time) or SearchAborted (failures, solutions).
func NewSearchLimit(opts ...SearchOption) SearchMonitor {
	l := &searchLimit{}
	for _, o := range opts {
		o(l)
	}
	return l
}

func (l *searchLimit) EnterSearch(s *Solver) {
	l.start = time.Now()
	l.startFailures = s.failures
	l.solutions = 0
}

func (l *searchLimit) PeriodicCheck(s *Solver) {
	if l.timeLimit > 0 && time.Since(l.start) >= l.timeLimit {
		if s.search != nil {
			s.search.setStatus(SearchTimeout)
			s.search.done = true
		}
		s.Fail()
	}
	if l.failureLimit > 0 && s.failures-l.startFailures >= l.failureLimit {
		if s.search != nil {
			s.search.setStatus(SearchAborted)
			s.search.done = true
		}
		s.Fail()
	}
}

func (l *searchLimit) AtSolution(s *Solver) bool {
	l.solutions++
	if l.solutionLimit > 0 && l.solutions >= l.solutionLimit {
		return false
	}
	return true
}

// OptimizeVar turns the search into branch-and-bound on an objective
// variable: each time a solution is found the incumbent bound is
// tightened, and the bound is re-imposed at every node.
type OptimizeVar struct {
	BaseSearchMonitor
	v        IntVar
	minimize bool
	step     int64

	best    int64
	hasBest bool
}

// NewMinimize returns a monitor minimizing v with the given step.
func (s *Solver) NewMinimize(v IntVar, step int64) *OptimizeVar {
	if step <= 0 {
		panic("cpsolver: nonpositive optimization step")
	}
	return &OptimizeVar{v: v, minimize: true, step: step}
}

// NewMaximize returns a monitor maximizing v with the given step.
func (s *Solver) NewMaximize(v IntVar, step int64) *OptimizeVar {
	if step <= 0 {
		panic("cpsolver: nonpositive optimization step")
	}
	return &OptimizeVar{v: v, minimize: false, step: step}
}

// Best returns the best objective value seen, and whether one exists.
func (o *OptimizeVar) Best() (int64, bool) {
	return o.best, o.hasBest
}

func (o *OptimizeVar) EnterSearch(s *Solver) {
	o.hasBest = false
}

func (o *OptimizeVar) BeginNextDecision(s *Solver, db DecisionBuilder) {
	o.applyBound(s)
}

func (o *OptimizeVar) applyBound(s *Solver) {
	if !o.hasBest {
		return
	}
	if o.minimize {
		o.v.SetMax(o.best - o.step)
	} else {
		o.v.SetMin(o.best + o.step)
	}
}

func (o *OptimizeVar) AtSolution(s *Solver) bool {
	o.best = o.v.Value()
	o.hasBest = true
	return true
}

// SolutionCollector records solutions as assignments. The prototype
// names the variables to capture.
type SolutionCollector struct {
	BaseSearchMonitor
	prototype *Assignment
	keepAll   bool
	solutions []*Assignment
}

// NewLastSolutionCollector returns a collector keeping only the final
// solution of the search.
func (s *Solver) NewLastSolutionCollector(prototype *Assignment) *SolutionCollector {
	return &SolutionCollector{prototype: prototype}
}

// NewAllSolutionsCollector returns a collector keeping every solution.
func (s *Solver) NewAllSolutionsCollector(prototype *Assignment) *SolutionCollector {
	return &SolutionCollector{prototype: prototype, keepAll: true}
}

func (c *SolutionCollector) EnterSearch(s *Solver) {
	c.solutions = nil
}

func (c *SolutionCollector) AtSolution(s *Solver) bool {
	snap := c.prototype.Copy()
	snap.Store()
	if c.keepAll {
		c.solutions = append(c.solutions, snap)
	} else {
		c.solutions = []*Assignment{snap}
	}
	return true
}

// SolutionCount returns the number of stored solutions.
func (c *SolutionCollector) SolutionCount() int {
	return len(c.solutions)
}

// Solution returns the i-th stored solution.
func (c *SolutionCollector) Solution(i int) *Assignment {
	return c.solutions[i]
}

// SearchLog periodically reports search statistics through logrus:
// branches, failures, depth, solution count and, when an objective is
// attached, the incumbent objective bounds.
type SearchLog struct {
	BaseSearchMonitor
	log       *logrus.Logger
	period    int64
	objective *OptimizeVar

	start      time.Time
	nextReport int64
}

// NewSearchLog returns a log monitor emitting every period branches.
// A nil logger uses the logrus standard logger; objective may be nil.
func NewSearchLog(log *logrus.Logger, period int64, objective *OptimizeVar) *SearchLog {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if period <= 0 {
		period = 1000
	}
	return &SearchLog{log: log, period: period, objective: objective}
}

func (sl *SearchLog) EnterSearch(s *Solver) {
	sl.start = time.Now()
	sl.nextReport = s.branches + sl.period
	sl.log.WithFields(logrus.Fields{
		"model":       s.Name(),
		"constraints": s.Constraints(),
	}).Info("search started")
}

func (sl *SearchLog) BeginNextDecision(s *Solver, db DecisionBuilder) {
	if s.branches >= sl.nextReport {
		sl.nextReport = s.branches + sl.period
		fields := logrus.Fields{
			"branches":  s.branches,
			"failures":  s.failures,
			"solutions": s.solutions,
			"elapsed":   time.Since(sl.start).Round(time.Millisecond).String(),
		}
		if s.search != nil {
			fields["depth"] = s.search.Depth()
		}
		if sl.objective != nil {
			if best, ok := sl.objective.Best(); ok {
				fields["objective"] = best
			}
		}
		sl.log.WithFields(fields).Info("search progress")
	}
}

func (sl *SearchLog) AtSolution(s *Solver) bool {
	fields := logrus.Fields{
		"solutions": s.solutions,
		"branches":  s.branches,
		"failures":  s.failures,
		"elapsed":   time.Since(sl.start).Round(time.Millisecond).String(),
	}
	if sl.objective != nil {
		if best, ok := sl.objective.Best(); ok {
			fields["objective"] = best
		}
	}
	sl.log.WithFields(fields).Info("solution found")
	return true
}

func (sl *SearchLog) ExitSearch(s *Solver) {
	sl.log.WithFields(logrus.Fields{
		"branches":  s.branches,
		"failures":  s.failures,
		"solutions": s.solutions,
		"elapsed":   time.Since(sl.start).Round(time.Millisecond).String(),
	}).Info("search finished")
}

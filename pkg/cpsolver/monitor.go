// monitor.go: observation of propagation.
//
// A PropagationMonitor receives one event per state change: every domain
// mutation, every demon run and every constraint initial propagation.
// The monitor is strictly observational; it has no propagation
// responsibility and must not mutate solver state.
//
// Rather than one hook method per mutation kind, the interface has a
// single OnEvent method over an event record tagged by kind and carrying
// the affected entity and its new bounds.
package cpsolver

import "github.com/sirupsen/logrus"

// PropagationEventKind tags a propagation event.
type PropagationEventKind int

const (
	// EventSetMin: a variable's lower bound moved up.
	EventSetMin PropagationEventKind = iota
	// EventSetMax: a variable's upper bound moved down.
	EventSetMax
	// EventRemoveValue: an interior value was removed from a domain.
	EventRemoveValue
	// EventIntervalChanged: an interval variable's window or performed
	// state narrowed.
	EventIntervalChanged
	// EventSequenceChanged: a sequence variable ranked or rejected an
	// interval.
	EventSequenceChanged
	// EventBeginDemonRun / EventEndDemonRun bracket one demon execution.
	EventBeginDemonRun
	EventEndDemonRun
	// EventBeginConstraintInitialPropagation /
	// EventEndConstraintInitialPropagation bracket one constraint's
	// post-and-propagate step.
	EventBeginConstraintInitialPropagation
	EventEndConstraintInitialPropagation
)

func (k PropagationEventKind) String() string {
	switch k {
	case EventSetMin:
		return "set_min"
	case EventSetMax:
		return "set_max"
	case EventRemoveValue:
		return "remove_value"
	case EventIntervalChanged:
		return "interval_changed"
	case EventSequenceChanged:
		return "sequence_changed"
	case EventBeginDemonRun:
		return "begin_demon_run"
	case EventEndDemonRun:
		return "end_demon_run"
	case EventBeginConstraintInitialPropagation:
		return "begin_initial_propagation"
	case EventEndConstraintInitialPropagation:
		return "end_initial_propagation"
	default:
		return "unknown"
	}
}

// PropagationEvent is one observed state change. Only the fields relevant
// to the kind are populated.
type PropagationEvent struct {
	Kind       PropagationEventKind
	Var        IntVar
	Interval   *IntervalVar
	Sequence   *SequenceVar
	Demon      *Demon
	Constraint Constraint
	Min, Max   int64
}

// PropagationMonitor observes every propagation-level state change of a
// solver. Install one with Solver.SetPropagationMonitor.
type PropagationMonitor interface {
	OnEvent(e PropagationEvent)
}

// notifyVarEvent reports a variable mutation to the installed monitor.
func (s *Solver) notifyVarEvent(kind PropagationEventKind, v IntVar) {
	if s.propMonitor == nil {
		return
	}
	s.propMonitor.OnEvent(PropagationEvent{Kind: kind, Var: v, Min: v.Min(), Max: v.Max()})
}

// notifyIntervalEvent reports an interval mutation to the installed
// monitor.
func (s *Solver) notifyIntervalEvent(iv *IntervalVar) {
	if s.propMonitor == nil {
		return
	}
	s.propMonitor.OnEvent(PropagationEvent{Kind: EventIntervalChanged, Interval: iv})
}

// notifySequenceEvent reports a sequence mutation to the installed
// monitor.
func (s *Solver) notifySequenceEvent(sv *SequenceVar) {
	if s.propMonitor == nil {
		return
	}
	s.propMonitor.OnEvent(PropagationEvent{Kind: EventSequenceChanged, Sequence: sv})
}

// TraceMonitor is a PropagationMonitor that logs every event through
// logrus at debug level. Useful when a propagation loop misbehaves and
// the sequence of domain changes is the thing to look at.
type TraceMonitor struct {
	log *logrus.Logger
}

// NewTraceMonitor returns a trace monitor writing to log. A nil log uses
// the logrus standard logger.
func NewTraceMonitor(log *logrus.Logger) *TraceMonitor {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &TraceMonitor{log: log}
}

// OnEvent implements PropagationMonitor.
func (t *TraceMonitor) OnEvent(e PropagationEvent) {
	fields := logrus.Fields{"event": e.Kind.String()}
	switch {
	case e.Var != nil:
		fields["var"] = e.Var.String()
		fields["min"] = e.Min
		fields["max"] = e.Max
	case e.Interval != nil:
		fields["interval"] = e.Interval.String()
	case e.Sequence != nil:
		fields["sequence"] = e.Sequence.String()
	case e.Demon != nil:
		fields["demon"] = e.Demon.String()
	case e.Constraint != nil:
		fields["constraint"] = e.Constraint.String()
	}
	t.log.WithFields(fields).Debug("propagation")
}

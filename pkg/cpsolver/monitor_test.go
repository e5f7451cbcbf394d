package cpsolver

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
)

// recordingMonitor keeps every event kind it sees.
type recordingMonitor struct {
	kinds []PropagationEventKind
}

func (r *recordingMonitor) OnEvent(e PropagationEvent) {
	r.kinds = append(r.kinds, e.Kind)
}

func (r *recordingMonitor) count(k PropagationEventKind) int {
	n := 0
	for _, kind := range r.kinds {
		if kind == k {
			n++
		}
	}
	return n
}

func TestPropagationMonitorSeesEverything(t *testing.T) {
	s := NewSolver("monitor")
	rec := &recordingMonitor{}
	s.SetPropagationMonitor(rec)

	x := s.MakeIntVar(0, 10, "x")
	y := s.MakeIntVar(0, 10, "y")
	if err := s.AddConstraint(s.NewLessOrEqual(x, y)); err != nil {
		t.Fatalf("AddConstraint: %v", err)
	}
	if rec.count(EventBeginConstraintInitialPropagation) != 1 ||
		rec.count(EventEndConstraintInitialPropagation) != 1 {
		t.Error("initial propagation not bracketed")
	}

	before := len(rec.kinds)
	x.SetMin(4)
	s.propagate()
	if rec.count(EventSetMin) == 0 {
		t.Error("SetMin not observed")
	}
	if rec.count(EventBeginDemonRun) == 0 || rec.count(EventEndDemonRun) == 0 {
		t.Error("demon runs not observed")
	}
	if len(rec.kinds) == before {
		t.Error("no events recorded for the mutation")
	}

	x.RemoveValue(6)
	if rec.count(EventRemoveValue) != 1 {
		t.Error("RemoveValue not observed")
	}
}

func TestTraceMonitorLogs(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	s := NewSolver("monitor")
	s.SetPropagationMonitor(NewTraceMonitor(logger))
	v := s.MakeIntVar(0, 5, "v")
	v.SetMin(2)

	if len(hook.Entries) == 0 {
		t.Fatal("trace monitor logged nothing")
	}
	entry := hook.LastEntry()
	if entry.Data["event"] != "set_min" {
		t.Errorf("event field = %v, want set_min", entry.Data["event"])
	}
}

func TestMetricsMonitor(t *testing.T) {
	reg := prometheus.NewRegistry()
	mon, err := NewMetricsMonitor(reg, "metrics-test")
	if err != nil {
		t.Fatalf("NewMetricsMonitor: %v", err)
	}

	s := NewSolver("metrics-test")
	x := s.MakeIntVar(0, 3, "x")
	db := NewAssignVariablesPhase([]IntVar{x}, ChooseFirstUnbound, AssignMinValue)
	if st := s.Solve(db, mon); st != SearchSuccess {
		t.Fatalf("Solve = %v", st)
	}

	if got := testutil.ToFloat64(mon.solutions); got != 4 {
		t.Errorf("solutions counter = %v, want 4", got)
	}
	if got := testutil.ToFloat64(mon.branches); got == 0 {
		t.Error("branches counter never incremented")
	}
	if got := testutil.ToFloat64(mon.depth); got != 0 {
		t.Errorf("depth gauge = %v after search, want 0", got)
	}
}

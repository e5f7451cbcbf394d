// assignment.go: assignments are snapshots mapping variables to values.
//
// An assignment holds typed elements for integer, interval and sequence
// variables. Store captures the variables' current state, Restore writes
// it back, and per-element activation marks which entries are meaningful:
// local search uses deactivation to express "this variable is relaxed"
// in a delta.
//
// Assignments persist as a length-prefixed binary record stream headed
// by a 32-bit magic and a 16-bit version. Loading checks both. Integer
// records are matched to elements by variable index; interval and
// sequence records carry their position in the assignment instead.
package cpsolver

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
)

// assignmentMagic is "CPSA" and heads every serialized assignment.
const assignmentMagic uint32 = 0x43505341

// assignmentVersion is bumped on incompatible format changes.
const assignmentVersion uint16 = 1

// element kinds on the wire.
const (
	kindInt      uint8 = 0
	kindInterval uint8 = 1
	kindSequence uint8 = 2
)

// IntVarElement is the assignment entry for one integer variable. Bound
// entries have Min == Max.
type IntVarElement struct {
	Var       IntVar
	Min, Max  int64
	Activated bool
}

// Value returns the bound value of the element.
func (e *IntVarElement) Value() int64 {
	return e.Min
}

// Bound reports whether the element pins a single value.
func (e *IntVarElement) Bound() bool {
	return e.Min == e.Max
}

// IntervalVarElement is the assignment entry for one interval variable:
// the scheduling triple (start, duration, performed) as bound windows.
type IntervalVarElement struct {
	Var                *IntervalVar
	StartMin, StartMax int64
	DurMin, DurMax     int64
	PerfMin, PerfMax   int64
	Activated          bool
}

// SequenceVarElement is the assignment entry for one sequence variable:
// the forward and backward ranked orders plus the unperformed set.
type SequenceVarElement struct {
	Var         *SequenceVar
	Forward     []int
	Backward    []int
	Unperformed []int
	Activated   bool
}

// Assignment is a snapshot over a subset of the solver's variables.
type Assignment struct {
	solver    *Solver
	ints      []*IntVarElement
	intervals []*IntervalVarElement
	sequences []*SequenceVarElement

	intIndex map[IntVar]int
}

// MakeAssignment returns an empty assignment bound to s.
func (s *Solver) MakeAssignment() *Assignment {
	return &Assignment{solver: s, intIndex: make(map[IntVar]int)}
}

// Add registers v in the assignment with an activated, unbound element.
// Adding a variable twice returns the existing element.
func (a *Assignment) Add(v IntVar) *IntVarElement {
	if i, ok := a.intIndex[v]; ok {
		return a.ints[i]
	}
	e := &IntVarElement{Var: v, Min: v.Min(), Max: v.Max(), Activated: true}
	a.intIndex[v] = len(a.ints)
	a.ints = append(a.ints, e)
	return e
}

// AddVars registers each variable in vs.
func (a *Assignment) AddVars(vs []IntVar) {
	for _, v := range vs {
		a.Add(v)
	}
}

// AddInterval registers iv in the assignment.
func (a *Assignment) AddInterval(iv *IntervalVar) *IntervalVarElement {
	for _, e := range a.intervals {
		if e.Var == iv {
			return e
		}
	}
	e := &IntervalVarElement{Var: iv, Activated: true}
	e.capture()
	a.intervals = append(a.intervals, e)
	return e
}

// AddSequence registers sv in the assignment.
func (a *Assignment) AddSequence(sv *SequenceVar) *SequenceVarElement {
	for _, e := range a.sequences {
		if e.Var == sv {
			return e
		}
	}
	e := &SequenceVarElement{Var: sv, Activated: true}
	a.sequences = append(a.sequences, e)
	return e
}

func (e *IntervalVarElement) capture() {
	iv := e.Var
	e.StartMin, e.StartMax = iv.StartMin(), iv.StartMax()
	e.DurMin, e.DurMax = iv.DurationMin(), iv.DurationMax()
	e.PerfMin, e.PerfMax = iv.perfMin, iv.perfMax
}

// NumIntVars returns the number of integer elements.
func (a *Assignment) NumIntVars() int { return len(a.ints) }

// IntVarElementAt returns the i-th integer element in insertion order.
func (a *Assignment) IntVarElementAt(i int) *IntVarElement { return a.ints[i] }

// Contains reports whether v has an element in the assignment.
func (a *Assignment) Contains(v IntVar) bool {
	_, ok := a.intIndex[v]
	return ok
}

// element returns the element for v, which must have been added.
func (a *Assignment) element(v IntVar) *IntVarElement {
	i, ok := a.intIndex[v]
	if !ok {
		panic(fmt.Sprintf("cpsolver: variable %s not in assignment", v))
	}
	return a.ints[i]
}

// Value returns the stored bound value for v.
func (a *Assignment) Value(v IntVar) int64 {
	return a.element(v).Min
}

// SetValue pins v to value in the snapshot (not in the solver).
func (a *Assignment) SetValue(v IntVar, value int64) {
	e := a.element(v)
	e.Min, e.Max = value, value
	e.Activated = true
}

// Activate marks v's element meaningful.
func (a *Assignment) Activate(v IntVar) {
	a.element(v).Activated = true
}

// Deactivate marks v's element relaxed: Restore and restrict skip it.
func (a *Assignment) Deactivate(v IntVar) {
	a.element(v).Activated = false
}

// Activated reports whether v's element is active.
func (a *Assignment) Activated(v IntVar) bool {
	return a.element(v).Activated
}

// Store captures the current state of every registered variable.
func (a *Assignment) Store() {
	for _, e := range a.ints {
		e.Min, e.Max = e.Var.Min(), e.Var.Max()
		e.Activated = true
	}
	for _, e := range a.intervals {
		e.capture()
		e.Activated = true
	}
	for _, e := range a.sequences {
		e.Forward = e.Var.RankedFirstOrder()
		e.Backward = e.Var.RankedLastOrder()
		e.Unperformed = e.Unperformed[:0]
		for i := 0; i < e.Var.Size(); i++ {
			if !e.Var.Interval(i).MayBePerformed() {
				e.Unperformed = append(e.Unperformed, i)
			}
		}
		e.Activated = true
	}
}

// restrict narrows the solver's variables to the active elements. Used
// by CheckAssignment inside a reversible scope.
func (a *Assignment) restrict(s *Solver) {
	for _, e := range a.ints {
		if e.Activated {
			e.Var.SetRange(e.Min, e.Max)
		}
	}
	for _, e := range a.intervals {
		if e.Activated {
			e.Var.SetStartRange(e.StartMin, e.StartMax)
			e.Var.SetDurationMin(e.DurMin)
			e.Var.SetDurationMax(e.DurMax)
			if e.PerfMin == 1 {
				e.Var.SetPerformed(true)
			} else if e.PerfMax == 0 {
				e.Var.SetPerformed(false)
			}
		}
	}
}

// Restore is restrict against the assignment's own solver, outside any
// scope management. Callers bracket it with Mark/UndoTo as needed.
func (a *Assignment) Restore() {
	a.restrict(a.solver)
}

// Copy returns a deep copy sharing the variable references.
func (a *Assignment) Copy() *Assignment {
	c := a.solver.MakeAssignment()
	for _, e := range a.ints {
		ce := c.Add(e.Var)
		ce.Min, ce.Max, ce.Activated = e.Min, e.Max, e.Activated
	}
	for _, e := range a.intervals {
		ce := c.AddInterval(e.Var)
		*ce = *e
	}
	for _, e := range a.sequences {
		ce := c.AddSequence(e.Var)
		ce.Forward = append([]int(nil), e.Forward...)
		ce.Backward = append([]int(nil), e.Backward...)
		ce.Unperformed = append([]int(nil), e.Unperformed...)
		ce.Activated = e.Activated
	}
	return c
}

// CopyIntersection copies element state from other for every variable
// present in both assignments.
func (a *Assignment) CopyIntersection(other *Assignment) {
	for _, e := range a.ints {
		if other.Contains(e.Var) {
			oe := other.element(e.Var)
			e.Min, e.Max, e.Activated = oe.Min, oe.Max, oe.Activated
		}
	}
}

// Clear removes every element, leaving an empty assignment. Local
// search reuses one delta assignment across neighbors by clearing it
// before each proposal.
func (a *Assignment) Clear() {
	a.ints = a.ints[:0]
	a.intervals = a.intervals[:0]
	a.sequences = a.sequences[:0]
	clear(a.intIndex)
}

// Empty reports whether no element is activated.
func (a *Assignment) Empty() bool {
	for _, e := range a.ints {
		if e.Activated {
			return false
		}
	}
	for _, e := range a.intervals {
		if e.Activated {
			return false
		}
	}
	for _, e := range a.sequences {
		if e.Activated {
			return false
		}
	}
	return true
}

// ActivatedCount returns the number of activated elements.
func (a *Assignment) ActivatedCount() int {
	n := 0
	for _, e := range a.ints {
		if e.Activated {
			n++
		}
	}
	for _, e := range a.intervals {
		if e.Activated {
			n++
		}
	}
	for _, e := range a.sequences {
		if e.Activated {
			n++
		}
	}
	return n
}

// Save writes the assignment to w in the versioned binary format.
func (a *Assignment) Save(w io.Writer) error {
	if err := binary.Write(w, binary.BigEndian, assignmentMagic); err != nil {
		return errors.Wrap(err, "writing assignment magic")
	}
	if err := binary.Write(w, binary.BigEndian, assignmentVersion); err != nil {
		return errors.Wrap(err, "writing assignment version")
	}
	total := uint32(len(a.ints) + len(a.intervals) + len(a.sequences))
	if err := binary.Write(w, binary.BigEndian, total); err != nil {
		return errors.Wrap(err, "writing element count")
	}
	for _, e := range a.ints {
		body := make([]byte, 0, 32)
		body = appendUint32(body, uint32(e.Var.VarIndex()))
		body = append(body, kindInt, boolByte(e.Activated))
		body = appendInt64(body, e.Min)
		body = appendInt64(body, e.Max)
		if err := writeRecord(w, body); err != nil {
			return err
		}
	}
	for i, e := range a.intervals {
		body := make([]byte, 0, 64)
		body = appendUint32(body, uint32(i))
		body = append(body, kindInterval, boolByte(e.Activated))
		for _, v := range []int64{e.StartMin, e.StartMax, e.DurMin, e.DurMax, e.PerfMin, e.PerfMax} {
			body = appendInt64(body, v)
		}
		if err := writeRecord(w, body); err != nil {
			return err
		}
	}
	for i, e := range a.sequences {
		body := make([]byte, 0, 64)
		body = appendUint32(body, uint32(i))
		body = append(body, kindSequence, boolByte(e.Activated))
		for _, list := range [][]int{e.Forward, e.Backward, e.Unperformed} {
			body = appendUint32(body, uint32(len(list)))
			for _, v := range list {
				body = appendUint32(body, uint32(v))
			}
		}
		if err := writeRecord(w, body); err != nil {
			return err
		}
	}
	return nil
}

// Load reads the binary format from r into the assignment's existing
// elements. Integer records are matched by variable index, interval and
// sequence records by their position among the assignment's intervals or
// sequences; a record with no matching element is an error.
func (a *Assignment) Load(r io.Reader) error {
	var magic uint32
	if err := binary.Read(r, binary.BigEndian, &magic); err != nil {
		return errors.Wrap(err, "reading assignment magic")
	}
	if magic != assignmentMagic {
		return errors.Errorf("bad assignment magic %#x", magic)
	}
	var version uint16
	if err := binary.Read(r, binary.BigEndian, &version); err != nil {
		return errors.Wrap(err, "reading assignment version")
	}
	if version != assignmentVersion {
		return errors.Errorf("unsupported assignment version %d", version)
	}
	var total uint32
	if err := binary.Read(r, binary.BigEndian, &total); err != nil {
		return errors.Wrap(err, "reading element count")
	}
	byIndex := make(map[uint32]*IntVarElement, len(a.ints))
	for _, e := range a.ints {
		byIndex[uint32(e.Var.VarIndex())] = e
	}
	for rec := uint32(0); rec < total; rec++ {
		body, err := readRecord(r)
		if err != nil {
			return err
		}
		if len(body) < 6 {
			return errors.Errorf("assignment record %d truncated", rec)
		}
		id := binary.BigEndian.Uint32(body)
		kind := body[4]
		activated := body[5] == 1
		payload := body[6:]
		switch kind {
		case kindInt:
			e, ok := byIndex[id]
			if !ok {
				return errors.Errorf("record for unknown variable index %d", id)
			}
			if len(payload) != 16 {
				return errors.Errorf("int record %d has %d payload bytes", rec, len(payload))
			}
			e.Min = int64(binary.BigEndian.Uint64(payload))
			e.Max = int64(binary.BigEndian.Uint64(payload[8:]))
			e.Activated = activated
		case kindInterval:
			if int(id) >= len(a.intervals) {
				return errors.Errorf("record for unknown interval %d", id)
			}
			if len(payload) != 48 {
				return errors.Errorf("interval record %d has %d payload bytes", rec, len(payload))
			}
			e := a.intervals[id]
			vals := make([]int64, 6)
			for i := range vals {
				vals[i] = int64(binary.BigEndian.Uint64(payload[8*i:]))
			}
			e.StartMin, e.StartMax = vals[0], vals[1]
			e.DurMin, e.DurMax = vals[2], vals[3]
			e.PerfMin, e.PerfMax = vals[4], vals[5]
			e.Activated = activated
		case kindSequence:
			if int(id) >= len(a.sequences) {
				return errors.Errorf("record for unknown sequence %d", id)
			}
			e := a.sequences[id]
			lists := make([][]int, 3)
			off := 0
			for i := range lists {
				if off+4 > len(payload) {
					return errors.Errorf("sequence record %d truncated", rec)
				}
				n := int(binary.BigEndian.Uint32(payload[off:]))
				off += 4
				if off+4*n > len(payload) {
					return errors.Errorf("sequence record %d truncated", rec)
				}
				lists[i] = make([]int, n)
				for j := 0; j < n; j++ {
					lists[i][j] = int(binary.BigEndian.Uint32(payload[off:]))
					off += 4
				}
			}
			e.Forward, e.Backward, e.Unperformed = lists[0], lists[1], lists[2]
			e.Activated = activated
		default:
			return errors.Errorf("unknown element kind %d", kind)
		}
	}
	return nil
}

// SaveToFile writes the assignment to path.
func (a *Assignment) SaveToFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "creating %s", path)
	}
	defer f.Close()
	return a.Save(f)
}

// LoadFromFile reads the assignment from path.
func (a *Assignment) LoadFromFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "opening %s", path)
	}
	defer f.Close()
	return a.Load(f)
}

func writeRecord(w io.Writer, body []byte) error {
	if err := binary.Write(w, binary.BigEndian, uint32(len(body))); err != nil {
		return errors.Wrap(err, "writing record length")
	}
	if _, err := w.Write(body); err != nil {
		return errors.Wrap(err, "writing record body")
	}
	return nil
}

func readRecord(r io.Reader) ([]byte, error) {
	var n uint32
	if err := binary.Read(r, binary.BigEndian, &n); err != nil {
		return nil, errors.Wrap(err, "reading record length")
	}
	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, errors.Wrap(err, "reading record body")
	}
	return body, nil
}

func appendUint32(b []byte, v uint32) []byte {
	return binary.BigEndian.AppendUint32(b, v)
}

func appendInt64(b []byte, v int64) []byte {
	return binary.BigEndian.AppendUint64(b, uint64(v))
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

func (a *Assignment) String() string {
	return fmt.Sprintf("Assignment(%d ints, %d intervals, %d sequences)",
		len(a.ints), len(a.intervals), len(a.sequences))
}

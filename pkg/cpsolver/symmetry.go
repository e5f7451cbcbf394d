// symmetry.go: symmetry breaking during search.
//
// A SymmetryBreaker is a decision visitor. When the engine applies a
// decision, every registered breaker visits it and may contribute
// symmetric "no-good" literals. Every literal has the form
// "var == value"; other comparison operators cannot be collected. On the
// refutation branch of that decision the negation of each collected
// literal (var != value) is enforced, pruning subtrees that are images of
// the refuted one under the model's symmetries.
package cpsolver

// SymmetryBreaker contributes symmetric literals for applied decisions.
// Implementations inspect the decision through the visitor methods and
// call AddTerm on the manager for each symmetric image.
type SymmetryBreaker interface {
	DecisionVisitor
	// setManager wires the breaker to its manager before each visit.
	setManager(m *SymmetryManager)
}

// BaseSymmetryBreaker provides the manager plumbing and no-op visitor
// defaults. Embed it and override the visits of interest.
type BaseSymmetryBreaker struct {
	manager *SymmetryManager
}

func (b *BaseSymmetryBreaker) setManager(m *SymmetryManager) { b.manager = m }

// AddTerm records the literal "v == value" as a symmetric image of the
// currently visited decision. On refutation the engine enforces the
// negation, removing value from v.
func (b *BaseSymmetryBreaker) AddTerm(v IntVar, value int64) {
	b.manager.addTerm(v, value)
}

func (BaseSymmetryBreaker) VisitSetVariableValue(IntVar, int64)          {}
func (BaseSymmetryBreaker) VisitSplitVariableDomain(IntVar, int64, bool) {}
func (BaseSymmetryBreaker) VisitRankFirst(*SequenceVar, int)             {}
func (BaseSymmetryBreaker) VisitUnknownDecision()                        {}

// symmetryTerm is one collected literal, tagged with the depth of the
// decision it belongs to.
type symmetryTerm struct {
	v     IntVar
	value int64
	depth int
}

// SymmetryManager is the search monitor orchestrating the breakers: it
// routes applied decisions to each breaker and enforces the collected
// literals on the refutation branch.
type SymmetryManager struct {
	BaseSearchMonitor
	breakers []SymmetryBreaker
	terms    []symmetryTerm
}

// NewSymmetryManager returns a monitor driving the given breakers.
func (s *Solver) NewSymmetryManager(breakers ...SymmetryBreaker) *SymmetryManager {
	return &SymmetryManager{breakers: breakers}
}

func (m *SymmetryManager) addTerm(v IntVar, value int64) {
	depth := 0
	if v.Solver().search != nil {
		depth = v.Solver().search.Depth()
	}
	m.terms = append(m.terms, symmetryTerm{v: v, value: value, depth: depth})
}

func (m *SymmetryManager) EnterSearch(s *Solver) {
	m.terms = m.terms[:0]
}

// ApplyDecision lets every breaker visit the decision being applied.
func (m *SymmetryManager) ApplyDecision(s *Solver, d Decision) {
	m.dropBelow(s)
	for _, b := range m.breakers {
		b.setManager(m)
		d.Accept(b)
	}
}

// RefuteDecision enforces the negation of every literal collected at the
// current depth: each "v == value" image is excluded alongside the
// refuted decision.
func (m *SymmetryManager) RefuteDecision(s *Solver, d Decision) {
	depth := 0
	if s.search != nil {
		depth = s.search.Depth()
	}
	for _, t := range m.terms {
		if t.depth == depth {
			enforceLiteral(t.v, LiteralNeq, t.value)
		}
	}
	m.dropBelow(s)
}

// dropBelow forgets literals collected deeper than the current depth;
// their decisions have been fully explored.
func (m *SymmetryManager) dropBelow(s *Solver) {
	depth := 0
	if s.search != nil {
		depth = s.search.Depth()
	}
	kept := m.terms[:0]
	for _, t := range m.terms {
		if t.depth <= depth {
			kept = append(kept, t)
		}
	}
	m.terms = kept
}

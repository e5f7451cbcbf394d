// pathoperator.go: neighborhood operators over next-pointer paths.
//
// Routing models encode routes as an array of next variables: next[i] is
// the successor of node i, a value of at least the array length means
// "end of path", and an inactive node points to itself. PathOperator
// specializes IntVarLocalSearchOperator for this shape: it maintains k
// base nodes, enumerates neighbor tuples lexicographically (the
// rightmost base advances first, overflowing bases reset to their path
// start), and offers the chain surgery every concrete operator is built
// from: MoveChain, ReverseChain, MakeActive and MakeChainInactive.
//
// When path variables are tracked they occupy positions [n, 2n) of the
// operator's variable array, so path-id rewrites ride along in the same
// delta as the next-pointer rewrites.
package cpsolver

// pathNeighborMaker is the hook concrete path operators implement.
type pathNeighborMaker interface {
	// MakeNeighbor builds one candidate from the current base nodes.
	// Returning false skips to the next base tuple.
	MakeNeighbor() bool
}

// PathOperator is the base for path neighborhoods.
type PathOperator struct {
	IntVarLocalSearchOperator
	numNexts  int
	hasPaths  bool
	baseNodes []int
	basePaths []int // index into pathStarts per base node

	pathStarts []int
	pathMaker  pathNeighborMaker

	justStarted bool
}

// initPathOperator wires nexts (and optionally paths, which may be nil)
// into the operator arrays and registers the neighbor hook.
func (p *PathOperator) initPathOperator(nexts, paths []IntVar, k int, maker pathNeighborMaker) {
	if len(paths) != 0 && len(paths) != len(nexts) {
		panic("cpsolver: path variable array must match the nexts array")
	}
	all := make([]IntVar, 0, len(nexts)+len(paths))
	all = append(all, nexts...)
	all = append(all, paths...)
	p.numNexts = len(nexts)
	p.hasPaths = len(paths) > 0
	p.baseNodes = make([]int, k)
	p.basePaths = make([]int, k)
	p.pathMaker = maker
	p.initOperator(all, p)
	p.onStart = p.onPathStart
}

// Next returns the successor of node i in the current proposal.
func (p *PathOperator) Next(i int) int {
	return int(p.Value(i))
}

// OldNext returns the successor of node i in the base assignment.
func (p *PathOperator) OldNext(i int) int {
	return int(p.OldValue(i))
}

// SetNext rewrites the successor of node i.
func (p *PathOperator) SetNext(i, next int) {
	p.SetValue(i, int64(next))
}

// Path returns the path id of node i, or 0 when paths are not tracked.
func (p *PathOperator) Path(i int) int64 {
	if !p.hasPaths {
		return 0
	}
	return p.Value(p.numNexts + i)
}

// setPath rewrites the path id of node i, when paths are tracked.
func (p *PathOperator) setPath(i int, path int64) {
	if p.hasPaths {
		p.SetValue(p.numNexts+i, path)
	}
}

// IsPathEnd reports whether i lies beyond the nexts array, i.e. is an
// end-of-path sentinel rather than a node.
func (p *PathOperator) IsPathEnd(i int) bool {
	return i >= p.numNexts
}

// IsInactive reports whether node i is on no path.
func (p *PathOperator) IsInactive(i int) bool {
	return !p.IsPathEnd(i) && p.Next(i) == i
}

// BaseNode returns the b-th base node of the current tuple.
func (p *PathOperator) BaseNode(b int) int {
	return p.baseNodes[b]
}

// onPathStart recomputes path starts from the base assignment and
// resets every base node to the first path's start.
func (p *PathOperator) onPathStart() {
	hasPred := make([]bool, p.numNexts)
	for i := 0; i < p.numNexts; i++ {
		nxt := p.OldNext(i)
		if nxt != i && nxt < p.numNexts {
			hasPred[nxt] = true
		}
	}
	p.pathStarts = p.pathStarts[:0]
	for i := 0; i < p.numNexts; i++ {
		if !hasPred[i] && !p.IsInactive(i) {
			p.pathStarts = append(p.pathStarts, i)
		}
	}
	for b := range p.baseNodes {
		if len(p.pathStarts) > 0 {
			p.baseNodes[b] = p.pathStarts[0]
		} else {
			p.baseNodes[b] = 0
		}
		p.basePaths[b] = 0
	}
	p.justStarted = true
}

// advanceBase moves base b one node forward, hopping to the next path
// when the current one is exhausted. It returns false when the base has
// wrapped around every path.
func (p *PathOperator) advanceBase(b int) bool {
	node := p.baseNodes[b]
	next := p.Next(node)
	if !p.IsPathEnd(next) {
		p.baseNodes[b] = next
		return true
	}
	p.basePaths[b]++
	if p.basePaths[b] < len(p.pathStarts) {
		p.baseNodes[b] = p.pathStarts[p.basePaths[b]]
		return true
	}
	// Wrapped: reset to the first path start.
	p.basePaths[b] = 0
	if len(p.pathStarts) > 0 {
		p.baseNodes[b] = p.pathStarts[0]
	}
	return false
}

// incrementPosition advances the rightmost base node, carrying into the
// earlier bases on overflow. It returns false when the whole tuple space
// is exhausted.
func (p *PathOperator) incrementPosition() bool {
	for b := len(p.baseNodes) - 1; b >= 0; b-- {
		if p.advanceBase(b) {
			return true
		}
	}
	return false
}

// MakeOneNeighbor implements neighborMaker by walking base tuples until
// the concrete operator builds a candidate.
func (p *PathOperator) MakeOneNeighbor() bool {
	if len(p.pathStarts) == 0 {
		return false
	}
	for {
		if p.justStarted {
			// Emit the initial tuple once per Start before advancing.
			p.justStarted = false
		} else if !p.incrementPosition() {
			return false
		}
		if p.pathMaker.MakeNeighbor() {
			return true
		}
		p.RevertChanges(false)
	}
}

// CheckChainValidity reports whether (Next(before) .. chainEnd) is a
// contiguous nonempty chain that does not contain exclude.
func (p *PathOperator) CheckChainValidity(before, chainEnd, exclude int) bool {
	if p.IsPathEnd(before) || p.IsPathEnd(chainEnd) {
		return false
	}
	if before == chainEnd || before == exclude {
		return false
	}
	node := p.Next(before)
	for steps := 0; steps <= p.numNexts; steps++ {
		if node == exclude {
			return false
		}
		if node == chainEnd {
			return true
		}
		if p.IsPathEnd(node) {
			return false
		}
		node = p.Next(node)
	}
	return false
}

// MoveChain extracts the chain (Next(before) .. chainEnd) and splices it
// after destination. At most three next pointers change; when paths are
// tracked every moved node takes destination's path id. Returns false
// when the move is invalid.
func (p *PathOperator) MoveChain(before, chainEnd, destination int) bool {
	if p.IsPathEnd(destination) || p.IsInactive(destination) {
		return false
	}
	if !p.CheckChainValidity(before, chainEnd, destination) {
		return false
	}
	chainStart := p.Next(before)
	p.SetNext(before, p.Next(chainEnd))
	p.SetNext(chainEnd, p.Next(destination))
	p.SetNext(destination, chainStart)
	if p.hasPaths {
		destPath := p.Path(destination)
		for node := chainStart; ; node = p.Next(node) {
			p.setPath(node, destPath)
			if node == chainEnd {
				break
			}
		}
	}
	return true
}

// ReverseChain reverses the chain strictly between before and after and
// reports the chain's former first node (now last) through chainLast.
func (p *PathOperator) ReverseChain(before, after int, chainLast *int) bool {
	if p.IsPathEnd(before) {
		return false
	}
	first := p.Next(before)
	if first == after || p.IsPathEnd(first) {
		return false
	}
	prev := after
	node := first
	for steps := 0; steps <= p.numNexts; steps++ {
		if p.IsPathEnd(node) {
			return false
		}
		next := p.Next(node)
		p.SetNext(node, prev)
		prev = node
		if next == after {
			p.SetNext(before, prev)
			*chainLast = first
			return true
		}
		node = next
	}
	return false
}

// MakeActive inserts the inactive node after destination.
func (p *PathOperator) MakeActive(node, destination int) bool {
	if p.IsPathEnd(node) || p.IsPathEnd(destination) || !p.IsInactive(node) {
		return false
	}
	if p.IsInactive(destination) {
		return false
	}
	p.SetNext(node, p.Next(destination))
	p.SetNext(destination, node)
	p.setPath(node, p.Path(destination))
	return true
}

// MakeChainInactive removes the chain (Next(before) .. chainEnd) from
// its path and marks every removed node inactive.
func (p *PathOperator) MakeChainInactive(before, chainEnd int) bool {
	if !p.CheckChainValidity(before, chainEnd, -1) {
		return false
	}
	node := p.Next(before)
	p.SetNext(before, p.Next(chainEnd))
	for {
		next := p.Next(node)
		p.SetNext(node, node)
		p.setPath(node, -1)
		if node == chainEnd {
			break
		}
		node = next
	}
	return true
}

// Relocate moves the single node after the first base to follow the
// second base. This is the classic one-node relocation neighborhood.
type Relocate struct {
	PathOperator
}

// NewRelocate returns a relocate operator over the given next variables.
// paths may be nil when path ids are not tracked.
func NewRelocate(nexts, paths []IntVar) *Relocate {
	op := &Relocate{}
	op.initPathOperator(nexts, paths, 2, op)
	return op
}

// MakeNeighbor implements pathNeighborMaker.
func (op *Relocate) MakeNeighbor() bool {
	before := op.BaseNode(0)
	dest := op.BaseNode(1)
	if before == dest {
		return false
	}
	chain := op.Next(before)
	if op.IsPathEnd(chain) {
		return false
	}
	return op.MoveChain(before, chain, dest)
}

// Exchange swaps the nodes following the two base nodes.
type Exchange struct {
	PathOperator
}

// NewExchange returns an exchange operator over the given next
// variables.
func NewExchange(nexts, paths []IntVar) *Exchange {
	op := &Exchange{}
	op.initPathOperator(nexts, paths, 2, op)
	return op
}

// MakeNeighbor implements pathNeighborMaker.
func (op *Exchange) MakeNeighbor() bool {
	b0, b1 := op.BaseNode(0), op.BaseNode(1)
	if b0 == b1 {
		return false
	}
	n0, n1 := op.Next(b0), op.Next(b1)
	if op.IsPathEnd(n0) || op.IsPathEnd(n1) || n0 == b1 || n1 == b0 || n0 == n1 {
		return false
	}
	p0, p1 := op.Path(n0), op.Path(n1)
	after0, after1 := op.Next(n0), op.Next(n1)
	op.SetNext(b0, n1)
	op.SetNext(n1, after0)
	op.SetNext(b1, n0)
	op.SetNext(n0, after1)
	op.setPath(n0, p1)
	op.setPath(n1, p0)
	return true
}

// TwoOpt reverses the chain between the two base nodes, removing a
// crossing on a single path.
type TwoOpt struct {
	PathOperator
}

// NewTwoOpt returns a two-opt operator over the given next variables.
func NewTwoOpt(nexts, paths []IntVar) *TwoOpt {
	op := &TwoOpt{}
	op.initPathOperator(nexts, paths, 2, op)
	return op
}

// MakeNeighbor implements pathNeighborMaker.
func (op *TwoOpt) MakeNeighbor() bool {
	b0, b1 := op.BaseNode(0), op.BaseNode(1)
	if b0 == b1 || op.Path(b0) != op.Path(b1) {
		return false
	}
	// The chain (Next(b0) .. b1) must be contiguous and nonempty.
	if !op.CheckChainValidity(b0, b1, -1) {
		return false
	}
	var last int
	return op.ReverseChain(b0, op.Next(b1), &last)
}

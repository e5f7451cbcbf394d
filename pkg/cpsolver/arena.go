// arena.go: region allocation for short-lived solver objects.
//
// Reversible containers allocate their internal nodes here so that a
// backtrack reclaims them in bulk: region boundaries are stacked alongside
// trail marks, and releasing a region recycles every node allocated since
// the matching mark. Nodes are plain Go objects; no finalization runs when
// a region is released, so payloads must not own external resources.
package cpsolver

// arenaKind discriminates the recyclable node types the arena hands out.
type arenaKind uint8

const (
	arenaFIFOChunk arenaKind = iota
	arenaMapCell
)

// arenaNode pairs an allocated object with its kind so Release can route
// it back to the matching free list.
type arenaNode struct {
	kind arenaKind
	obj  any
}

// Arena is the solver's region allocator. Allocation bumps the live list;
// Release drops everything allocated since the matching Mark back onto
// per-kind free lists. The solver pushes a region around every search
// frame, aligned with the trail mark for that frame.
type Arena struct {
	live []arenaNode

	chunkFree []any // recycled FIFO chunks, kept as any to stay generic
	cellFree  []*mapCell

	allocated uint64
	recycled  uint64
}

// NewArena returns an empty arena.
func NewArena() *Arena {
	return &Arena{}
}

// Mark returns a region boundary aligned with the current allocation
// cursor. Boundaries nest exactly like trail marks.
func (a *Arena) Mark() int {
	return len(a.live)
}

// Release recycles every object allocated since the boundary m. Objects
// are returned to their per-kind free list; their contents are left as-is
// and will be overwritten on reuse.
func (a *Arena) Release(m int) {
	if m > len(a.live) {
		panic("cpsolver: arena release past the live region")
	}
	for i := len(a.live) - 1; i >= m; i-- {
		n := a.live[i]
		switch n.kind {
		case arenaFIFOChunk:
			a.chunkFree = append(a.chunkFree, n.obj)
		case arenaMapCell:
			a.cellFree = append(a.cellFree, n.obj.(*mapCell))
		}
		a.live[i] = arenaNode{}
		a.recycled++
	}
	a.live = a.live[:m]
}

// Allocated returns the total number of nodes handed out since creation.
func (a *Arena) Allocated() uint64 {
	return a.allocated
}

// allocFIFOChunk returns a chunk for a SimpleRevFIFO, recycled if one is
// available. The chunk is registered in the current region.
func allocFIFOChunk[T any](a *Arena) *fifoChunk[T] {
	a.allocated++
	if n := len(a.chunkFree); n > 0 {
		if c, ok := a.chunkFree[n-1].(*fifoChunk[T]); ok {
			a.chunkFree = a.chunkFree[:n-1]
			*c = fifoChunk[T]{}
			a.live = append(a.live, arenaNode{kind: arenaFIFOChunk, obj: c})
			return c
		}
	}
	c := &fifoChunk[T]{}
	a.live = append(a.live, arenaNode{kind: arenaFIFOChunk, obj: c})
	return c
}

// allocMapCell returns a cell for a RevMap, recycled if available, and
// registers it in the current region.
func (a *Arena) allocMapCell(key, value int64, next *mapCell) *mapCell {
	a.allocated++
	var c *mapCell
	if n := len(a.cellFree); n > 0 {
		c = a.cellFree[n-1]
		a.cellFree = a.cellFree[:n-1]
	} else {
		c = &mapCell{}
	}
	c.key = key
	c.value = value
	c.next = next
	a.live = append(a.live, arenaNode{kind: arenaMapCell, obj: c})
	return c
}

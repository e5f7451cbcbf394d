// revfifo.go: a reversible FIFO of elements, stored in chunked blocks.
//
// The structure only grows: Push inserts at the head, and removal happens
// implicitly when the enclosing search branch is undone. Blocks hold 16
// elements and are allocated from the solver arena; the head pointer and
// the insertion cursor are trail-protected, so backtracking restores the
// exact previous contents.
package cpsolver

// fifoChunkSize is the number of elements per block.
const fifoChunkSize = 16

// fifoChunk is one block of the chunked list. Slots fill from index 0
// upward; the newest element of a full block sits at index 15.
type fifoChunk[T any] struct {
	data [fifoChunkSize]T
	next *fifoChunk[T]
}

// SimpleRevFIFO is a reversible first-in first-out container. Iteration
// order is newest-first: the iterator starts at the head block and walks
// toward the tail, which keeps element order stable for algorithms that
// scan listeners registered most recently first.
type SimpleRevFIFO[T comparable] struct {
	chunks *fifoChunk[T] // head block, nil until the first push
	pos    int           // next free slot in the head block
}

// Push inserts v at the head. When the head block is full a new block is
// taken from the arena and linked in front; both the link and the cursor
// go through the trail.
func (f *SimpleRevFIFO[T]) Push(s *Solver, v T) {
	if f.chunks == nil || f.pos == fifoChunkSize {
		c := allocFIFOChunk[T](s.arena)
		c.next = f.chunks
		SaveAndSetValue(&s.trail, &f.chunks, c)
		SaveAndSetValue(&s.trail, &f.pos, 0)
	}
	f.chunks.data[f.pos] = v
	SaveAndSetValue(&s.trail, &f.pos, f.pos+1)
}

// PushIfNotTop inserts v unless it already is the newest element. This
// makes consecutive duplicate registrations idempotent.
func (f *SimpleRevFIFO[T]) PushIfNotTop(s *Solver, v T) {
	if top, ok := f.Last(); ok && top == v {
		return
	}
	f.Push(s, v)
}

// Last returns the newest element, if any.
func (f *SimpleRevFIFO[T]) Last() (T, bool) {
	var zero T
	if f.chunks == nil || f.pos == 0 {
		// A zero cursor with a non-nil head only occurs transiently inside
		// Push; externally it means the structure is empty.
		if f.chunks == nil || f.chunks.next == nil {
			return zero, false
		}
		return f.chunks.next.data[fifoChunkSize-1], true
	}
	return f.chunks.data[f.pos-1], true
}

// Empty reports whether the container holds no elements.
func (f *SimpleRevFIFO[T]) Empty() bool {
	_, ok := f.Last()
	return !ok
}

// ForEach calls fn for every element, newest first.
func (f *SimpleRevFIFO[T]) ForEach(fn func(T)) {
	c := f.chunks
	if c == nil {
		return
	}
	for i := f.pos - 1; i >= 0; i-- {
		fn(c.data[i])
	}
	for c = c.next; c != nil; c = c.next {
		for i := fifoChunkSize - 1; i >= 0; i-- {
			fn(c.data[i])
		}
	}
}

// Len returns the number of elements. O(blocks).
func (f *SimpleRevFIFO[T]) Len() int {
	if f.chunks == nil {
		return 0
	}
	n := f.pos
	for c := f.chunks.next; c != nil; c = c.next {
		n += fifoChunkSize
	}
	return n
}

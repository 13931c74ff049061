package body

import "container/heap"

// Sequencer buffers out-of-order chunks and tracks the next sequence number
// the consumer expects. It is not safe for concurrent use.
//
// Pop and Advance are deliberately independent: Pop always removes the
// lowest buffered chunk, and callers check Ready first when they need
// in-order delivery.
type Sequencer struct {
	next   uint64
	chunks chunkHeap
}

// NewSequencer returns an empty sequencer expecting sequence 0.
func NewSequencer() *Sequencer {
	return &Sequencer{chunks: make(chunkHeap, 0, 8)}
}

// Push buffers a chunk. Duplicates are not detected.
func (s *Sequencer) Push(c Chunk) {
	heap.Push(&s.chunks, c)
}

// Ready reports whether the lowest buffered chunk is the next expected one.
func (s *Sequencer) Ready() bool {
	c, ok := s.Peek()
	return ok && c.Seq == s.next
}

// Peek returns the lowest buffered chunk without removing it.
func (s *Sequencer) Peek() (Chunk, bool) {
	if len(s.chunks) == 0 {
		return Chunk{}, false
	}
	return s.chunks[0], true
}

// Pop removes and returns the lowest buffered chunk, whether or not it is
// the next expected one.
func (s *Sequencer) Pop() (Chunk, bool) {
	if len(s.chunks) == 0 {
		return Chunk{}, false
	}
	return heap.Pop(&s.chunks).(Chunk), true
}

// Advance moves the cursor forward by one.
func (s *Sequencer) Advance() {
	s.next++
}

// Next returns the sequence number the consumer expects next.
func (s *Sequencer) Next() uint64 {
	return s.next
}

// Len returns the number of buffered chunks.
func (s *Sequencer) Len() int {
	return len(s.chunks)
}

// reset drops every buffered chunk.
func (s *Sequencer) reset() {
	clear(s.chunks)
	s.chunks = s.chunks[:0]
}

// chunkHeap is a min-heap on Chunk.Seq.
type chunkHeap []Chunk

func (h chunkHeap) Len() int           { return len(h) }
func (h chunkHeap) Less(i, j int) bool { return h[i].Seq < h[j].Seq }
func (h chunkHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *chunkHeap) Push(x any) {
	*h = append(*h, x.(Chunk))
}

func (h *chunkHeap) Pop() any {
	old := *h
	n := len(old)
	c := old[n-1]
	old[n-1] = Chunk{} // release payload
	*h = old[:n-1]
	return c
}

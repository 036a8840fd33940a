package search

import (
	"container/heap"

	"sygus/internal/term"
)

// entry is one partial or concrete candidate awaiting processing.
type entry struct {
	expr  *term.Expr
	score float64
	seq   uint64
}

type frontier interface {
	push(*entry)
	pop() *entry
	len() int
}

// fifo is the breadth-first frontier.
type fifo struct {
	items []*entry
	head  int
}

func (f *fifo) push(e *entry) { f.items = append(f.items, e) }

func (f *fifo) pop() *entry {
	e := f.items[f.head]
	f.items[f.head] = nil
	f.head++
	// Reclaim the consumed prefix once it dominates the slice.
	if f.head > 1024 && f.head*2 > len(f.items) {
		f.items = append([]*entry(nil), f.items[f.head:]...)
		f.head = 0
	}
	return e
}

func (f *fifo) len() int { return len(f.items) - f.head }

// priority pops the highest score first, breaking ties by insertion
// order, which makes the visit order a total order.
type priority struct {
	h entryHeap
}

func (p *priority) push(e *entry) { heap.Push(&p.h, e) }
func (p *priority) pop() *entry   { return heap.Pop(&p.h).(*entry) }
func (p *priority) len() int      { return len(p.h) }

type entryHeap []*entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].score != h[j].score {
		return h[i].score > h[j].score
	}
	return h[i].seq < h[j].seq
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) { *h = append(*h, x.(*entry)) }

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return e
}

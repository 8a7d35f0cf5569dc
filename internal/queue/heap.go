package queue

import "github.com/speakdown/speakdown/internal/utterance"

// frontItem wraps a priority-inserted utterance with a monotonic sequence
// number so equal priorities dequeue in insertion order.
type frontItem struct {
	u   utterance.Utterance
	seq uint64
}

// frontHeap implements container/heap.Interface as a max-heap on priority
// with FIFO tie-breaking on seq.
type frontHeap []frontItem

func (h frontHeap) Len() int { return len(h) }

func (h frontHeap) Less(i, j int) bool {
	if h[i].u.Priority != h[j].u.Priority {
		return h[i].u.Priority > h[j].u.Priority
	}
	return h[i].seq < h[j].seq
}

func (h frontHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *frontHeap) Push(x any) {
	*h = append(*h, x.(frontItem))
}

func (h *frontHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

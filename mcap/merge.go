package mcap

import (
	"container/heap"

	"github.com/rosbags-go/rosbags/connection"
)

// chunkRun is one chunk's already-decompressed, already-time-sorted run of
// matching messages.
type chunkRun struct {
	messages []connection.Message
	pos      int
	order    int
}

func (c *chunkRun) head() connection.Message { return c.messages[c.pos] }
func (c *chunkRun) done() bool               { return c.pos >= len(c.messages) }

// runHeap is a min-heap over the current head of each chunkRun, ordered by
// timestamp and tie-broken by chunk arrival order so the merge is stable.
type runHeap []*chunkRun

func (h runHeap) Len() int { return len(h) }
func (h runHeap) Less(i, j int) bool {
	a, b := h[i].head().Timestamp, h[j].head().Timestamp
	if a != b {
		return a < b
	}
	return h[i].order < h[j].order
}
func (h runHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *runHeap) Push(x interface{}) { *h = append(*h, x.(*chunkRun)) }
func (h *runHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// mergeRuns performs a k-way merge of independently time-sorted chunk runs,
// preserving file order among equal timestamps within one run the way the
// chunk-index merge in spec.md §4.5 requires.
func mergeRuns(runs []*chunkRun) []connection.Message {
	h := make(runHeap, 0, len(runs))
	for i, r := range runs {
		if !r.done() {
			r.order = i
			h = append(h, r)
		}
	}
	heap.Init(&h)

	var out []connection.Message
	for h.Len() > 0 {
		r := h[0]
		out = append(out, r.head())
		r.pos++
		if r.done() {
			heap.Pop(&h)
		} else {
			heap.Fix(&h, 0)
		}
	}
	return out
}

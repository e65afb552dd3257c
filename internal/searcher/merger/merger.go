// Package merger selects the best-ranked hits from a stream of scored
// documents.
package merger

import (
	"container/heap"

	"github.com/Adithya-Monish-Kumar-K/geo-metadata-search/internal/searcher/ranker"
)

// TopK keeps the k best documents pushed into it, ranked by descending
// score with ties broken by ascending DocID. A non-positive k keeps
// everything.
type TopK struct {
	k int
	h scoredDocHeap
}

// NewTopK returns a collector for the k best documents.
func NewTopK(k int) *TopK {
	t := &TopK{k: k}
	if k > 0 {
		t.h = make(scoredDocHeap, 0, k+1)
	}
	return t
}

// Push offers doc to the collector.
func (t *TopK) Push(doc ranker.ScoredDoc) {
	if t.k <= 0 {
		t.h = append(t.h, doc)
		return
	}
	if t.h.Len() == t.k {
		if !ranker.Less(t.h[0], doc) {
			return
		}
		t.h[0] = doc
		heap.Fix(&t.h, 0)
		return
	}
	heap.Push(&t.h, doc)
}

// Len returns the number of documents currently kept.
func (t *TopK) Len() int {
	return t.h.Len()
}

// Results returns the kept documents best first and resets the collector.
func (t *TopK) Results() []ranker.ScoredDoc {
	if t.k <= 0 {
		out := []ranker.ScoredDoc(t.h)
		t.h = nil
		if len(out) == 0 {
			return []ranker.ScoredDoc{}
		}
		ranker.Sort(out)
		return out
	}
	out := make([]ranker.ScoredDoc, t.h.Len())
	for i := len(out) - 1; i >= 0; i-- {
		out[i] = heap.Pop(&t.h).(ranker.ScoredDoc)
	}
	return out
}

// scoredDocHeap is a min-heap: the worst kept document is at the root.
type scoredDocHeap []ranker.ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool { return ranker.Less(h[i], h[j]) }

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ranker.ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

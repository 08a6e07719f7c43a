package repo

import (
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

type historyQueueItem struct {
	hash   object.Hash
	commit *object.Commit
	when   time.Time
}

// historyMaxHeap orders commits newest first by committer time. Equal
// times fall back to the hash so the walk is deterministic.
type historyMaxHeap []historyQueueItem

func (h historyMaxHeap) Len() int { return len(h) }

func (h historyMaxHeap) Less(i, j int) bool {
	if h[i].when.Equal(h[j].when) {
		return h[i].hash < h[j].hash
	}
	return h[i].when.After(h[j].when)
}

func (h historyMaxHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
}

func (h *historyMaxHeap) Push(x any) {
	*h = append(*h, x.(historyQueueItem))
}

func (h *historyMaxHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

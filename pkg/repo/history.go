package repo

import (
	"container/heap"
	"errors"
	"fmt"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// Page sizes for paginated history.
const (
	FirstPageSize = 10
	PageSize      = 30
	// PageGap stands for the elided run of pages in PreviousPages.
	PageGap = -1
)

// HistoryPage returns how many commits page shows and how many to skip.
func HistoryPage(page int) (limit, skip int) {
	if page <= 0 {
		return FirstPageSize, 0
	}
	return PageSize, (page-1)*PageSize + FirstPageSize
}

// PreviousPages lists the page links shown before page. Past page 7 the
// middle is elided: 0, 1, 2, PageGap, then the three pages before page.
func PreviousPages(page int) []int {
	if page <= 0 {
		return nil
	}
	if page > 7 {
		return []int{0, 1, 2, PageGap, page - 3, page - 2, page - 1}
	}
	pages := make([]int, page)
	for i := range pages {
		pages[i] = i
	}
	return pages
}

// History lists the commits reachable from c, newest first by committer
// time, that changed path (every commit when path is empty). A commit
// changed path when the entry at path differs from the one in its first
// parent, or for a root commit when path exists. max <= 0 means no limit.
// Parents missing from the object store end that line of ancestry.
func (r *Repo) History(c Commit, p string, max, skip int) ([]Commit, error) {
	parts := splitPath(p)

	queue := &historyMaxHeap{{hash: c.Hash, commit: c.Commit, when: c.CommitTime()}}
	seen := map[object.Hash]struct{}{c.Hash: {}}

	var out []Commit
	for queue.Len() > 0 {
		item := heap.Pop(queue).(historyQueueItem)

		touched, err := r.touchesPath(item.commit, parts)
		if err != nil {
			return nil, fmt.Errorf("history of %s: %w", c.Hash.Short(), err)
		}
		if touched {
			if skip > 0 {
				skip--
			} else {
				out = append(out, Commit{Hash: item.hash, Commit: item.commit})
				if max > 0 && len(out) >= max {
					break
				}
			}
		}

		for _, parent := range item.commit.Parents {
			if _, ok := seen[parent]; ok {
				continue
			}
			seen[parent] = struct{}{}
			pc, err := r.Store.ReadCommit(parent)
			if err != nil {
				if errors.Is(err, object.ErrNotFound) {
					r.logger.Debug("history: dangling parent", "commit", item.hash, "parent", parent)
					continue
				}
				return nil, fmt.Errorf("history: read parent %s: %w", parent, err)
			}
			heap.Push(queue, historyQueueItem{hash: parent, commit: pc, when: pc.CommitTime()})
		}
	}
	return out, nil
}

func (r *Repo) touchesPath(c *object.Commit, parts []string) (bool, error) {
	if len(parts) == 0 {
		return true, nil
	}
	cur, inCur, err := r.entryAt(c.Tree, parts)
	if err != nil {
		return false, err
	}

	parentHash := c.FirstParent()
	if parentHash == "" {
		return inCur, nil
	}
	parent, err := r.Store.ReadCommit(parentHash)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return inCur, nil
		}
		return false, err
	}
	prev, inPrev, err := r.entryAt(parent.Tree, parts)
	if err != nil {
		return false, err
	}
	if inCur != inPrev {
		return true, nil
	}
	return inCur && (cur.Hash != prev.Hash || cur.Mode != prev.Mode), nil
}

// entryAt looks up a path below tree. Missing components and non-directory
// intermediates both report ok=false.
func (r *Repo) entryAt(tree object.Hash, parts []string) (object.TreeEntry, bool, error) {
	current := tree
	for i, part := range parts {
		t, err := r.Store.ReadTree(current)
		if err != nil {
			return object.TreeEntry{}, false, fmt.Errorf("read tree %s: %w", current, err)
		}
		entry, ok := t.Entry(part)
		if !ok {
			return object.TreeEntry{}, false, nil
		}
		if i == len(parts)-1 {
			return entry, true, nil
		}
		if !entry.IsDir() {
			return object.TreeEntry{}, false, nil
		}
		current = entry.Hash
	}
	return object.TreeEntry{}, false, nil
}

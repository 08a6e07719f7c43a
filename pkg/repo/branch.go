package repo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// RefInfo is a branch or tag with the time used to order it.
type RefInfo struct {
	Name string
	Hash object.Hash // the ref target, which may be an annotated tag
	Time time.Time
}

var defaultBranchCandidates = []string{"master", "trunk", "default", "gh-pages"}

// Branches lists refs/heads, most recently committed first. Branches whose
// commit is missing are listed with a zero time.
func (r *Repo) Branches() ([]RefInfo, error) {
	refs, err := r.ListRefs("refs/heads/")
	if err != nil {
		return nil, fmt.Errorf("list branches: %w", err)
	}
	out := make([]RefInfo, 0, len(refs))
	for name, h := range refs {
		info := RefInfo{Name: strings.TrimPrefix(name, "refs/heads/"), Hash: h}
		if c, err := r.Store.ReadCommit(h); err == nil {
			info.Time = c.CommitTime()
		} else if !errors.Is(err, object.ErrNotFound) {
			r.logger.Debug("branch commit unreadable", "branch", info.Name, "err", err)
		}
		out = append(out, info)
	}
	sortByRecency(out)
	return out, nil
}

// BranchNames returns the branch names in recency order.
func (r *Repo) BranchNames() ([]string, error) {
	branches, err := r.Branches()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(branches))
	for i, b := range branches {
		names[i] = b.Name
	}
	return names, nil
}

// DefaultBranch guesses the main branch: the first of master, trunk,
// default and gh-pages that exists, otherwise the most recently committed
// branch. ok is false for a repository without branches.
func (r *Repo) DefaultBranch() (name string, ok bool, err error) {
	refs, err := r.ListRefs("refs/heads/")
	if err != nil {
		return "", false, fmt.Errorf("default branch: %w", err)
	}
	for _, candidate := range defaultBranchCandidates {
		if _, exists := refs["refs/heads/"+candidate]; exists {
			return candidate, true, nil
		}
	}
	names, err := r.BranchNames()
	if err != nil {
		return "", false, fmt.Errorf("default branch: %w", err)
	}
	if len(names) == 0 {
		return "", false, nil
	}
	return names[0], true, nil
}

func sortByRecency(refs []RefInfo) {
	sort.Slice(refs, func(i, j int) bool {
		if !refs[i].Time.Equal(refs[j].Time) {
			return refs[i].Time.After(refs[j].Time)
		}
		return refs[i].Name < refs[j].Name
	})
}

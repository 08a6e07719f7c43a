package repo

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// Tags lists refs/tags, newest first. Annotated tags are dated by their
// tagger, lightweight tags by the commit they name.
func (r *Repo) Tags() ([]RefInfo, error) {
	refs, err := r.ListRefs("refs/tags/")
	if err != nil {
		return nil, fmt.Errorf("list tags: %w", err)
	}
	out := make([]RefInfo, 0, len(refs))
	for name, h := range refs {
		info := RefInfo{Name: strings.TrimPrefix(name, "refs/tags/"), Hash: h}
		t, err := r.tagTime(h)
		if err != nil {
			r.logger.Debug("tag target unreadable", "tag", info.Name, "err", err)
		} else {
			info.Time = t
		}
		out = append(out, info)
	}
	sortByRecency(out)
	return out, nil
}

// TagNames returns the tag names in recency order.
func (r *Repo) TagNames() ([]string, error) {
	tags, err := r.Tags()
	if err != nil {
		return nil, err
	}
	names := make([]string, len(tags))
	for i, t := range tags {
		names[i] = t.Name
	}
	return names, nil
}

func (r *Repo) tagTime(h object.Hash) (time.Time, error) {
	tag, err := r.Store.ReadTag(h)
	switch {
	case err == nil && tag.Tagger != nil:
		return tag.Tagger.When, nil
	case err != nil && !errors.Is(err, object.ErrTypeMismatch):
		return time.Time{}, err
	}

	target, targetType, err := r.Store.Peel(h)
	if err != nil {
		return time.Time{}, err
	}
	if targetType != object.TypeCommit {
		return time.Time{}, nil
	}
	c, err := r.Store.ReadCommit(target)
	if err != nil {
		return time.Time{}, err
	}
	return c.CommitTime(), nil
}

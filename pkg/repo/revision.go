package repo

import (
	"errors"
	"fmt"
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// Commit is a parsed commit together with its hash.
type Commit struct {
	Hash object.Hash
	*object.Commit
}

// GetCommit resolves rev to a commit. rev is tried as a branch name, a tag
// name (annotated tags are peeled), the literal "HEAD", and finally a full
// or abbreviated commit hash.
func (r *Repo) GetCommit(rev string) (Commit, error) {
	rev = strings.TrimSpace(rev)
	if rev == "" {
		return Commit{}, notFound("commit", rev, nil)
	}

	var candidates []string
	if validRefName(rev) {
		candidates = append(candidates, "refs/heads/"+rev, "refs/tags/"+rev)
	}
	if rev == "HEAD" {
		candidates = append(candidates, "HEAD")
	}
	for _, ref := range candidates {
		h, err := r.resolveRef(ref, 0)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return Commit{}, fmt.Errorf("get commit %s: %w", rev, err)
		}
		c, err := r.peelCommit(rev, h)
		if errors.Is(err, object.ErrTypeMismatch) {
			// A branch pointing at a blob does not hide a tag of the same name.
			continue
		}
		return c, err
	}

	if len(rev) >= object.MinPrefixLen && object.IsHexPrefix(rev) {
		h, err := r.Store.ResolvePrefix(rev)
		if err != nil {
			if errors.Is(err, object.ErrNotFound) || errors.Is(err, object.ErrAmbiguous) {
				return Commit{}, notFound("commit", rev, err)
			}
			return Commit{}, fmt.Errorf("get commit %s: %w", rev, err)
		}
		return r.peelCommit(rev, h)
	}
	return Commit{}, notFound("commit", rev, nil)
}

func (r *Repo) peelCommit(rev string, h object.Hash) (Commit, error) {
	target, objType, err := r.Store.Peel(h)
	if err != nil {
		if errors.Is(err, object.ErrNotFound) {
			return Commit{}, notFound("commit", rev, err)
		}
		return Commit{}, fmt.Errorf("get commit %s: %w", rev, err)
	}
	if objType != object.TypeCommit {
		return Commit{}, notFound("commit", rev, object.ErrTypeMismatch)
	}
	c, err := r.Store.ReadCommit(target)
	if err != nil {
		return Commit{}, fmt.Errorf("get commit %s: %w", rev, err)
	}
	return Commit{Hash: target, Commit: c}, nil
}

// ResolveRevPath splits "rev/and/path" into a revision and a path. Branch
// and tag names may contain slashes, so the longest leading run of
// components that names a commit wins and the remainder is the path.
func (r *Repo) ResolveRevPath(revpath string) (rev string, c Commit, path string, err error) {
	revpath = strings.Trim(revpath, "/")
	if revpath == "" {
		return "", Commit{}, "", notFound("commit", revpath, nil)
	}
	parts := strings.Split(revpath, "/")
	for i := len(parts); i >= 1; i-- {
		rev = strings.Join(parts[:i], "/")
		c, err = r.GetCommit(rev)
		if err == nil {
			return rev, c, strings.Join(parts[i:], "/"), nil
		}
		if !errors.Is(err, ErrNotFound) {
			return "", Commit{}, "", err
		}
	}
	return "", Commit{}, "", notFound("commit", revpath, nil)
}

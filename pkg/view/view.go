// Package view turns a repository, a revision and a path into the data
// each page of the browser shows. Every request starts with Resolve, which
// builds a Context step by step; the page functions then read from it.
package view

import (
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// Size limits shared by the blob, blame and README views.
const (
	MaxDisplaySize = 100 << 10
)

var (
	// ErrNotFile is returned by file views when the path is a directory or
	// a submodule.
	ErrNotFile = errors.New("not a file")
	// ErrBlameUnavailable is returned for binary files and files over
	// MaxDisplaySize.
	ErrBlameUnavailable = errors.New("blame unavailable for this file")
)

// Context is what a request resolved to.
type Context struct {
	Repo *repo.Repo
	// Rev is the revision as written in the URL, such as "release/2.0".
	Rev    string
	Commit repo.Commit
	Path   string
	// Node is the tree or file at Path.
	Node repo.Node
}

// Resolve splits revpath into a revision and a path and looks both up. An
// empty revpath means the default branch, or HEAD when there is none.
func Resolve(r *repo.Repo, revpath string) (*Context, error) {
	ctx := &Context{Repo: r}
	if err := ctx.resolveCommit(revpath); err != nil {
		return nil, err
	}
	if err := ctx.resolveNode(); err != nil {
		return nil, err
	}
	return ctx, nil
}

// ResolveRev is Resolve for a known revision and path, as used by the
// command line where the two arrive separately.
func ResolveRev(r *repo.Repo, rev, p string) (*Context, error) {
	ctx := &Context{Repo: r}
	if rev == "" {
		if err := ctx.resolveCommit(""); err != nil {
			return nil, err
		}
	} else {
		c, err := r.GetCommit(rev)
		if err != nil {
			return nil, err
		}
		ctx.Rev, ctx.Commit = rev, c
	}
	ctx.Path = p
	if err := ctx.resolveNode(); err != nil {
		return nil, err
	}
	return ctx, nil
}

func (ctx *Context) resolveCommit(revpath string) error {
	if revpath != "" {
		rev, c, p, err := ctx.Repo.ResolveRevPath(revpath)
		if err != nil {
			return err
		}
		ctx.Rev, ctx.Commit, ctx.Path = rev, c, p
		return nil
	}

	rev := "HEAD"
	name, ok, err := ctx.Repo.DefaultBranch()
	if err != nil {
		return fmt.Errorf("resolve default revision: %w", err)
	}
	if ok {
		rev = name
	}
	c, err := ctx.Repo.GetCommit(rev)
	if err != nil {
		return err
	}
	ctx.Rev, ctx.Commit = rev, c
	return nil
}

func (ctx *Context) resolveNode() error {
	node, err := ctx.Repo.BlobOrTree(ctx.Commit, ctx.Path)
	if err != nil {
		return err
	}
	ctx.Node = node
	ctx.Path = node.Path
	return nil
}

// Subpaths are the breadcrumbs for the context's path.
func (ctx *Context) Subpaths() []Subpath {
	return Subpaths(ctx.Path)
}

// Result is what a handler sends: either a template rendering or a raw
// response. It replaces aborting a view with an early response.
type Result interface {
	result()
}

// Rendered asks for Template to be executed with Data.
type Rendered struct {
	Template string
	Data     any
}

// RawResponse is sent as is. Body streams the content and may be nil.
type RawResponse struct {
	Status int
	Header http.Header
	Body   func(w io.Writer) error
}

func (Rendered) result()    {}
func (RawResponse) result() {}

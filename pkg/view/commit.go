package view

import (
	"io"
	"net/http"

	"github.com/odvcencio/gitbrowse/pkg/diff"
	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// CommitView is a commit with its diff against the first parent.
type CommitView struct {
	Commit  repo.Commit
	Summary diff.Summary
	Files   []diff.FileChange
}

// Commit diffs the context's commit.
func Commit(ctx *Context) (CommitView, error) {
	summary, files, err := diff.CommitChanges(ctx.Repo.Store, ctx.Commit.Commit)
	if err != nil {
		return CommitView{}, err
	}
	return CommitView{Commit: ctx.Commit, Summary: summary, Files: files}, nil
}

// RawPatch renders the context's commit as an email style patch.
func RawPatch(ctx *Context) (Result, error) {
	v, err := Commit(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", "text/plain; charset=utf-8")
	return RawResponse{
		Status: http.StatusOK,
		Header: header,
		Body: func(w io.Writer) error {
			return diff.WritePatch(w, v.Commit.Hash, v.Commit.Commit, v.Files)
		},
	}, nil
}

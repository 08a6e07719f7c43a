package view

import (
	"io"
	"mime"
	"net/http"

	"github.com/odvcencio/gitbrowse/pkg/archive"
)

// Archive streams the context's commit tree as a download. format is one
// archive.ParseFormat accepts.
func Archive(ctx *Context, format string) (Result, error) {
	f, err := archive.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	filename := archive.Filename(ctx.Repo.Name, ctx.Rev, f)
	header := http.Header{}
	header.Set("Content-Type", f.ContentType())
	header.Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))

	opts := archive.Options{MTime: ctx.Commit.CommitTime(), Format: f}
	return RawResponse{
		Status: http.StatusOK,
		Header: header,
		Body: func(w io.Writer) error {
			for chunk, err := range archive.Stream(ctx.Repo.Store, ctx.Commit.Tree, opts) {
				if err != nil {
					return err
				}
				if _, err := w.Write(chunk); err != nil {
					return err
				}
			}
			return nil
		},
	}, nil
}

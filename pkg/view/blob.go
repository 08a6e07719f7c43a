package view

import (
	"io"
	"mime"
	"net/http"
	"path"
	"strconv"
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/diff"
	"github.com/odvcencio/gitbrowse/pkg/markup"
	"github.com/odvcencio/gitbrowse/pkg/object"
	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// BlobView is a single file. At most one of Rendered (markup) and
// Highlighted (source) is set, and neither for binary, image or oversized
// files.
type BlobView struct {
	Filename string
	Size     int
	IsBinary bool
	IsImage  bool
	TooLarge bool
	// IsSymlink files hold the link target as content.
	IsSymlink   bool
	Lines       int
	Rendered    string
	Highlighted string
	// Listing is the file's directory, for the sidebar.
	Listing repo.Listing
}

// Blob shows the context's file. When render is set, markup files are
// rendered instead of listed as source. hl may be nil for markup.Plain.
func Blob(ctx *Context, render bool, hl markup.Highlighter) (BlobView, error) {
	data, err := fileContent(ctx)
	if err != nil {
		return BlobView{}, err
	}
	listing, err := ctx.Repo.ListDir(ctx.Commit, ctx.Path)
	if err != nil {
		return BlobView{}, err
	}
	if hl == nil {
		hl = markup.Plain
	}

	name := path.Base(ctx.Path)
	v := BlobView{
		Filename:  name,
		Size:      len(data),
		IsBinary:  diff.IsBinary(data),
		IsImage:   isImage(name),
		TooLarge:  len(data) > MaxDisplaySize,
		IsSymlink: ctx.Node.Entry.Kind() == object.KindSymlink,
		Listing:   listing,
	}
	if v.IsBinary || v.TooLarge {
		return v, nil
	}
	v.Lines = len(diff.SplitLines(data))
	if render {
		if out, ok := markup.Render(name, data); ok {
			v.Rendered = out
			return v, nil
		}
	}
	v.Highlighted = hl(string(data), name)
	return v, nil
}

// RawBlob serves the file as is. Text is sent as UTF-8 plain text so it is
// never interpreted by the browser; binary content gets a type from the
// file extension.
func RawBlob(ctx *Context) (Result, error) {
	data, err := fileContent(ctx)
	if err != nil {
		return nil, err
	}
	header := http.Header{}
	header.Set("Content-Type", rawContentType(path.Base(ctx.Path), data))
	header.Set("Content-Length", strconv.Itoa(len(data)))
	return RawResponse{
		Status: http.StatusOK,
		Header: header,
		Body: func(w io.Writer) error {
			_, err := w.Write(data)
			return err
		},
	}, nil
}

func fileContent(ctx *Context) ([]byte, error) {
	if ctx.Node.IsTree() || ctx.Node.Entry.Kind() == object.KindGitlink || ctx.Path == "" {
		return nil, ErrNotFile
	}
	return ctx.Repo.Store.ReadBlob(ctx.Node.Entry.Hash)
}

func rawContentType(name string, data []byte) string {
	if !diff.IsBinary(data) {
		return "text/plain; charset=utf-8"
	}
	if t := mime.TypeByExtension(path.Ext(name)); t != "" {
		return t
	}
	return "application/octet-stream"
}

func isImage(name string) bool {
	return strings.HasPrefix(mime.TypeByExtension(strings.ToLower(path.Ext(name))), "image/")
}

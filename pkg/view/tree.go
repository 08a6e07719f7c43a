package view

import (
	"html"
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/diff"
	"github.com/odvcencio/gitbrowse/pkg/markup"
	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// TreeView is a directory listing with its README and the first page of
// its history.
type TreeView struct {
	Listing repo.Listing
	Readme  *Readme
	History HistoryView
}

// Readme is a README file rendered to HTML.
type Readme struct {
	Filename string
	HTML     string
}

// Tree lists the context's directory (the parent directory for a file).
func Tree(ctx *Context) (TreeView, error) {
	listing, err := ctx.Repo.ListDir(ctx.Commit, ctx.Path)
	if err != nil {
		return TreeView{}, err
	}
	history, err := History(ctx, 0)
	if err != nil {
		return TreeView{}, err
	}
	readme, err := findReadme(ctx, listing.Files)
	if err != nil {
		return TreeView{}, err
	}
	return TreeView{Listing: listing, Readme: readme, History: history}, nil
}

// findReadme picks the first file named README*, preferring one that
// renders as markup. Binary and oversized files are ignored.
func findReadme(ctx *Context, files []repo.DirEntry) (*Readme, error) {
	var pick *repo.DirEntry
	for i, f := range files {
		if !strings.HasPrefix(strings.ToLower(f.Name), "readme") {
			continue
		}
		if markup.CanRender(f.Name) {
			pick = &files[i]
			break
		}
		if pick == nil {
			pick = &files[i]
		}
	}
	if pick == nil {
		return nil, nil
	}

	data, err := ctx.Repo.Store.ReadBlob(pick.Hash)
	if err != nil {
		return nil, err
	}
	if len(data) > MaxDisplaySize || diff.IsBinary(data) {
		return nil, nil
	}
	if out, ok := markup.Render(pick.Name, data); ok {
		return &Readme{Filename: pick.Name, HTML: out}, nil
	}
	return &Readme{Filename: pick.Name, HTML: "<pre>" + html.EscapeString(string(data)) + "</pre>"}, nil
}

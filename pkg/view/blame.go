package view

import (
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/diff"
	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// BlameView annotates every line of a file with its commit.
type BlameView struct {
	Filename string
	Rows     []BlameRow
}

// BlameRow is a collapsed blame row with the line's text.
type BlameRow struct {
	repo.BlameRow
	Text string
}

// Blame attributes the context's file line by line.
func Blame(ctx *Context) (BlameView, error) {
	data, err := fileContent(ctx)
	if err != nil {
		return BlameView{}, err
	}
	if len(data) > MaxDisplaySize || diff.IsBinary(data) {
		return BlameView{}, ErrBlameUnavailable
	}
	lines, err := ctx.Repo.Blame(ctx.Commit, ctx.Path)
	if err != nil {
		return BlameView{}, err
	}
	text := diff.SplitLines(data)
	rows := repo.CollapseBlame(lines)
	v := BlameView{Filename: ctx.Path, Rows: make([]BlameRow, len(rows))}
	for i, row := range rows {
		v.Rows[i] = BlameRow{BlameRow: row, Text: strings.TrimSuffix(text[i], "\n")}
	}
	return v, nil
}

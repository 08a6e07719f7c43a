package view

import "github.com/odvcencio/gitbrowse/pkg/repo"

// HistoryView is one page of commits touching the context's path.
type HistoryView struct {
	Path    string
	Page    int
	Commits []repo.Commit
	// More is set when a later page exists.
	More bool
	// PreviousPages links back; repo.PageGap marks an elided run.
	PreviousPages []int
}

// History loads page of the context's history. Negative pages are page 0.
func History(ctx *Context, page int) (HistoryView, error) {
	if page < 0 {
		page = 0
	}
	limit, skip := repo.HistoryPage(page)
	commits, err := ctx.Repo.History(ctx.Commit, ctx.Path, limit+1, skip)
	if err != nil {
		return HistoryView{}, err
	}
	v := HistoryView{Path: ctx.Path, Page: page, PreviousPages: repo.PreviousPages(page)}
	if len(commits) > limit {
		v.More = true
		commits = commits[:limit]
	}
	v.Commits = commits
	return v, nil
}

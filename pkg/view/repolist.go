package view

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// Orders accepted by RepoList.
const (
	OrderName        = "name"
	OrderLastUpdated = "last_updated"
)

// RepoSummary is one row of the repository list.
type RepoSummary struct {
	Name        string
	Namespace   string
	FullName    string
	Description string
	// LastUpdated is zero for repositories without commits.
	LastUpdated time.Time
}

// RepoList summarises repos whose "namespace/name" contains query (case
// insensitively), sorted by name or, for OrderLastUpdated, newest first.
func RepoList(repos []*repo.Repo, order, query string) ([]RepoSummary, error) {
	query = strings.ToLower(strings.TrimSpace(query))
	out := make([]RepoSummary, 0, len(repos))
	for _, r := range repos {
		if query != "" && !strings.Contains(strings.ToLower(r.FullName()), query) {
			continue
		}
		when, _, err := r.LastUpdatedAt()
		if err != nil {
			return nil, fmt.Errorf("repository list: %s: %w", r.FullName(), err)
		}
		out = append(out, RepoSummary{
			Name:        r.Name,
			Namespace:   r.Namespace,
			FullName:    r.FullName(),
			Description: r.Description(),
			LastUpdated: when,
		})
	}

	byName := func(i, j int) bool {
		return strings.ToLower(out[i].FullName) < strings.ToLower(out[j].FullName)
	}
	if order == OrderLastUpdated {
		sort.SliceStable(out, func(i, j int) bool {
			if !out[i].LastUpdated.Equal(out[j].LastUpdated) {
				return out[i].LastUpdated.After(out[j].LastUpdated)
			}
			return byName(i, j)
		})
	} else {
		sort.SliceStable(out, byName)
	}
	return out, nil
}

package repo

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Discover opens every repository directly below root. Directories that are
// not repositories are skipped; repositories that fail to open are logged
// and skipped. opts.Name is ignored.
func Discover(root string, opts Options) ([]*Repo, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, fmt.Errorf("discover repositories in %s: %w", root, err)
	}
	logger := opts.Logger
	opts.Name = ""

	var repos []*Repo
	for _, e := range entries {
		if !e.IsDir() || strings.HasPrefix(e.Name(), ".") {
			continue
		}
		path := filepath.Join(root, e.Name())
		if _, err := findGitDir(path); err != nil {
			continue
		}
		r, err := Open(path, opts)
		if err != nil {
			if logger != nil {
				logger.Warn("skip repository", "path", path, "err", err)
			}
			continue
		}
		repos = append(repos, r)
	}
	sort.Slice(repos, func(i, j int) bool { return repos[i].Name < repos[j].Name })
	return repos, nil
}

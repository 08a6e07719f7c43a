package repo

import (
	"fmt"
	"strings"

	"gopkg.in/ini.v1"
)

// Submodule is one [submodule "name"] section of .gitmodules.
type Submodule struct {
	Name string
	Path string
	URL  string
}

// ParseGitmodules parses a .gitmodules file and returns submodules keyed by
// path. Sections without a path are ignored.
func ParseGitmodules(data []byte) (map[string]Submodule, error) {
	file, err := ini.LoadSources(ini.LoadOptions{AllowBooleanKeys: true}, data)
	if err != nil {
		return nil, fmt.Errorf("parse .gitmodules: %w", err)
	}

	out := make(map[string]Submodule)
	for _, section := range file.Sections() {
		name, ok := strings.CutPrefix(section.Name(), "submodule")
		if !ok {
			continue
		}
		sm := Submodule{
			Name: strings.Trim(strings.TrimSpace(name), `"`),
			Path: strings.Trim(strings.TrimSpace(section.Key("path").String()), "/"),
			URL:  strings.TrimSpace(section.Key("url").String()),
		}
		if sm.Path == "" {
			continue
		}
		out[sm.Path] = sm
	}
	return out, nil
}

// submodules reads .gitmodules from the commit's root tree. A missing or
// unparsable file yields no submodules.
func (r *Repo) submodules(c Commit) map[string]Submodule {
	tree, err := r.Store.ReadTree(c.Tree)
	if err != nil {
		return nil
	}
	entry, ok := tree.Entry(".gitmodules")
	if !ok || entry.IsDir() {
		return nil
	}
	data, err := r.Store.ReadBlob(entry.Hash)
	if err != nil {
		return nil
	}
	mods, err := ParseGitmodules(data)
	if err != nil {
		r.logger.Debug("ignore unparsable .gitmodules", "commit", c.Hash, "err", err)
		return nil
	}
	return mods
}

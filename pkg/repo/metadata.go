package repo

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// gitDefaultDescription is the placeholder git init writes.
const gitDefaultDescription = "Unnamed repository;"

// Metadata is the descriptive information shown in repository lists.
type Metadata struct {
	Description string
	Owner       string
	CloneURLs   []string
}

type lastUpdated struct {
	when time.Time
	ok   bool
}

// LastUpdatedAt returns the newest commit time among all refs. ok is false
// when no ref names a readable commit. The result is cached until the set
// of refs changes.
func (r *Repo) LastUpdatedAt() (when time.Time, ok bool, err error) {
	refs, err := r.ListRefs("refs/")
	if err != nil {
		return time.Time{}, false, fmt.Errorf("last updated: %w", err)
	}
	v, err := r.lastUpdated.GetOrRecompute(refsFingerprint(refs), func() (lastUpdated, error) {
		var newest lastUpdated
		for _, h := range refs {
			target, _, err := r.Store.Peel(h)
			if err != nil {
				continue
			}
			c, err := r.Store.ReadCommit(target)
			if err != nil {
				continue
			}
			if t := c.CommitTime(); !newest.ok || t.After(newest.when) {
				newest = lastUpdated{when: t, ok: true}
			}
		}
		return newest, nil
	})
	if err != nil {
		return time.Time{}, false, err
	}
	return v.when, v.ok, nil
}

// Metadata returns the description, owner and clone URLs. The description
// comes from the description file unless it still holds git's placeholder,
// then from gitweb.description. The result is cached until the description
// or config file changes.
func (r *Repo) Metadata() (Metadata, error) {
	descPath := filepath.Join(r.Path, "description")
	configPath := filepath.Join(r.Path, "config")
	validator := fileStamp(descPath) + "|" + fileStamp(configPath)

	return r.metadata.GetOrRecompute(validator, func() (Metadata, error) {
		cfg, err := ReadConfig(r.Path)
		if err != nil {
			return Metadata{}, err
		}
		md := Metadata{Owner: cfg.Owner, CloneURLs: cfg.CloneURLs}

		data, err := os.ReadFile(descPath)
		switch {
		case err == nil:
			desc := strings.TrimSpace(string(data))
			if !strings.HasPrefix(desc, gitDefaultDescription) {
				md.Description = desc
			}
		case !errors.Is(err, fs.ErrNotExist):
			return Metadata{}, fmt.Errorf("read description: %w", err)
		}
		if md.Description == "" {
			md.Description = cfg.Description
		}
		return md, nil
	})
}

// Description is a shortcut for Metadata().Description that reports an
// unreadable repository as having no description.
func (r *Repo) Description() string {
	md, err := r.Metadata()
	if err != nil {
		r.logger.Warn("read repository metadata", "err", err)
		return ""
	}
	return md.Description
}

func fileStamp(path string) string {
	info, err := os.Stat(path)
	if err != nil {
		return "-"
	}
	return fmt.Sprintf("%d:%d", info.ModTime().UnixNano(), info.Size())
}

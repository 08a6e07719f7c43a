package repo

import (
	"fmt"
	"path/filepath"
	"strings"

	"gopkg.in/ini.v1"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

// Config holds the settings gitbrowse reads from a repository's config
// file. Git's config syntax is a superset of INI: section and key names are
// case-insensitive, keys may repeat and bare keys mean true.
type Config struct {
	ObjectFormat object.HashAlgo
	Bare         bool
	Description  string   // gitweb.description
	Owner        string   // gitweb.owner
	CloneURLs    []string // gitweb.url, may repeat
}

var gitConfigLoadOptions = ini.LoadOptions{
	Loose:            true,
	Insensitive:      true,
	AllowBooleanKeys: true,
	AllowShadows:     true,
}

// ReadConfig parses gitDir/config. A missing file yields the defaults.
func ReadConfig(gitDir string) (*Config, error) {
	file, err := ini.LoadSources(gitConfigLoadOptions, filepath.Join(gitDir, "config"))
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	algo, err := object.ParseHashAlgo(file.Section("extensions").Key("objectformat").String())
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	gitweb := file.Section("gitweb")
	cfg := &Config{
		ObjectFormat: algo,
		Bare:         file.Section("core").Key("bare").MustBool(false),
		Description:  strings.TrimSpace(gitweb.Key("description").String()),
		Owner:        strings.TrimSpace(gitweb.Key("owner").String()),
	}
	if gitweb.HasKey("url") {
		for _, u := range gitweb.Key("url").ValueWithShadows() {
			if u = strings.TrimSpace(u); u != "" {
				cfg.CloneURLs = append(cfg.CloneURLs, u)
			}
		}
	}
	return cfg, nil
}

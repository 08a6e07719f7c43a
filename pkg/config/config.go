// Package config loads the gitbrowse server configuration from a TOML file.
package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/odvcencio/gitbrowse/pkg/repo"
)

// Defaults for fields the file leaves out.
const (
	DefaultListen    = "127.0.0.1:8080"
	DefaultSiteName  = "gitbrowse"
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// Config is the server configuration.
//
//	listen = "0.0.0.0:8080"
//	site_name = "example.com git"
//
//	[[repo]]
//	path = "/srv/git/tools.git"
//	namespace = "ops"
//
//	[[root]]
//	path = "/srv/git/public"
type Config struct {
	Listen          string      `toml:"listen"`
	SiteName        string      `toml:"site_name"`
	LogLevel        string      `toml:"log_level"`
	LogFormat       string      `toml:"log_format"`
	ObjectCacheSize int         `toml:"object_cache_size"`
	Repos           []RepoEntry `toml:"repo"`
	// Roots are directories whose immediate subdirectories are repositories.
	Roots []RepoEntry `toml:"root"`
}

// RepoEntry names a repository or a directory of repositories.
type RepoEntry struct {
	Path      string `toml:"path"`
	Namespace string `toml:"namespace"`
	Name      string `toml:"name"`
}

// Default returns a configuration with every default filled in.
func Default() *Config {
	return &Config{
		Listen:    DefaultListen,
		SiteName:  DefaultSiteName,
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
	}
}

// Load reads path over the defaults. Unknown keys are an error so typos do
// not pass silently. Relative repository paths are taken relative to the
// file's directory.
func Load(path string) (*Config, error) {
	cfg := Default()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("load config %s: unknown keys: %s", path, strings.Join(keys, ", "))
	}

	base := filepath.Dir(path)
	for _, entries := range [][]RepoEntry{cfg.Repos, cfg.Roots} {
		for i := range entries {
			if entries[i].Path != "" && !filepath.IsAbs(entries[i].Path) {
				entries[i].Path = filepath.Join(base, entries[i].Path)
			}
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks field values.
func (c *Config) Validate() error {
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.LogFormat {
	case "text", "json":
	default:
		return fmt.Errorf("log_format must be text or json, got %q", c.LogFormat)
	}
	for _, entries := range [][]RepoEntry{c.Repos, c.Roots} {
		for _, e := range entries {
			if e.Path == "" {
				return errors.New("repository entry without path")
			}
		}
	}
	return nil
}

// ParseLevel maps a level name to a slog level.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// NewLogger builds the logger the configuration asks for.
func (c *Config) NewLogger(w io.Writer) *slog.Logger {
	level, err := ParseLevel(c.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if c.LogFormat == "json" {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// OpenRepos opens every configured repository and scans every root. A
// listed repository that cannot be opened is an error; roots skip what
// they cannot open. Duplicate full names are an error.
func (c *Config) OpenRepos(logger *slog.Logger) ([]*repo.Repo, error) {
	var repos []*repo.Repo
	closeAll := func() {
		for _, r := range repos {
			r.Close()
		}
	}

	for _, e := range c.Repos {
		r, err := repo.Open(e.Path, repo.Options{
			Name:      e.Name,
			Namespace: e.Namespace,
			CacheSize: c.ObjectCacheSize,
			Logger:    logger,
		})
		if err != nil {
			closeAll()
			return nil, err
		}
		repos = append(repos, r)
	}
	for _, root := range c.Roots {
		found, err := repo.Discover(root.Path, repo.Options{
			Namespace: root.Namespace,
			CacheSize: c.ObjectCacheSize,
			Logger:    logger,
		})
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				logger.Warn("repository root does not exist", "path", root.Path)
				continue
			}
			closeAll()
			return nil, err
		}
		repos = append(repos, found...)
	}

	seen := make(map[string]string)
	for _, r := range repos {
		if prev, dup := seen[r.FullName()]; dup {
			closeAll()
			return nil, fmt.Errorf("repository name %q used by both %s and %s", r.FullName(), prev, r.Path)
		}
		seen[r.FullName()] = r.Path
	}
	return repos, nil
}

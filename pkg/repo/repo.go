package repo

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

var errNotRepository = errors.New("not a git repository")

// Repo is an opened Git repository. Refs and metadata are re-read from disk
// so pushes become visible without reopening; parsed objects are cached in
// the Store.
type Repo struct {
	Path      string // Git directory (holds HEAD, refs/, objects/)
	Name      string
	Namespace string
	Store     *object.Store

	logger      *slog.Logger
	lastUpdated validatedCache[lastUpdated]
	metadata    validatedCache[Metadata]
}

// Options configure Open.
type Options struct {
	// Name overrides the name derived from the directory.
	Name      string
	Namespace string
	// CacheSize bounds the parsed object cache; <= 0 uses the default.
	CacheSize int
	Logger    *slog.Logger
}

// Open opens the repository at path, which may be a working tree with a
// .git directory, a working tree whose .git file points elsewhere, or a
// bare repository.
func Open(path string, opts Options) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}
	gitDir, err := findGitDir(abs)
	if err != nil {
		return nil, notFound("repo", path, err)
	}
	cfg, err := ReadConfig(gitDir)
	if err != nil {
		return nil, fmt.Errorf("open repository %s: %w", path, err)
	}

	name := opts.Name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(abs), ".git")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Repo{
		Path:      gitDir,
		Name:      name,
		Namespace: opts.Namespace,
		Store:     object.NewStore(gitDir, cfg.ObjectFormat, opts.CacheSize),
		logger:    logger.With("repo", fullName(opts.Namespace, name)),
	}, nil
}

// Close releases the object store's open files.
func (r *Repo) Close() error {
	return r.Store.Close()
}

// FullName is "namespace/name", or just the name without a namespace.
func (r *Repo) FullName() string {
	return fullName(r.Namespace, r.Name)
}

func fullName(namespace, name string) string {
	if namespace == "" {
		return name
	}
	return namespace + "/" + name
}

func findGitDir(path string) (string, error) {
	dotGit := filepath.Join(path, ".git")
	info, err := os.Stat(dotGit)
	if err == nil && info.IsDir() && isGitDir(dotGit) {
		return dotGit, nil
	}
	if err == nil && !info.IsDir() {
		data, err := os.ReadFile(dotGit)
		if err != nil {
			return "", err
		}
		target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "gitdir:")
		if !ok {
			return "", fmt.Errorf("%s: %w", dotGit, errNotRepository)
		}
		target = strings.TrimSpace(target)
		if !filepath.IsAbs(target) {
			target = filepath.Join(path, target)
		}
		if !isGitDir(target) {
			return "", fmt.Errorf("%s: %w", target, errNotRepository)
		}
		return target, nil
	}
	if isGitDir(path) {
		return path, nil
	}
	return "", fmt.Errorf("%s: %w", path, errNotRepository)
}

func isGitDir(dir string) bool {
	if _, err := os.Stat(filepath.Join(dir, "HEAD")); err != nil {
		return false
	}
	info, err := os.Stat(filepath.Join(dir, "objects"))
	return err == nil && info.IsDir()
}

package repo

import (
	"bufio"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"syscall"

	"github.com/odvcencio/gitbrowse/pkg/object"
)

const maxSymrefDepth = 5

// ListRefs lists references whose full name starts with prefix, for
// example "refs/heads/". Loose refs take precedence over packed-refs.
func (r *Repo) ListRefs(prefix string) (map[string]object.Hash, error) {
	refs, err := r.packedRefs()
	if err != nil {
		return nil, err
	}
	for name := range refs {
		if !strings.HasPrefix(name, prefix) {
			delete(refs, name)
		}
	}

	root := filepath.Join(r.Path, "refs")
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(r.Path, path)
		if err != nil {
			return err
		}
		name := filepath.ToSlash(rel)
		if !strings.HasPrefix(name, prefix) || strings.HasSuffix(name, ".lock") {
			return nil
		}
		h, err := r.readLooseRef(name, 0)
		if err != nil {
			// A ref being rewritten or pointing nowhere is skipped.
			r.logger.Debug("skip unreadable ref", "ref", name, "err", err)
			return nil
		}
		refs[name] = h
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list refs: %w", err)
	}
	return refs, nil
}

// packedRefs parses the packed-refs file. Peeled "^hash" lines are skipped
// since callers peel through the object store.
func (r *Repo) packedRefs() (map[string]object.Hash, error) {
	refs := make(map[string]object.Hash)
	f, err := os.Open(filepath.Join(r.Path, "packed-refs"))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return refs, nil
		}
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' || line[0] == '^' {
			continue
		}
		hash, name, ok := strings.Cut(line, " ")
		if !ok || !r.Store.Algo().Valid(object.Hash(hash)) {
			continue
		}
		refs[strings.TrimSpace(name)] = object.Hash(hash)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read packed-refs: %w", err)
	}
	return refs, nil
}

// ResolveRef resolves a full ref name such as "refs/heads/main" or "HEAD"
// to the hash it points at, following symbolic refs.
func (r *Repo) ResolveRef(name string) (object.Hash, error) {
	if name != "HEAD" && !validRefName(name) {
		return "", notFound("ref", name, nil)
	}
	return r.resolveRef(name, 0)
}

func (r *Repo) resolveRef(name string, depth int) (object.Hash, error) {
	h, err := r.readLooseRef(name, depth)
	if err == nil {
		return h, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return "", err
	}
	packed, err := r.packedRefs()
	if err != nil {
		return "", err
	}
	if h, ok := packed[name]; ok {
		return h, nil
	}
	return "", notFound("ref", name, nil)
}

func (r *Repo) readLooseRef(name string, depth int) (object.Hash, error) {
	if depth > maxSymrefDepth {
		return "", fmt.Errorf("resolve ref %s: symbolic ref chain too deep", name)
	}
	path := filepath.Join(r.Path, filepath.FromSlash(name))
	data, err := os.ReadFile(path)
	if err != nil {
		// "refs/heads/release" is a directory when "release/2.0" exists, and
		// "refs/heads/main/docs" runs through the file "refs/heads/main".
		if errors.Is(err, syscall.ENOTDIR) {
			return "", fmt.Errorf("ref %s: %w", name, fs.ErrNotExist)
		}
		if info, statErr := os.Stat(path); statErr == nil && info.IsDir() {
			return "", fmt.Errorf("ref %s: %w", name, fs.ErrNotExist)
		}
		return "", err
	}
	content := strings.TrimSpace(string(data))
	if target, ok := strings.CutPrefix(content, "ref:"); ok {
		return r.resolveRef(strings.TrimSpace(target), depth+1)
	}
	if !r.Store.Algo().Valid(object.Hash(content)) {
		return "", fmt.Errorf("resolve ref %s: %w: invalid hash %q", name, object.ErrMalformed, content)
	}
	return object.Hash(content), nil
}

// Head returns the symbolic target of HEAD ("refs/heads/main"), or "" when
// HEAD is detached.
func (r *Repo) Head() (string, error) {
	data, err := os.ReadFile(filepath.Join(r.Path, "HEAD"))
	if err != nil {
		return "", fmt.Errorf("read HEAD: %w", err)
	}
	target, ok := strings.CutPrefix(strings.TrimSpace(string(data)), "ref:")
	if !ok {
		return "", nil
	}
	return strings.TrimSpace(target), nil
}

// refsFingerprint renders refs as sorted "name hash" lines; it changes
// whenever any ref is created, moved or deleted.
func refsFingerprint(refs map[string]object.Hash) string {
	names := make([]string, 0, len(refs))
	for name := range refs {
		names = append(names, name)
	}
	sort.Strings(names)
	var b strings.Builder
	for _, name := range names {
		b.WriteString(name)
		b.WriteByte(' ')
		b.WriteString(string(refs[name]))
		b.WriteByte('\n')
	}
	return b.String()
}

// validRefName rejects names that could escape the refs directory or that
// git itself refuses.
func validRefName(name string) bool {
	if name == "" || strings.HasPrefix(name, "/") || strings.HasSuffix(name, "/") {
		return false
	}
	if strings.ContainsAny(name, "\x00\\ ~^:?*[") || strings.Contains(name, "..") || strings.Contains(name, "@{") {
		return false
	}
	for _, part := range strings.Split(name, "/") {
		if part == "" || strings.HasPrefix(part, ".") || strings.HasSuffix(part, ".lock") {
			return false
		}
	}
	return true
}

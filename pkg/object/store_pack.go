package object

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// findPacked locates h in the open packs. On a miss the pack directory is
// rescanned when its mtime changed since the last scan, so packs written
// by a later push become visible without reopening the store.
func (s *Store) findPacked(h Hash) (*packFile, PackIndexEntry, bool) {
	for attempt := 0; attempt < 2; attempt++ {
		packs, err := s.packList(attempt > 0)
		if err != nil {
			return nil, PackIndexEntry{}, false
		}
		for _, p := range packs {
			if e, ok := p.idx.Find(h); ok {
				return p, e, true
			}
		}
	}
	return nil, PackIndexEntry{}, false
}

func (s *Store) packDir() string {
	return filepath.Join(s.root, "objects", "pack")
}

// packList returns the open packs. With rescan set the directory listing
// is reloaded if its mtime no longer matches the value seen at load time.
func (s *Store) packList(rescan bool) ([]*packFile, error) {
	s.packsMu.RLock()
	if s.packsLoaded && !rescan {
		packs := s.packs
		s.packsMu.RUnlock()
		return packs, nil
	}
	s.packsMu.RUnlock()

	var modTime time.Time
	info, err := os.Stat(s.packDir())
	if err == nil {
		modTime = info.ModTime()
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("stat pack dir: %w", err)
	}

	s.packsMu.Lock()
	defer s.packsMu.Unlock()
	if s.packsLoaded && s.packsModTime.Equal(modTime) {
		return s.packs, nil
	}

	idxPaths, err := s.listPackIndexPaths()
	if err != nil {
		return nil, err
	}
	existing := make(map[string]*packFile, len(s.packs))
	for _, p := range s.packs {
		existing[p.name] = p
	}

	packs := make([]*packFile, 0, len(idxPaths))
	for _, idxPath := range idxPaths {
		name := filepath.Base(packPathForIndex(idxPath))
		if p, ok := existing[name]; ok {
			packs = append(packs, p)
			delete(existing, name)
			continue
		}
		p, err := openPackFile(idxPath, s.algo)
		if err != nil {
			// A pack being written has its .idx renamed into place last;
			// anything unreadable is skipped until the next scan.
			continue
		}
		packs = append(packs, p)
	}
	// Packs removed by gc may still be in use by concurrent readers.
	for _, p := range existing {
		s.retired = append(s.retired, p)
	}

	s.packs = packs
	s.packsModTime = modTime
	s.packsLoaded = true
	return packs, nil
}

func (s *Store) listPackIndexPaths() ([]string, error) {
	entries, err := os.ReadDir(s.packDir())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read pack dir: %w", err)
	}

	idxPaths := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".idx") {
			continue
		}
		idxPaths = append(idxPaths, filepath.Join(s.packDir(), entry.Name()))
	}
	sort.Strings(idxPaths)
	return idxPaths, nil
}

// ResolvePrefix expands an abbreviated object name. It fails with
// ErrNotFound when nothing matches and ErrAmbiguous when several objects do.
func (s *Store) ResolvePrefix(prefix string) (Hash, error) {
	prefix = strings.ToLower(strings.TrimSpace(prefix))
	if len(prefix) < MinPrefixLen || len(prefix) > s.algo.HexSize() || !isHex(prefix) {
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrNotFound)
	}
	if len(prefix) == s.algo.HexSize() {
		if s.Has(Hash(prefix)) {
			return Hash(prefix), nil
		}
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrNotFound)
	}

	matches := make(map[Hash]struct{})
	loose, err := s.looseWithPrefix(prefix)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", prefix, err)
	}
	for _, h := range loose {
		matches[h] = struct{}{}
	}

	packs, err := s.packList(true)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", prefix, err)
	}
	for _, p := range packs {
		for _, h := range p.idx.FindPrefix(prefix, 2) {
			matches[h] = struct{}{}
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("resolve %q: %w", prefix, ErrNotFound)
	case 1:
		for h := range matches {
			return h, nil
		}
	}
	return "", fmt.Errorf("resolve %q: %w (%d candidates)", prefix, ErrAmbiguous, len(matches))
}

func (s *Store) looseWithPrefix(prefix string) ([]Hash, error) {
	dir := filepath.Join(s.root, "objects", prefix[:2])
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read objects fanout %s: %w", prefix[:2], err)
	}

	rest := prefix[2:]
	var out []Hash
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || len(name) != s.algo.HexSize()-2 || !strings.HasPrefix(name, rest) {
			continue
		}
		out = append(out, Hash(prefix[:2]+name))
	}
	return out, nil
}

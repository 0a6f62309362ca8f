package keywords

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// Store is the durable category → keywords mapping. Every mutation is written
// to disk before it becomes visible in memory, so the two never diverge.
type Store struct {
	mu     sync.RWMutex
	path   string
	data   domain.Keywords
	logger logpkg.Logger
}

// writeFileFn is the persistence seam; tests swap it to simulate IO failures.
var writeFileFn = writeAtomic

// Open loads the keyword file at path. A missing or unparsable file yields the
// default store ({"explicit": [], "moderate": []}); other read errors are returned.
func Open(path string, logger logpkg.Logger) (*Store, error) {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	s := &Store{path: path, logger: logger}

	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		logger.Info(map[string]any{"path": path}, "keywords_file_absent")
		s.data = domain.DefaultKeywords()
		return s, nil
	case err != nil:
		return nil, fmt.Errorf("%w: keywords %s: %v", domain.ErrRead, path, err)
	}

	var loaded domain.Keywords
	if err := json.Unmarshal(raw, &loaded); err != nil {
		logger.Warn(map[string]any{"path": path, "error": err}, "keywords_file_invalid")
		s.data = domain.DefaultKeywords()
		return s, nil
	}
	s.data = normalizeLoaded(loaded)
	logger.Debug(map[string]any{"path": path, "categories": len(s.data)}, "keywords_loaded")
	return s, nil
}

// Path returns the backing file path.
func (s *Store) Path() string { return s.path }

// Add appends word to category. It returns false when the keyword is already
// present (ignoring case). An empty category defaults to explicit.
func (s *Store) Add(word, category string) (bool, error) {
	word, category, err := clean(word, category)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.data.Contains(category, word) {
		return false, nil
	}
	next := s.data.Clone()
	next[category] = append(next[category], word)
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.data = next
	s.logger.Info(map[string]any{"keyword": word, "category": category}, "keyword_added")
	return true, nil
}

// Remove deletes word from category. It returns false when it was not present.
func (s *Store) Remove(word, category string) (bool, error) {
	word, category, err := clean(word, category)
	if err != nil {
		return false, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := domain.IndexFold(s.data[category], word)
	if idx < 0 {
		return false, nil
	}
	next := s.data.Clone()
	words := next[category]
	next[category] = append(words[:idx], words[idx+1:]...)
	if err := s.persist(next); err != nil {
		return false, err
	}
	s.data = next
	s.logger.Info(map[string]any{"keyword": word, "category": category}, "keyword_removed")
	return true, nil
}

// Merge adds every keyword of k that is not yet present and persists once.
// It returns the number of keywords added.
func (s *Store) Merge(k domain.Keywords) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data.Clone()
	added := 0
	for category, words := range k {
		category = strings.ToLower(strings.TrimSpace(category))
		if category == "" {
			continue
		}
		for _, w := range words {
			w = strings.TrimSpace(w)
			if w == "" || next.Contains(category, w) {
				continue
			}
			next[category] = append(next[category], w)
			added++
		}
	}
	if added == 0 {
		return 0, nil
	}
	if err := s.persist(next); err != nil {
		return 0, err
	}
	s.data = next
	s.logger.Info(map[string]any{"added": added}, "keywords_merged")
	return added, nil
}

// List returns the keywords of one category (nil when unknown).
func (s *Store) List(category string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	words, ok := s.data[strings.ToLower(strings.TrimSpace(category))]
	if !ok {
		return nil
	}
	return append([]string{}, words...)
}

// Snapshot returns a deep copy of every category.
func (s *Store) Snapshot() domain.Keywords {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.data.Clone()
}

func (s *Store) persist(k domain.Keywords) error {
	raw, err := json.MarshalIndent(k, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encode keywords: %v", domain.ErrWrite, err)
	}
	if err := writeFileFn(s.path, raw); err != nil {
		s.logger.Error(map[string]any{"path": s.path, "error": err}, "keywords_persist_failed")
		return fmt.Errorf("%w: keywords %s: %v", domain.ErrWrite, s.path, err)
	}
	return nil
}

func clean(word, category string) (string, string, error) {
	word = strings.TrimSpace(word)
	if word == "" {
		return "", "", fmt.Errorf("%w: empty keyword", domain.ErrInvalidKeyword)
	}
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		category = domain.CategoryExplicit
	}
	return word, category, nil
}

// normalizeLoaded lowercases category keys, drops blank keywords and
// collapses duplicates ignoring case, then adds any missing known category.
// Categories are merged in sorted key order so the first spelling kept is stable.
func normalizeLoaded(k domain.Keywords) domain.Keywords {
	out := make(domain.Keywords, len(k)+len(domain.KnownCategories))
	for _, c := range slices.Sorted(maps.Keys(k)) {
		category := strings.ToLower(strings.TrimSpace(c))
		if category == "" {
			category = domain.CategoryExplicit
		}
		words := out[category]
		if words == nil {
			words = []string{}
		}
		for _, w := range k[c] {
			w = strings.TrimSpace(w)
			if w == "" || domain.IndexFold(words, w) >= 0 {
				continue
			}
			words = append(words, w)
		}
		out[category] = words
	}
	for _, c := range domain.KnownCategories {
		if _, ok := out[c]; !ok {
			out[c] = []string{}
		}
	}
	return out
}

// writeAtomic writes data to a temp file in the target directory, syncs it and
// renames it over path, so a crash leaves either the old or the new file.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return err
	}
	return nil
}

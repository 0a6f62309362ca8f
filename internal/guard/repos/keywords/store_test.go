package keywords

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

func tempPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "blocked_keywords.json")
}

func readFile(t *testing.T, path string) domain.Keywords {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	var k domain.Keywords
	require.NoError(t, json.Unmarshal(raw, &k))
	return k
}

func TestOpen_AbsentFileLoadsDefaults(t *testing.T) {
	s, err := Open(tempPath(t), log.NewNoopLogger())
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultKeywords(), s.Snapshot())
}

func TestOpen_InvalidJSONLoadsDefaults(t *testing.T) {
	p := tempPath(t)
	require.NoError(t, os.WriteFile(p, []byte("{not json"), 0o644))
	s, err := Open(p, nil)
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultKeywords(), s.Snapshot())
}

func TestOpen_FillsKnownCategories(t *testing.T) {
	p := tempPath(t)
	require.NoError(t, os.WriteFile(p, []byte(`{"explicit":["xxx"],"custom":null}`), 0o644))
	s, err := Open(p, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"xxx"}, s.List(domain.CategoryExplicit))
	assert.Equal(t, []string{}, s.List(domain.CategoryModerate))
	assert.Equal(t, []string{}, s.List("custom"))
	assert.Nil(t, s.List("unknown"))
}

func TestOpen_NormalizesCategoriesAndDuplicates(t *testing.T) {
	p := tempPath(t)
	raw := `{"Explicit":["xxx"," XXX ",""],"explicit":["porn","xxx"],"MODERATE":["nude","Nude"]}`
	require.NoError(t, os.WriteFile(p, []byte(raw), 0o644))
	s, err := Open(p, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"xxx", "porn"}, s.List(domain.CategoryExplicit))
	assert.Equal(t, []string{"nude"}, s.List(domain.CategoryModerate))
	assert.NotContains(t, s.Snapshot(), "Explicit")
	assert.NotContains(t, s.Snapshot(), "MODERATE")

	added, err := s.Add("NUDE", domain.CategoryModerate)
	require.NoError(t, err)
	assert.False(t, added)
}

func TestOpen_UnreadableFileIsReadError(t *testing.T) {
	if runtime.GOOS == "windows" || os.Geteuid() == 0 {
		t.Skip("permission bits not enforced")
	}
	p := tempPath(t)
	require.NoError(t, os.WriteFile(p, []byte(`{}`), 0o000))
	_, err := Open(p, nil)
	assert.ErrorIs(t, err, domain.ErrRead)
}

func TestAdd_PersistsSynchronously(t *testing.T) {
	p := tempPath(t)
	s, err := Open(p, nil)
	require.NoError(t, err)

	ok, err := s.Add("  xxx ", "")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.Add("nude", "moderate")
	require.NoError(t, err)
	assert.True(t, ok)

	disk := readFile(t, p)
	assert.Equal(t, []string{"xxx"}, disk[domain.CategoryExplicit])
	assert.Equal(t, []string{"nude"}, disk[domain.CategoryModerate])

	reopened, err := Open(p, nil)
	require.NoError(t, err)
	assert.Equal(t, s.Snapshot(), reopened.Snapshot())
}

func TestAdd_DuplicateIgnoringCase(t *testing.T) {
	s, err := Open(tempPath(t), nil)
	require.NoError(t, err)

	ok, err := s.Add("Adult", "moderate")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.Add("adult", "MODERATE")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, []string{"Adult"}, s.List("moderate"))
}

func TestAdd_EmptyKeywordRejected(t *testing.T) {
	s, err := Open(tempPath(t), nil)
	require.NoError(t, err)
	_, err = s.Add("   ", "explicit")
	assert.ErrorIs(t, err, domain.ErrInvalidKeyword)
	_, err = s.Remove("", "explicit")
	assert.ErrorIs(t, err, domain.ErrInvalidKeyword)
}

func TestAdd_NewCategory(t *testing.T) {
	s, err := Open(tempPath(t), nil)
	require.NoError(t, err)
	ok, err := s.Add("casino", "Gambling")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"casino"}, s.List("gambling"))
}

func TestRemove(t *testing.T) {
	p := tempPath(t)
	s, err := Open(p, nil)
	require.NoError(t, err)
	for _, w := range []string{"nude", "adult", "teen"} {
		_, err := s.Add(w, "moderate")
		require.NoError(t, err)
	}

	ok, err := s.Remove("ADULT", "moderate")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"nude", "teen"}, s.List("moderate"))
	assert.Equal(t, []string{"nude", "teen"}, readFile(t, p)[domain.CategoryModerate])

	ok, err = s.Remove("adult", "moderate")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = s.Remove("nude", "nonexistent")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteFailure_LeavesMemoryUnchanged(t *testing.T) {
	s, err := Open(tempPath(t), nil)
	require.NoError(t, err)
	_, err = s.Add("xxx", "explicit")
	require.NoError(t, err)

	old := writeFileFn
	writeFileFn = func(string, []byte) error { return errors.New("disk full") }
	t.Cleanup(func() { writeFileFn = old })

	ok, err := s.Add("yyy", "explicit")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.Equal(t, []string{"xxx"}, s.List("explicit"))

	ok, err = s.Remove("xxx", "explicit")
	assert.False(t, ok)
	assert.ErrorIs(t, err, domain.ErrWrite)
	assert.Equal(t, []string{"xxx"}, s.List("explicit"))
}

func TestWriteAtomic_NoTempFilesLeft(t *testing.T) {
	dir := t.TempDir()
	p := filepath.Join(dir, "nested", "kw.json")
	require.NoError(t, writeAtomic(p, []byte(`{"a":[]}`)))
	require.NoError(t, writeAtomic(p, []byte(`{"b":[]}`)))

	raw, err := os.ReadFile(p)
	require.NoError(t, err)
	assert.Equal(t, `{"b":[]}`, string(raw))

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.HasSuffix(e.Name(), ".tmp"), "leftover %s", e.Name())
	}
}

func TestSnapshot_IsIsolated(t *testing.T) {
	s, err := Open(tempPath(t), nil)
	require.NoError(t, err)
	_, err = s.Add("xxx", "explicit")
	require.NoError(t, err)

	snap := s.Snapshot()
	snap[domain.CategoryExplicit][0] = "mutated"
	assert.Equal(t, []string{"xxx"}, s.List("explicit"))
	assert.Equal(t, filepath.Base(s.Path()), "blocked_keywords.json")
}

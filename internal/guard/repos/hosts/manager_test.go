package hosts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

const sampleHosts = `# static table lookup for hostnames
127.0.0.1	localhost
::1	localhost ip6-localhost

192.168.1.10 nas.lan # storage
127.0.0.1 ads.example.com tracker.example.com # inline
`

func parse(t *testing.T, s string) *Manager {
	t.Helper()
	m, err := Parse(strings.NewReader(s), log.NewNoopLogger())
	require.NoError(t, err)
	return m
}

func TestParse_RoundTripIsVerbatim(t *testing.T) {
	for _, in := range []string{
		sampleHosts,
		"",
		"127.0.0.1 localhost",
		"# only a comment\r\n127.0.0.1 a.com\r\n",
		"# mixed\nkeep me\r\n127.0.0.1 a.com\n",
		"trailing cr\r",
		"\uFEFF127.0.0.1 localhost\n",
		"garbage line without structure\n\n\n",
	} {
		m := parse(t, in)
		assert.Equal(t, in, string(m.Bytes()), "input %q", in)
	}
}

func TestParse_NilLoggerAndOversizedLine(t *testing.T) {
	_, err := Parse(strings.NewReader("127.0.0.1 a.com\n"), nil)
	require.NoError(t, err)

	big := bytes.Repeat([]byte{'a'}, maxLineSize+10)
	_, err = Parse(bytes.NewReader(big), log.NewNoopLogger())
	assert.Error(t, err)
}

func TestList_FileOrderLoopbackOnly(t *testing.T) {
	m := parse(t, sampleHosts)
	assert.Equal(t, []string{"localhost", "ads.example.com", "tracker.example.com"}, m.List())
}

func TestAdd_DomainAddsWWWCounterpart(t *testing.T) {
	m := parse(t, "")
	assert.True(t, m.Add(Normalize("https://example.com/some/path")))
	assert.Equal(t, []string{"example.com", "www.example.com"}, m.List())
	assert.Equal(t, "127.0.0.1 example.com\n127.0.0.1 www.example.com\n", string(m.Bytes()))
}

func TestAdd_WWWDomainDoesNotExpand(t *testing.T) {
	m := parse(t, "")
	m.Add(Normalize("www.example.com"))
	assert.Equal(t, []string{"www.example.com"}, m.List())
}

func TestAdd_IPv4NeverAddsWWW(t *testing.T) {
	m := parse(t, "")
	m.Add(Normalize("http://10.20.30.40/admin"))
	assert.Equal(t, []string{"10.20.30.40"}, m.List())
	for _, n := range m.List() {
		assert.False(t, strings.HasPrefix(n, "www."))
	}
}

func TestAdd_Idempotent(t *testing.T) {
	once := parse(t, sampleHosts)
	once.Add(Normalize("example.com"))

	twice := parse(t, sampleHosts)
	assert.True(t, twice.Add(Normalize("example.com")))
	assert.False(t, twice.Add(Normalize("EXAMPLE.com")))

	assert.Equal(t, once.List(), twice.List())
	assert.Equal(t, string(once.Bytes()), string(twice.Bytes()))
}

func TestAdd_PartiallyPresentOnlyAddsMissing(t *testing.T) {
	m := parse(t, "127.0.0.1 www.example.com\n")
	assert.True(t, m.Add(Normalize("example.com")))
	assert.Equal(t, []string{"www.example.com", "example.com"}, m.List())
	assert.True(t, m.contains(Normalize("example.com")))
}

func TestAdd_LeavesOtherEntriesUntouched(t *testing.T) {
	m := parse(t, sampleHosts)
	m.Add(Normalize("example.com"))
	assert.Equal(t, sampleHosts+"127.0.0.1 example.com\n127.0.0.1 www.example.com\n", string(m.Bytes()))
}

func TestAdd_NoTrailingNewlineInOriginal(t *testing.T) {
	m := parse(t, "127.0.0.1 localhost")
	m.Add(Normalize("10.0.0.1"))
	assert.Equal(t, "127.0.0.1 localhost\n127.0.0.1 10.0.0.1\n", string(m.Bytes()))
}

func TestAdd_PreservesCRLF(t *testing.T) {
	m := parse(t, "127.0.0.1 localhost\r\n")
	m.Add(Normalize("a.com"))
	assert.Equal(t, "127.0.0.1 localhost\r\n127.0.0.1 a.com\r\n127.0.0.1 www.a.com\r\n", string(m.Bytes()))
}

func TestAdd_MixedLineEndingsKeptPerLine(t *testing.T) {
	in := "# hdr\nkeep me\r\n127.0.0.1 old.com\r\ntail"
	m := parse(t, in)
	m.Add(Normalize("a.com"))
	assert.Equal(t, "# hdr\nkeep me\r\n127.0.0.1 old.com\r\ntail\n127.0.0.1 a.com\n127.0.0.1 www.a.com\n", string(m.Bytes()))

	m.Remove(Normalize("a.com"))
	m.Remove(Normalize("old.com"))
	assert.Equal(t, "# hdr\nkeep me\r\ntail", string(m.Bytes()))
}

func TestRemove_BareRemovesBoth(t *testing.T) {
	m := parse(t, "")
	m.Add(Normalize("example.com"))
	assert.True(t, m.Remove(Normalize("example.com")))
	assert.Empty(t, m.List())
	assert.Equal(t, "", string(m.Bytes()))
}

func TestRemove_WWWRemovesBare(t *testing.T) {
	m := parse(t, "")
	m.Add(Normalize("example.com"))
	m.Remove(Normalize("https://www.example.com/"))
	assert.Empty(t, m.List())
}

func TestRemove_IPOnlyLiteral(t *testing.T) {
	m := parse(t, "127.0.0.1 10.0.0.1 www.10.0.0.1\n")
	m.Remove(Normalize("10.0.0.1"))
	assert.Equal(t, []string{"www.10.0.0.1"}, m.List())
}

func TestRemove_AbsentIsNoop(t *testing.T) {
	m := parse(t, sampleHosts)
	assert.False(t, m.Remove(Normalize("never-added.org")))
	assert.Equal(t, sampleHosts, string(m.Bytes()))
}

func TestRemove_FromMultiNameLineKeepsComment(t *testing.T) {
	m := parse(t, sampleHosts)
	m.Remove(Normalize("ads.example.com"))
	assert.Equal(t, []string{"localhost", "tracker.example.com"}, m.List())
	assert.Contains(t, string(m.Bytes()), "127.0.0.1 tracker.example.com # inline\n")
	assert.Contains(t, string(m.Bytes()), "192.168.1.10 nas.lan # storage\n")
}

func TestRemove_DuplicateAcrossLines(t *testing.T) {
	m := parse(t, "127.0.0.1 a.com\n127.0.0.1 a.com b.com\n")
	assert.Equal(t, []string{"a.com", "b.com"}, m.List())
	m.Remove(Normalize("a.com"))
	assert.Equal(t, []string{"b.com"}, m.List())
	assert.Equal(t, "127.0.0.1 b.com\n", string(m.Bytes()))
}

func TestAdd_MatchesExistingNameIgnoringCase(t *testing.T) {
	m := parse(t, "127.0.0.1 Example.COM\n")
	assert.True(t, m.Add(Normalize("example.com")))
	assert.Equal(t, []string{"Example.COM", "www.example.com"}, m.List())
	assert.Equal(t, "127.0.0.1 Example.COM\n127.0.0.1 www.example.com\n", string(m.Bytes()))
	assert.False(t, m.Add(Normalize("EXAMPLE.com")))
}

func TestRemove_DropsNameIgnoringCase(t *testing.T) {
	m := parse(t, "127.0.0.1 Example.COM WWW.example.com\n127.0.0.1 keep.org\n")
	assert.True(t, m.Remove(Normalize("example.com")))
	assert.Equal(t, []string{"keep.org"}, m.List())
	assert.Equal(t, "127.0.0.1 keep.org\n", string(m.Bytes()))
}

func TestList_DedupesIgnoringCase(t *testing.T) {
	m := parse(t, "127.0.0.1 A.com\n127.0.0.1 a.com b.com\n")
	assert.Equal(t, []string{"A.com", "b.com"}, m.List())
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		input string
		name  string
		kind  domain.TargetKind
	}{
		{"http://Example.COM/path?q=1", "example.com", domain.TargetDomain},
		{"https://www.example.com/", "www.example.com", domain.TargetDomain},
		{"example.com.", "example.com", domain.TargetDomain},
		{"192.168.0.1", "192.168.0.1", domain.TargetIPv4},
		{"https://8.8.8.8/dns", "8.8.8.8", domain.TargetIPv4},
		{"", "", domain.TargetDomain},
		{"localhost", "localhost", domain.TargetDomain},
	}
	for _, tt := range tests {
		got := Normalize(tt.input)
		assert.Equal(t, tt.name, got.Name, "input %q", tt.input)
		assert.Equal(t, tt.kind, got.Kind, "input %q", tt.input)
	}
}

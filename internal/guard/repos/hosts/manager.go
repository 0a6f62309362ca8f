package hosts

import (
	"bytes"
	"strings"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/common/utils"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// Manager is the in-memory model of the override file. It is not safe for
// concurrent use; the session serializes access.
type Manager struct {
	lines  []line
	logger logpkg.Logger
	eol    string
	bom    bool
}

// Normalize turns user input into a BlockTarget: scheme and path are stripped,
// the host is lowercased, then classified. No validation is performed.
func Normalize(input string) domain.BlockTarget {
	return domain.NewBlockTarget(utils.CanonicalHostName(utils.StripScheme(input)))
}

// Add maps every name of target to the loopback address. Names already
// present in any block entry are left alone. It reports whether anything changed.
func (m *Manager) Add(target domain.BlockTarget) bool {
	changed := false
	for _, name := range target.Names() {
		if m.has(name) {
			m.logger.Debug(map[string]any{"name": name}, "hosts_add_present")
			continue
		}
		entry := &domain.HostEntry{Address: domain.LoopbackAddress, Names: []string{name}}
		m.lines = append(m.lines, line{entry: entry, dirty: true})
		m.logger.Debug(map[string]any{"name": name, "kind": target.Kind.String()}, "hosts_add")
		changed = true
	}
	return changed
}

// Remove drops target and its www./bare counterpart from every block entry,
// ignoring case. Entries left without names are dropped. Absent names are ignored.
func (m *Manager) Remove(target domain.BlockTarget) bool {
	drop := make(map[string]struct{})
	for _, n := range target.Counterparts() {
		drop[strings.ToLower(n)] = struct{}{}
	}

	changed := false
	for i := range m.lines {
		l := &m.lines[i]
		if l.entry == nil || l.removed {
			continue
		}
		kept := l.entry.Names[:0:0]
		for _, n := range l.entry.Names {
			if _, ok := drop[strings.ToLower(n)]; ok {
				m.logger.Debug(map[string]any{"name": n}, "hosts_remove")
				continue
			}
			kept = append(kept, n)
		}
		if len(kept) == len(l.entry.Names) {
			continue
		}
		changed = true
		l.entry.Names = kept
		l.dirty = true
		if len(kept) == 0 {
			l.removed = true
		}
	}
	return changed
}

// List returns every name mapped to the loopback address, in file order,
// without duplicates. The first spelling of a name wins.
func (m *Manager) List() []string {
	seen := make(map[string]struct{})
	out := make([]string, 0)
	for _, l := range m.lines {
		if l.entry == nil || l.removed {
			continue
		}
		for _, n := range l.entry.Names {
			key := strings.ToLower(n)
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// contains reports whether every name of target is currently blocked.
func (m *Manager) contains(target domain.BlockTarget) bool {
	for _, n := range target.Names() {
		if !m.has(n) {
			return false
		}
	}
	return true
}

// Bytes serializes the model. Untouched lines are emitted byte-for-byte with
// their own terminators.
func (m *Manager) Bytes() []byte {
	var b bytes.Buffer
	if m.bom {
		b.WriteString("\uFEFF")
	}
	live := make([]line, 0, len(m.lines))
	for _, l := range m.lines {
		if !l.removed {
			live = append(live, l)
		}
	}
	for i, l := range live {
		if l.dirty {
			b.WriteString(render(l.entry))
		} else {
			b.WriteString(l.raw)
		}
		eol := l.eol
		if eol == "" && (l.raw == "" || i < len(live)-1) {
			eol = m.eol
		}
		b.WriteString(eol)
	}
	return b.Bytes()
}

func (m *Manager) has(name string) bool {
	for _, l := range m.lines {
		if l.entry != nil && !l.removed && l.entry.Has(name) {
			return true
		}
	}
	return false
}

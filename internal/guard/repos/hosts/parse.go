package hosts

import (
	"bufio"
	"bytes"
	"io"
	"strings"

	logpkg "github.com/haukened/hostguard/internal/guard/common/log"
	"github.com/haukened/hostguard/internal/guard/domain"
)

// maxLineSize bounds a single override-file line; larger lines fail the parse.
const maxLineSize = 1 << 20

// line is one physical line of the override file. Unmanaged lines keep raw
// and are written back verbatim; block lines carry a parsed entry and are
// re-rendered only once modified.
type line struct {
	raw     string
	eol     string // terminator as read; empty for appended lines and an unterminated last line
	entry   *domain.HostEntry
	dirty   bool
	removed bool
}

// Parse reads /etc/hosts-style content into a Manager.
//
// Rules:
// - Lines whose first field is the loopback address and that name at least one host are block entries
// - Everything else (comments, blanks, other addresses, malformed lines) is kept verbatim
// - Inline comments on block entries are retained and re-emitted on rewrite
// - Every line keeps its own terminator; appended lines use the first line's (CRLF or LF)
func Parse(r io.Reader, logger logpkg.Logger) (*Manager, error) {
	if logger == nil {
		logger = logpkg.NewNoopLogger()
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	m := &Manager{logger: logger, eol: detectEOL(data)}
	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	scanner.Split(scanLinesWithEOL)

	lineNum := 0
	for scanner.Scan() {
		lineNum++
		raw, eol := splitEOL(scanner.Text())
		if lineNum == 1 {
			trimmed := strings.TrimPrefix(raw, "\uFEFF")
			m.bom = len(trimmed) != len(raw)
			raw = trimmed
		}

		entry, ok := parseEntry(raw)
		if !ok {
			logger.Debug(map[string]any{"line": lineNum}, "hosts_keep_verbatim")
			m.lines = append(m.lines, line{raw: raw, eol: eol})
			continue
		}
		logger.Debug(map[string]any{"line": lineNum, "names": entry.Names}, "hosts_block_entry")
		m.lines = append(m.lines, line{raw: raw, eol: eol, entry: entry})
	}
	if err := scanner.Err(); err != nil {
		logger.Debug(map[string]any{"error": err.Error()}, "hosts_parse_scan_error")
		return nil, err
	}

	logger.Debug(map[string]any{"lines": len(m.lines), "blocked": len(m.List())}, "hosts_parse_done")
	return m, nil
}

// parseEntry returns the block entry encoded by raw, if any.
func parseEntry(raw string) (*domain.HostEntry, bool) {
	if isEmpty, isComment := classifyLine(raw); isEmpty || isComment {
		return nil, false
	}
	body, comment := splitInlineComment(raw)
	fields := strings.Fields(body)
	if len(fields) < 2 || fields[0] != domain.LoopbackAddress {
		return nil, false
	}
	return &domain.HostEntry{Address: fields[0], Names: fields[1:], Comment: comment}, true
}

// classifyLine reports whether a line is blank or a whole-line comment.
func classifyLine(raw string) (isEmpty, isComment bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return true, false
	}
	return false, strings.HasPrefix(trimmed, "#")
}

// splitInlineComment separates the entry body from a trailing '#' comment.
func splitInlineComment(raw string) (body, comment string) {
	if idx := strings.IndexByte(raw, '#'); idx >= 0 {
		return raw[:idx], strings.TrimSpace(raw[idx+1:])
	}
	return raw, ""
}

// scanLinesWithEOL is bufio.ScanLines without stripping the terminator.
func scanLinesWithEOL(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return i + 1, data[:i+1], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// splitEOL separates a scanned line from its "\r\n" or "\n" terminator.
func splitEOL(s string) (body, eol string) {
	switch {
	case strings.HasSuffix(s, "\r\n"):
		return s[:len(s)-2], "\r\n"
	case strings.HasSuffix(s, "\n"):
		return s[:len(s)-1], "\n"
	}
	return s, ""
}

func detectEOL(data []byte) string {
	if i := bytes.IndexByte(data, '\n'); i > 0 && data[i-1] == '\r' {
		return "\r\n"
	}
	return "\n"
}

// render formats an entry the way the OS resolver expects it.
func render(e *domain.HostEntry) string {
	s := e.Address + " " + strings.Join(e.Names, " ")
	if e.Comment != "" {
		s += " # " + e.Comment
	}
	return s
}

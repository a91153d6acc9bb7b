// Package sanitize cleans raw CLI subprocess output before parsing.
// Agent CLIs interleave structured JSON lines with human-readable status
// output that carries terminal control sequences; the parsers downstream
// want the JSON untouched and the rest stripped of escapes.
package sanitize

import "strings"

// Sanitize removes ANSI CSI/OSC escape sequences and normalizes carriage
// returns to newlines. Input that looks like a structured JSON payload is
// returned unmodified: escape-looking byte sequences inside a quoted JSON
// string must never be stripped. The heuristic is evaluated per chunk, before
// any buffering, because a single subprocess may interleave log lines and
// JSON lines.
func Sanitize(raw string) string {
	if looksStructured(raw) {
		return raw
	}

	var b strings.Builder
	b.Grow(len(raw))

	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch c {
		case 0x1b: // ESC
			i = skipEscape(raw, i)
		case '\r':
			// \r\n collapses to \n; a bare \r is a line terminator for CLIs
			// that repaint in place (codex progress updates).
			if i+1 < len(raw) && raw[i+1] == '\n' {
				continue
			}
			b.WriteByte('\n')
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

// looksStructured reports whether the chunk should be passed through
// untouched: it starts a JSON object, or carries a "type"-tagged payload
// (possibly behind an SSE "data:" prefix).
func looksStructured(raw string) bool {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "{") {
		return true
	}
	return strings.Contains(trimmed, `"type"`)
}

// skipEscape consumes one escape sequence starting at raw[i] (which is ESC)
// and returns the index of its last byte.
func skipEscape(raw string, i int) int {
	if i+1 >= len(raw) {
		return len(raw)
	}

	switch raw[i+1] {
	case '[': // CSI: ESC [ params... final byte in 0x40..0x7e
		j := i + 2
		for j < len(raw) {
			if raw[j] >= 0x40 && raw[j] <= 0x7e {
				return j
			}
			j++
		}
		return len(raw)
	case ']': // OSC: ESC ] ... terminated by BEL or ST (ESC \)
		j := i + 2
		for j < len(raw) {
			if raw[j] == 0x07 {
				return j
			}
			if raw[j] == 0x1b && j+1 < len(raw) && raw[j+1] == '\\' {
				return j + 1
			}
			j++
		}
		return len(raw)
	default:
		// Two-byte escape (ESC c, ESC =, ...).
		return i + 1
	}
}

// FilterNoise drops known junk lines emitted by specific agent CLIs.
// Returns the line and true when it should be kept. The filters mirror the
// observed noise of the real tools: node runtime warnings from the codex
// wrapper, cursor control leftovers and metadata-only JSON from claude.
func FilterNoise(agent, line string) (string, bool) {
	trimmed := strings.TrimSpace(line)

	if strings.EqualFold(agent, "codex") {
		isKnownWarning := trimmed == "(Use `node --trace-warnings ...` to show where the warning was created)" ||
			(strings.HasPrefix(trimmed, "(node:") &&
				strings.HasSuffix(trimmed, "inside circular dependency") &&
				(strings.Contains(trimmed, "Warning: Accessing non-existent property 'lineno'") ||
					strings.Contains(trimmed, "Warning: Accessing non-existent property 'filename'")))
		if isKnownWarning {
			return "", false
		}
	}

	if strings.EqualFold(agent, "claude") {
		if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
			hasType := strings.Contains(trimmed, `"type"`)
			looksLikeMetadata := !hasType &&
				(strings.Contains(trimmed, `"mcp_commands"`) ||
					strings.Contains(trimmed, `"mcp_servers"`) ||
					strings.Contains(trimmed, `"session_id"`) ||
					strings.Contains(trimmed, `"uuid"`))
			if looksLikeMetadata {
				return "", false
			}
		}

		if strings.HasPrefix(trimmed, "\x1b") {
			return "", false
		}

		if trimmed == "" || trimmed == "[DONE]" || trimmed == "?25h" {
			return "", false
		}
	}

	return line, true
}

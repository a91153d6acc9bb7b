// Package envelope extracts complete top-level JSON values from a stream of
// arbitrarily split text chunks. Agent CLIs deliver output in chunks that can
// cut a JSON object anywhere, including inside a string escape; the Reader
// buffers the trailing incomplete fragment and yields each value only once it
// is whole.
//
// The reader is an explicit resumable cursor (buffer + index) rather than a
// goroutine or coroutine: every Push is a complete synchronous step that
// returns the extracted values, which keeps it trivially testable.
package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DefaultLimit bounds the buffered, not-yet-complete text. A malformed
// producer that never closes a brace would otherwise grow the buffer without
// limit.
const DefaultLimit = 4 << 20

// ErrBufferLimit reports that the buffered text exceeded the reader's limit
// without ever completing a value.
var ErrBufferLimit = errors.New("buffered stream exceeded limit without completing a JSON value")

// SyntaxError reports structurally invalid JSON where a complete value was
// expected.
type SyntaxError struct {
	Cause   error
	Snippet string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("malformed envelope %q: %v", e.Snippet, e.Cause)
}

func (e *SyntaxError) Unwrap() error { return e.Cause }

// Reader accumulates chunk text and yields complete top-level JSON values.
// The zero value is not usable; create with NewReader.
type Reader struct {
	buf   []byte
	limit int
}

// NewReader creates a Reader with the given buffer limit.
// limit <= 0 selects DefaultLimit.
func NewReader(limit int) *Reader {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Reader{limit: limit}
}

// Push appends text to the buffer and extracts every complete top-level JSON
// value now available, in order. Trailing incomplete text remains buffered
// for the next Push. A "data:" value-per-line prefix is stripped, bare
// "event:"/"id:" SSE bookkeeping lines and "data: [DONE]" terminators are
// swallowed, and non-JSON log lines are skipped rather than failed.
func (r *Reader) Push(text string) ([]json.RawMessage, error) {
	r.buf = append(r.buf, text...)

	var out []json.RawMessage
	pos := 0
	for {
		val, next, err := r.next(pos)
		pos = next
		if err != nil {
			r.compact(pos)
			return out, err
		}
		if val == nil {
			break
		}
		out = append(out, val)
	}

	r.compact(pos)
	if len(r.buf) > r.limit {
		return out, ErrBufferLimit
	}
	return out, nil
}

// Pending returns the number of buffered bytes not yet part of a complete
// value.
func (r *Reader) Pending() int { return len(r.buf) }

// compact drops consumed bytes, retaining the unparsed tail.
func (r *Reader) compact(pos int) {
	if pos <= 0 {
		return
	}
	if pos >= len(r.buf) {
		r.buf = r.buf[:0]
		return
	}
	n := copy(r.buf, r.buf[pos:])
	r.buf = r.buf[:n]
}

// next scans for one complete value starting at pos. It returns (value,
// positionAfterValue, nil) on success, (nil, pos, nil) when more input is
// needed, and a non-nil error for malformed input.
func (r *Reader) next(pos int) (json.RawMessage, int, error) {
	for {
		// Skip inter-value whitespace and line terminators.
		for pos < len(r.buf) && isSpace(r.buf[pos]) {
			pos++
		}
		if pos == len(r.buf) {
			return nil, pos, nil
		}

		lineStart := pos
		rest := r.buf[pos:]

		// A chunk may end mid-prefix ("da", "even"); wait for more input
		// rather than misclassifying the line.
		if isPartialPrefix(rest) {
			return nil, pos, nil
		}

		if after, ok := cutPrefix(rest, "data:"); ok {
			pos = len(r.buf) - len(after)
			for pos < len(r.buf) && (r.buf[pos] == ' ' || r.buf[pos] == '\t') {
				pos++
			}
			tail := r.buf[pos:]
			if len(tail) == 0 {
				// Nothing after "data:" yet; the payload could still be
				// a value or a [DONE] marker. Re-scan the line next push.
				return nil, lineStart, nil
			}
			// "data: [DONE]" is a stream terminator, not a JSON array.
			if isPrefixOf(tail, doneMarker) {
				if len(tail) < len(doneMarker) {
					// Could still turn out to be an array; keep the whole
					// "data:" line buffered and re-scan next push.
					return nil, lineStart, nil
				}
				pos += len(doneMarker)
				continue
			}
			if tail[0] == '{' || tail[0] == '[' {
				return r.value(pos)
			}
			// Non-JSON data payload (keep-alive hints and the like):
			// drop the line once it is complete.
			nl := indexByte(r.buf, pos, '\n')
			if nl < 0 {
				return nil, lineStart, nil
			}
			pos = nl + 1
			continue
		}

		if hasAnyPrefix(rest, "event:", "id:") {
			nl := indexByte(r.buf, pos, '\n')
			if nl < 0 {
				return nil, pos, nil
			}
			pos = nl + 1
			continue
		}

		if rest[0] == '{' || rest[0] == '[' {
			return r.value(pos)
		}

		// Not a value: an interleaved human-readable log line. Skip it once
		// the full line has arrived.
		nl := indexByte(r.buf, pos, '\n')
		if nl < 0 {
			return nil, pos, nil
		}
		pos = nl + 1
	}
}

// value extracts the structural value starting at pos (r.buf[pos] is '{' or
// '[') by brace/bracket depth tracking, honoring string delimiters and
// backslash escapes so that braces inside string content are not mistaken
// for structural ones.
func (r *Reader) value(pos int) (json.RawMessage, int, error) {
	depth := 0
	inString := false
	escaped := false

	for i := pos; i < len(r.buf); i++ {
		c := r.buf[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{', '[':
			depth++
		case '}', ']':
			depth--
			if depth == 0 {
				raw := r.buf[pos : i+1]
				if !json.Valid(raw) {
					return nil, i + 1, &SyntaxError{
						Cause:   errors.New("invalid JSON"),
						Snippet: snippet(raw),
					}
				}
				val := make(json.RawMessage, len(raw))
				copy(val, raw)
				return val, i + 1, nil
			}
			if depth < 0 {
				return nil, i + 1, &SyntaxError{
					Cause:   errors.New("unbalanced close"),
					Snippet: snippet(r.buf[pos : i+1]),
				}
			}
		}
	}

	return nil, pos, nil // incomplete, wait for more chunks
}

const doneMarker = "[DONE]"

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}

// isPartialPrefix reports whether rest is a proper prefix of one of the SSE
// line markers, meaning classification must wait for more input.
func isPartialPrefix(rest []byte) bool {
	for _, p := range []string{"data:", "event:", "id:"} {
		if len(rest) < len(p) && strings.HasPrefix(p, string(rest)) {
			return true
		}
	}
	return false
}

func cutPrefix(b []byte, prefix string) ([]byte, bool) {
	if len(b) >= len(prefix) && string(b[:len(prefix)]) == prefix {
		return b[len(prefix):], true
	}
	return b, false
}

func hasAnyPrefix(b []byte, prefixes ...string) bool {
	for _, p := range prefixes {
		if _, ok := cutPrefix(b, p); ok {
			return true
		}
	}
	return false
}

// isPrefixOf reports whether b and marker agree over their common length.
func isPrefixOf(b []byte, marker string) bool {
	n := len(b)
	if n > len(marker) {
		n = len(marker)
	}
	return n > 0 && string(b[:n]) == marker[:n]
}

func indexByte(b []byte, from int, c byte) int {
	for i := from; i < len(b); i++ {
		if b[i] == c {
			return i
		}
	}
	return -1
}

func snippet(b []byte) string {
	const max = 80
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}

// Package transcript parses the plain-text transcript format that wraps an
// agent turn: a header line, a metadata block between rule lines, and
// timestamped body blocks (working steps, thinking, answer, token footer).
// The same line grammar backs both the streaming dispatcher and the batch
// parser so a finished streamed session and a transcript loaded from storage
// render identically.
package transcript

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/agentdeck/agentdeck/event"
)

var (
	headerRe = regexp.MustCompile(`^(?:🔗\s*)?Agent:\s*(.+?)\s*\|\s*Command:\s*(.*)$`)
	tokensRe = regexp.MustCompile(`(?i)^tokens used:\s*(\d+)`)
)

// MatchHeader reports whether line is a transcript header and returns the
// agent and command fields.
func MatchHeader(line string) (agent, command string, ok bool) {
	m := headerRe.FindStringSubmatch(strings.TrimSpace(line))
	if m == nil {
		return "", "", false
	}
	return m[1], m[2], true
}

// parser states.
type state int

const (
	stateHeader state = iota
	stateMeta
	stateBody
)

// body capture modes.
type captureMode int

const (
	captureNone captureMode = iota
	captureWorking
	captureThinking
	captureAnswer
)

// grammar is the line-oriented fold shared by the streaming dispatcher and
// the batch parser. Feed lines in order, then call finish.
type grammar struct {
	agent   string
	command string
	meta    map[string]string

	state        state
	mode         captureMode
	firstInMode  bool
	pendingBlank int
	workingSeen  int
	ruleSeen     bool

	errSeen  bool
	errMsg   string
	terminal bool
}

func newGrammar() *grammar {
	return &grammar{meta: make(map[string]string)}
}

// feedLine consumes one complete line (no trailing newline) and returns the
// semantic events it produced.
func (g *grammar) feedLine(line string) []event.Event {
	if g.terminal {
		return nil
	}

	switch g.state {
	case stateHeader:
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			return nil
		}
		if agent, command, ok := MatchHeader(trimmed); ok {
			g.agent = agent
			g.command = command
			g.state = stateMeta
			return nil
		}
		// Tolerate missing rule/meta section: a timestamped block right
		// after the header region starts the body.
		if isBlockStart(line) {
			g.state = stateBody
			return g.feedLine(line)
		}
		return nil

	case stateMeta:
		if isRule(line) {
			// The first rule opens the metadata block, the second closes
			// it and starts the body.
			if g.ruleSeen {
				g.state = stateBody
			}
			g.ruleSeen = true
			return nil
		}
		if isBlockStart(line) {
			g.state = stateBody
			return g.feedLine(line)
		}
		if key, value, ok := strings.Cut(line, ":"); ok {
			g.meta[strings.TrimSpace(key)] = strings.TrimSpace(value)
		}
		return nil

	default:
		return g.feedBody(line)
	}
}

// finish flushes terminal state at end of input.
func (g *grammar) finish() []event.Event {
	if g.terminal {
		return nil
	}
	g.terminal = true
	if g.errSeen {
		return []event.Event{event.Failed{Message: g.errMsg}}
	}
	return nil
}

func (g *grammar) feedBody(line string) []event.Event {
	if isBlockStart(line) {
		return g.startBlock(blockText(line))
	}
	if isRule(line) {
		g.mode = captureNone
		return nil
	}

	switch g.mode {
	case captureWorking:
		entry, ok := stripBullet(line)
		if !ok {
			return nil
		}
		g.workingSeen++
		id := fmt.Sprintf("working-%d", g.workingSeen)
		return []event.Event{
			event.StepStarted{ID: id, Label: entry},
			event.StepCompleted{ID: id},
		}
	case captureThinking:
		if line == "" {
			g.blank()
			return nil
		}
		return []event.Event{event.ThinkingDelta{Text: g.sep() + line}}
	case captureAnswer:
		if line == "" {
			g.blank()
			return nil
		}
		return []event.Event{event.AnswerDelta{Text: g.sep() + line}}
	default:
		return nil
	}
}

// startBlock classifies the text after a timestamp bracket and switches the
// capture mode accordingly.
func (g *grammar) startBlock(text string) []event.Event {
	g.mode = captureNone
	g.firstInMode = true
	g.pendingBlank = 0

	switch {
	case strings.HasPrefix(text, "Working"):
		g.mode = captureWorking

	case strings.HasPrefix(strings.ToLower(text), "thinking"):
		g.mode = captureThinking

	case g.agent != "" && strings.EqualFold(text, g.agent):
		g.mode = captureAnswer

	case strings.HasPrefix(text, "❌") || strings.HasPrefix(text, "Error:"):
		if !g.errSeen {
			g.errSeen = true
			g.errMsg = text
		}

	default:
		if m := tokensRe.FindStringSubmatch(text); m != nil {
			count, err := strconv.Atoi(m[1])
			if err != nil {
				return nil
			}
			g.terminal = true
			out := []event.Event{event.TokensUsed{Count: count}}
			if g.errSeen {
				return append(out, event.Failed{Message: g.errMsg})
			}
			return append(out, event.Done{})
		}
	}
	return nil
}

// blank records an empty line inside a capture block. Blank lines only
// materialize when a later non-empty line needs them as separators, so
// trailing blanks never pad the captured text.
func (g *grammar) blank() {
	if !g.firstInMode {
		g.pendingBlank++
	}
}

// sep returns the separator to prepend within the current capture mode:
// empty for the first captured line, one newline per intervening line after.
func (g *grammar) sep() string {
	if g.firstInMode {
		g.firstInMode = false
		return ""
	}
	sep := strings.Repeat("\n", g.pendingBlank+1)
	g.pendingBlank = 0
	return sep
}

// isBlockStart reports whether the line opens a timestamped body block.
func isBlockStart(line string) bool {
	return strings.HasPrefix(line, "[") && strings.Contains(line, "]")
}

// blockText returns the block text following the timestamp bracket.
func blockText(line string) string {
	_, rest, _ := strings.Cut(line, "]")
	return strings.TrimSpace(rest)
}

// isRule reports whether the line is a horizontal rule (a run of dashes).
func isRule(line string) bool {
	trimmed := strings.TrimSpace(line)
	if len(trimmed) < 3 {
		return false
	}
	for _, r := range trimmed {
		if r != '-' {
			return false
		}
	}
	return true
}

// stripBullet removes a leading bullet or pipe marker from a working-step
// line. Lines without a marker are not working entries.
func stripBullet(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	for _, marker := range []string{"•", "|", "├", "└", "-", "*"} {
		if rest, ok := strings.CutPrefix(trimmed, marker); ok {
			return strings.TrimSpace(rest), true
		}
	}
	return "", false
}

package engine

import (
	"strings"

	"github.com/buger/jsonparser"

	"github.com/agentdeck/agentdeck/claude"
	"github.com/agentdeck/agentdeck/codex"
	"github.com/agentdeck/agentdeck/envelope"
	"github.com/agentdeck/agentdeck/event"
	"github.com/agentdeck/agentdeck/responses"
	"github.com/agentdeck/agentdeck/transcript"
)

// Format identifies the wire format a session speaks. Detection runs once
// per session on the first decodable envelope or line.
type Format string

const (
	FormatUnknown    Format = ""
	FormatCodex      Format = "codex"
	FormatResponses  Format = "responses"
	FormatClaude     Format = "claude"
	FormatTranscript Format = "transcript"
	FormatRaw        Format = "raw"
)

// detectLimit caps how much undecided text a session buffers before falling
// back to raw passthrough.
const detectLimit = 64 << 10

// claudeTypes are the top-level envelope types of the claude stream-json
// protocol.
var claudeTypes = map[string]bool{
	"system":       true,
	"assistant":    true,
	"user":         true,
	"result":       true,
	"stream_event": true,
}

// detectFormat classifies buffered text. FormatUnknown means more input is
// needed; finished forces a decision with whatever arrived.
func detectFormat(buf string, finished bool) Format {
	trimmed := strings.TrimLeft(buf, " \t\r\n")
	if trimmed == "" {
		if finished {
			return FormatRaw
		}
		return FormatUnknown
	}

	if trimmed[0] == '{' || strings.HasPrefix(trimmed, "data:") {
		return detectJSON(trimmed, finished)
	}

	line, _, complete := strings.Cut(trimmed, "\n")
	if !complete && !finished {
		return FormatUnknown
	}
	if _, _, ok := transcript.MatchHeader(line); ok {
		return FormatTranscript
	}
	return FormatRaw
}

// detectJSON classifies by the "type" field of the first complete envelope.
func detectJSON(buf string, finished bool) Format {
	r := envelope.NewReader(detectLimit)
	vals, err := r.Push(buf)
	if len(vals) == 0 {
		if err != nil || finished {
			return FormatRaw
		}
		return FormatUnknown
	}

	typ, err := jsonparser.GetString(vals[0], "type")
	if err != nil {
		// Untyped JSON object. The codex dispatcher ignores what it
		// does not recognize, so it is the safe default.
		return FormatCodex
	}
	switch {
	case strings.HasPrefix(typ, "response."):
		return FormatResponses
	case claudeTypes[typ]:
		return FormatClaude
	default:
		return FormatCodex
	}
}

// newDispatcher builds the dispatcher for a detected format.
func newDispatcher(format Format, limit int) Dispatcher {
	switch format {
	case FormatCodex:
		return codex.NewDispatcher(limit)
	case FormatResponses:
		return responses.NewDispatcher(limit)
	case FormatClaude:
		return claude.NewDispatcher(limit)
	case FormatTranscript:
		return transcript.NewDispatcher()
	default:
		return rawDispatcher{}
	}
}

// rawDispatcher passes unrecognized output straight through as answer text.
type rawDispatcher struct{}

func (rawDispatcher) Push(text string) ([]event.Event, error) {
	if text == "" {
		return nil, nil
	}
	return []event.Event{event.AnswerDelta{Text: text}}, nil
}

func (rawDispatcher) Finish() []event.Event { return nil }

// Package responses parses the delta/response wire format: JSON envelopes
// with "response.*" type tags, streaming answer text as output_text deltas
// and finishing with an authoritative response.completed payload.
package responses

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentdeck/agentdeck/envelope"
	"github.com/agentdeck/agentdeck/event"
)

// Envelope types of the delta/response format.
const (
	TypeOutputTextDelta = "response.output_text.delta"
	TypeCompleted       = "response.completed"
	TypeError           = "response.error"
)

type responseEnvelope struct {
	Type     string          `json:"type"`
	Delta    json.RawMessage `json:"delta,omitempty"`
	Response json.RawMessage `json:"response,omitempty"`
	Error    json.RawMessage `json:"error,omitempty"`
}

type outputBlock struct {
	Type    string        `json:"type"`
	Text    string        `json:"text,omitempty"`
	Content []outputBlock `json:"content,omitempty"`
}

// Dispatcher folds delta/response envelopes into semantic events.
type Dispatcher struct {
	r *envelope.Reader
}

// NewDispatcher creates a Dispatcher with the given buffer limit
// (0 selects the reader default).
func NewDispatcher(limit int) *Dispatcher {
	return &Dispatcher{r: envelope.NewReader(limit)}
}

// Push feeds chunk text and returns the semantic events for every envelope
// completed by it.
func (d *Dispatcher) Push(text string) ([]event.Event, error) {
	values, err := d.r.Push(text)
	var out []event.Event
	for _, v := range values {
		out = append(out, Translate(v)...)
	}
	return out, err
}

// Finish flushes the dispatcher at end of stream; incomplete trailing
// envelopes are dropped, never surfaced.
func (d *Dispatcher) Finish() []event.Event { return nil }

// Translate converts one complete envelope into semantic events.
func Translate(raw json.RawMessage) []event.Event {
	var env responseEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return []event.Event{event.Failed{Message: fmt.Sprintf("malformed response envelope: %v", err)}}
	}

	switch env.Type {
	case TypeOutputTextDelta:
		if text, ok := deltaText(env.Delta); ok && text != "" {
			return []event.Event{event.AnswerDelta{Text: text}}
		}
		return nil

	case TypeCompleted:
		return translateCompleted(env.Response)

	case TypeError:
		msg := "unknown error"
		var e struct {
			Message string `json:"message"`
		}
		if len(env.Error) > 0 && json.Unmarshal(env.Error, &e) == nil && e.Message != "" {
			msg = e.Message
		}
		return []event.Event{event.Failed{Message: "Error: " + msg}}

	default:
		// response.created, response.in_progress, and future event types
		// carry nothing the view needs.
		slog.Debug("skipping unknown response envelope type", "type", env.Type)
		return nil
	}
}

// deltaText extracts streaming text from the delta payload, which the wire
// delivers either as a bare string or as an object with a "text" field.
func deltaText(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s, true
	}
	var obj struct {
		Text string `json:"text"`
	}
	if json.Unmarshal(raw, &obj) == nil {
		return obj.Text, true
	}
	return "", false
}

// translateCompleted handles the terminal response.completed envelope. The
// completed payload is authoritative: its text replaces any accumulated
// delta text.
func translateCompleted(raw json.RawMessage) []event.Event {
	var resp struct {
		Output []outputBlock `json:"output"`
		Usage  *struct {
			InputTokens  int `json:"input_tokens"`
			OutputTokens int `json:"output_tokens"`
			TotalTokens  int `json:"total_tokens"`
		} `json:"usage,omitempty"`
	}

	var out []event.Event
	if len(raw) > 0 && json.Unmarshal(raw, &resp) == nil {
		if text, ok := firstOutputText(resp.Output); ok {
			out = append(out, event.AnswerFinal{Text: text})
		}
		if resp.Usage != nil {
			total := resp.Usage.TotalTokens
			if total == 0 {
				total = resp.Usage.InputTokens + resp.Usage.OutputTokens
			}
			if total > 0 {
				out = append(out, event.TokensUsed{Count: total})
			}
		}
	}
	return append(out, event.Done{})
}

// firstOutputText finds the first output_text-typed block of the response
// output, descending into message blocks that nest their content.
func firstOutputText(blocks []outputBlock) (string, bool) {
	for _, b := range blocks {
		if b.Type == "output_text" {
			return b.Text, true
		}
		if text, ok := firstOutputText(b.Content); ok {
			return text, true
		}
	}
	return "", false
}

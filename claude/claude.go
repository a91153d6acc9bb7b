// Package claude parses the Claude CLI stream-json wire format: NDJSON
// envelopes with a "type" discriminator (system, assistant, user, result,
// stream_event). The CLI is spawned with --include-partial-messages, so
// answer text arrives both as streaming deltas and as the complete assistant
// message; the dispatcher keeps only one of the two.
package claude

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/agentdeck/agentdeck/envelope"
	"github.com/agentdeck/agentdeck/event"
)

// Message types of the stream-json format.
const (
	TypeSystem      = "system"
	TypeAssistant   = "assistant"
	TypeUser        = "user"
	TypeResult      = "result"
	TypeStreamEvent = "stream_event"
)

type messageEnvelope struct {
	Type    string          `json:"type"`
	Subtype string          `json:"subtype,omitempty"`
	Event   json.RawMessage `json:"event,omitempty"`
	Message json.RawMessage `json:"message,omitempty"`

	// result fields
	IsError bool   `json:"is_error,omitempty"`
	Result  string `json:"result,omitempty"`
	Usage   *struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage,omitempty"`
}

type contentBlock struct {
	Type      string          `json:"type"`
	Text      string          `json:"text,omitempty"`
	Thinking  string          `json:"thinking,omitempty"`
	ID        string          `json:"id,omitempty"`
	Name      string          `json:"name,omitempty"`
	ToolUseID string          `json:"tool_use_id,omitempty"`
	IsError   *bool           `json:"is_error,omitempty"`
	Input     json.RawMessage `json:"input,omitempty"`
}

type streamEvent struct {
	Type         string          `json:"type"`
	Index        int             `json:"index"`
	ContentBlock json.RawMessage `json:"content_block,omitempty"`
	Delta        json.RawMessage `json:"delta,omitempty"`
}

// blockState tracks a content block being assembled from streaming deltas,
// keyed by content block index.
type blockState struct {
	blockType string
	toolID    string
}

// Dispatcher folds stream-json envelopes into semantic events.
type Dispatcher struct {
	r      *envelope.Reader
	blocks map[int]*blockState

	// streamedText/streamedThinking record that partial deltas already
	// carried the content, so the duplicate complete assistant message must
	// be skipped.
	streamedText     bool
	streamedThinking bool
}

// NewDispatcher creates a Dispatcher with the given buffer limit
// (0 selects the reader default).
func NewDispatcher(limit int) *Dispatcher {
	return &Dispatcher{
		r:      envelope.NewReader(limit),
		blocks: make(map[int]*blockState),
	}
}

// Push feeds chunk text and returns the semantic events for every envelope
// completed by it.
func (d *Dispatcher) Push(text string) ([]event.Event, error) {
	values, err := d.r.Push(text)
	var out []event.Event
	for _, v := range values {
		out = append(out, d.translate(v)...)
	}
	return out, err
}

// Finish flushes the dispatcher at end of stream; incomplete trailing
// envelopes are dropped, never surfaced.
func (d *Dispatcher) Finish() []event.Event { return nil }

func (d *Dispatcher) translate(raw json.RawMessage) []event.Event {
	var env messageEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return []event.Event{event.Failed{Message: fmt.Sprintf("malformed claude envelope: %v", err)}}
	}

	switch env.Type {
	case TypeStreamEvent:
		return d.translateStreamEvent(env.Event)
	case TypeAssistant:
		return d.translateAssistant(env.Message)
	case TypeUser:
		return d.translateUser(env.Message)
	case TypeResult:
		return d.translateResult(env)
	case TypeSystem:
		// init metadata; nothing the view needs.
		return nil
	default:
		slog.Debug("skipping unknown claude message type", "type", env.Type)
		return nil
	}
}

func (d *Dispatcher) translateStreamEvent(raw json.RawMessage) []event.Event {
	var se streamEvent
	if len(raw) == 0 || json.Unmarshal(raw, &se) != nil {
		return nil
	}

	switch se.Type {
	case "message_start":
		d.blocks = make(map[int]*blockState)
		return nil

	case "content_block_start":
		var block contentBlock
		if json.Unmarshal(se.ContentBlock, &block) != nil {
			return nil
		}
		state := &blockState{blockType: block.Type}
		d.blocks[se.Index] = state
		if block.Type == "tool_use" {
			state.toolID = block.ID
			return []event.Event{event.StepStarted{ID: block.ID, Label: block.Name}}
		}
		return nil

	case "content_block_delta":
		return d.translateDelta(se)

	case "content_block_stop":
		delete(d.blocks, se.Index)
		return nil

	default:
		return nil
	}
}

func (d *Dispatcher) translateDelta(se streamEvent) []event.Event {
	var delta struct {
		Type        string `json:"type"`
		Text        string `json:"text,omitempty"`
		Thinking    string `json:"thinking,omitempty"`
		PartialJSON string `json:"partial_json,omitempty"`
	}
	if json.Unmarshal(se.Delta, &delta) != nil {
		return nil
	}

	switch delta.Type {
	case "text_delta":
		d.streamedText = true
		if delta.Text == "" {
			return nil
		}
		return []event.Event{event.AnswerDelta{Text: delta.Text}}
	case "thinking_delta":
		d.streamedThinking = true
		if delta.Thinking == "" {
			return nil
		}
		return []event.Event{event.ThinkingDelta{Text: delta.Thinking}}
	case "input_json_delta":
		state := d.blocks[se.Index]
		if state == nil || state.toolID == "" || delta.PartialJSON == "" {
			return nil
		}
		return []event.Event{event.StepDelta{ID: state.toolID, Text: delta.PartialJSON}}
	default:
		return nil
	}
}

// translateAssistant handles a complete assistant message. With partial
// messages enabled the text/thinking blocks repeat what the deltas already
// delivered and are skipped; tool_use blocks are idempotent by ID so they
// are always emitted.
func (d *Dispatcher) translateAssistant(raw json.RawMessage) []event.Event {
	var msg struct {
		Content []contentBlock `json:"content"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &msg) != nil {
		return nil
	}

	var out []event.Event
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			if !d.streamedText && block.Text != "" {
				out = append(out, event.AnswerDelta{Text: block.Text})
			}
		case "thinking":
			if !d.streamedThinking && block.Thinking != "" {
				out = append(out, event.ThinkingDelta{Text: block.Thinking})
			}
		case "tool_use":
			out = append(out, event.StepStarted{ID: block.ID, Label: block.Name})
		}
	}
	return out
}

// translateUser handles tool results echoed back as user messages.
func (d *Dispatcher) translateUser(raw json.RawMessage) []event.Event {
	var msg struct {
		Content []contentBlock `json:"content"`
	}
	if len(raw) == 0 || json.Unmarshal(raw, &msg) != nil {
		return nil
	}

	var out []event.Event
	for _, block := range msg.Content {
		if block.Type != "tool_result" || block.ToolUseID == "" {
			continue
		}
		out = append(out, event.StepCompleted{
			ID:     block.ToolUseID,
			Failed: block.IsError != nil && *block.IsError,
		})
	}
	return out
}

func (d *Dispatcher) translateResult(env messageEnvelope) []event.Event {
	var out []event.Event
	if env.Usage != nil {
		if total := env.Usage.InputTokens + env.Usage.OutputTokens; total > 0 {
			out = append(out, event.TokensUsed{Count: total})
		}
	}
	if env.IsError {
		msg := env.Result
		if msg == "" {
			msg = "claude reported an error result"
		}
		return append(out, event.Failed{Message: msg})
	}
	if env.Result != "" {
		out = append(out, event.AnswerFinal{Text: env.Result})
	}
	return append(out, event.Done{})
}

// Package codex parses the Codex CLI streaming-events wire format: one JSON
// envelope per event with a "type" discriminator (thread.*, turn.*, item.*).
// Envelopes arrive through the incremental reader so chunk boundaries inside
// an envelope are invisible here.
package codex

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/agentdeck/agentdeck/envelope"
	"github.com/agentdeck/agentdeck/event"
)

// Envelope types of the streaming-events format.
const (
	TypeThreadStarted = "thread.started"
	TypeTurnStarted   = "turn.started"
	TypeTurnCompleted = "turn.completed"
	TypeTurnFailed    = "turn.failed"
	TypeItemStarted   = "item.started"
	TypeItemUpdated   = "item.updated"
	TypeItemCompleted = "item.completed"
	TypeError         = "error"
)

// Item types carried inside item.* envelopes.
const (
	ItemAgentMessage     = "agent_message"
	ItemReasoning        = "reasoning"
	ItemCommandExecution = "command_execution"
	ItemFileChange       = "file_change"
	ItemMCPToolCall      = "mcp_tool_call"
	ItemWebSearch        = "web_search"
)

// Item is the inner payload of item.* envelopes.
type Item struct {
	ID      string `json:"id"`
	Type    string `json:"type"`
	Text    string `json:"text,omitempty"`
	Command string `json:"command,omitempty"`
	Query   string `json:"query,omitempty"`
	Server  string `json:"server,omitempty"`
	Tool    string `json:"tool,omitempty"`
	Status  string `json:"status,omitempty"`
}

// Usage is the token usage block of turn.completed.
type Usage struct {
	InputTokens       int `json:"input_tokens"`
	CachedInputTokens int `json:"cached_input_tokens"`
	OutputTokens      int `json:"output_tokens"`
}

// Total returns the combined input and output token count.
func (u Usage) Total() int { return u.InputTokens + u.OutputTokens }

// threadEnvelope is the top-level envelope shape.
type threadEnvelope struct {
	Type  string          `json:"type"`
	Item  *Item           `json:"item,omitempty"`
	Usage *Usage          `json:"usage,omitempty"`
	Error json.RawMessage `json:"error,omitempty"`
}

// Dispatcher folds streaming-events envelopes into semantic events.
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

// Finish flushes the dispatcher at end of stream. An incomplete trailing
// envelope is dropped: a partial fragment must never surface as content.
func (d *Dispatcher) Finish() []event.Event { return nil }

// Translate converts one complete envelope into semantic events.
// Envelopes without a recognized type are ignored rather than failed so that
// new event types added upstream do not break the pipeline.
func Translate(raw json.RawMessage) []event.Event {
	var env threadEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return []event.Event{event.Failed{Message: fmt.Sprintf("malformed codex envelope: %v", err)}}
	}

	switch env.Type {
	case TypeItemStarted:
		if env.Item == nil || !isStepItem(env.Item.Type) {
			return nil
		}
		return []event.Event{event.StepStarted{ID: env.Item.ID, Label: itemLabel(env.Item)}}

	case TypeItemCompleted:
		if env.Item == nil {
			return nil
		}
		switch env.Item.Type {
		case ItemAgentMessage:
			return []event.Event{event.AnswerFinal{Text: env.Item.Text}}
		case ItemReasoning:
			if env.Item.Text == "" {
				return nil
			}
			return []event.Event{event.ThinkingDelta{Text: env.Item.Text}}
		default:
			if isStepItem(env.Item.Type) {
				return []event.Event{event.StepCompleted{
					ID:     env.Item.ID,
					Failed: env.Item.Status == "failed",
				}}
			}
			return nil
		}

	case TypeTurnCompleted:
		var out []event.Event
		if env.Usage != nil {
			out = append(out, event.TokensUsed{Count: env.Usage.Total()})
		}
		return append(out, event.Done{})

	case TypeTurnFailed, TypeError:
		return []event.Event{event.Failed{Message: errorMessage(env.Error, raw)}}

	case TypeThreadStarted, TypeTurnStarted, TypeItemUpdated:
		return nil

	default:
		slog.Debug("skipping unknown codex envelope type", "type", env.Type)
		return nil
	}
}

// isStepItem reports whether an item type represents a working step rather
// than message or reasoning content.
func isStepItem(itemType string) bool {
	switch itemType {
	case ItemAgentMessage, ItemReasoning, "":
		return false
	default:
		return true
	}
}

// itemLabel builds a short human-readable label for a step item.
func itemLabel(item *Item) string {
	switch item.Type {
	case ItemCommandExecution:
		if cmd := strings.TrimSpace(item.Command); cmd != "" {
			return cmd
		}
	case ItemWebSearch:
		if item.Query != "" {
			return "search: " + item.Query
		}
	case ItemMCPToolCall:
		if item.Tool != "" {
			if item.Server != "" {
				return item.Server + "/" + item.Tool
			}
			return item.Tool
		}
	}
	return item.Type
}

// errorMessage extracts the producer's message from an error payload,
// falling back to a generic description.
func errorMessage(errRaw, raw json.RawMessage) string {
	if len(errRaw) > 0 {
		var e struct {
			Message string `json:"message"`
		}
		if json.Unmarshal(errRaw, &e) == nil && e.Message != "" {
			return e.Message
		}
	}
	var top struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(raw, &top) == nil && top.Message != "" {
		return top.Message
	}
	return "codex stream reported an error"
}

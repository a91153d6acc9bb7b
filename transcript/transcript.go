package transcript

import (
	"errors"
	"strings"

	"github.com/agentdeck/agentdeck/event"
)

// ErrNoHeader is returned by Parse when the input never produces a
// recognizable transcript header line.
var ErrNoHeader = errors.New("transcript: missing header line")

// Dispatcher feeds transcript-formatted stream chunks through the line
// grammar. Chunks may split lines at arbitrary byte positions; a partial
// trailing line is held until the rest arrives.
type Dispatcher struct {
	g       *grammar
	partial strings.Builder
}

// NewDispatcher returns a streaming transcript dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{g: newGrammar()}
}

// Push consumes one chunk of transcript text and returns the semantic
// events completed lines produced.
func (d *Dispatcher) Push(text string) ([]event.Event, error) {
	var out []event.Event
	for {
		line, rest, ok := strings.Cut(text, "\n")
		if !ok {
			d.partial.WriteString(text)
			return out, nil
		}
		full := d.partial.String() + line
		d.partial.Reset()
		out = append(out, d.g.feedLine(strings.TrimSuffix(full, "\r"))...)
		text = rest
	}
}

// Finish flushes the trailing partial line and terminal state.
func (d *Dispatcher) Finish() []event.Event {
	var out []event.Event
	if d.partial.Len() > 0 {
		line := d.partial.String()
		d.partial.Reset()
		out = append(out, d.g.feedLine(strings.TrimSuffix(line, "\r"))...)
	}
	return append(out, d.g.finish()...)
}

// Document is a fully parsed transcript.
type Document struct {
	Agent      string            `json:"agent"`
	Command    string            `json:"command"`
	Meta       map[string]string `json:"meta,omitempty"`
	Working    []string          `json:"working,omitempty"`
	Thinking   string            `json:"thinking,omitempty"`
	Answer     string            `json:"answer,omitempty"`
	TokensUsed *int              `json:"tokensUsed,omitempty"`
	Success    bool              `json:"success"`
	Error      string            `json:"error,omitempty"`
}

// Parse reads a complete transcript in one pass. It runs the same line
// grammar as the streaming dispatcher and folds the resulting events, so a
// parsed document always agrees with the view a streamed session settles on.
func Parse(text string) (Document, error) {
	g := newGrammar()
	var doc Document
	for _, line := range strings.Split(text, "\n") {
		fold(&doc, g.feedLine(strings.TrimSuffix(line, "\r")))
	}
	fold(&doc, g.finish())

	if g.agent == "" {
		return Document{}, ErrNoHeader
	}
	doc.Agent = g.agent
	doc.Command = g.command
	if len(g.meta) > 0 {
		doc.Meta = g.meta
	}
	doc.Success = !g.errSeen
	return doc, nil
}

func fold(doc *Document, events []event.Event) {
	for _, ev := range events {
		switch ev := ev.(type) {
		case event.StepStarted:
			doc.Working = append(doc.Working, ev.Label)
		case event.ThinkingDelta:
			doc.Thinking += ev.Text
		case event.AnswerDelta:
			doc.Answer += ev.Text
		case event.AnswerFinal:
			doc.Answer = ev.Text
		case event.TokensUsed:
			count := ev.Count
			doc.TokensUsed = &count
		case event.Failed:
			doc.Error = ev.Message
		}
	}
}

// Package event defines the semantic event vocabulary shared by all wire
// format dispatchers. Each dispatcher normalizes its own protocol into this
// small set of events; the engine folds them into a session view. Consumers
// outside the engine never see these events, only the reconciled view.
package event

// Kind discriminates between event kinds.
type Kind int

const (
	// KindStepStarted fires when a working step (tool call, command) begins.
	KindStepStarted Kind = iota

	// KindStepDelta fires for streaming detail text attached to a step.
	KindStepDelta

	// KindStepCompleted fires when a step finishes.
	KindStepCompleted

	// KindThinkingDelta fires for streaming reasoning/thinking text.
	KindThinkingDelta

	// KindAnswerDelta fires for streaming answer text.
	KindAnswerDelta

	// KindAnswerFinal carries the authoritative complete answer text.
	KindAnswerFinal

	// KindTokensUsed carries the turn's token count.
	KindTokensUsed

	// KindFailed fires when the producer or the parse reported an error.
	KindFailed

	// KindDone fires when the turn completed successfully.
	KindDone
)

// Event is the interface for all semantic events.
type Event interface {
	Kind() Kind
}

// StepStarted begins a new working step keyed by ID.
type StepStarted struct {
	ID    string
	Label string
}

// Kind returns the event kind.
func (e StepStarted) Kind() Kind { return KindStepStarted }

// StepDelta appends detail text to an existing step.
type StepDelta struct {
	ID   string
	Text string
}

// Kind returns the event kind.
func (e StepDelta) Kind() Kind { return KindStepDelta }

// StepCompleted marks a step as finished.
type StepCompleted struct {
	ID string

	// Failed marks the step as failed rather than completed.
	Failed bool
}

// Kind returns the event kind.
func (e StepCompleted) Kind() Kind { return KindStepCompleted }

// ThinkingDelta appends streaming thinking text.
type ThinkingDelta struct {
	Text string
}

// Kind returns the event kind.
func (e ThinkingDelta) Kind() Kind { return KindThinkingDelta }

// AnswerDelta appends streaming answer text.
type AnswerDelta struct {
	Text string
}

// Kind returns the event kind.
func (e AnswerDelta) Kind() Kind { return KindAnswerDelta }

// AnswerFinal replaces any accumulated answer text with the authoritative
// complete text reported by the producer.
type AnswerFinal struct {
	Text string
}

// Kind returns the event kind.
func (e AnswerFinal) Kind() Kind { return KindAnswerFinal }

// TokensUsed carries the token count for the turn.
type TokensUsed struct {
	Count int
}

// Kind returns the event kind.
func (e TokensUsed) Kind() Kind { return KindTokensUsed }

// Failed terminates the session with a producer or parse error.
type Failed struct {
	Message string
}

// Kind returns the event kind.
func (e Failed) Kind() Kind { return KindFailed }

// Done terminates the session successfully.
type Done struct{}

// Kind returns the event kind.
func (e Done) Kind() Kind { return KindDone }

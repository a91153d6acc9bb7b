package engine

// Chunk is one stream fragment as delivered by a transport. Content may
// split protocol envelopes or transcript lines at any byte position.
type Chunk struct {
	SessionID string `json:"sessionId"`
	Content   string `json:"content"`
	Finished  bool   `json:"finished"`
}

// StepStatus is the lifecycle state of a step. Status only moves forward.
type StepStatus string

const (
	StepPending    StepStatus = "pending"
	StepInProgress StepStatus = "in_progress"
	StepCompleted  StepStatus = "completed"
	StepFailed     StepStatus = "failed"
)

// statusRank orders statuses so that a stale update can never move a step
// backwards.
var statusRank = map[StepStatus]int{
	StepPending:    0,
	StepInProgress: 1,
	StepCompleted:  2,
	StepFailed:     2,
}

// Step is one unit of agent work (a tool call, command run, or working
// entry) inside a session.
type Step struct {
	ID     string     `json:"id"`
	Label  string     `json:"label"`
	Detail string     `json:"detail,omitempty"`
	Status StepStatus `json:"status"`
}

// SessionView is the renderable snapshot of one session. Views returned by
// the engine are deep copies; callers may hold them across updates.
type SessionView struct {
	SessionID   string `json:"sessionId"`
	Format      Format `json:"format"`
	Steps       []Step `json:"steps,omitempty"`
	Thinking    string `json:"thinking,omitempty"`
	Answer      string `json:"answer,omitempty"`
	TokensUsed  *int   `json:"tokensUsed,omitempty"`
	Success     *bool  `json:"success,omitempty"`
	Error       string `json:"error,omitempty"`
	IsStreaming bool   `json:"isStreaming"`
}

// clone returns a deep copy safe to hand outside the engine lock.
func (v SessionView) clone() SessionView {
	out := v
	if v.Steps != nil {
		out.Steps = make([]Step, len(v.Steps))
		copy(out.Steps, v.Steps)
	}
	if v.TokensUsed != nil {
		count := *v.TokensUsed
		out.TokensUsed = &count
	}
	if v.Success != nil {
		ok := *v.Success
		out.Success = &ok
	}
	return out
}

// step returns the step with the given id, or nil.
func (v *SessionView) step(id string) *Step {
	for i := range v.Steps {
		if v.Steps[i].ID == id {
			return &v.Steps[i]
		}
	}
	return nil
}

package engine

import "github.com/agentdeck/agentdeck/event"

// fold applies semantic events to a session view. Terminal events freeze
// the session; anything after Done or Failed is ignored.
func (s *session) fold(events []event.Event) {
	for _, ev := range events {
		if s.frozen {
			return
		}
		s.foldOne(ev)
	}
}

func (s *session) foldOne(ev event.Event) {
	switch ev := ev.(type) {
	case event.StepStarted:
		if st := s.view.step(ev.ID); st != nil {
			if st.Label == "" {
				st.Label = ev.Label
			}
			return
		}
		s.view.Steps = append(s.view.Steps, Step{
			ID:     ev.ID,
			Label:  ev.Label,
			Status: StepInProgress,
		})

	case event.StepDelta:
		if st := s.view.step(ev.ID); st != nil {
			st.Detail += ev.Text
		}

	case event.StepCompleted:
		// Out-of-order or dropped start events must not disturb the fold;
		// a completion for an unknown step id is simply ignored.
		st := s.view.step(ev.ID)
		if st == nil {
			return
		}
		next := StepCompleted
		if ev.Failed {
			next = StepFailed
		}
		if statusRank[next] > statusRank[st.Status] {
			st.Status = next
		}

	case event.ThinkingDelta:
		s.view.Thinking += ev.Text

	case event.AnswerDelta:
		s.view.Answer += ev.Text

	case event.AnswerFinal:
		s.view.Answer = ev.Text

	case event.TokensUsed:
		count := ev.Count
		s.view.TokensUsed = &count

	case event.Failed:
		s.view.Error = ev.Message
		if s.view.Answer != "" {
			s.view.Answer += "\n\n" + ev.Message
		} else {
			s.view.Answer = ev.Message
		}
		s.terminal(false)

	case event.Done:
		s.terminal(true)
	}
}

// terminal freezes the session with the given outcome. In-flight steps are
// closed out so a finished view never shows work still running.
func (s *session) terminal(success bool) {
	s.view.Success = &success
	s.view.IsStreaming = false
	s.frozen = true
	for i := range s.view.Steps {
		st := &s.view.Steps[i]
		if statusRank[st.Status] < statusRank[StepCompleted] {
			if success {
				st.Status = StepCompleted
			} else {
				st.Status = StepFailed
			}
		}
	}
}

// Package engine reconciles fragmented agent-stream chunks into stable,
// monotonically growing session views. It detects each session's wire
// format, feeds content through the matching dispatcher, and folds the
// resulting events into a SessionView after every chunk.
package engine

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/agentdeck/agentdeck/event"
	"github.com/agentdeck/agentdeck/sanitize"
)

// Dispatcher turns raw stream text for one session into semantic events.
// Implementations buffer partial envelopes or lines across Push calls.
type Dispatcher interface {
	// Push consumes one chunk and returns the events completed by it.
	// A non-nil error poisons the session; no further Push calls follow.
	Push(text string) ([]event.Event, error)
	// Finish flushes any buffered tail once the stream ends.
	Finish() []event.Event
}

// Config tunes an Engine. The zero value is usable.
type Config struct {
	// BufferLimit caps each session's envelope buffer in bytes.
	// Zero means the dispatcher default.
	BufferLimit int
	// Logger receives per-session diagnostics. Nil means slog.Default.
	Logger *slog.Logger
}

// Engine owns all live sessions. All methods are safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	sessions map[string]*session
	cfg      Config
	log      *slog.Logger

	obsMu     sync.RWMutex
	observers []func(SessionView)
}

type session struct {
	view   SessionView
	disp   Dispatcher
	detect []byte
	frozen bool

	// endedCR records that the previous chunk ended mid "\r\n" pair, so
	// the pair normalizes to one newline regardless of where the
	// transport split it.
	endedCR bool
}

// New creates an engine with no sessions.
func New(cfg Config) *Engine {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		sessions: make(map[string]*session),
		cfg:      cfg,
		log:      log,
	}
}

// AddObserver registers a callback invoked with the updated view after every
// Apply or Fail. Observers run synchronously; keep them fast.
func (e *Engine) AddObserver(fn func(SessionView)) {
	e.obsMu.Lock()
	e.observers = append(e.observers, fn)
	e.obsMu.Unlock()
}

// Apply folds one chunk into its session and returns the updated view.
// Unknown sessions are created on first sight; chunks for a frozen session
// are ignored.
func (e *Engine) Apply(chunk Chunk) SessionView {
	e.mu.Lock()
	s := e.session(chunk.SessionID)
	if !s.frozen {
		e.apply(s, chunk)
	}
	view := s.view.clone()
	e.mu.Unlock()

	e.notify(view)
	return view
}

// apply runs under e.mu.
func (e *Engine) apply(s *session, chunk Chunk) {
	raw := chunk.Content
	if s.endedCR && strings.HasPrefix(raw, "\n") {
		raw = raw[1:]
	}
	s.endedCR = strings.HasSuffix(raw, "\r")
	content := sanitize.Sanitize(raw)

	if s.disp == nil {
		s.detect = append(s.detect, content...)
		format := detectFormat(string(s.detect), chunk.Finished)
		if format == FormatUnknown && len(s.detect) < detectLimit {
			return
		}
		if format == FormatUnknown {
			format = FormatRaw
		}
		s.view.Format = format
		s.disp = newDispatcher(format, e.cfg.BufferLimit)
		content = string(s.detect)
		s.detect = nil
		e.log.Debug("session format detected",
			"session", chunk.SessionID, "format", format)
	}

	events, err := s.disp.Push(content)
	s.fold(events)
	if err != nil {
		e.log.Warn("stream error",
			"session", chunk.SessionID, "error", err)
		s.fold([]event.Event{event.Failed{Message: "Stream error: " + err.Error()}})
		return
	}

	if chunk.Finished && !s.frozen {
		s.fold(s.disp.Finish())
		if !s.frozen {
			s.fold([]event.Event{event.Done{}})
		}
	}
}

// Fail marks a session as failed from outside the stream, e.g. the agent
// process exited with an error before producing terminal output.
func (e *Engine) Fail(sessionID, message string) SessionView {
	e.mu.Lock()
	s := e.session(sessionID)
	s.fold([]event.Event{event.Failed{Message: message}})
	view := s.view.clone()
	e.mu.Unlock()

	e.notify(view)
	return view
}

// View returns a snapshot of the session, if it exists.
func (e *Engine) View(sessionID string) (SessionView, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[sessionID]
	if !ok {
		return SessionView{}, false
	}
	return s.view.clone(), true
}

// Sessions returns the ids of all known sessions.
func (e *Engine) Sessions() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	ids := make([]string, 0, len(e.sessions))
	for id := range e.sessions {
		ids = append(ids, id)
	}
	return ids
}

// Drop discards a session and its buffered state.
func (e *Engine) Drop(sessionID string) {
	e.mu.Lock()
	delete(e.sessions, sessionID)
	e.mu.Unlock()
}

// Run consumes chunks until the channel closes or ctx is cancelled. Each
// chunk is applied in arrival order; observers see every resulting view.
func (e *Engine) Run(ctx context.Context, chunks <-chan Chunk) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				return nil
			}
			e.Apply(chunk)
		}
	}
}

// session returns the session for id, creating it on first sight.
// Caller holds e.mu.
func (e *Engine) session(id string) *session {
	s, ok := e.sessions[id]
	if !ok {
		s = &session{view: SessionView{SessionID: id, IsStreaming: true}}
		e.sessions[id] = s
	}
	return s
}

func (e *Engine) notify(view SessionView) {
	e.obsMu.RLock()
	obs := e.observers
	e.obsMu.RUnlock()
	for _, fn := range obs {
		fn(view)
	}
}

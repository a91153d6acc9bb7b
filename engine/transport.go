package engine

import "context"

// SessionError is an error reported by the transport outside the stream
// itself, e.g. the agent subprocess failed to spawn or exited abnormally.
type SessionError struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

// Source is the minimal transport shape the engine consumes: chunks in
// delivery order per session, plus an error channel. A test harness that
// preloads buffered channels satisfies it.
type Source interface {
	Chunks() <-chan Chunk
	Errors() <-chan SessionError
}

// Bind drains src into the engine until both channels close or ctx is
// cancelled. Chunks are applied and transport errors fail their session;
// observers see every resulting view.
func Bind(ctx context.Context, eng *Engine, src Source) error {
	chunks := src.Chunks()
	errs := src.Errors()
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			eng.Apply(chunk)
		case serr, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			eng.Fail(serr.SessionID, serr.Message)
		}
	}
	return nil
}

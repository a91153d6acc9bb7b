package sanitize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize_StripsCSISequences(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("\x1b[31mhello\x1b[0m"))
	assert.Equal(t, "done", Sanitize("\x1b[2K\x1b[1Gdone"))
}

func TestSanitize_StripsOSCSequences(t *testing.T) {
	assert.Equal(t, "after", Sanitize("\x1b]0;title\x07after"))
	assert.Equal(t, "after", Sanitize("\x1b]8;;http://x\x1b\\after"))
}

func TestSanitize_NormalizesCarriageReturns(t *testing.T) {
	assert.Equal(t, "a\nb\n", Sanitize("a\r\nb\r\n"))
	assert.Equal(t, "25%\n50%\n", Sanitize("25%\r50%\r"))
}

func TestSanitize_TruncatedEscapeAtChunkEnd(t *testing.T) {
	assert.Equal(t, "text", Sanitize("text\x1b"))
	assert.Equal(t, "text", Sanitize("text\x1b["))
}

func TestSanitize_PassesStructuredPayloadThrough(t *testing.T) {
	line := `{"type":"item.started","text":"has  bytes"}`
	assert.Equal(t, line, Sanitize(line))

	sse := `data: {"type":"response.output_text.delta","delta":"x"}`
	assert.Equal(t, sse, Sanitize(sse))
}

func TestFilterNoise_CodexNodeWarnings(t *testing.T) {
	_, keep := FilterNoise("codex",
		"(Use `node --trace-warnings ...` to show where the warning was created)")
	assert.False(t, keep)

	_, keep = FilterNoise("codex",
		"(node:123) Warning: Accessing non-existent property 'lineno' of module exports inside circular dependency")
	assert.False(t, keep)

	line, keep := FilterNoise("codex", `{"type":"turn.started"}`)
	assert.True(t, keep)
	assert.Equal(t, `{"type":"turn.started"}`, line)
}

func TestFilterNoise_ClaudeMetadataAndControlLines(t *testing.T) {
	_, keep := FilterNoise("claude", `{"session_id":"abc","uuid":"def"}`)
	assert.False(t, keep)

	_, keep = FilterNoise("claude", "[DONE]")
	assert.False(t, keep)

	_, keep = FilterNoise("claude", "?25h")
	assert.False(t, keep)

	line, keep := FilterNoise("claude", `{"type":"result","session_id":"abc"}`)
	assert.True(t, keep)
	assert.Equal(t, `{"type":"result","session_id":"abc"}`, line)
}

func TestFilterNoise_UnknownAgentKeepsEverything(t *testing.T) {
	line, keep := FilterNoise("gemini", "plain output line")
	assert.True(t, keep)
	assert.Equal(t, "plain output line", line)
}

package engine

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func applyAll(t *testing.T, eng *Engine, sessionID, text string, chunkSize int) SessionView {
	t.Helper()
	var view SessionView
	for pos := 0; pos < len(text); pos += chunkSize {
		end := min(pos+chunkSize, len(text))
		view = eng.Apply(Chunk{
			SessionID: sessionID,
			Content:   text[pos:end],
			Finished:  end == len(text),
		})
	}
	return view
}

const codexStream = `{"type":"thread.started","thread_id":"t1"}
{"type":"item.started","item":{"id":"item_0","type":"command_execution","command":"go vet ./...","status":"in_progress"}}
{"type":"item.completed","item":{"id":"item_0","type":"command_execution","command":"go vet ./...","status":"completed"}}
{"type":"item.completed","item":{"id":"item_1","type":"agent_message","text":"All checks passed."}}
{"type":"turn.completed","usage":{"input_tokens":5000,"cached_input_tokens":4000,"output_tokens":347}}
`

func TestEngine_CodexStream(t *testing.T) {
	eng := New(Config{})
	view := applyAll(t, eng, "s1", codexStream, 64)

	assert.Equal(t, FormatCodex, view.Format)
	require.Len(t, view.Steps, 1)
	assert.Equal(t, "go vet ./...", view.Steps[0].Label)
	assert.Equal(t, StepCompleted, view.Steps[0].Status)
	assert.Equal(t, "All checks passed.", view.Answer)
	require.NotNil(t, view.TokensUsed)
	assert.Equal(t, 5347, *view.TokensUsed)
	require.NotNil(t, view.Success)
	assert.True(t, *view.Success)
	assert.False(t, view.IsStreaming)
}

func TestEngine_ChunkBoundaryInvariance(t *testing.T) {
	want := applyAll(t, New(Config{}), "s", codexStream, len(codexStream))

	for _, chunkSize := range []int{1, 2, 3, 5, 17, 100} {
		got := applyAll(t, New(Config{}), "s", codexStream, chunkSize)
		assert.Equal(t, want, got, "chunk size %d", chunkSize)
	}
}

func TestEngine_ChunkBoundaryInvarianceCRLF(t *testing.T) {
	stream := "Agent: codex | Command: x\r\n[1:00] codex\r\nline1\r\nline2\r\n[1:01] tokens used: 3\r\n"
	want := applyAll(t, New(Config{}), "s", stream, len(stream))
	assert.Equal(t, "line1\nline2", want.Answer)

	for _, chunkSize := range []int{1, 2, 5, 9} {
		got := applyAll(t, New(Config{}), "s", stream, chunkSize)
		assert.Equal(t, want, got, "chunk size %d", chunkSize)
	}
}

func TestEngine_ResponsesErrorAppendsToAnswer(t *testing.T) {
	stream := `{"type":"response.output_text.delta","delta":"Partial answ"}
{"type":"response.output_text.delta","delta":"er text"}
{"type":"response.error","error":{"message":"connection reset"}}
`
	view := applyAll(t, New(Config{}), "s", stream, 32)

	assert.Equal(t, FormatResponses, view.Format)
	assert.Equal(t, "Partial answer text\n\nError: connection reset", view.Answer)
	assert.Equal(t, "Error: connection reset", view.Error)
	require.NotNil(t, view.Success)
	assert.False(t, *view.Success)
	assert.False(t, view.IsStreaming)
}

func TestEngine_ClaudeDetection(t *testing.T) {
	stream := `{"type":"system","subtype":"init","session_id":"abc"}
{"type":"assistant","message":{"content":[{"type":"text","text":"hi"}]}}
{"type":"result","subtype":"success","is_error":false,"result":"hi","usage":{"input_tokens":10,"output_tokens":2}}
`
	view := applyAll(t, New(Config{}), "s", stream, 24)

	assert.Equal(t, FormatClaude, view.Format)
	assert.Equal(t, "hi", view.Answer)
	require.NotNil(t, view.TokensUsed)
	assert.Equal(t, 12, *view.TokensUsed)
}

func TestEngine_TranscriptDetection(t *testing.T) {
	stream := "🔗 Agent: codex | Command: hello\n[1:00] codex\nhi there\n[1:01] tokens used: 7\n"
	view := applyAll(t, New(Config{}), "s", stream, 9)

	assert.Equal(t, FormatTranscript, view.Format)
	assert.Equal(t, "hi there", view.Answer)
	require.NotNil(t, view.TokensUsed)
	assert.Equal(t, 7, *view.TokensUsed)
}

func TestEngine_RawPassthrough(t *testing.T) {
	view := applyAll(t, New(Config{}), "s", "plain output\nwith lines\n", 8)

	assert.Equal(t, FormatRaw, view.Format)
	assert.Equal(t, "plain output\nwith lines\n", view.Answer)
	require.NotNil(t, view.Success)
	assert.True(t, *view.Success)
}

func TestEngine_DetectionWaitsForCompleteLine(t *testing.T) {
	eng := New(Config{})
	view := eng.Apply(Chunk{SessionID: "s", Content: "🔗 Agent: co"})
	assert.Equal(t, FormatUnknown, view.Format)
	assert.True(t, view.IsStreaming)

	view = eng.Apply(Chunk{SessionID: "s", Content: "dex | Command: x\n"})
	assert.Equal(t, FormatTranscript, view.Format)
}

func TestEngine_MultiSessionIsolation(t *testing.T) {
	eng := New(Config{})

	viewA := applyAll(t, eng, "a", codexStream, 16)
	viewB := eng.Apply(Chunk{
		SessionID: "b",
		Content:   `{"type":"response.output_text.delta","delta":"B text"}` + "\n",
	})

	assert.Equal(t, FormatCodex, viewA.Format)
	assert.Equal(t, FormatResponses, viewB.Format)
	assert.Equal(t, "B text", viewB.Answer)
	assert.True(t, viewB.IsStreaming)

	got, ok := eng.View("a")
	require.True(t, ok)
	assert.Equal(t, "All checks passed.", got.Answer)
}

func TestEngine_IdempotentStepStart(t *testing.T) {
	eng := New(Config{})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.started","item":{"id":"item_0","type":"command_execution","command":"ls"}}` + "\n"})
	view := eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.started","item":{"id":"item_0","type":"command_execution","command":"ls"}}` + "\n"})
	require.Len(t, view.Steps, 1)
}

func TestEngine_StepStatusNeverRegresses(t *testing.T) {
	eng := New(Config{})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.started","item":{"id":"i","type":"command_execution","command":"x"}}` + "\n"})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.completed","item":{"id":"i","type":"command_execution","status":"completed"}}` + "\n"})
	view := eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.started","item":{"id":"i","type":"command_execution","command":"x"}}` + "\n"})

	require.Len(t, view.Steps, 1)
	assert.Equal(t, StepCompleted, view.Steps[0].Status)
}

func TestEngine_SplitArrayValueNeverLeaks(t *testing.T) {
	eng := New(Config{})
	view := eng.Apply(Chunk{
		SessionID: "s",
		Content:   `{"type":"item.started","item":{"id":"i","type":"mcp_tool_call","tool":"search","tags":["alpha","be`,
	})
	assert.NotContains(t, view.Answer, "be")
	assert.Empty(t, view.Steps)

	view = eng.Apply(Chunk{SessionID: "s", Content: `ta"]}}` + "\n"})
	require.Len(t, view.Steps, 1)
	assert.Equal(t, "search", view.Steps[0].Label)
}

func TestEngine_CompletionForUnknownStepIgnored(t *testing.T) {
	eng := New(Config{})
	view := eng.Apply(Chunk{
		SessionID: "s",
		Content:   `{"type":"item.completed","item":{"id":"ghost","type":"command_execution","status":"completed"}}` + "\n",
	})
	assert.Empty(t, view.Steps)
}

func TestEngine_FrozenSessionIgnoresLateChunks(t *testing.T) {
	eng := New(Config{})
	applyAll(t, eng, "s", codexStream, 64)
	view := eng.Apply(Chunk{
		SessionID: "s",
		Content:   `{"type":"item.completed","item":{"id":"x","type":"agent_message","text":"late"}}` + "\n",
	})
	assert.Equal(t, "All checks passed.", view.Answer)
}

func TestEngine_Fail(t *testing.T) {
	eng := New(Config{})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"response.output_text.delta","delta":"partial"}` + "\n"})
	view := eng.Fail("s", "process exited with code 137")

	assert.Equal(t, "partial\n\nprocess exited with code 137", view.Answer)
	assert.Equal(t, "process exited with code 137", view.Error)
	require.NotNil(t, view.Success)
	assert.False(t, *view.Success)
}

func TestEngine_FinishedWithoutTerminalEnvelope(t *testing.T) {
	eng := New(Config{})
	view := eng.Apply(Chunk{
		SessionID: "s",
		Content:   `{"type":"response.output_text.delta","delta":"only deltas"}` + "\n",
		Finished:  true,
	})
	assert.Equal(t, "only deltas", view.Answer)
	require.NotNil(t, view.Success)
	assert.True(t, *view.Success)
	assert.False(t, view.IsStreaming)
}

func TestEngine_ViewsAreDeepCopies(t *testing.T) {
	eng := New(Config{})
	first := eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.started","item":{"id":"i","type":"command_execution","command":"x"}}` + "\n"})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"item.completed","item":{"id":"i","type":"command_execution","status":"failed"}}` + "\n"})

	assert.Equal(t, StepInProgress, first.Steps[0].Status)
}

func TestEngine_DropForgetsSession(t *testing.T) {
	eng := New(Config{})
	eng.Apply(Chunk{SessionID: "s", Content: "hello\n", Finished: true})
	eng.Drop("s")
	_, ok := eng.View("s")
	assert.False(t, ok)
}

func TestEngine_Observers(t *testing.T) {
	eng := New(Config{})
	var seen []string
	eng.AddObserver(func(v SessionView) {
		seen = append(seen, fmt.Sprintf("%s:%v", v.SessionID, v.IsStreaming))
	})
	eng.Apply(Chunk{SessionID: "s", Content: "hello\n", Finished: true})
	assert.Equal(t, []string{"s:false"}, seen)
}

func TestEngine_BufferLimitFailsSession(t *testing.T) {
	eng := New(Config{BufferLimit: 32})
	eng.Apply(Chunk{SessionID: "s", Content: `{"type":"response.output_text.delta","delta":"x"}` + "\n"})
	view := eng.Apply(Chunk{SessionID: "s", Content: `{"never":"closes ...............................`})

	require.NotNil(t, view.Success)
	assert.False(t, *view.Success)
	assert.Contains(t, view.Error, "Stream error")
}

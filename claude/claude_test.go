package claude

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentdeck/agentdeck/event"
)

func TestDispatcher_TextDeltas(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"stream_event","event":{"type":"content_block_start","index":0,"content_block":{"type":"text"}}}` + "\n" +
		`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}}` + "\n" +
		`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":" world"}}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, event.AnswerDelta{Text: "Hello"}, events[0])
	assert.Equal(t, event.AnswerDelta{Text: " world"}, events[1])
}

func TestDispatcher_AssistantSkipsStreamedText(t *testing.T) {
	d := NewDispatcher(0)

	_, err := d.Push(`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello world"}}}` + "\n")
	require.NoError(t, err)

	events, err := d.Push(`{"type":"assistant","message":{"content":[{"type":"text","text":"Hello world"}]}}` + "\n")
	require.NoError(t, err)
	assert.Empty(t, events)
}

func TestDispatcher_AssistantTextWithoutDeltas(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"assistant","message":{"content":[{"type":"text","text":"Direct answer"}]}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.AnswerDelta{Text: "Direct answer"}, events[0])
}

func TestDispatcher_ToolLifecycle(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"stream_event","event":{"type":"content_block_start","index":1,"content_block":{"type":"tool_use","id":"toolu_01","name":"Bash"}}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.StepStarted{ID: "toolu_01", Label: "Bash"}, events[0])

	events, err = d.Push(`{"type":"stream_event","event":{"type":"content_block_delta","index":1,"delta":{"type":"input_json_delta","partial_json":"{\"command\":\"ls\"}"}}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.StepDelta{ID: "toolu_01", Text: `{"command":"ls"}`}, events[0])

	events, err = d.Push(`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_01","content":"ok","is_error":false}]}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.StepCompleted{ID: "toolu_01"}, events[0])
}

func TestDispatcher_ToolResultError(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"toolu_02","content":"boom","is_error":true}]}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.StepCompleted{ID: "toolu_02", Failed: true}, events[0])
}

func TestDispatcher_ThinkingDeltas(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"thinking_delta","thinking":"Let me see."}}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.ThinkingDelta{Text: "Let me see."}, events[0])
}

func TestDispatcher_ResultSuccess(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"result","subtype":"success","is_error":false,"result":"Final text","usage":{"input_tokens":100,"output_tokens":40}}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 3)
	assert.Equal(t, event.TokensUsed{Count: 140}, events[0])
	assert.Equal(t, event.AnswerFinal{Text: "Final text"}, events[1])
	assert.Equal(t, event.Done{}, events[2])
}

func TestDispatcher_ResultError(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"result","subtype":"error_during_execution","is_error":true,"result":"execution failed"}` + "\n")
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, event.Failed{Message: "execution failed"}, events[0])
}

func TestDispatcher_SystemInitIgnored(t *testing.T) {
	d := NewDispatcher(0)

	events, err := d.Push(`{"type":"system","subtype":"init","session_id":"abc"}` + "\n")
	require.NoError(t, err)
	assert.Empty(t, events)
}

package parser

import (
	"testing"
)

func TestParseClaudeLine_TextDelta(t *testing.T) {
	log := testLogger()

	line := `{"type":"stream_event","event":{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"Hello"}}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventText {
		t.Errorf("Type = %v, want text", events[0].Type)
	}
	if events[0].Text != "Hello" {
		t.Errorf("Text = %q, want Hello", events[0].Text)
	}
}

func TestParseClaudeLine_ThinkingDelta(t *testing.T) {
	log := testLogger()

	line := `{"type":"stream_event","event":{"type":"content_block_delta","delta":{"type":"thinking_delta","thinking":"hmm"}}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventThinking || events[0].Text != "hmm" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestParseClaudeLine_MessageStartNoEvents(t *testing.T) {
	log := testLogger()

	line := `{"type":"stream_event","event":{"type":"message_start","message":{"id":"msg_123"}}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 0 {
		t.Errorf("expected 0 events for message_start, got %d", len(events))
	}
}

func TestParseClaudeLine_AssistantText(t *testing.T) {
	log := testLogger()

	line := `{"type":"assistant","message":{"content":[{"type":"text","text":"The answer is 42."}]}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventText || events[0].Text != "The answer is 42." {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestParseClaudeLine_ToolUse(t *testing.T) {
	log := testLogger()

	line := `{"type":"assistant","message":{"content":[{"type":"tool_use","id":"tu_1","name":"Read","input":{"file_path":"/src/main.go"}}]}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	ev := events[0]
	if ev.Type != EventToolCall {
		t.Errorf("Type = %v, want tool_call", ev.Type)
	}
	if ev.ToolName != "Read" {
		t.Errorf("ToolName = %q, want Read", ev.ToolName)
	}
	if ev.Invoke {
		t.Error("vendor tool_use must not be flagged as a bridge invocation")
	}
	if ev.Text != "Reading: main.go" {
		t.Errorf("Text = %q, want 'Reading: main.go'", ev.Text)
	}
	if ev.ToolArgs["file_path"] != "/src/main.go" {
		t.Errorf("ToolArgs = %v", ev.ToolArgs)
	}
}

func TestParseClaudeLine_ToolResult(t *testing.T) {
	log := testLogger()

	line := `{"type":"user","message":{"content":[{"type":"tool_result","tool_use_id":"tu_1","content":[{"type":"text","text":"file contents"}]}]}}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventToolResult {
		t.Errorf("Type = %v, want tool_result", events[0].Type)
	}
	if events[0].Text != "file contents" {
		t.Errorf("Text = %q", events[0].Text)
	}
}

func TestParseClaudeLine_SystemInit(t *testing.T) {
	log := testLogger()

	line := `{"type":"system","subtype":"init","session_id":"abc"}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventSystem {
		t.Errorf("Type = %v, want system", events[0].Type)
	}
}

func TestParseClaudeLine_ErrorResult(t *testing.T) {
	log := testLogger()

	line := `{"type":"result","subtype":"error_during_execution","is_error":true,"result":"credit exhausted"}` + "\n"
	events, _ := Parse(AgentClaude, line, "", log)

	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventError {
		t.Errorf("Type = %v, want error", events[0].Type)
	}
	if events[0].Text != "credit exhausted" {
		t.Errorf("Text = %q", events[0].Text)
	}
}

func TestParseGeminiLine_ToolCallAndResult(t *testing.T) {
	log := testLogger()

	events, _ := Parse(AgentGemini, `{"type":"tool_call","name":"grep","args":{"pattern":"foo"}}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventToolCall || events[0].ToolName != "grep" {
		t.Errorf("unexpected event %+v", events[0])
	}
	if events[0].Invoke {
		t.Error("vendor tool_call must not be flagged as a bridge invocation")
	}

	events, _ = Parse(AgentGemini, `{"type":"tool_result","name":"grep","result":"3 matches"}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventToolResult || events[0].Text != "3 matches" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestParseGeminiLine_Error(t *testing.T) {
	log := testLogger()

	events, _ := Parse(AgentGemini, `{"type":"error","message":"quota exceeded"}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventError || events[0].Text != "quota exceeded" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestParseCodexLine_AgentMessage(t *testing.T) {
	log := testLogger()

	events, _ := Parse(AgentCodex, `{"id":"1","msg":{"type":"agent_message","message":"done"}}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventText || events[0].Text != "done" {
		t.Errorf("unexpected event %+v", events[0])
	}
}

func TestParseCodexLine_ExecCommand(t *testing.T) {
	log := testLogger()

	events, _ := Parse(AgentCodex, `{"id":"1","msg":{"type":"exec_command_begin","command":["ls","-la"]}}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventToolCall || events[0].ToolName != "exec" {
		t.Errorf("unexpected event %+v", events[0])
	}

	events, _ = Parse(AgentCodex, `{"id":"1","msg":{"type":"exec_command_end","stdout":"main.go","exit_code":0}}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventToolResult || events[0].Text != "main.go" {
		t.Errorf("unexpected event %+v", events[0])
	}

	events, _ = Parse(AgentCodex, `{"id":"1","msg":{"type":"exec_command_end","stderr":"no such file","exit_code":1}}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventError {
		t.Errorf("Type = %v, want error", events[0].Type)
	}
}

package parser

import (
	"log/slog"
	"os"
	"reflect"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestParse_PartialChunkBuffered(t *testing.T) {
	log := testLogger()
	line := `{"type":"text","content":"hello"}`

	// First half of the object — nothing complete yet
	events, buf := Parse(AgentGemini, line[:10], "", log)
	if len(events) != 0 {
		t.Fatalf("expected 0 events for partial chunk, got %d", len(events))
	}
	if buf != line[:10] {
		t.Errorf("buffer = %q, want %q", buf, line[:10])
	}

	// Second half plus terminator completes the line
	events, buf = Parse(AgentGemini, line[10:]+"\n", buf, log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventText || events[0].Text != "hello" {
		t.Errorf("unexpected event %+v", events[0])
	}
	if buf != "" {
		t.Errorf("buffer should be empty, got %q", buf)
	}
}

func TestParse_SplitEqualsUnsplit(t *testing.T) {
	log := testLogger()
	stream := `{"type":"text","content":"one"}` + "\n" +
		`{"type":"tool_call","name":"grep","args":{"pattern":"x"}}` + "\n" +
		`{"type":"text","content":"two"}` + "\n"

	unsplit, buf := Parse(AgentGemini, stream, "", log)
	if buf != "" {
		t.Fatalf("unsplit buffer should be empty, got %q", buf)
	}

	// Split at every possible boundary, including mid-JSON-object
	for cut := 0; cut <= len(stream); cut++ {
		first, b := Parse(AgentGemini, stream[:cut], "", log)
		second, b := Parse(AgentGemini, stream[cut:], b, log)
		combined := append(first, second...)

		if b != "" {
			t.Fatalf("cut %d: trailing buffer %q", cut, b)
		}
		if !reflect.DeepEqual(combined, unsplit) {
			t.Fatalf("cut %d: split events differ from unsplit\nsplit:   %+v\nunsplit: %+v", cut, combined, unsplit)
		}
	}
}

func TestParse_MalformedLineIgnored(t *testing.T) {
	log := testLogger()
	stream := `{"type":"text","content":"before"}` + "\n" +
		`{not valid json` + "\n" +
		`{"type":"text","content":"after"}` + "\n"

	events, buf := Parse(AgentGemini, stream, "", log)
	if buf != "" {
		t.Errorf("buffer should be empty, got %q", buf)
	}
	if len(events) != 2 {
		t.Fatalf("expected 2 events (malformed line dropped), got %d", len(events))
	}
	if events[0].Text != "before" || events[1].Text != "after" {
		t.Errorf("unexpected events %+v", events)
	}
}

func TestParse_NonJSONNoiseDropped(t *testing.T) {
	log := testLogger()
	stream := "Loading model...\n" +
		`{"type":"text","content":"real"}` + "\n" +
		"\n" +
		"warning: something\n"

	events, _ := Parse(AgentGemini, stream, "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d: %+v", len(events), events)
	}
	if events[0].Text != "real" {
		t.Errorf("Text = %q, want real", events[0].Text)
	}
}

func TestParse_BridgeInvocationDetected(t *testing.T) {
	log := testLogger()
	line := `{"tool_call":{"name":"read_file","arguments":{"path":"a.txt"},"server":"fs"}}` + "\n"

	// The bridge shape is recognized for every agent type
	for _, agent := range []AgentType{AgentClaude, AgentGemini, AgentCodex, AgentType("unknown")} {
		events, _ := Parse(agent, line, "", log)
		if len(events) != 1 {
			t.Fatalf("%s: expected 1 event, got %d", agent, len(events))
		}
		ev := events[0]
		if ev.Type != EventToolCall {
			t.Errorf("%s: Type = %v, want tool_call", agent, ev.Type)
		}
		if !ev.Invoke {
			t.Errorf("%s: Invoke should be true for bridge invocation", agent)
		}
		if ev.ToolName != "read_file" || ev.ToolServer != "fs" {
			t.Errorf("%s: unexpected tool fields %+v", agent, ev)
		}
		if ev.ToolArgs["path"] != "a.txt" {
			t.Errorf("%s: ToolArgs = %v", agent, ev.ToolArgs)
		}
	}
}

func TestParse_UnknownAgentBestEffort(t *testing.T) {
	log := testLogger()

	events, _ := Parse(AgentType("other"), `{"message":"hi there"}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Type != EventText || events[0].Text != "hi there" {
		t.Errorf("unexpected event %+v", events[0])
	}

	// No text-bearing field → pretty-printed raw object
	events, _ = Parse(AgentType("other"), `{"count":3}`+"\n", "", log)
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Text == "" {
		t.Error("fallback text should not be empty")
	}
}

func TestParse_CRLFTerminators(t *testing.T) {
	log := testLogger()

	events, buf := Parse(AgentGemini, `{"type":"text","content":"crlf"}`+"\r\n", "", log)
	if buf != "" {
		t.Errorf("buffer = %q, want empty", buf)
	}
	if len(events) != 1 || events[0].Text != "crlf" {
		t.Fatalf("unexpected events %+v", events)
	}
}

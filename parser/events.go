package parser

import "encoding/json"

// EventType identifies the semantic category of a session event.
type EventType string

const (
	// EventText is displayable assistant output.
	EventText EventType = "text"

	// EventToolCall is a tool invocation surfaced by the agent. When Invoke
	// is set on the event, the session runtime must resolve and execute it
	// through the bridge; otherwise it is informational (the agent CLI runs
	// the tool itself).
	EventToolCall EventType = "tool_call"

	// EventToolResult is the completion of a previously surfaced tool call.
	EventToolResult EventType = "tool_result"

	// EventThinking is extended reasoning output.
	EventThinking EventType = "thinking"

	// EventError is an error reported by the agent process.
	EventError EventType = "error"

	// EventSystem is lifecycle or housekeeping output (init, result summary,
	// session termination).
	EventSystem EventType = "system"
)

// Event is one typed, displayable unit of output from a session.
// Events are emitted once and never mutated.
type Event struct {
	Type EventType

	// Text is the human-readable display string for the event.
	Text string

	// Raw is the original JSON line the event was derived from, when the
	// event came from a structured stream. Nil for verbatim passthrough.
	Raw json.RawMessage

	// Tool call fields, populated when Type is EventToolCall.
	ToolName   string
	ToolArgs   map[string]any
	ToolServer string

	// Invoke is true when the event is an in-band bridge invocation that the
	// session runtime must execute, as opposed to a tool the agent CLI
	// executes on its own.
	Invoke bool
}

// AgentType selects the vendor-specific output mapping.
type AgentType string

const (
	AgentClaude AgentType = "claude"
	AgentGemini AgentType = "gemini"
	AgentCodex  AgentType = "codex"
)

// Package parser converts raw agent output streams into typed session events.
//
// Agent CLIs running in structured-stream mode emit one JSON object per line,
// but the shapes differ per vendor. Parse buffers partial trailing data so a
// JSON object split across I/O chunks is never decoded early, and dispatches
// complete lines to a vendor-specific mapping. Adding a vendor means adding
// one entry to the variant table, not branching deeper into existing code.
package parser

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// variantParser maps one decoded line to zero or more events.
type variantParser func(line []byte, log *slog.Logger) []Event

// variants is the closed set of vendor output mappings.
var variants = map[AgentType]variantParser{
	AgentClaude: parseClaudeLine,
	AgentGemini: parseGeminiLine,
	AgentCodex:  parseCodexLine,
}

// Parse appends chunk to buffer, splits on line terminators, and converts
// every complete line into events. The final, possibly incomplete, fragment
// is returned as the new buffer and is never parsed in this call — this
// guards against a JSON object being split across I/O chunks.
//
// Parse is stateless beyond the buffer argument: it is safe to call
// repeatedly with partial chunks and from tests.
func Parse(agentType AgentType, chunk string, buffer string, log *slog.Logger) ([]Event, string) {
	data := buffer + chunk

	lines := strings.Split(data, "\n")
	remainder := lines[len(lines)-1]
	lines = lines[:len(lines)-1]

	var events []Event
	for _, line := range lines {
		events = append(events, parseLine(agentType, line, log)...)
	}
	return events, remainder
}

// parseLine converts one complete line into events.
// Malformed lines are logged and dropped — they must never crash a session.
func parseLine(agentType AgentType, line string, log *slog.Logger) []Event {
	line = strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if line == "" {
		return nil
	}

	// Agent CLIs mix non-protocol noise (progress spinners, warnings) into
	// stdout even in structured-stream mode. Silently drop it.
	if !strings.HasPrefix(line, "{") && !strings.HasPrefix(line, "[") {
		log.Debug("skipping non-JSON line from agent", "line", truncateForLog(line))
		return nil
	}

	raw := []byte(line)

	// The in-band bridge invocation shape is common to all agents: the
	// injected tool instructions ask the agent to emit
	// {"tool_call":{"name":...,"arguments":...,"server":...}} on its own line.
	if ev, ok := parseBridgeInvocation(raw); ok {
		return []Event{ev}
	}

	parse, ok := variants[agentType]
	if !ok {
		return parseGenericLine(raw, log)
	}
	return parse(raw, log)
}

// bridgeInvocation is the tagged JSON object agents emit to call a
// registry-routed tool, per the instructions injected at session start.
type bridgeInvocation struct {
	ToolCall *struct {
		Name      string         `json:"name"`
		Arguments map[string]any `json:"arguments"`
		Server    string         `json:"server,omitempty"`
	} `json:"tool_call"`
}

// parseBridgeInvocation detects the in-band tool-call request shape.
func parseBridgeInvocation(raw []byte) (Event, bool) {
	var inv bridgeInvocation
	if err := json.Unmarshal(raw, &inv); err != nil || inv.ToolCall == nil || inv.ToolCall.Name == "" {
		return Event{}, false
	}
	return Event{
		Type:       EventToolCall,
		Text:       "Calling " + inv.ToolCall.Name,
		Raw:        append(json.RawMessage(nil), raw...),
		ToolName:   inv.ToolCall.Name,
		ToolArgs:   inv.ToolCall.Arguments,
		ToolServer: inv.ToolCall.Server,
		Invoke:     true,
	}, true
}

// parseGenericLine handles agent types without a registered variant:
// best-effort text extraction, falling back to the pretty-printed raw object.
func parseGenericLine(raw []byte, log *slog.Logger) []Event {
	var obj map[string]any
	if err := json.Unmarshal(raw, &obj); err != nil {
		log.Warn("failed to parse stream line", "error", err, "line", truncateForLog(string(raw)))
		return nil
	}
	return []Event{{
		Type: EventText,
		Text: bestEffortText(obj, raw),
		Raw:  append(json.RawMessage(nil), raw...),
	}}
}

// bestEffortText extracts a display string from an arbitrary decoded object.
// Known text-bearing fields are tried first; the pretty-printed object is the
// last resort.
func bestEffortText(obj map[string]any, raw []byte) string {
	for _, key := range []string{"text", "content", "message", "output", "result"} {
		if s, ok := obj[key].(string); ok && s != "" {
			return s
		}
	}
	pretty, err := json.MarshalIndent(obj, "", "  ")
	if err != nil {
		return string(raw)
	}
	return string(pretty)
}

// truncateString truncates a string to maxLen characters, including "..." suffix.
// A maxLen of 0 means no limit.
func truncateString(s string, maxLen int) string {
	if maxLen <= 0 || len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// shortenPath returns just the filename or last path component
func shortenPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 0 {
		return parts[len(parts)-1]
	}
	return path
}

// truncateForLog truncates long strings for log messages
func truncateForLog(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}

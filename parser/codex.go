package parser

import (
	"encoding/json"
	"log/slog"
	"strings"
)

// codexMessage represents a JSONL envelope from the Codex CLI proto stream.
// Each line wraps a typed msg payload under a submission id.
type codexMessage struct {
	ID  string `json:"id"`
	Msg *struct {
		Type     string   `json:"type"` // "agent_message", "agent_reasoning", "exec_command_begin", ...
		Message  string   `json:"message,omitempty"`
		Text     string   `json:"text,omitempty"`
		Command  []string `json:"command,omitempty"`
		Stdout   string   `json:"stdout,omitempty"`
		Stderr   string   `json:"stderr,omitempty"`
		ExitCode *int     `json:"exit_code,omitempty"`
		Error    string   `json:"error,omitempty"`
	} `json:"msg"`
}

// parseCodexLine maps one line of Codex proto output to events.
func parseCodexLine(raw []byte, log *slog.Logger) []Event {
	var msg codexMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn("failed to parse codex stream message", "error", err, "line", truncateForLog(string(raw)))
		return nil
	}

	if msg.Msg == nil || msg.Msg.Type == "" {
		return parseGenericLine(raw, log)
	}

	rawCopy := append(json.RawMessage(nil), raw...)
	m := msg.Msg
	text := m.Message
	if text == "" {
		text = m.Text
	}

	switch m.Type {
	case "session_configured":
		return []Event{{Type: EventSystem, Text: "Session initialized", Raw: rawCopy}}

	case "agent_message", "agent_message_delta":
		if text == "" {
			return nil
		}
		return []Event{{Type: EventText, Text: text, Raw: rawCopy}}

	case "agent_reasoning", "agent_reasoning_delta":
		if text == "" {
			return nil
		}
		return []Event{{Type: EventThinking, Text: text, Raw: rawCopy}}

	case "exec_command_begin":
		return []Event{{
			Type:     EventToolCall,
			Text:     "Running: " + truncateString(strings.Join(m.Command, " "), 60),
			Raw:      rawCopy,
			ToolName: "exec",
			ToolArgs: map[string]any{"command": m.Command},
		}}

	case "exec_command_end":
		out := strings.TrimSpace(m.Stdout)
		if out == "" {
			out = strings.TrimSpace(m.Stderr)
		}
		if out == "" {
			out = "Command completed"
		}
		if m.ExitCode != nil && *m.ExitCode != 0 {
			return []Event{{Type: EventError, Text: out, Raw: rawCopy}}
		}
		return []Event{{Type: EventToolResult, Text: out, Raw: rawCopy}}

	case "error":
		if text == "" {
			text = m.Error
		}
		if text == "" {
			text = "Agent reported an error"
		}
		return []Event{{Type: EventError, Text: text, Raw: rawCopy}}

	case "task_started":
		return nil

	case "task_complete":
		return []Event{{Type: EventSystem, Text: "Turn complete", Raw: rawCopy}}
	}

	return parseGenericLine(raw, log)
}

package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
)

// geminiMessage represents a JSON line from the Gemini CLI's stream output.
// Gemini uses a flat type discriminator rather than nested message envelopes.
type geminiMessage struct {
	Type      string         `json:"type"` // "init", "text", "thought", "tool_call", "tool_result", "error", "stats"
	Content   string         `json:"content,omitempty"`
	Message   string         `json:"message,omitempty"`
	Name      string         `json:"name,omitempty"`
	Args      map[string]any `json:"args,omitempty"`
	Arguments map[string]any `json:"arguments,omitempty"`
	Result    string         `json:"result,omitempty"`
	Status    string         `json:"status,omitempty"`
	Model     string         `json:"model,omitempty"`
}

// parseGeminiLine maps one line of Gemini CLI stream output to events.
func parseGeminiLine(raw []byte, log *slog.Logger) []Event {
	var msg geminiMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn("failed to parse gemini stream message", "error", err, "line", truncateForLog(string(raw)))
		return nil
	}

	if msg.Type == "" {
		return parseGenericLine(raw, log)
	}

	rawCopy := append(json.RawMessage(nil), raw...)
	text := msg.Content
	if text == "" {
		text = msg.Message
	}

	switch msg.Type {
	case "init":
		out := "Session initialized"
		if msg.Model != "" {
			out = fmt.Sprintf("Session initialized (model %s)", msg.Model)
		}
		return []Event{{Type: EventSystem, Text: out, Raw: rawCopy}}

	case "text":
		if text == "" {
			return nil
		}
		return []Event{{Type: EventText, Text: text, Raw: rawCopy}}

	case "thought", "thinking":
		if text == "" {
			return nil
		}
		return []Event{{Type: EventThinking, Text: text, Raw: rawCopy}}

	case "tool_call":
		args := msg.Args
		if args == nil {
			args = msg.Arguments
		}
		return []Event{{
			Type:     EventToolCall,
			Text:     fmt.Sprintf("Using %s", msg.Name),
			Raw:      rawCopy,
			ToolName: msg.Name,
			ToolArgs: args,
		}}

	case "tool_result":
		out := msg.Result
		if out == "" {
			out = fmt.Sprintf("%s completed", msg.Name)
		}
		return []Event{{Type: EventToolResult, Text: out, Raw: rawCopy}}

	case "error":
		if text == "" {
			text = "Agent reported an error"
		}
		return []Event{{Type: EventError, Text: text, Raw: rawCopy}}

	case "stats", "result":
		return []Event{{Type: EventSystem, Text: "Turn complete", Raw: rawCopy}}
	}

	return parseGenericLine(raw, log)
}

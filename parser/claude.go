package parser

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// claudeMessage represents a JSON message from Claude's stream-json output.
type claudeMessage struct {
	Type    string `json:"type"`    // "system", "assistant", "user", "result", "stream_event"
	Subtype string `json:"subtype"` // "init", "success", "error_during_execution", ...
	Message struct {
		Content []struct {
			Type      string          `json:"type"` // "text", "thinking", "tool_use", "tool_result"
			ID        string          `json:"id,omitempty"`
			Text      string          `json:"text,omitempty"`
			Thinking  string          `json:"thinking,omitempty"`
			Name      string          `json:"name,omitempty"`
			Input     json.RawMessage `json:"input,omitempty"`
			ToolUseID string          `json:"tool_use_id,omitempty"`
			Content   json.RawMessage `json:"content,omitempty"`
		} `json:"content"`
	} `json:"message"`
	// Stream event fields (for type="stream_event" with partial messages enabled)
	Event *claudeStreamEvent `json:"event,omitempty"`
	// Result fields (for type="result")
	Result  string   `json:"result,omitempty"`
	IsError bool     `json:"is_error,omitempty"`
	Error   string   `json:"error,omitempty"`
	Errors  []string `json:"errors,omitempty"`
}

// claudeStreamEvent represents the event payload in stream_event messages.
type claudeStreamEvent struct {
	Type  string `json:"type"` // "message_start", "content_block_delta", "message_stop", ...
	Delta *struct {
		Type     string `json:"type,omitempty"` // "text_delta", "thinking_delta", "input_json_delta"
		Text     string `json:"text,omitempty"`
		Thinking string `json:"thinking,omitempty"`
	} `json:"delta,omitempty"`
}

// parseClaudeLine maps one line of Claude stream-json output to events.
func parseClaudeLine(raw []byte, log *slog.Logger) []Event {
	var msg claudeMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		log.Warn("failed to parse claude stream message", "error", err, "line", truncateForLog(string(raw)))
		return nil
	}

	if msg.Type == "" {
		log.Warn("unrecognized claude message shape", "line", truncateForLog(string(raw)))
		return parseGenericLine(raw, log)
	}

	rawCopy := append(json.RawMessage(nil), raw...)
	var events []Event

	switch msg.Type {
	case "system":
		if msg.Subtype == "init" {
			events = append(events, Event{
				Type: EventSystem,
				Text: "Session initialized",
				Raw:  rawCopy,
			})
		}

	case "stream_event":
		if msg.Event != nil {
			events = append(events, parseClaudeStreamEvent(msg.Event, rawCopy)...)
		}

	case "assistant":
		for _, content := range msg.Message.Content {
			switch content.Type {
			case "text":
				if content.Text != "" {
					events = append(events, Event{Type: EventText, Text: content.Text, Raw: rawCopy})
				}
			case "thinking":
				if content.Thinking != "" {
					events = append(events, Event{Type: EventThinking, Text: content.Thinking, Raw: rawCopy})
				}
			case "tool_use":
				args := decodeToolArgs(content.Input)
				desc := extractToolInputDescription(content.Name, content.Input)
				text := formatToolVerb(content.Name)
				if desc != "" {
					text += ": " + desc
				}
				events = append(events, Event{
					Type:     EventToolCall,
					Text:     text,
					Raw:      rawCopy,
					ToolName: content.Name,
					ToolArgs: args,
				})
				log.Debug("claude tool use", "tool", content.Name, "id", content.ID, "input", desc)
			}
		}

	case "user":
		// User messages in stream-json carry tool results back to the model.
		for _, content := range msg.Message.Content {
			if content.Type != "tool_result" && content.ToolUseID == "" {
				continue
			}
			events = append(events, Event{
				Type: EventToolResult,
				Text: extractClaudeResultText(content.Content),
				Raw:  rawCopy,
			})
		}

	case "result":
		text := msg.Result
		if text == "" {
			text = msg.Error
		}
		if text == "" && len(msg.Errors) > 0 {
			text = strings.Join(msg.Errors, "\n")
		}
		if msg.IsError || msg.Subtype == "error_during_execution" || msg.Error != "" || len(msg.Errors) > 0 {
			events = append(events, Event{Type: EventError, Text: text, Raw: rawCopy})
		} else {
			events = append(events, Event{Type: EventSystem, Text: "Turn complete", Raw: rawCopy})
		}
		log.Debug("claude result", "subtype", msg.Subtype)

	default:
		return parseGenericLine(raw, log)
	}

	return events
}

// parseClaudeStreamEvent extracts content from incremental stream_event updates.
func parseClaudeStreamEvent(event *claudeStreamEvent, raw json.RawMessage) []Event {
	if event.Type != "content_block_delta" || event.Delta == nil {
		// message_start, content_block_start/stop, message_delta/stop carry
		// no displayable content.
		return nil
	}

	switch event.Delta.Type {
	case "text_delta":
		if event.Delta.Text != "" {
			return []Event{{Type: EventText, Text: event.Delta.Text, Raw: raw}}
		}
	case "thinking_delta":
		if event.Delta.Thinking != "" {
			return []Event{{Type: EventThinking, Text: event.Delta.Thinking, Raw: raw}}
		}
	}
	return nil
}

// extractClaudeResultText renders a tool_result content payload, which can be
// a bare string or an array of content blocks.
func extractClaudeResultText(content json.RawMessage) string {
	if len(content) == 0 {
		return "Tool completed"
	}

	var s string
	if err := json.Unmarshal(content, &s); err == nil {
		return s
	}

	var blocks []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	}
	if err := json.Unmarshal(content, &blocks); err == nil {
		var parts []string
		for _, b := range blocks {
			if b.Text != "" {
				parts = append(parts, b.Text)
			}
		}
		if len(parts) > 0 {
			return strings.Join(parts, "\n")
		}
	}

	return "Tool completed"
}

// decodeToolArgs decodes a tool input object, returning nil on failure.
func decodeToolArgs(input json.RawMessage) map[string]any {
	if len(input) == 0 {
		return nil
	}
	var args map[string]any
	if err := json.Unmarshal(input, &args); err != nil {
		return nil
	}
	return args
}

// toolInputConfig defines how to extract a description from a tool's input.
type toolInputConfig struct {
	Field       string // JSON field to extract
	ShortenPath bool   // Whether to shorten file paths to just filename
	MaxLen      int    // Maximum length before truncation (0 = no limit)
}

// toolInputConfigs maps tool names to their input extraction configuration.
var toolInputConfigs = map[string]toolInputConfig{
	// File operations - extract file_path and shorten to filename
	"Read":  {Field: "file_path", ShortenPath: true},
	"Edit":  {Field: "file_path", ShortenPath: true},
	"Write": {Field: "file_path", ShortenPath: true},

	// Search operations - extract the pattern/query
	"Glob":      {Field: "pattern"},
	"Grep":      {Field: "pattern", MaxLen: 30},
	"WebSearch": {Field: "query"},

	// Command execution - show the command with truncation
	"Bash": {Field: "command", MaxLen: 40},

	// Task delegation - show the description
	"Task": {Field: "description"},

	// Web operations - show URL with truncation
	"WebFetch": {Field: "url", MaxLen: 40},
}

// defaultToolInputMaxLen is the default max length for tool descriptions.
const defaultToolInputMaxLen = 40

// extractToolInputDescription extracts a brief, human-readable description from tool input.
func extractToolInputDescription(toolName string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}

	var inputMap map[string]any
	if err := json.Unmarshal(input, &inputMap); err != nil {
		return ""
	}

	if cfg, ok := toolInputConfigs[toolName]; ok {
		if value, exists := inputMap[cfg.Field].(string); exists {
			if cfg.ShortenPath {
				value = shortenPath(value)
			}
			if cfg.MaxLen > 0 {
				value = truncateString(value, cfg.MaxLen)
			}
			return value
		}
	}

	// Default: return first string value found
	for _, v := range inputMap {
		if s, ok := v.(string); ok && s != "" {
			return truncateString(s, defaultToolInputMaxLen)
		}
	}
	return ""
}

// formatToolVerb returns a human-readable verb for the tool type.
func formatToolVerb(toolName string) string {
	switch toolName {
	case "Read":
		return "Reading"
	case "Edit":
		return "Editing"
	case "Write":
		return "Writing"
	case "Glob", "Grep", "WebSearch":
		return "Searching"
	case "Bash":
		return "Running"
	case "Task":
		return "Delegating"
	case "WebFetch":
		return "Fetching"
	default:
		return fmt.Sprintf("Using %s", toolName)
	}
}

// Package bridge connects agent sessions to the tool registry. It renders
// the tool catalog as natural-language instructions an agent can follow, and
// executes the JSON invocations the agent emits in its output stream.
package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/tandemhq/tandem-core/logger"
	"github.com/tandemhq/tandem-core/registry"
)

// Bridge exposes registry tools to agents over plain text.
type Bridge struct {
	registry *registry.Registry
	log      *slog.Logger
}

// New creates a Bridge over the given registry.
func New(reg *registry.Registry) *Bridge {
	return &Bridge{
		registry: reg,
		log:      logger.WithComponent("bridge"),
	}
}

// Instructions renders the current catalog as a prompt block: one section
// per non-empty category (tools, resources, resource templates), with the
// invocation contract up front. The block is additive — callers append it to
// their own rules text, never replace it. When the whole catalog is empty it
// returns an empty string so callers can skip the block entirely.
func (b *Bridge) Instructions(ctx context.Context) string {
	tools := b.registry.ListTools(ctx)
	resources := b.registry.ListResources(ctx)
	templates := b.registry.ListResourceTemplates(ctx)
	if len(tools) == 0 && len(resources) == 0 && len(templates) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("You have access to additional tools and resources.\n")
	sb.WriteString("To call a tool, output a single line containing only a JSON object of this exact shape:\n")
	sb.WriteString(`{"tool_call": {"name": "<tool name>", "arguments": {...}, "server": "<server name>"}}`)
	sb.WriteString("\nThe result will be delivered back to you as a follow-up message.\n")

	if len(tools) > 0 {
		byServer := make(map[string][]registry.ToolDescriptor)
		for _, tool := range tools {
			byServer[tool.ServerName] = append(byServer[tool.ServerName], tool)
		}
		for _, server := range sortedKeys(byServer) {
			sb.WriteString("\nTools from ")
			sb.WriteString(server)
			sb.WriteString(":\n")
			for _, tool := range byServer[server] {
				sb.WriteString("- ")
				sb.WriteString(tool.Name)
				if tool.Description != "" {
					sb.WriteString(": ")
					sb.WriteString(tool.Description)
				}
				if len(tool.InputSchema) > 0 {
					sb.WriteString("\n  arguments schema: ")
					sb.Write(compactJSON(tool.InputSchema))
				}
				sb.WriteString("\n")
			}
		}
	}

	if len(resources) > 0 {
		sb.WriteString("\nReadable resources (ask for one by URI):\n")
		for _, res := range resources {
			sb.WriteString("- ")
			sb.WriteString(res.URI)
			if res.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(res.Description)
			}
			sb.WriteString(" [")
			sb.WriteString(res.ServerName)
			sb.WriteString("]\n")
		}
	}

	if len(templates) > 0 {
		sb.WriteString("\nResource URI templates:\n")
		for _, tpl := range templates {
			sb.WriteString("- ")
			sb.WriteString(tpl.URITemplate)
			if tpl.Description != "" {
				sb.WriteString(": ")
				sb.WriteString(tpl.Description)
			}
			sb.WriteString(" [")
			sb.WriteString(tpl.ServerName)
			sb.WriteString("]\n")
		}
	}

	return sb.String()
}

func sortedKeys(m map[string][]registry.ToolDescriptor) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Execute runs a tool invocation parsed from agent output and returns the
// text to write back to the agent. It never returns an error: every failure
// mode becomes a readable message, because the consumer is an agent mid-turn
// with no other channel to receive it.
func (b *Bridge) Execute(ctx context.Context, toolName string, args map[string]any, serverHint string) string {
	server := serverHint
	if server == "" {
		server = b.resolveServer(ctx, toolName)
	}
	if server == "" {
		b.log.Warn("tool invocation for unknown tool", "tool", toolName)
		return fmt.Sprintf("Error: tool %q not found on any server", toolName)
	}

	b.log.Info("executing tool invocation", "tool", toolName, "server", server)

	result, err := b.registry.CallTool(ctx, server, toolName, args)
	if err != nil {
		b.log.Warn("tool invocation failed", "tool", toolName, "server", server, "error", err)
		return fmt.Sprintf("Error calling %s: %v", toolName, err)
	}

	text := flattenContent(result.Content)
	if result.IsError {
		if text == "" {
			text = "tool reported an error"
		}
		return fmt.Sprintf("Error from %s: %s", toolName, text)
	}
	if text == "" {
		return fmt.Sprintf("%s completed with no output", toolName)
	}
	return text
}

// resolveServer finds the server owning a bare tool name. Servers are
// scanned in sorted order so ambiguous names resolve deterministically.
func (b *Bridge) resolveServer(ctx context.Context, toolName string) string {
	tools := b.registry.ListTools(ctx)

	servers := make([]string, 0, len(tools))
	seen := make(map[string]bool)
	for _, tool := range tools {
		if tool.Name == toolName && !seen[tool.ServerName] {
			servers = append(servers, tool.ServerName)
			seen[tool.ServerName] = true
		}
	}
	if len(servers) == 0 {
		return ""
	}
	sort.Strings(servers)
	if len(servers) > 1 {
		b.log.Debug("ambiguous tool name", "tool", toolName, "servers", servers, "chosen", servers[0])
	}
	return servers[0]
}

// flattenContent joins the text of all blocks with newlines.
func flattenContent(blocks []registry.ContentBlock) string {
	parts := make([]string, 0, len(blocks))
	for _, block := range blocks {
		if block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}

func compactJSON(raw json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return raw
	}
	return buf.Bytes()
}

package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sort"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/tandemhq/tandem-core/logger"
)

// ServerConfig describes how to launch one external MCP server.
type ServerConfig struct {
	Name    string            `yaml:"name" json:"name"`
	Command string            `yaml:"command" json:"command"`
	Args    []string          `yaml:"args,omitempty" json:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty" json:"env,omitempty"`
}

// ConnectionManager owns the stdio connections to external MCP servers.
// Each connected server is a child process speaking the protocol over its
// stdin/stdout.
type ConnectionManager struct {
	mu       sync.RWMutex
	sessions map[string]*mcp.ClientSession
	log      *slog.Logger
}

// NewConnectionManager creates an empty manager.
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		sessions: make(map[string]*mcp.ClientSession),
		log:      logger.WithComponent("connections"),
	}
}

// Connect launches the server process and performs the protocol handshake.
// Connecting a name that is already connected is a warned no-op. The session
// is stored only after a successful handshake, so a failed connect leaves no
// half-open state behind.
func (cm *ConnectionManager) Connect(ctx context.Context, cfg ServerConfig) error {
	cm.mu.Lock()
	if _, ok := cm.sessions[cfg.Name]; ok {
		cm.mu.Unlock()
		cm.log.Warn("server already connected", "server", cfg.Name)
		return nil
	}
	cm.mu.Unlock()

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	client := mcp.NewClient(&mcp.Implementation{Name: "tandem", Version: "1.0.0"}, nil)
	session, err := client.Connect(ctx, &mcp.CommandTransport{Command: cmd}, nil)
	if err != nil {
		return fmt.Errorf("connecting to server %q: %w", cfg.Name, err)
	}

	cm.mu.Lock()
	_, raced := cm.sessions[cfg.Name]
	if !raced {
		cm.sessions[cfg.Name] = session
	}
	cm.mu.Unlock()

	if raced {
		// Lost the race with a concurrent Connect; keep the winner.
		_ = session.Close()
		cm.log.Warn("server already connected", "server", cfg.Name)
		return nil
	}
	cm.log.Info("connected to server", "server", cfg.Name, "command", cfg.Command)
	return nil
}

// Disconnect closes the session and removes it from the table. Close errors
// are logged, not returned: the entry is gone either way. Disconnecting an
// unknown name is a no-op.
func (cm *ConnectionManager) Disconnect(serverName string) {
	cm.mu.Lock()
	session, ok := cm.sessions[serverName]
	delete(cm.sessions, serverName)
	cm.mu.Unlock()

	if !ok {
		return
	}
	if err := session.Close(); err != nil {
		cm.log.Warn("error closing server session", "server", serverName, "error", err)
	}
	cm.log.Info("disconnected from server", "server", serverName)
}

// DisconnectAll tears down every live connection.
func (cm *ConnectionManager) DisconnectAll() {
	for _, name := range cm.ConnectedServers() {
		cm.Disconnect(name)
	}
}

// IsConnected reports whether the named server has a live session.
func (cm *ConnectionManager) IsConnected(serverName string) bool {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	_, ok := cm.sessions[serverName]
	return ok
}

// ConnectedServers returns the names of all live connections, sorted.
func (cm *ConnectionManager) ConnectedServers() []string {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	names := make([]string, 0, len(cm.sessions))
	for name := range cm.sessions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (cm *ConnectionManager) session(serverName string) (*mcp.ClientSession, error) {
	cm.mu.RLock()
	defer cm.mu.RUnlock()
	session, ok := cm.sessions[serverName]
	if !ok {
		return nil, fmt.Errorf("server %q: %w", serverName, ErrServerNotConnected)
	}
	return session, nil
}

// ListTools fetches the named server's tool catalog, tagged with the server name.
func (cm *ConnectionManager) ListTools(ctx context.Context, serverName string) ([]ToolDescriptor, error) {
	session, err := cm.session(serverName)
	if err != nil {
		return nil, err
	}

	result, err := session.ListTools(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing tools on %q: %w", serverName, err)
	}

	tools := make([]ToolDescriptor, 0, len(result.Tools))
	for _, tool := range result.Tools {
		var schema json.RawMessage
		if tool.InputSchema != nil {
			if data, err := json.Marshal(tool.InputSchema); err == nil {
				schema = data
			}
		}
		tools = append(tools, ToolDescriptor{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: schema,
			ServerName:  serverName,
		})
	}
	return tools, nil
}

// ListResources fetches the named server's resource catalog.
func (cm *ConnectionManager) ListResources(ctx context.Context, serverName string) ([]ResourceDescriptor, error) {
	session, err := cm.session(serverName)
	if err != nil {
		return nil, err
	}

	result, err := session.ListResources(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing resources on %q: %w", serverName, err)
	}

	resources := make([]ResourceDescriptor, 0, len(result.Resources))
	for _, res := range result.Resources {
		resources = append(resources, ResourceDescriptor{
			URI:         res.URI,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MIMEType,
			ServerName:  serverName,
		})
	}
	return resources, nil
}

// ListResourceTemplates fetches the named server's resource templates.
func (cm *ConnectionManager) ListResourceTemplates(ctx context.Context, serverName string) ([]ResourceTemplate, error) {
	session, err := cm.session(serverName)
	if err != nil {
		return nil, err
	}

	result, err := session.ListResourceTemplates(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("listing resource templates on %q: %w", serverName, err)
	}

	templates := make([]ResourceTemplate, 0, len(result.ResourceTemplates))
	for _, tpl := range result.ResourceTemplates {
		templates = append(templates, ResourceTemplate{
			URITemplate: tpl.URITemplate,
			Name:        tpl.Name,
			Description: tpl.Description,
			MIMEType:    tpl.MIMEType,
			ServerName:  serverName,
		})
	}
	return templates, nil
}

// CallTool invokes a tool on the named server and normalizes the reply.
func (cm *ConnectionManager) CallTool(ctx context.Context, serverName, toolName string, args map[string]any) (*CallResult, error) {
	session, err := cm.session(serverName)
	if err != nil {
		return nil, err
	}

	result, err := session.CallTool(ctx, &mcp.CallToolParams{Name: toolName, Arguments: args})
	if err != nil {
		return nil, fmt.Errorf("calling %s on %q: %w", toolName, serverName, err)
	}

	out := &CallResult{IsError: result.IsError}
	for _, block := range result.Content {
		switch c := block.(type) {
		case *mcp.TextContent:
			out.Content = append(out.Content, ContentBlock{Type: "text", Text: c.Text})
		default:
			// Non-text content carries no inline payload we can surface.
			out.Content = append(out.Content, ContentBlock{Type: "text", Text: fmt.Sprintf("[unsupported content type %T]", block)})
		}
	}
	return out, nil
}

// ReadResource reads a resource from the named server. Multi-part replies
// are collapsed to the first part.
func (cm *ConnectionManager) ReadResource(ctx context.Context, serverName, uri string) (*ResourceContent, error) {
	session, err := cm.session(serverName)
	if err != nil {
		return nil, err
	}

	result, err := session.ReadResource(ctx, &mcp.ReadResourceParams{URI: uri})
	if err != nil {
		return nil, fmt.Errorf("reading %s on %q: %w", uri, serverName, err)
	}
	if len(result.Contents) == 0 {
		return nil, fmt.Errorf("resource %q on %q returned no contents: %w", uri, serverName, ErrResourceNotFound)
	}

	first := result.Contents[0]
	return &ResourceContent{
		URI:      first.URI,
		MIMEType: first.MIMEType,
		Text:     first.Text,
		Blob:     first.Blob,
	}, nil
}

package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tandemhq/tandem-core/registry"
)

// maxReadSize caps file reads so a tool result stays writable into a
// subprocess prompt.
const maxReadSize = 1 << 20 // 1 MiB

// FSProvider serves filesystem tools scoped to a root directory. Paths are
// resolved against the root and anything escaping it is rejected.
type FSProvider struct {
	root string
}

var _ registry.Provider = (*FSProvider)(nil)

// NewFSProvider creates a provider rooted at dir. The root is cleaned but
// not required to exist yet.
func NewFSProvider(dir string) *FSProvider {
	return &FSProvider{root: filepath.Clean(dir)}
}

// resolve joins a tool-supplied path to the root and rejects escapes.
func (f *FSProvider) resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path is required")
	}
	joined := filepath.Join(f.root, path)
	rel, err := filepath.Rel(f.root, joined)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q escapes the workspace root", path)
	}
	return joined, nil
}

func (f *FSProvider) Tools(ctx context.Context) ([]registry.ToolDescriptor, error) {
	return []registry.ToolDescriptor{
		{
			Name:        "read_file",
			Description: "Read a file from the workspace. Arguments: path (relative to the workspace root).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`),
		},
		{
			Name:        "write_file",
			Description: "Write content to a file in the workspace, creating parent directories. Arguments: path, content.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"},"content":{"type":"string"}},"required":["path","content"]}`),
		},
		{
			Name:        "list_directory",
			Description: "List entries of a workspace directory. Arguments: path (defaults to the root).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}}}`),
		},
	}, nil
}

func (f *FSProvider) Resources(ctx context.Context) ([]registry.ResourceDescriptor, error) {
	return nil, nil
}

func (f *FSProvider) ResourceTemplates(ctx context.Context) ([]registry.ResourceTemplate, error) {
	return []registry.ResourceTemplate{
		{
			URITemplate: "file:///{path}",
			Name:        "workspace file",
			Description: "Any file under the workspace root",
			MIMEType:    "text/plain",
		},
	}, nil
}

func (f *FSProvider) CallTool(ctx context.Context, name string, args map[string]any) (*registry.CallResult, error) {
	switch name {
	case "read_file":
		return f.readFile(args)
	case "write_file":
		return f.writeFile(args)
	case "list_directory":
		return f.listDirectory(args)
	}
	return nil, fmt.Errorf("tool %q: %w", name, registry.ErrToolNotFound)
}

func (f *FSProvider) readFile(args map[string]any) (*registry.CallResult, error) {
	path, _ := args["path"].(string)
	full, err := f.resolve(path)
	if err != nil {
		return registry.ErrorResult(err.Error()), nil
	}

	info, err := os.Stat(full)
	if err != nil {
		return registry.ErrorResult(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	if info.IsDir() {
		return registry.ErrorResult(fmt.Sprintf("%s is a directory", path)), nil
	}
	if info.Size() > maxReadSize {
		return registry.ErrorResult(fmt.Sprintf("%s is too large (%d bytes)", path, info.Size())), nil
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return registry.ErrorResult(fmt.Sprintf("cannot read %s: %v", path, err)), nil
	}
	return registry.TextResult(string(data)), nil
}

func (f *FSProvider) writeFile(args map[string]any) (*registry.CallResult, error) {
	path, _ := args["path"].(string)
	content, ok := args["content"].(string)
	if !ok {
		return registry.ErrorResult("content is required"), nil
	}

	full, err := f.resolve(path)
	if err != nil {
		return registry.ErrorResult(err.Error()), nil
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return registry.ErrorResult(fmt.Sprintf("cannot create parent directory: %v", err)), nil
	}
	if err := os.WriteFile(full, []byte(content), 0o644); err != nil {
		return registry.ErrorResult(fmt.Sprintf("cannot write %s: %v", path, err)), nil
	}
	return registry.TextResult(fmt.Sprintf("wrote %d bytes to %s", len(content), path)), nil
}

func (f *FSProvider) listDirectory(args map[string]any) (*registry.CallResult, error) {
	path, _ := args["path"].(string)
	if path == "" {
		path = "."
	}
	full, err := f.resolve(path)
	if err != nil {
		return registry.ErrorResult(err.Error()), nil
	}

	entries, err := os.ReadDir(full)
	if err != nil {
		return registry.ErrorResult(fmt.Sprintf("cannot list %s: %v", path, err)), nil
	}

	var sb strings.Builder
	for _, entry := range entries {
		if entry.IsDir() {
			sb.WriteString(entry.Name() + "/\n")
		} else {
			sb.WriteString(entry.Name() + "\n")
		}
	}
	return registry.TextResult(strings.TrimRight(sb.String(), "\n")), nil
}

// ReadResource serves file:// URIs for files under the root.
func (f *FSProvider) ReadResource(ctx context.Context, uri string) (*registry.ResourceContent, error) {
	path, ok := strings.CutPrefix(uri, "file://")
	if !ok {
		return nil, fmt.Errorf("uri %q: %w", uri, registry.ErrResourceNotFound)
	}

	// file:///abs/path is absolute; resolve it relative to the root anyway
	// so escapes are rejected uniformly.
	rel, err := filepath.Rel(f.root, filepath.Clean(path))
	if err != nil || strings.HasPrefix(rel, "..") {
		return nil, fmt.Errorf("uri %q escapes the workspace root: %w", uri, registry.ErrResourceNotFound)
	}

	full := filepath.Join(f.root, rel)
	data, err := os.ReadFile(full)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	return &registry.ResourceContent{
		URI:      uri,
		MIMEType: "text/plain",
		Text:     string(data),
	}, nil
}

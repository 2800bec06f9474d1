package bridge

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/tandemhq/tandem-core/registry"
)

// echoProvider answers every call it owns with a canned result.
type echoProvider struct {
	tools     []registry.ToolDescriptor
	resources []registry.ResourceDescriptor
	templates []registry.ResourceTemplate
	result    *registry.CallResult
	err       error
}

var _ registry.Provider = (*echoProvider)(nil)

func (e *echoProvider) Tools(ctx context.Context) ([]registry.ToolDescriptor, error) {
	return e.tools, nil
}

func (e *echoProvider) Resources(ctx context.Context) ([]registry.ResourceDescriptor, error) {
	return e.resources, nil
}

func (e *echoProvider) ResourceTemplates(ctx context.Context) ([]registry.ResourceTemplate, error) {
	return e.templates, nil
}

func (e *echoProvider) CallTool(ctx context.Context, name string, args map[string]any) (*registry.CallResult, error) {
	if e.err != nil {
		return nil, e.err
	}
	return e.result, nil
}

func (e *echoProvider) ReadResource(ctx context.Context, uri string) (*registry.ResourceContent, error) {
	return nil, fmt.Errorf("uri %q: %w", uri, registry.ErrResourceNotFound)
}

func newTestBridge(providers map[string]*echoProvider) *Bridge {
	reg := registry.New(nil)
	for server, p := range providers {
		reg.RegisterProvider(server, p)
	}
	return New(reg)
}

func TestInstructions_EmptyCatalog(t *testing.T) {
	b := newTestBridge(nil)

	if got := b.Instructions(context.Background()); got != "" {
		t.Errorf("expected empty instructions for empty catalog, got %q", got)
	}
}

func TestInstructions_ListsToolsByServer(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {tools: []registry.ToolDescriptor{
			{Name: "read_file", Description: "Read a file from the workspace"},
		}},
		"orchestrate": {tools: []registry.ToolDescriptor{
			{Name: "dispatch_task", Description: "Hand a task to another agent"},
		}},
	})

	text := b.Instructions(context.Background())
	for _, want := range []string{
		`"tool_call"`,
		"Tools from fs:",
		"read_file: Read a file from the workspace",
		"Tools from orchestrate:",
		"dispatch_task",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("instructions missing %q\n%s", want, text)
		}
	}

	// Server sections appear in sorted order
	if strings.Index(text, "Tools from fs:") > strings.Index(text, "Tools from orchestrate:") {
		t.Error("server sections not in sorted order")
	}
}

func TestInstructions_ResourcesAndTemplatesWithoutTools(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"worktrees": {
			resources: []registry.ResourceDescriptor{
				{URI: "worktree://p1/main", Description: "Worktree state"},
			},
			templates: []registry.ResourceTemplate{
				{URITemplate: "worktree://{project}/{name}", Description: "Any worktree"},
			},
		},
	})

	text := b.Instructions(context.Background())
	if text == "" {
		t.Fatal("resource-only catalog must still render instructions")
	}
	for _, want := range []string{
		"worktree://p1/main",
		"worktree://{project}/{name}",
		"[worktrees]",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("instructions missing %q\n%s", want, text)
		}
	}
	if strings.Contains(text, "Tools from") {
		t.Error("no tool section expected for an empty tool catalog")
	}
}

func TestExecute_Success(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {
			tools:  []registry.ToolDescriptor{{Name: "read_file"}},
			result: registry.TextResult("line one"),
		},
	})

	got := b.Execute(context.Background(), "read_file", map[string]any{"path": "a.txt"}, "fs")
	if got != "line one" {
		t.Errorf("Execute = %q, want 'line one'", got)
	}
}

func TestExecute_MultiBlockJoined(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {
			tools: []registry.ToolDescriptor{{Name: "list_directory"}},
			result: &registry.CallResult{Content: []registry.ContentBlock{
				{Type: "text", Text: "a.txt"},
				{Type: "text", Text: "b.txt"},
			}},
		},
	})

	got := b.Execute(context.Background(), "list_directory", nil, "fs")
	if got != "a.txt\nb.txt" {
		t.Errorf("Execute = %q", got)
	}
}

func TestExecute_ToolNotFound(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {tools: []registry.ToolDescriptor{{Name: "read_file"}}},
	})

	got := b.Execute(context.Background(), "no_such_tool", nil, "")
	if !strings.Contains(got, "not found") {
		t.Errorf("Execute = %q, want a not-found message", got)
	}
}

func TestExecute_ErrorResultBecomesMessage(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {
			tools:  []registry.ToolDescriptor{{Name: "read_file"}},
			result: registry.ErrorResult("permission denied"),
		},
	})

	got := b.Execute(context.Background(), "read_file", nil, "fs")
	if !strings.Contains(got, "Error from read_file") || !strings.Contains(got, "permission denied") {
		t.Errorf("Execute = %q", got)
	}
}

func TestExecute_CallErrorBecomesMessage(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {
			tools: []registry.ToolDescriptor{{Name: "read_file"}},
			err:   fmt.Errorf("backend exploded"),
		},
	})

	got := b.Execute(context.Background(), "read_file", nil, "fs")
	if !strings.Contains(got, "Error calling read_file") {
		t.Errorf("Execute = %q", got)
	}
}

func TestExecute_BareNameResolvesDeterministically(t *testing.T) {
	// Same tool name on two servers: the lexically first server wins.
	b := newTestBridge(map[string]*echoProvider{
		"zeta": {
			tools:  []registry.ToolDescriptor{{Name: "status"}},
			result: registry.TextResult("from zeta"),
		},
		"alpha": {
			tools:  []registry.ToolDescriptor{{Name: "status"}},
			result: registry.TextResult("from alpha"),
		},
	})

	got := b.Execute(context.Background(), "status", nil, "")
	if got != "from alpha" {
		t.Errorf("Execute = %q, want 'from alpha'", got)
	}
}

func TestExecute_EmptyContent(t *testing.T) {
	b := newTestBridge(map[string]*echoProvider{
		"fs": {
			tools:  []registry.ToolDescriptor{{Name: "write_file"}},
			result: &registry.CallResult{},
		},
	})

	got := b.Execute(context.Background(), "write_file", nil, "fs")
	if !strings.Contains(got, "completed with no output") {
		t.Errorf("Execute = %q", got)
	}
}

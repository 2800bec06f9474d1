package providers

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tandemhq/tandem-core/registry"
)

// fakeStore serves a fixed project list.
type fakeStore struct {
	projects []Project
	err      error
}

var _ Store = (*fakeStore)(nil)

func (f *fakeStore) GetProject(id string) (*Project, error) {
	if f.err != nil {
		return nil, f.err
	}
	for _, p := range f.projects {
		if p.ID == id {
			return &p, nil
		}
	}
	return nil, errors.New("project not found")
}

func (f *fakeStore) ListProjects() ([]Project, error) {
	return f.projects, f.err
}

func TestWorktreeResources_Enumeration(t *testing.T) {
	store := &fakeStore{projects: []Project{
		{ID: "p1", Name: "Alpha", Path: "/repos/alpha"},
		{ID: "p2", Name: "Beta", Path: "/repos/beta"},
	}}
	wt := &fakeWorktrees{byProject: map[string][]WorktreeInfo{
		"p1": {{Name: "main", Path: "/repos/alpha"}},
		"p2": {{Name: "main", Path: "/repos/beta"}, {Name: "wip", Path: "/repos/beta-wip"}},
	}}

	p := NewWorktreeResourceProvider(store, wt)
	resources, err := p.Resources(context.Background())
	if err != nil {
		t.Fatalf("Resources failed: %v", err)
	}
	if len(resources) != 3 {
		t.Fatalf("expected 3 resources, got %d", len(resources))
	}

	uris := make(map[string]bool)
	for _, r := range resources {
		uris[r.URI] = true
	}
	for _, want := range []string{"worktree://p1/main", "worktree://p2/main", "worktree://p2/wip"} {
		if !uris[want] {
			t.Errorf("missing resource %s (have %v)", want, uris)
		}
	}
}

func TestWorktreeResources_ReadCombinesStatusAndDiff(t *testing.T) {
	store := &fakeStore{projects: []Project{{ID: "p1", Name: "Alpha"}}}
	wt := &fakeWorktrees{
		byProject: map[string][]WorktreeInfo{"p1": {{Name: "main", Path: "/repos/alpha"}}},
		status:    "M internal/thing.go",
		diff:      "+added line",
	}

	p := NewWorktreeResourceProvider(store, wt)
	content, err := p.ReadResource(context.Background(), "worktree://p1/main")
	if err != nil {
		t.Fatalf("ReadResource failed: %v", err)
	}
	if !strings.Contains(content.Text, "M internal/thing.go") {
		t.Errorf("status missing from content:\n%s", content.Text)
	}
	if !strings.Contains(content.Text, "+added line") {
		t.Errorf("diff missing from content:\n%s", content.Text)
	}
}

func TestWorktreeResources_BadURI(t *testing.T) {
	p := NewWorktreeResourceProvider(&fakeStore{}, &fakeWorktrees{})

	for _, uri := range []string{"file:///x", "worktree://", "worktree://only-project"} {
		if _, err := p.ReadResource(context.Background(), uri); err == nil {
			t.Errorf("expected error for %q", uri)
		}
	}
}

func TestWorktreeResources_SubscribeWatchesDirectory(t *testing.T) {
	dir := t.TempDir()
	store := &fakeStore{projects: []Project{{ID: "p1", Name: "Alpha"}}}
	wt := &fakeWorktrees{
		byProject: map[string][]WorktreeInfo{"p1": {{Name: "main", Path: dir}}},
		status:    "clean",
	}

	p := NewWorktreeResourceProvider(store, wt)
	updates := make(chan string, 16)
	cancel, err := p.SubscribeResource("worktree://p1/main", func(c registry.ResourceContent) {
		updates <- c.URI
	})
	if err != nil {
		t.Fatalf("SubscribeResource failed: %v", err)
	}

	// Initial delivery fires without any filesystem event
	select {
	case uri := <-updates:
		if uri != "worktree://p1/main" {
			t.Errorf("URI = %q", uri)
		}
	case <-time.After(2 * time.Second):
		t.Error("expected an initial update")
	}

	cancel()
	cancel() // idempotent
}

func TestWorktreeResources_SubscribeUnknownWorktree(t *testing.T) {
	p := NewWorktreeResourceProvider(&fakeStore{}, &fakeWorktrees{byProject: map[string][]WorktreeInfo{}})

	if _, err := p.SubscribeResource("worktree://p1/ghost", func(registry.ResourceContent) {}); err == nil {
		t.Error("expected error for unknown worktree")
	}
}

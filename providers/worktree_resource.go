package providers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/tandemhq/tandem-core/logger"
	"github.com/tandemhq/tandem-core/registry"
)

// WorktreeResourceProvider serves worktree state as readable resources under
// worktree://<project>/<name> URIs. Each resource renders the worktree's
// status and uncommitted diff. Change subscriptions are native: a filesystem
// watcher on the worktree directory, not polling.
type WorktreeResourceProvider struct {
	store     Store
	worktrees Worktrees
	log       *slog.Logger
}

var _ registry.Provider = (*WorktreeResourceProvider)(nil)
var _ registry.Subscriber = (*WorktreeResourceProvider)(nil)

// NewWorktreeResourceProvider wraps the store and worktree capabilities.
func NewWorktreeResourceProvider(store Store, wt Worktrees) *WorktreeResourceProvider {
	return &WorktreeResourceProvider{
		store:     store,
		worktrees: wt,
		log:       logger.WithComponent("worktree-resources"),
	}
}

func (w *WorktreeResourceProvider) Tools(ctx context.Context) ([]registry.ToolDescriptor, error) {
	return nil, nil
}

// Resources enumerates every worktree of every known project. A project
// whose worktree listing fails is logged and skipped.
func (w *WorktreeResourceProvider) Resources(ctx context.Context) ([]registry.ResourceDescriptor, error) {
	projects, err := w.store.ListProjects()
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}

	var resources []registry.ResourceDescriptor
	for _, project := range projects {
		worktrees, err := w.worktrees.GetWorktrees(ctx, project.ID)
		if err != nil {
			w.log.Warn("skipping project with unreadable worktrees", "project", project.ID, "error", err)
			continue
		}
		for _, wt := range worktrees {
			resources = append(resources, registry.ResourceDescriptor{
				URI:         fmt.Sprintf("worktree://%s/%s", project.ID, wt.Name),
				Name:        fmt.Sprintf("%s / %s", project.Name, wt.Name),
				Description: "Status and uncommitted changes of the worktree",
				MIMEType:    "text/plain",
			})
		}
	}
	return resources, nil
}

func (w *WorktreeResourceProvider) ResourceTemplates(ctx context.Context) ([]registry.ResourceTemplate, error) {
	return []registry.ResourceTemplate{
		{
			URITemplate: "worktree://{project}/{name}",
			Name:        "worktree state",
			Description: "Status and uncommitted changes of one git worktree",
			MIMEType:    "text/plain",
		},
	}, nil
}

func (w *WorktreeResourceProvider) CallTool(ctx context.Context, name string, args map[string]any) (*registry.CallResult, error) {
	return nil, fmt.Errorf("tool %q: %w", name, registry.ErrToolNotFound)
}

// parseURI splits worktree://<project>/<name>.
func parseWorktreeURI(uri string) (projectID, name string, err error) {
	rest, ok := strings.CutPrefix(uri, "worktree://")
	if !ok {
		return "", "", fmt.Errorf("uri %q: %w", uri, registry.ErrResourceNotFound)
	}
	projectID, name, ok = strings.Cut(rest, "/")
	if !ok || projectID == "" || name == "" {
		return "", "", fmt.Errorf("uri %q is not worktree://<project>/<name>: %w", uri, registry.ErrResourceNotFound)
	}
	return projectID, name, nil
}

func (w *WorktreeResourceProvider) ReadResource(ctx context.Context, uri string) (*registry.ResourceContent, error) {
	projectID, name, err := parseWorktreeURI(uri)
	if err != nil {
		return nil, err
	}

	status, err := w.worktrees.GetWorktreeStatus(ctx, projectID, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}
	diff, err := w.worktrees.GetWorktreeDiff(ctx, projectID, name)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", uri, err)
	}

	var sb strings.Builder
	sb.WriteString("# Status\n")
	if status == "" {
		status = "clean"
	}
	sb.WriteString(status)
	sb.WriteString("\n\n# Diff\n")
	if diff == "" {
		diff = "no changes"
	}
	sb.WriteString(diff)

	return &registry.ResourceContent{
		URI:      uri,
		MIMEType: "text/plain",
		Text:     sb.String(),
	}, nil
}

// SubscribeResource watches the worktree directory and re-reads the resource
// on filesystem changes. The cancel function is idempotent and guarantees no
// callback after it returns.
func (w *WorktreeResourceProvider) SubscribeResource(uri string, onUpdate func(registry.ResourceContent)) (func(), error) {
	projectID, name, err := parseWorktreeURI(uri)
	if err != nil {
		return nil, err
	}

	ctx := context.Background()
	worktrees, err := w.worktrees.GetWorktrees(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("locating worktree for %s: %w", uri, err)
	}
	var path string
	for _, wt := range worktrees {
		if wt.Name == name {
			path = wt.Path
			break
		}
	}
	if path == "" {
		return nil, fmt.Errorf("worktree %q not found in project %q: %w", name, projectID, registry.ErrResourceNotFound)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher for %s: %w", uri, err)
	}
	if err := watcher.Add(path); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("watching %s: %w", path, err)
	}

	var mu sync.Mutex
	cancelled := false

	deliver := func() {
		content, err := w.ReadResource(ctx, uri)
		if err != nil {
			w.log.Debug("re-read after change failed", "uri", uri, "error", err)
			return
		}
		mu.Lock()
		defer mu.Unlock()
		if cancelled {
			return
		}
		onUpdate(*content)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		deliver()
		for {
			select {
			case _, ok := <-watcher.Events:
				if !ok {
					return
				}
				deliver()
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				w.log.Warn("watcher error", "uri", uri, "error", err)
			}
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			_ = watcher.Close()
			mu.Lock()
			cancelled = true
			mu.Unlock()
			<-done
		})
	}, nil
}

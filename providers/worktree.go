package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tandemhq/tandem-core/registry"
)

// WorktreeProvider exposes git worktree management as tools. All git work is
// delegated to the Worktrees capability; this provider only shapes arguments
// and results.
type WorktreeProvider struct {
	worktrees Worktrees
}

var _ registry.Provider = (*WorktreeProvider)(nil)

// NewWorktreeProvider wraps a Worktrees capability.
func NewWorktreeProvider(wt Worktrees) *WorktreeProvider {
	return &WorktreeProvider{worktrees: wt}
}

func (w *WorktreeProvider) Tools(ctx context.Context) ([]registry.ToolDescriptor, error) {
	projectArg := `"project_id":{"type":"string"}`
	nameArg := `"name":{"type":"string"}`
	return []registry.ToolDescriptor{
		{
			Name:        "list_worktrees",
			Description: "List the git worktrees of a project. Arguments: project_id.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `},"required":["project_id"]}`),
		},
		{
			Name:        "create_worktree",
			Description: "Create a new git worktree on a fresh branch. Arguments: project_id, name, base_branch (optional).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `,` + nameArg + `,"base_branch":{"type":"string"}},"required":["project_id","name"]}`),
		},
		{
			Name:        "remove_worktree",
			Description: "Remove a git worktree. Arguments: project_id, name, force (optional).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `,` + nameArg + `,"force":{"type":"boolean"}},"required":["project_id","name"]}`),
		},
		{
			Name:        "worktree_status",
			Description: "Show the working tree status of a worktree. Arguments: project_id, name.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `,` + nameArg + `},"required":["project_id","name"]}`),
		},
		{
			Name:        "worktree_diff",
			Description: "Show uncommitted changes in a worktree. Arguments: project_id, name.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `,` + nameArg + `},"required":["project_id","name"]}`),
		},
		{
			Name:        "worktree_commits",
			Description: "List recent commits of a worktree branch. Arguments: project_id, name, limit (optional, default 20).",
			InputSchema: json.RawMessage(`{"type":"object","properties":{` + projectArg + `,` + nameArg + `,"limit":{"type":"integer"}},"required":["project_id","name"]}`),
		},
	}, nil
}

func (w *WorktreeProvider) Resources(ctx context.Context) ([]registry.ResourceDescriptor, error) {
	return nil, nil
}

func (w *WorktreeProvider) ResourceTemplates(ctx context.Context) ([]registry.ResourceTemplate, error) {
	return nil, nil
}

func (w *WorktreeProvider) CallTool(ctx context.Context, name string, args map[string]any) (*registry.CallResult, error) {
	projectID, _ := args["project_id"].(string)
	wtName, _ := args["name"].(string)

	switch name {
	case "list_worktrees":
		if projectID == "" {
			return registry.ErrorResult("project_id is required"), nil
		}
		worktrees, err := w.worktrees.GetWorktrees(ctx, projectID)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("listing worktrees: %v", err)), nil
		}
		if len(worktrees) == 0 {
			return registry.TextResult("no worktrees"), nil
		}
		var sb strings.Builder
		for _, wt := range worktrees {
			fmt.Fprintf(&sb, "%s\t%s\t%s\n", wt.Name, wt.Branch, wt.Path)
		}
		return registry.TextResult(strings.TrimRight(sb.String(), "\n")), nil

	case "create_worktree":
		if projectID == "" || wtName == "" {
			return registry.ErrorResult("project_id and name are required"), nil
		}
		base, _ := args["base_branch"].(string)
		wt, err := w.worktrees.CreateWorktree(ctx, projectID, wtName, base)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("creating worktree: %v", err)), nil
		}
		return registry.TextResult(fmt.Sprintf("created worktree %s on branch %s at %s", wt.Name, wt.Branch, wt.Path)), nil

	case "remove_worktree":
		if projectID == "" || wtName == "" {
			return registry.ErrorResult("project_id and name are required"), nil
		}
		force, _ := args["force"].(bool)
		if err := w.worktrees.RemoveWorktree(ctx, projectID, wtName, force); err != nil {
			return registry.ErrorResult(fmt.Sprintf("removing worktree: %v", err)), nil
		}
		return registry.TextResult(fmt.Sprintf("removed worktree %s", wtName)), nil

	case "worktree_status":
		if projectID == "" || wtName == "" {
			return registry.ErrorResult("project_id and name are required"), nil
		}
		status, err := w.worktrees.GetWorktreeStatus(ctx, projectID, wtName)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("getting status: %v", err)), nil
		}
		if status == "" {
			status = "clean"
		}
		return registry.TextResult(status), nil

	case "worktree_diff":
		if projectID == "" || wtName == "" {
			return registry.ErrorResult("project_id and name are required"), nil
		}
		diff, err := w.worktrees.GetWorktreeDiff(ctx, projectID, wtName)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("getting diff: %v", err)), nil
		}
		if diff == "" {
			diff = "no changes"
		}
		return registry.TextResult(diff), nil

	case "worktree_commits":
		if projectID == "" || wtName == "" {
			return registry.ErrorResult("project_id and name are required"), nil
		}
		limit := 20
		if v, ok := args["limit"].(float64); ok && v > 0 {
			limit = int(v)
		}
		commits, err := w.worktrees.ListWorktreeCommits(ctx, projectID, wtName, limit)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("listing commits: %v", err)), nil
		}
		if len(commits) == 0 {
			return registry.TextResult("no commits"), nil
		}
		var sb strings.Builder
		for _, c := range commits {
			fmt.Fprintf(&sb, "%s %s (%s, %s)\n", c.Hash, c.Subject, c.Author, c.Date)
		}
		return registry.TextResult(strings.TrimRight(sb.String(), "\n")), nil
	}

	return nil, fmt.Errorf("tool %q: %w", name, registry.ErrToolNotFound)
}

func (w *WorktreeProvider) ReadResource(ctx context.Context, uri string) (*registry.ResourceContent, error) {
	return nil, fmt.Errorf("uri %q: %w", uri, registry.ErrResourceNotFound)
}

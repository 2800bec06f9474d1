// Package providers contains the in-process tool and resource providers
// registered with the registry: filesystem access, git worktree management,
// worktree-backed resources, and cross-agent orchestration.
//
// Capability interfaces (Store, Worktrees, Orchestrator) are consumed, not
// implemented here; the embedding application supplies them.
package providers

import "context"

// Project identifies one repository the application manages.
type Project struct {
	ID   string
	Name string
	Path string
}

// Store exposes the application's project table.
type Store interface {
	GetProject(id string) (*Project, error)
	ListProjects() ([]Project, error)
}

// WorktreeInfo describes one git worktree of a project.
type WorktreeInfo struct {
	Name   string
	Path   string
	Branch string
}

// Commit is one entry of a worktree's log.
type Commit struct {
	Hash    string
	Author  string
	Date    string
	Subject string
}

// Worktrees is the git worktree capability the application supplies.
type Worktrees interface {
	GetWorktrees(ctx context.Context, projectID string) ([]WorktreeInfo, error)
	CreateWorktree(ctx context.Context, projectID, name, baseBranch string) (*WorktreeInfo, error)
	RemoveWorktree(ctx context.Context, projectID, name string, force bool) error
	GetWorktreeStatus(ctx context.Context, projectID, name string) (string, error)
	GetWorktreeDiff(ctx context.Context, projectID, name string) (string, error)
	ListWorktreeCommits(ctx context.Context, projectID, name string, limit int) ([]Commit, error)
}

// AgentStatus is one live session's summary for orchestration tools.
type AgentStatus struct {
	SessionID string `json:"session_id"`
	AgentType string `json:"agent_type"`
	State     string `json:"state"`
	Task      string `json:"task,omitempty"`
}

// Orchestrator is the cross-agent coordination capability.
type Orchestrator interface {
	DispatchTask(ctx context.Context, taskID, agentType, prompt string) error
	GetAgentStatuses(ctx context.Context) ([]AgentStatus, error)
	BroadcastContext(ctx context.Context, message string) error
}

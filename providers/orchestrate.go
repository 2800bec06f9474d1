package providers

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/tandemhq/tandem-core/registry"
)

// OrchestrateProvider lets one agent coordinate with the others: hand off
// tasks, inspect session states, and broadcast context to every live session.
type OrchestrateProvider struct {
	orchestrator Orchestrator
}

var _ registry.Provider = (*OrchestrateProvider)(nil)

// NewOrchestrateProvider wraps an Orchestrator capability.
func NewOrchestrateProvider(o Orchestrator) *OrchestrateProvider {
	return &OrchestrateProvider{orchestrator: o}
}

func (o *OrchestrateProvider) Tools(ctx context.Context) ([]registry.ToolDescriptor, error) {
	return []registry.ToolDescriptor{
		{
			Name:        "dispatch_task",
			Description: "Hand a task to another agent. Arguments: agent_type (claude/gemini/codex), prompt. Returns the task id.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"agent_type":{"type":"string"},"prompt":{"type":"string"}},"required":["agent_type","prompt"]}`),
		},
		{
			Name:        "agent_statuses",
			Description: "List the state of every live agent session.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{}}`),
		},
		{
			Name:        "broadcast_context",
			Description: "Send a context note to all live agent sessions. Arguments: message.",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"message":{"type":"string"}},"required":["message"]}`),
		},
	}, nil
}

func (o *OrchestrateProvider) Resources(ctx context.Context) ([]registry.ResourceDescriptor, error) {
	return nil, nil
}

func (o *OrchestrateProvider) ResourceTemplates(ctx context.Context) ([]registry.ResourceTemplate, error) {
	return nil, nil
}

func (o *OrchestrateProvider) CallTool(ctx context.Context, name string, args map[string]any) (*registry.CallResult, error) {
	switch name {
	case "dispatch_task":
		agentType, _ := args["agent_type"].(string)
		prompt, _ := args["prompt"].(string)
		if agentType == "" || prompt == "" {
			return registry.ErrorResult("agent_type and prompt are required"), nil
		}
		taskID := uuid.New().String()
		if err := o.orchestrator.DispatchTask(ctx, taskID, agentType, prompt); err != nil {
			return registry.ErrorResult(fmt.Sprintf("dispatching task: %v", err)), nil
		}
		return registry.TextResult("dispatched task " + taskID), nil

	case "agent_statuses":
		statuses, err := o.orchestrator.GetAgentStatuses(ctx)
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("getting statuses: %v", err)), nil
		}
		if len(statuses) == 0 {
			return registry.TextResult("no live sessions"), nil
		}
		data, err := json.MarshalIndent(statuses, "", "  ")
		if err != nil {
			return registry.ErrorResult(fmt.Sprintf("encoding statuses: %v", err)), nil
		}
		return registry.TextResult(string(data)), nil

	case "broadcast_context":
		message, _ := args["message"].(string)
		if message == "" {
			return registry.ErrorResult("message is required"), nil
		}
		if err := o.orchestrator.BroadcastContext(ctx, message); err != nil {
			return registry.ErrorResult(fmt.Sprintf("broadcasting: %v", err)), nil
		}
		return registry.TextResult("context broadcast to all sessions"), nil
	}

	return nil, fmt.Errorf("tool %q: %w", name, registry.ErrToolNotFound)
}

func (o *OrchestrateProvider) ReadResource(ctx context.Context, uri string) (*registry.ResourceContent, error) {
	return nil, fmt.Errorf("uri %q: %w", uri, registry.ErrResourceNotFound)
}

// Package process finds and cleans up agent CLI processes left behind after
// a crash. A session subprocess whose manager died keeps running and holding
// its PTY; on startup the application sweeps for such orphans.
package process

import (
	"context"
	"strconv"
	"strings"

	"github.com/tandemhq/tandem-core/exec"
	"github.com/tandemhq/tandem-core/logger"
)

// defaultPatterns match the command lines of the agent CLIs the session
// runtime spawns.
var defaultPatterns = []string{
	"claude.*--output-format stream-json",
	"gemini.*--output-format stream-json",
	"codex proto",
}

// AgentProcess is one running agent CLI found on the system.
type AgentProcess struct {
	PID     int
	Command string
}

// FindAgentProcesses locates running agent CLI processes matching the given
// pgrep patterns (nil means the default agent patterns). pgrep exiting 1
// means no matches, not an error.
func FindAgentProcesses(ctx context.Context, executor exec.CommandExecutor, patterns []string) ([]AgentProcess, error) {
	log := logger.WithComponent("process")
	if patterns == nil {
		patterns = defaultPatterns
	}

	seen := make(map[int]bool)
	var processes []AgentProcess

	for _, pattern := range patterns {
		output, err := executor.Output(ctx, "", "pgrep", "-f", pattern)
		if err != nil {
			// No matches for this pattern; pgrep signals that via exit 1.
			continue
		}

		for _, pidStr := range strings.Fields(string(output)) {
			pid, err := strconv.Atoi(pidStr)
			if err != nil || seen[pid] {
				continue
			}
			seen[pid] = true

			psOutput, err := executor.Output(ctx, "", "ps", "-p", pidStr, "-o", "args=")
			if err != nil {
				continue
			}
			processes = append(processes, AgentProcess{
				PID:     pid,
				Command: strings.TrimSpace(string(psOutput)),
			})
		}
	}

	log.Debug("found agent processes", "count", len(processes))
	return processes, nil
}

// KillProcess force-kills a process group by PID, falling back to the single
// process when the group signal fails.
func KillProcess(ctx context.Context, executor exec.CommandExecutor, pid int) error {
	if _, _, err := executor.Run(ctx, "", "kill", "-9", "-"+strconv.Itoa(pid)); err == nil {
		return nil
	}
	_, _, err := executor.Run(ctx, "", "kill", "-9", strconv.Itoa(pid))
	return err
}

// CleanupOrphans kills agent processes whose PIDs are not in the live set
// and returns how many were killed. Failures to kill individual processes
// are logged and skipped.
func CleanupOrphans(ctx context.Context, executor exec.CommandExecutor, patterns []string, livePIDs map[int]bool) (int, error) {
	log := logger.WithComponent("process")

	processes, err := FindAgentProcesses(ctx, executor, patterns)
	if err != nil {
		return 0, err
	}

	killed := 0
	for _, proc := range processes {
		if livePIDs[proc.PID] {
			continue
		}
		log.Info("killing orphaned agent process", "pid", proc.PID, "command", proc.Command)
		if err := KillProcess(ctx, executor, proc.PID); err != nil {
			log.Error("failed to kill orphaned process", "pid", proc.PID, "error", err)
			continue
		}
		killed++
	}
	return killed, nil
}

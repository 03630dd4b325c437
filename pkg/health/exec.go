package health

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cuemby/exadt/pkg/runtime"
)

// ExecChecker runs a command in a container and checks its exit code
type ExecChecker struct {
	// Command is the command to execute, e.g. ["dwad_client", "shortlist"]
	Command []string

	// Timeout is the command execution timeout (default: 10 seconds)
	Timeout time.Duration

	// ContainerID is the container to exec into
	ContainerID string

	execer runtime.Execer
}

// NewExecChecker creates a new exec health checker
func NewExecChecker(execer runtime.Execer, containerID string, command []string) *ExecChecker {
	return &ExecChecker{
		Command:     command,
		Timeout:     10 * time.Second,
		ContainerID: containerID,
		execer:      execer,
	}
}

// Check performs the exec health check
func (e *ExecChecker) Check(ctx context.Context) Result {
	start := time.Now()
	if len(e.Command) == 0 {
		return newResult(start, false, "no command specified")
	}

	execCtx, cancel := context.WithTimeout(ctx, e.Timeout)
	defer cancel()

	res, err := e.execer.Exec(execCtx, e.ContainerID, e.Command)
	message := fmt.Sprintf("Command: %v", e.Command)
	if err != nil {
		return newResult(start, false, "%s, Error: %v", message, err)
	}
	if res.ExitCode != 0 {
		message = fmt.Sprintf("%s, Exit code: %d", message, res.ExitCode)
		if s := strings.TrimSpace(res.Stderr); s != "" {
			message = fmt.Sprintf("%s, Stderr: %s", message, s)
		}
		return newResult(start, false, "%s", message)
	}

	if output := strings.TrimSpace(res.Stdout); output != "" {
		if len(output) > 100 {
			output = output[:100] + "..."
		}
		message = fmt.Sprintf("%s, Output: %s", message, output)
	}

	return newResult(start, true, "%s", message)
}

// Type returns the health check type
func (e *ExecChecker) Type() CheckType {
	return CheckTypeExec
}

// WithTimeout sets the execution timeout
func (e *ExecChecker) WithTimeout(timeout time.Duration) *ExecChecker {
	e.Timeout = timeout
	return e
}

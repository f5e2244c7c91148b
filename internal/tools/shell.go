package tools

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// defaultSyncWindow is how long a shell command may run before it is
// escalated to a background session, when no timeout is configured.
const defaultSyncWindow = 10 * time.Second

// ShellTool runs a command under `sh -c`. Commands that finish within
// the synchronous window return their output directly; longer ones keep
// running as background sessions and return a Pending outcome whose
// final result is resolved later.
type ShellTool struct {
	sessions *SessionManager
}

// NewShellTool returns a shell tool backed by the given session manager.
func NewShellTool(sessions *SessionManager) *ShellTool {
	return &ShellTool{sessions: sessions}
}

func (t *ShellTool) Name() string { return NameShell }

func (t *ShellTool) Run(ctx context.Context, call Call, env ExecContext) Outcome {
	command := strings.TrimSpace(call.Params.Value("command"))
	if command == "" {
		return Failure{Message: "shell requires a command parameter", ErrorType: "invalid_args"}
	}

	id, err := t.sessions.Start(command, env.WorkingDir, env.Env)
	if err != nil {
		return Failure{Message: err.Error(), ErrorType: "shell_error"}
	}

	window := env.Timeout
	if window <= 0 {
		window = defaultSyncWindow
	}

	status, _ := t.sessions.Await(ctx, id, window)
	if status.Running {
		if ctx.Err() != nil {
			return Failure{
				Message:   "command cancelled",
				ErrorType: "cancelled",
				Stdout:    status.Stdout,
				Stderr:    status.Stderr,
			}
		}
		return Pending{SessionID: id, Command: command}
	}

	t.sessions.Remove(id)
	return outcomeForSession(status)
}

// outcomeForSession converts a terminal session status into an outcome.
func outcomeForSession(status SessionStatus) Outcome {
	if status.Err != "" {
		return Failure{
			Message:   status.Err,
			ErrorType: "shell_error",
			Stdout:    status.Stdout,
			Stderr:    status.Stderr,
		}
	}
	if status.ExitCode != 0 {
		return Failure{
			Message:   fmt.Sprintf("command exited with code %d", status.ExitCode),
			ErrorType: "shell_exit",
			Stdout:    status.Stdout,
			Stderr:    status.Stderr,
		}
	}
	out := status.Output()
	if strings.TrimSpace(out) == "" {
		out = "(no output)"
	}
	return Success{Content: out}
}

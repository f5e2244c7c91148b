package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/tools"
)

// DefaultWaitTimeout bounds the single wait a pending result gets
// before it is reported as still running.
const DefaultWaitTimeout = 60 * time.Second

// partialTailLimit caps how much partial output a still-running report
// carries back to the model.
const partialTailLimit = 4000

// Awaiter provides the final outcome of a background session, or a
// point-in-time snapshot while it runs. tools.SessionManager satisfies
// it.
type Awaiter interface {
	AwaitResult(ctx context.Context, sessionID string, timeout time.Duration) (tools.Outcome, bool)
	Snapshot(sessionID string) (tools.SessionStatus, bool)
}

// Resolver settles Pending execution results. It performs exactly one
// bounded wait per result; a session that outlives the wait is reported
// as a success with still-running metadata, and nothing here re-polls
// or kills the underlying process.
type Resolver struct {
	sessions Awaiter
	timeout  time.Duration
}

// NewResolver returns a resolver over the given awaiter. A zero or
// negative timeout falls back to DefaultWaitTimeout.
func NewResolver(sessions Awaiter, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = DefaultWaitTimeout
	}
	return &Resolver{sessions: sessions, timeout: timeout}
}

// Resolve turns a Pending result into a final one. Non-pending results
// pass through untouched. Terminal session outcomes keep the original
// start time and result id; success or failure mirrors the session
// exactly.
func (r *Resolver) Resolve(ctx context.Context, result tools.ExecutionResult) tools.ExecutionResult {
	pending, ok := result.Outcome.(tools.Pending)
	if !ok {
		return result
	}

	logger.Debug("awaiting session %s (timeout %s)", pending.SessionID, r.timeout)
	outcome, found := r.sessions.AwaitResult(ctx, pending.SessionID, r.timeout)
	if !found {
		final := tools.NewResult(result.Tool, tools.Failure{
			Message:   fmt.Sprintf("unknown session: %s", pending.SessionID),
			ErrorType: "session_error",
		}, result.StartedAt)
		final.ID = result.ID
		return final
	}

	if _, still := outcome.(tools.Pending); still {
		return r.stillRunning(result, pending)
	}

	final := tools.NewResult(result.Tool, outcome, result.StartedAt)
	final.ID = result.ID
	final.SetMeta(tools.MetaSessionID, pending.SessionID)
	return final
}

// stillRunning synthesizes the success result for a session that
// outlived its wait. The content leads with elapsed time so the model
// (and a human) can see at a glance how long the command has run.
func (r *Resolver) stillRunning(result tools.ExecutionResult, pending tools.Pending) tools.ExecutionResult {
	elapsed := time.Since(result.StartedAt)

	partial := ""
	if status, ok := r.sessions.Snapshot(pending.SessionID); ok {
		partial = tools.Tail(status.Output(), partialTailLimit)
	}

	content := fmt.Sprintf(
		"Command still running after %d seconds.\nCommand: %s\nSession: %s",
		int(elapsed.Seconds()), pending.Command, pending.SessionID,
	)
	if partial != "" {
		content += "\nPartial output:\n" + partial
	}

	final := tools.NewResult(result.Tool, tools.Success{Content: content}, result.StartedAt)
	final.ID = result.ID
	final.SetMeta(tools.MetaStatus, tools.StatusStillRunning)
	final.SetMeta(tools.MetaSessionID, pending.SessionID)
	final.SetMeta(tools.MetaIsAsync, "true")
	final.SetMeta(tools.MetaStillRunning, "true")
	final.SetMeta(tools.MetaIsLiveSession, "true")
	if partial != "" {
		final.SetMeta(tools.MetaPartialOutput, partial)
	}
	logger.Info("session %s still running after %s", pending.SessionID, elapsed.Round(time.Second))
	return final
}

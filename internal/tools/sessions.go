package tools

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/rs/xid"

	"github.com/mark3labs/dispatchr/internal/logger"
)

// sessionBufferCap bounds how much combined output a background session
// retains. Older output is discarded; callers tail what remains.
const sessionBufferCap = 64 * 1024

// tailBuffer keeps the last max bytes written to it. Write never returns
// an error, so a slow or absent consumer can never stall or kill the
// child process.
type tailBuffer struct {
	mu    sync.Mutex
	buf   []byte
	max   int
	total int64
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (b *tailBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.total += int64(len(p))
	b.buf = append(b.buf, p...)
	if len(b.buf) > b.max {
		b.buf = b.buf[len(b.buf)-b.max:]
	}
	return len(p), nil
}

func (b *tailBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.buf)
}

func (b *tailBuffer) Total() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.total
}

// SessionStatus is a point-in-time view of a background session.
type SessionStatus struct {
	ID        string
	Command   string
	Running   bool
	ExitCode  int
	Err       string
	Stdout    string
	Stderr    string
	StartedAt time.Time
	EndedAt   time.Time
}

// Output returns stdout and stderr joined, for tailing.
func (st SessionStatus) Output() string {
	if st.Stderr == "" {
		return st.Stdout
	}
	if st.Stdout == "" {
		return st.Stderr
	}
	return st.Stdout + "\n" + st.Stderr
}

type session struct {
	id      string
	command string
	started time.Time
	out     *tailBuffer
	errOut  *tailBuffer
	cmd     *exec.Cmd
	done    chan struct{}

	mu       sync.Mutex
	ended    time.Time
	exitCode int
	waitErr  error
}

func (s *session) status() SessionStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := SessionStatus{
		ID:        s.id,
		Command:   s.command,
		Stdout:    s.out.String(),
		Stderr:    s.errOut.String(),
		StartedAt: s.started,
		EndedAt:   s.ended,
		ExitCode:  s.exitCode,
	}
	select {
	case <-s.done:
	default:
		st.Running = true
	}
	if s.waitErr != nil {
		st.Err = s.waitErr.Error()
	}
	return st
}

// SessionManager owns shell commands that outlive their synchronous
// window. Sessions keep running across iterations until awaited to
// completion or the manager shuts down.
type SessionManager struct {
	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager returns an empty manager.
func NewSessionManager() *SessionManager {
	return &SessionManager{sessions: make(map[string]*session)}
}

// Start launches command under `sh -c` in workDir and returns the new
// session's id. The process is not bound to any context; it survives
// until it exits or Shutdown kills it.
func (m *SessionManager) Start(command, workDir string, env []string) (string, error) {
	cmd := exec.Command("sh", "-c", command)
	cmd.Dir = workDir
	if len(env) > 0 {
		cmd.Env = env
	}
	// Own process group, so a kill reaches the command itself and not
	// just the intermediate sh.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	s := &session{
		id:      xid.New().String(),
		command: command,
		started: time.Now(),
		out:     newTailBuffer(sessionBufferCap),
		errOut:  newTailBuffer(sessionBufferCap),
		cmd:     cmd,
		done:    make(chan struct{}),
	}
	cmd.Stdout = s.out
	cmd.Stderr = s.errOut

	if err := cmd.Start(); err != nil {
		return "", fmt.Errorf("starting session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.id] = s
	m.mu.Unlock()

	go func() {
		err := cmd.Wait()
		s.mu.Lock()
		s.ended = time.Now()
		s.waitErr = err
		if exit, ok := err.(*exec.ExitError); ok {
			s.exitCode = exit.ExitCode()
			s.waitErr = nil
		}
		s.mu.Unlock()
		close(s.done)
		logger.Debug("session %s exited with code %d", s.id, s.exitCode)
	}()

	logger.Debug("session %s started: %s", s.id, command)
	return s.id, nil
}

// Await blocks until the session exits, the timeout elapses, or ctx is
// cancelled, then returns the session's status at that moment. ok is
// false for unknown session ids.
func (m *SessionManager) Await(ctx context.Context, id string, timeout time.Duration) (SessionStatus, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return SessionStatus{}, false
	}

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-s.done:
	case <-timer.C:
	case <-ctx.Done():
	}
	return s.status(), true
}

// AwaitResult is Await expressed as an outcome: a session that exits
// within the timeout is removed and converted the same way the shell
// tool converts synchronous completions; one still running comes back
// as Pending. ok is false for unknown session ids.
func (m *SessionManager) AwaitResult(ctx context.Context, id string, timeout time.Duration) (Outcome, bool) {
	status, ok := m.Await(ctx, id, timeout)
	if !ok {
		return nil, false
	}
	if status.Running {
		return Pending{SessionID: id, Command: status.Command}, true
	}
	m.Remove(id)
	return outcomeForSession(status), true
}

// Snapshot returns the session's current status without waiting.
func (m *SessionManager) Snapshot(id string) (SessionStatus, bool) {
	m.mu.Lock()
	s, ok := m.sessions[id]
	m.mu.Unlock()
	if !ok {
		return SessionStatus{}, false
	}
	return s.status(), true
}

// Remove forgets a session whose result has been consumed. The process,
// if still running, is left alone.
func (m *SessionManager) Remove(id string) {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()
}

// Live returns the ids of sessions that are still running.
func (m *SessionManager) Live() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var ids []string
	for id, s := range m.sessions {
		select {
		case <-s.done:
		default:
			ids = append(ids, id)
		}
	}
	return ids
}

// Shutdown kills every live session. Called on process exit so no
// children outlive the run.
func (m *SessionManager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, s := range m.sessions {
		select {
		case <-s.done:
		default:
			if s.cmd.Process != nil {
				// Negative pid signals the whole group; sh's children
				// would otherwise keep the output pipes open and Wait
				// would never return.
				_ = syscall.Kill(-s.cmd.Process.Pid, syscall.SIGKILL)
				logger.Debug("session %s killed on shutdown", id)
			}
		}
	}
}

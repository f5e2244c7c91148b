package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/mark3labs/dispatchr/internal/logger"
)

// errDetailMax caps how much stderr gets folded into a failure message.
const errDetailMax = 2048

// Subprocess runs the configured agent command once per completion. The
// transcript is written to the command's stdin as a JSON array of messages
// and the response is read from stdout. The command string runs through
// `sh -c`, so pipelines and flags work as they would in a terminal.
type Subprocess struct {
	command string
	env     []string
}

// NewSubprocess validates the command and returns a client for it. model
// is optional; when set it is exported as DISPATCHR_MODEL for the command.
func NewSubprocess(command, model string) (*Subprocess, error) {
	if strings.TrimSpace(command) == "" {
		return nil, fmt.Errorf("agent command cannot be empty")
	}
	s := &Subprocess{command: command}
	if model != "" {
		s.env = append(s.env, "DISPATCHR_MODEL="+model)
	}
	return s, nil
}

// WithMCPEndpoint exports url as DISPATCHR_MCP_URL, so the agent command
// can connect back to the plan server.
func (s *Subprocess) WithMCPEndpoint(url string) *Subprocess {
	s.env = append(s.env, "DISPATCHR_MCP_URL="+url)
	return s
}

// Complete runs the agent command and returns its trimmed stdout.
func (s *Subprocess) Complete(ctx context.Context, messages []Message) (string, error) {
	payload, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encoding transcript: %w", err)
	}
	logger.Debug("Running agent command (%d messages, %d bytes)", len(messages), len(payload))

	cmd := exec.CommandContext(ctx, "sh", "-c", s.command)
	cmd.Stdin = bytes.NewReader(payload)
	if len(s.env) > 0 {
		cmd.Env = append(os.Environ(), s.env...)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		detail := strings.TrimSpace(stderr.String())
		if len(detail) > errDetailMax {
			detail = detail[len(detail)-errDetailMax:]
		}
		if detail != "" {
			return "", fmt.Errorf("agent command failed: %w: %s", err, detail)
		}
		return "", fmt.Errorf("agent command failed: %w", err)
	}

	text := strings.TrimSpace(stdout.String())
	if text == "" {
		return "", fmt.Errorf("agent command produced no output")
	}
	logger.Debug("Agent responded (%d chars)", len(text))
	return text, nil
}

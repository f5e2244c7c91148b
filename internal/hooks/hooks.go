// Package hooks runs optional project-defined commands around the
// loop. Hooks are configured per project in .dispatchr.hooks.yml; a
// missing file means no hooks.
package hooks

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mark3labs/dispatchr/internal/logger"
)

// ConfigFileName is the per-project hooks configuration file.
const ConfigFileName = ".dispatchr.hooks.yml"

// DefaultTimeout bounds hook execution, in seconds.
const DefaultTimeout = 30

// Config is the top-level hooks configuration.
type Config struct {
	Version int         `yaml:"version"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig lists the hook points a project can configure.
type HooksConfig struct {
	PreIteration *HookConfig `yaml:"pre_iteration"`
}

// HookConfig defines one hook command.
type HookConfig struct {
	Command string `yaml:"command"`
	Timeout int    `yaml:"timeout"` // seconds, default 30
}

// LoadConfig reads the hooks config from workDir. A missing file
// returns (nil, nil); hooks are optional.
func LoadConfig(workDir string) (*Config, error) {
	path := filepath.Join(workDir, ConfigFileName)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			logger.Debug("no hooks config at %s", path)
			return nil, nil
		}
		return nil, fmt.Errorf("reading hooks config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing hooks config: %w", err)
	}
	return &cfg, nil
}

// Variables expand inside hook commands.
type Variables struct {
	Task      string
	Iteration string
}

// Execute runs a hook command under sh -c with its timeout. Failures
// and timeouts degrade gracefully: the problem is folded into the
// returned output and err stays nil. Only context cancellation is
// returned as an error.
func Execute(ctx context.Context, hook *HookConfig, workDir string, vars Variables) (string, error) {
	if hook == nil || hook.Command == "" {
		return "", nil
	}

	command := expandVariables(hook.Command, vars)
	timeout := hook.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	execCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	cmd := exec.CommandContext(execCtx, "sh", "-c", command)
	cmd.Dir = workDir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	if execCtx.Err() == context.DeadlineExceeded {
		logger.Warn("hook timed out after %ds: %s", timeout, command)
		return fmt.Sprintf("[hook timed out after %ds]\n%s", timeout, stdout.String()), nil
	}
	if err != nil {
		logger.Warn("hook failed: %v", err)
		output := stdout.String()
		if stderr.Len() > 0 {
			output += "\n[stderr]\n" + stderr.String()
		}
		return fmt.Sprintf("[hook failed: %v]\n%s", err, output), nil
	}

	output := stdout.String()
	if stderr.Len() > 0 {
		output += "\n[stderr]\n" + stderr.String()
	}
	return output, nil
}

func expandVariables(command string, vars Variables) string {
	command = strings.ReplaceAll(command, "{{task}}", vars.Task)
	command = strings.ReplaceAll(command, "{{iteration}}", vars.Iteration)
	return command
}

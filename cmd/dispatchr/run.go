package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gosimple/slug"
	"github.com/rs/xid"
	"github.com/spf13/cobra"

	"github.com/mark3labs/dispatchr/internal/agent"
	"github.com/mark3labs/dispatchr/internal/config"
	"github.com/mark3labs/dispatchr/internal/hooks"
	"github.com/mark3labs/dispatchr/internal/journal"
	"github.com/mark3labs/dispatchr/internal/llm"
	"github.com/mark3labs/dispatchr/internal/logger"
	"github.com/mark3labs/dispatchr/internal/mcpserver"
	"github.com/mark3labs/dispatchr/internal/nats"
	"github.com/mark3labs/dispatchr/internal/render"
	"github.com/mark3labs/dispatchr/internal/tools"
	"github.com/mark3labs/dispatchr/internal/truncate"
)

// maxSessionSlug bounds the session name derived from the task text.
const maxSessionSlug = 48

var runFlags struct {
	taskFile   string
	dir        string
	template   string
	extra      string
	iterations int
	singleTool bool
	model      string
	agentCmd   string
}

var runCmd = &cobra.Command{
	Use:   "run [task]",
	Short: "Run the agent loop for a task",
	Long: `Run the agent loop: the configured agent command produces tool
directives, dispatchr executes them and feeds results back, until the
agent declares the task complete or the iteration budget runs out.`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.taskFile, "task-file", "f", "", "Read the task from a file instead of arguments")
	runCmd.Flags().StringVarP(&runFlags.dir, "dir", "d", "", "Project directory (default: current directory)")
	runCmd.Flags().StringVarP(&runFlags.template, "template", "t", "", "Custom prompt template file")
	runCmd.Flags().StringVarP(&runFlags.extra, "extra", "e", "", "Extra instructions appended to the prompt")
	runCmd.Flags().IntVarP(&runFlags.iterations, "iterations", "i", 0, "Max iterations (default from config)")
	runCmd.Flags().BoolVar(&runFlags.singleTool, "single-tool", false, "Run only the first tool call of each iteration")
	runCmd.Flags().StringVarP(&runFlags.model, "model", "m", "", "Model passed to the agent command as DISPATCHR_MODEL")
	runCmd.Flags().StringVar(&runFlags.agentCmd, "agent-cmd", "", "Agent command (reads transcript on stdin, writes reply to stdout)")
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	applyRunFlags(cmd, cfg)

	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return err
	}

	requirement, err := taskText(args)
	if err != nil {
		return err
	}
	workDir := runFlags.dir
	if workDir == "" {
		if workDir, err = os.Getwd(); err != nil {
			return fmt.Errorf("resolving working directory: %w", err)
		}
	}
	if cfg.AgentCmd == "" {
		return fmt.Errorf("no agent command configured (set agent_cmd or --agent-cmd)")
	}

	session := sessionName(requirement)
	logger.Info("Starting run: session=%s dir=%s", session, workDir)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Embedded NATS: journal stream plus the render subject.
	ns, err := nats.StartEmbedded(cfg.DataDir)
	if err != nil {
		return fmt.Errorf("starting embedded NATS: %w", err)
	}
	nc, err := nats.ConnectInProcess(ns)
	if err != nil {
		ns.Shutdown()
		return fmt.Errorf("connecting to embedded NATS: %w", err)
	}
	defer func() {
		if err := nats.Shutdown(nc, ns); err != nil {
			logger.Warn("NATS shutdown: %v", err)
		}
	}()

	js, err := nats.CreateJetStream(nc)
	if err != nil {
		return err
	}
	stream, err := nats.SetupStream(ctx, js)
	if err != nil {
		return fmt.Errorf("setting up journal stream: %w", err)
	}
	store := journal.NewStore(js, stream)
	recorder := &journalRecorder{store: store, session: session}

	// All rendering goes through the bus so concurrent tool goroutines
	// never interleave on the terminal.
	console := render.NewConsole(os.Stdout, os.Environ())
	listener, err := render.Listen(nc, session, console)
	if err != nil {
		return fmt.Errorf("attaching console: %w", err)
	}
	defer listener.Close()
	bus := render.NewBus(nc, session)
	defer func() {
		if err := bus.Flush(); err != nil {
			logger.Warn("render flush: %v", err)
		}
	}()

	mcp := mcpserver.New(store, session, recorder.iteration)
	port, err := mcp.Start(ctx)
	if err != nil {
		return fmt.Errorf("starting MCP server: %w", err)
	}
	defer mcp.Stop()
	logger.Info("MCP server on port %d", port)

	sessions := tools.NewSessionManager()
	defer sessions.Shutdown()

	client, err := llm.NewSubprocess(cfg.AgentCmd, cfg.Model)
	if err != nil {
		return err
	}
	client = client.WithMCPEndpoint(fmt.Sprintf("http://127.0.0.1:%d/mcp", port))

	plan := journal.NewSessionPlan(store, session, recorder.iteration)
	registry := tools.NewRegistry(
		tools.ReadFileTool{},
		tools.WriteFileTool{},
		tools.GlobTool{},
		tools.NewShellTool(sessions),
		tools.NewPlanTool(plan),
		tools.NewDelegateTool("subagent", llm.OneShot{Client: client}),
	)

	resolver := agent.NewResolver(sessions, time.Duration(cfg.WaitTimeoutMs)*time.Millisecond)
	env := tools.ExecContext{
		WorkingDir: workDir,
		Env:        os.Environ(),
		Timeout:    time.Duration(cfg.SyncShellTimeoutMs) * time.Millisecond,
	}
	dispatcher := agent.NewDispatcher(registry, resolver, bus, env).
		WithGate(truncate.New(cfg.LongOutputLimit)).
		WithPlan(plan)

	loop := agent.NewLoop(agent.LoopConfig{
		Task:          agent.Task{Requirement: requirement, ProjectPath: workDir},
		MaxIterations: cfg.Iterations,
		SingleTool:    cfg.SingleTool,
		TemplatePath:  cfg.Template,
		Extra:         runFlags.extra,
	}, client, llm.Directives{}, dispatcher, bus).WithRecorder(recorder)

	if hooksCfg, hookErr := hooks.LoadConfig(workDir); hookErr != nil {
		logger.Warn("hooks config: %v", hookErr)
	} else if hooksCfg != nil && hooksCfg.Hooks.PreIteration != nil {
		pre := hooksCfg.Hooks.PreIteration
		loop.WithHook(func(ctx context.Context, iteration int) (string, error) {
			return hooks.Execute(ctx, pre, workDir, hooks.Variables{
				Task:      requirement,
				Iteration: strconv.Itoa(iteration),
			})
		})
	}

	result, err := loop.Run(ctx)
	bus.Info(result.Message)
	if err != nil {
		return err
	}
	if !result.Success {
		return fmt.Errorf("run finished without a successful step")
	}
	return nil
}

// applyRunFlags lets explicit CLI flags win over config file and env.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) {
	if cmd.Flags().Changed("iterations") {
		cfg.Iterations = runFlags.iterations
	}
	if cmd.Flags().Changed("single-tool") {
		cfg.SingleTool = runFlags.singleTool
	}
	if cmd.Flags().Changed("model") {
		cfg.Model = runFlags.model
	}
	if cmd.Flags().Changed("agent-cmd") {
		cfg.AgentCmd = runFlags.agentCmd
	}
	if cmd.Flags().Changed("template") {
		cfg.Template = runFlags.template
	}
}

func taskText(args []string) (string, error) {
	if runFlags.taskFile != "" {
		data, err := os.ReadFile(runFlags.taskFile)
		if err != nil {
			return "", fmt.Errorf("reading task file: %w", err)
		}
		return strings.TrimSpace(string(data)), nil
	}
	task := strings.TrimSpace(strings.Join(args, " "))
	if task == "" {
		return "", fmt.Errorf("no task given (pass it as arguments or --task-file)")
	}
	return task, nil
}

// sessionName derives a journal-safe session name from the task text.
// A random suffix keeps repeated runs of the same task apart.
func sessionName(task string) string {
	s := slug.Make(task)
	if len(s) > maxSessionSlug {
		s = strings.Trim(s[:maxSessionSlug], "-")
	}
	if s == "" {
		s = "run"
	}
	return s + "-" + xid.New().String()
}

// journalRecorder adapts the journal store to the loop's recorder port
// and tracks the current iteration for plan attribution.
type journalRecorder struct {
	store   *journal.Store
	session string
	current atomic.Int64
}

func (r *journalRecorder) IterationStart(ctx context.Context, number int) error {
	r.current.Store(int64(number))
	return r.store.IterationStart(ctx, r.session, number)
}

func (r *journalRecorder) IterationComplete(ctx context.Context, number int) error {
	return r.store.IterationComplete(ctx, r.session, number)
}

func (r *journalRecorder) StepAdd(ctx context.Context, step agent.Step) error {
	_, err := r.store.StepAdd(ctx, r.session, journal.StepRecord{
		Tool:      step.Tool,
		Params:    step.Params.String(),
		Content:   step.Result,
		Success:   step.Success,
		Iteration: step.Iteration,
	})
	return err
}

func (r *journalRecorder) RunComplete(ctx context.Context) error {
	return r.store.MarkComplete(ctx, r.session)
}

func (r *journalRecorder) iteration() int {
	return int(r.current.Load())
}

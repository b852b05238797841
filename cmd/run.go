package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davebot/dave/internal/approval"
	"github.com/davebot/dave/internal/generator"
	"github.com/davebot/dave/internal/gitvc"
	"github.com/davebot/dave/internal/orchestrator"
	"github.com/davebot/dave/internal/output"
	"github.com/davebot/dave/internal/planner"
	"github.com/davebot/dave/internal/workspace"
)

var (
	runTask           string
	runDir            string
	runAppDescription string
	runForce          bool
	runStrict         bool
	runNoStrict       bool
	runPort           int
	runResume         string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Plan and generate a code change with human approval",
	Long: `Run the code-generation agent: analyze the repository, propose a plan,
wait for approval in the browser, then generate each planned file, commit
the result on a new branch, and open a pull request.

Progress is checkpointed after every generated file. An interrupted run
can be picked up with --resume <run-id> (see 'dave runs list').`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if runTask == "" && runResume == "" {
			return fmt.Errorf("either --task or --resume is required")
		}
		dir, err := resolveDir(runDir)
		if err != nil {
			return err
		}
		return executeRun(cmd.Context(), dir, runOptions{
			task:        runTask,
			resumeID:    runResume,
			appDescPath: runAppDescription,
			appDescSet:  cmd.Flags().Changed("app-description"),
			force:       runForce,
			strict:      runStrict && !runNoStrict,
			port:        runPort,
		})
	},
}

func init() {
	runCmd.Flags().StringVarP(&runTask, "task", "t", "", "Task to implement")
	runCmd.Flags().StringVarP(&runDir, "dir", "d", "", "Repository directory (default current directory)")
	runCmd.Flags().StringVar(&runAppDescription, "app-description", "app_description.txt", "File describing the application, included in planning prompts")
	runCmd.Flags().BoolVar(&runForce, "force", false, "Approve the plan automatically without waiting in the browser")
	runCmd.Flags().BoolVar(&runStrict, "strict", true, "Forbid placeholder implementations in generated code")
	runCmd.Flags().BoolVar(&runNoStrict, "no-strict", false, "Allow placeholder implementations (overrides --strict)")
	runCmd.Flags().IntVarP(&runPort, "port", "p", 0, "Approval server port (default from config, probing upward when busy)")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume a persisted run by ID instead of starting a new one")
	rootCmd.AddCommand(runCmd)
}

type runOptions struct {
	task        string
	resumeID    string
	appDescPath string
	appDescSet  bool
	force       bool
	strict      bool
	port        int
}

// executeRun wires the collaborators and drives one generation run to a
// terminal outcome. Shared by 'dave run' and 'dave runs resume'.
func executeRun(ctx context.Context, dir string, opts runOptions) error {
	logger := newRunLogger()

	appDesc, err := loadAppDescription(dir, opts.appDescPath, opts.appDescSet)
	if err != nil {
		return err
	}

	store, err := openStore(dir)
	if err != nil {
		return err
	}
	defer store.Close()

	channel := approval.NewChannel()
	server := approval.NewServer(channel, logger)
	server.SetPollTimeout(viper.GetDuration("approval.poll_timeout"))
	startPort := opts.port
	if startPort == 0 {
		startPort = viper.GetInt("approval.port")
	}
	if _, err := server.Start(startPort); err != nil {
		return fmt.Errorf("starting approval server: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()
	if !opts.force {
		ui.Info("review the plan at %s", output.Cyan(server.URL()))
	}

	client := newLLMClient()
	builder := workspace.NewContextBuilder(
		viper.GetInt("agent.context_limit"),
		func(path, content string) (string, error) {
			return client.Summarize(ctx, path, content)
		},
	)
	prefix := viper.GetString("agent.branch_prefix")
	ws := workspace.New(dir)

	orch := orchestrator.New(orchestrator.Deps{
		Store:        store,
		Channel:      channel,
		Planner:      planner.New(client, prefix),
		Generator:    generator.New(client),
		Workspace:    ws,
		VC:           gitvc.New(dir),
		Grep:         ws,
		BuildContext: builder.Build,
		Logger:       logger,
	}, orchestrator.Config{
		BranchPrefix:   prefix,
		MaxGrepRetries: viper.GetInt("agent.max_grep_retries"),
		AppDescription: appDesc,
		Force:          opts.force,
		Strict:         opts.strict,
	})

	var outcome orchestrator.Outcome
	if opts.resumeID != "" {
		ui.Info("resuming run %s", opts.resumeID)
		outcome, err = orch.Resume(ctx, opts.resumeID)
	} else {
		outcome, err = orch.Run(ctx, opts.task)
	}

	switch outcome {
	case orchestrator.OutcomeDone:
		ui.Success("run %s", output.OutcomeColor(string(outcome)))
	case orchestrator.OutcomeRejected:
		ui.Warning("plan %s, nothing was changed", output.OutcomeColor(string(outcome)))
	default:
		ui.Error("run %s: %v", output.OutcomeColor(string(outcome)), err)
	}
	return err
}

func newRunLogger() *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

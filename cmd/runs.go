package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/davebot/dave/internal/output"
)

var runsDir string

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect and resume persisted runs",
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List persisted runs",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(runsDir)
		if err != nil {
			return err
		}
		store, err := openStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		summaries, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			ui.Info("no persisted runs")
			return nil
		}
		table := ui.Table([]string{"ID", "TASK", "BRANCH", "PROGRESS", "UPDATED"})
		for _, s := range summaries {
			table.Append([]string{
				s.ID,
				truncate(s.Task, 60),
				s.BranchName,
				fmt.Sprintf("%d/%d", s.CompletedCount, s.PlannedCount),
				s.UpdatedAt.Format("2006-01-02 15:04"),
			})
		}
		return table.Render()
	},
}

var runsShowCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the full state of a persisted run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(runsDir)
		if err != nil {
			return err
		}
		store, err := openStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		state, err := store.Load(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		ui.Info("run %s", output.Cyan(state.ID))
		ui.Info("task: %s", state.Task)
		if state.Plan != nil {
			ui.Info("branch: %s (from %s)", state.Plan.BranchName, state.OriginalBranch)
		}
		ui.Info("created %s, updated %s",
			state.CreatedAt.Format("2006-01-02 15:04:05"),
			state.UpdatedAt.Format("2006-01-02 15:04:05"))
		if len(state.CompletedFiles) > 0 {
			ui.Info("completed: %s", strings.Join(state.CompletedFiles, ", "))
		}
		if remaining := state.RemainingFiles(); len(remaining) > 0 {
			ui.Info("remaining: %s", strings.Join(remaining, ", "))
		} else {
			ui.Info("all planned files generated")
		}
		return nil
	},
}

var runsResumeCmd = &cobra.Command{
	Use:   "resume <run-id>",
	Short: "Resume an interrupted run from its last checkpoint",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(runsDir)
		if err != nil {
			return err
		}
		return executeRun(cmd.Context(), dir, runOptions{
			resumeID:    args[0],
			appDescPath: "app_description.txt",
		})
	},
}

var runsDeleteCmd = &cobra.Command{
	Use:   "delete <run-id>",
	Short: "Delete a persisted run",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(runsDir)
		if err != nil {
			return err
		}
		store, err := openStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Delete(cmd.Context(), args[0]); err != nil {
			return err
		}
		ui.Success("deleted run %s", args[0])
		return nil
	},
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

func init() {
	runsCmd.PersistentFlags().StringVarP(&runsDir, "dir", "d", "", "Repository directory (default current directory)")
	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsResumeCmd, runsDeleteCmd)
	rootCmd.AddCommand(runsCmd)
}

package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/davebot/dave/internal/gitvc"
	"github.com/davebot/dave/internal/output"
	"github.com/davebot/dave/internal/reviewer"
	"github.com/davebot/dave/internal/workspace"
)

var (
	reviewTask    string
	reviewDir     string
	reviewCompare string
)

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review changed files against a task description",
	Long: `Review the files changed relative to a base branch: the agent picks
which changed files matter for the task, pulls in whatever context it
needs, and reports per-file comments graded info, warning, or critical.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(reviewDir)
		if err != nil {
			return err
		}
		vc := gitvc.New(dir)
		candidates, err := vc.ChangedFiles(reviewCompare)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			ui.Info("no files changed relative to %s", reviewCompare)
			return nil
		}

		ws := workspace.New(dir)
		rev := reviewer.New(newLLMClient(), ws, ws, newRunLogger())
		review, err := rev.Run(cmd.Context(), reviewTask, candidates)
		if err != nil {
			return err
		}

		for _, fr := range review.Files {
			ui.Info("%s", output.Cyan(fr.Path))
			if len(fr.Comments) == 0 {
				ui.Success("no findings")
				continue
			}
			table := ui.Table([]string{"LINE", "SEVERITY", "COMMENT"})
			for _, c := range fr.Comments {
				line := ""
				if c.Line > 0 {
					line = strconv.Itoa(c.Line)
				}
				table.Append([]string{line, output.SeverityColor(string(c.Severity)), c.Text})
			}
			if err := table.Render(); err != nil {
				return err
			}
			if fr.Feedback != "" {
				ui.Info("%s", fr.Feedback)
			}
			fmt.Fprintln(ui.Out)
		}
		ui.Info("%s", review.General)
		return nil
	},
}

func init() {
	reviewCmd.Flags().StringVarP(&reviewTask, "task", "t", "", "Task the changes are meant to implement")
	reviewCmd.Flags().StringVarP(&reviewDir, "dir", "d", "", "Repository directory (default current directory)")
	reviewCmd.Flags().StringVar(&reviewCompare, "compare", "main", "Base branch to diff against")
	_ = reviewCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(reviewCmd)
}

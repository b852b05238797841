package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/davebot/dave/internal/advisor"
	"github.com/davebot/dave/internal/workspace"
)

var (
	adviseTask string
	adviseDir  string
)

var adviseCmd = &cobra.Command{
	Use:   "advise",
	Short: "Get implementation advice for a task without changing anything",
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(adviseDir)
		if err != nil {
			return err
		}
		appDesc, err := loadAppDescription(dir, "app_description.txt", false)
		if err != nil {
			return err
		}
		adv := advisor.New(newLLMClient(), workspace.New(dir))
		advice, err := adv.Advise(cmd.Context(), adviseTask, appDesc)
		if err != nil {
			return err
		}
		fmt.Fprintln(ui.Out, advice)
		return nil
	},
}

func init() {
	adviseCmd.Flags().StringVarP(&adviseTask, "task", "t", "", "Task to get advice on")
	adviseCmd.Flags().StringVarP(&adviseDir, "dir", "d", "", "Repository directory (default current directory)")
	_ = adviseCmd.MarkFlagRequired("task")
	rootCmd.AddCommand(adviseCmd)
}

package cmd

import (
	"github.com/spf13/cobra"

	"github.com/davebot/dave/internal/mcp"
)

var mcpDir string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP stdio server exposing persisted runs",
	Long: `Start an MCP (Model Context Protocol) server on stdio.

This lets MCP clients inspect and manage persisted runs. Configure with:

  {
    "mcpServers": {
      "dave": { "command": "dave", "args": ["mcp"] }
    }
  }

Available tools: dave_list_runs, dave_show_run, dave_delete_run`,
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := resolveDir(mcpDir)
		if err != nil {
			return err
		}
		store, err := openStore(dir)
		if err != nil {
			return err
		}
		defer store.Close()
		return mcp.NewServer(store).ServeStdio(cmd.Context())
	},
}

func init() {
	mcpCmd.Flags().StringVarP(&mcpDir, "dir", "d", "", "Repository directory (default current directory)")
	rootCmd.AddCommand(mcpCmd)
}

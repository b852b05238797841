package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/davebot/dave/internal/llm"
	"github.com/davebot/dave/internal/output"
	"github.com/davebot/dave/internal/runstore"
)

// Package-level shared dependencies, initialized in cobra.OnInitialize.
var (
	ui *output.UI

	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "dave",
	Short: "AI developer agent for git repositories",
	Long: `dave is a family of AI developer agents that operate on a git repository:
plan and generate code changes with human approval, review changes, or
advise on a task. Run state is persisted so interrupted generation runs
can be resumed.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
}

// Execute is the main entry point called from main.go.
func Execute(version, commit, date string) {
	buildVersion = version
	buildCommit = commit
	buildDate = date

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig, initDeps)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	rootCmd.PersistentFlags().String("config", "", "Config file (default ~/.config/dave/config.yaml)")
}

func initConfig() {
	if cfgFile, _ := rootCmd.PersistentFlags().GetString("config"); cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: cannot find home directory: %v\n", err)
			os.Exit(1)
		}
		viper.AddConfigPath(filepath.Join(home, ".config", "dave"))
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("DAVE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	viper.SetDefault("anthropic.api_key", "")
	viper.SetDefault("anthropic.model", "claude-sonnet-4-5-20250929")
	viper.SetDefault("anthropic.fast_model", "claude-haiku-4-5-20251001")
	viper.SetDefault("agent.branch_prefix", "dave-bot/")
	viper.SetDefault("agent.max_grep_retries", 3)
	viper.SetDefault("agent.context_limit", 200_000)
	viper.SetDefault("agent.app_description", "app_description.txt")
	viper.SetDefault("approval.port", 8080)
	viper.SetDefault("approval.poll_timeout", "28s")

	// Read config file if it exists (optional)
	_ = viper.ReadInConfig()
}

func initDeps() {
	ui = output.New()
	ui.Verbose = verbose
}

// openStore opens the run store for a repository. Each repository keeps its
// own database under .dave/.
func openStore(repoRoot string) (runstore.Store, error) {
	s, err := runstore.NewSQLiteStore(runstore.DBPath(repoRoot))
	if err != nil {
		return nil, fmt.Errorf("open run database: %w", err)
	}
	if err := s.Migrate(rootCmd.Context()); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("migrate run database: %w", err)
	}
	return s, nil
}

func newLLMClient() *llm.Client {
	return llm.NewClient(
		viper.GetString("anthropic.api_key"),
		viper.GetString("anthropic.model"),
		viper.GetString("anthropic.fast_model"),
	)
}

// resolveDir turns the --dir flag into an absolute repository root.
func resolveDir(dir string) (string, error) {
	if dir == "" {
		return os.Getwd()
	}
	return filepath.Abs(dir)
}

// loadAppDescription reads the optional application description file. A
// missing default file is fine; an explicitly named missing file is not.
func loadAppDescription(repoRoot, path string, explicit bool) (string, error) {
	full := path
	if !filepath.IsAbs(full) {
		full = filepath.Join(repoRoot, path)
	}
	b, err := os.ReadFile(full)
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return "", nil
		}
		return "", fmt.Errorf("read app description: %w", err)
	}
	return string(b), nil
}

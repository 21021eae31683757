package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/abhisek/gatekeep/internal/app"
	"github.com/abhisek/gatekeep/internal/config"
	"github.com/abhisek/gatekeep/internal/logging"
	"github.com/abhisek/gatekeep/internal/store"
)

var rootCmd = &cobra.Command{
	Use:           "gatekeep",
	Short:         "Staged candidate assessment service",
	Long:          "gatekeep screens candidates through a resume intake, an objective test, a communication test and a coding test, with proctoring throughout.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().String("db", "", "Path to SQLite database file (overrides GATEKEEP_DB env var)")
	rootCmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file (overrides GATEKEEP_CONFIG env var)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(llmCmd)
	rootCmd.AddCommand(versionCmd)
}

// loadConfig reads --config (or GATEKEEP_CONFIG) and applies --db, which
// selects the sqlite store at that path.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		path = os.Getenv("GATEKEEP_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if p, _ := cmd.Flags().GetString("db"); p != "" {
		cfg.Store.Driver = config.StoreSQLite
		cfg.Store.Path = p
	}
	return cfg, nil
}

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	logger, err := logging.New(cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return logger, nil
}

// openStorage opens only the session store, for commands that read.
func openStorage(cmd *cobra.Command) (*app.Storage, *config.Config, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	st, err := app.OpenStorage(cmd.Context(), cfg.Store, zap.NewNop())
	if err != nil {
		return nil, nil, err
	}
	return st, cfg, nil
}

// openEventStore opens the sqlite store, which is the only one that keeps
// LLM events.
func openEventStore(cmd *cobra.Command) (*store.Store, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if cfg.Store.Driver != config.StoreSQLite {
		return nil, fmt.Errorf("LLM events are only kept by the sqlite store (configured: %s)", cfg.Store.Driver)
	}
	path := cfg.Store.Path
	if path == "" {
		if path, err = store.DefaultDBPath(); err != nil {
			return nil, fmt.Errorf("resolve database path: %w", err)
		}
	}
	if err := store.EnsureDir(path); err != nil {
		return nil, err
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return s, nil
}

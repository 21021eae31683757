package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gatekeep/internal/app"
	"github.com/abhisek/gatekeep/internal/config"
	"github.com/abhisek/gatekeep/internal/report"
	"github.com/abhisek/gatekeep/internal/simulate"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate <script.yaml>",
	Short: "Run a scripted candidate through a full assessment",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		script, err := simulate.LoadFile(args[0])
		if err != nil {
			return err
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if keep, _ := cmd.Flags().GetBool("persist"); !keep {
			cfg.Store.Driver = config.StoreMemory
		}
		if local, _ := cmd.Flags().GetBool("local-sandbox"); local {
			cfg.Sandbox.Driver = config.SandboxProcess
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return err
		}
		defer func() { _ = logger.Sync() }()

		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		out := cmd.OutOrStdout()
		sess, err := simulate.Run(cmd.Context(), a.Engine, script, out)
		if sess != nil {
			fmt.Fprintln(out)
			fmt.Fprintln(out, report.RenderSession(sess, cfg.Assessment.Thresholds))
		}
		return err
	},
}

func init() {
	simulateCmd.Flags().Bool("persist", false, "Keep the session in the configured store instead of memory")
	simulateCmd.Flags().Bool("local-sandbox", false, "Run code as local processes instead of docker")
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gatekeep/internal/assessment"
	"github.com/abhisek/gatekeep/internal/report"
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show pass rates, stage drop-off and proctoring counts",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, _, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.Sessions.List(cmd.Context(), assessment.ListFilter{})
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}
		if len(sessions) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No sessions recorded yet.")
			return nil
		}

		fmt.Fprintln(cmd.OutOrStdout(), report.RenderStats(report.Summarize(sessions)))
		return nil
	},
}

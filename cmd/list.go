package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abhisek/gatekeep/internal/assessment"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent sessions",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		active, _ := cmd.Flags().GetBool("active")
		stageFlag, _ := cmd.Flags().GetString("stage")
		candidate, _ := cmd.Flags().GetString("candidate")

		f := assessment.ListFilter{Active: active, CandidateID: candidate, Limit: limit}
		if stageFlag != "" {
			stage, err := assessment.ParseStage(stageFlag)
			if err != nil {
				return err
			}
			f.Stage = stage
		}

		st, _, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sessions, err := st.Sessions.List(cmd.Context(), f)
		if err != nil {
			return fmt.Errorf("list sessions: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(sessions) == 0 {
			fmt.Fprintln(out, "No sessions found.")
			return nil
		}

		fmt.Fprintf(out, "%-36s  %-19s  %-24s  %-18s  %-7s  %s\n",
			"ID", "Started", "Candidate", "Stage", "Status", "Violations")
		fmt.Fprintln(out, strings.Repeat("─", 120))
		for _, s := range sessions {
			status := "-"
			if s.Verdict != nil {
				status = string(s.Verdict.FinalStatus)
			}
			fmt.Fprintf(out, "%-36s  %-19s  %-24s  %-18s  %-7s  %d\n",
				s.ID,
				s.StartedAt.Local().Format("2006-01-02 15:04:05"),
				truncate(s.Profile.Email, 24),
				s.CurrentStage,
				status,
				len(s.Violations()),
			)
		}
		return nil
	},
}

func init() {
	listCmd.Flags().IntP("limit", "n", 20, "Number of sessions to show (0 for all)")
	listCmd.Flags().Bool("active", false, "Only sessions still in progress")
	listCmd.Flags().String("stage", "", "Filter by current stage (e.g. coding_test, terminated)")
	listCmd.Flags().String("candidate", "", "Filter by candidate ID")
}

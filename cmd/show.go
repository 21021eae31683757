package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/abhisek/gatekeep/internal/report"
)

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session's results, violations and verdict",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, cfg, err := openStorage(cmd)
		if err != nil {
			return err
		}
		defer st.Close()

		sess, err := st.Sessions.Get(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("get session: %w", err)
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(sess)
		}

		fmt.Fprintln(out, report.RenderSession(sess, cfg.Assessment.Thresholds))

		if st.Events != nil {
			history, err := st.Events.Transitions(cmd.Context(), sess.ID)
			if err != nil {
				return fmt.Errorf("query transitions: %w", err)
			}
			if len(history) > 0 {
				fmt.Fprintln(out)
				fmt.Fprintln(out, "Transitions")
				for _, t := range history {
					fmt.Fprintf(out, "  %s  %-18s -> %-18s %s\n",
						t.At.Local().Format("2006-01-02 15:04:05"), t.From, t.To, t.Reason)
				}
			}
		}
		return nil
	},
}

func init() {
	showCmd.Flags().Bool("json", false, "Print the full session document, answer keys included")
}

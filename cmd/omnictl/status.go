package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/redskulldevv/omni-agi/internal/supervisor"
	"github.com/spf13/cobra"
)

func newStatusCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show loop health and goal progress",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var loops []supervisor.LoopStatus
			if err := c.get("/api/loops", nil, &loops); err != nil {
				return err
			}
			var report goal.Report
			if err := c.get("/api/goals/report", nil, &report); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "LOOP\tRUNNING\tRUNS\tOK\tFAILED\tLAST")
			for _, l := range loops {
				last := l.LastOutcome
				if l.LastError != "" {
					last += ": " + l.LastError
				}
				fmt.Fprintf(tw, "%s\t%t\t%d\t%d\t%d\t%s\n",
					l.Name, l.Running, l.Iterations, l.Successes, l.Failures, last)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(out, "\ngoals: %d total, %d active, %d pending, %d suspended, %d completed, %d failed\n",
				report.Total, report.Active, report.Pending, report.Suspended, report.Completed, report.Failed)
			return nil
		},
	}
}

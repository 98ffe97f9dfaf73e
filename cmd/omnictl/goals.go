package main

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/redskulldevv/omni-agi/internal/goal"
	"github.com/spf13/cobra"
)

func newGoalsCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "goals",
		Short: "List and manage goals",
	}
	cmd.AddCommand(newGoalsListCmd(c), newGoalsAddCmd(c), newGoalsProgressCmd(c), newGoalsFailCmd(c))
	return cmd
}

func newGoalsListCmd(c *client) *cobra.Command {
	var status, typ string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List goals (active by default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{}
			if status != "" {
				q.Set("status", status)
			}
			if typ != "" {
				q.Set("type", typ)
			}
			var goals []goal.Goal
			if err := c.get("/api/goals", q, &goals); err != nil {
				return err
			}
			if len(goals) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no goals")
				return nil
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTYPE\tSTATUS\tPRIORITY\tPROGRESS\tDESCRIPTION")
			for _, g := range goals {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%.0f%%\t%s\n",
					g.ID, g.Type, g.Status, g.Priority, g.Progress*100, g.Description)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&status, "status", "", "active, open, completed or failed")
	cmd.Flags().StringVar(&typ, "type", "", "filter by goal type")
	return cmd
}

func newGoalsAddCmd(c *client) *cobra.Command {
	var (
		typ      string
		priority float64
		deadline time.Duration
		deps     []string
	)
	cmd := &cobra.Command{
		Use:   "add <description>",
		Short: "Create a goal",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ng := goal.NewGoal{
				Type:         goal.Type(typ),
				Description:  strings.Join(args, " "),
				Priority:     priority,
				Dependencies: deps,
			}
			if deadline > 0 {
				ng.Deadline = time.Now().Add(deadline)
			}
			var g goal.Goal
			if err := c.post("/api/goals", ng, &g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s)\n", g.ID, g.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", string(goal.MarketAnalysis), "goal type")
	cmd.Flags().Float64Var(&priority, "priority", 0.5, "priority in [0,1]")
	cmd.Flags().DurationVar(&deadline, "deadline", 0, "deadline from now, e.g. 24h")
	cmd.Flags().StringSliceVar(&deps, "depends-on", nil, "ids of goals this one waits for")
	return cmd
}

func newGoalsProgressCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "progress <id> <0..1>",
		Short: "Record progress on an active goal",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := strconv.ParseFloat(args[1], 64)
			if err != nil {
				return fmt.Errorf("invalid progress %q", args[1])
			}
			var g goal.Goal
			if err := c.post("/api/goals/"+url.PathEscape(args[0])+"/progress",
				map[string]float64{"progress": p}, &g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %.0f%% (%s)\n", g.ID, g.Progress*100, g.Status)
			return nil
		},
	}
}

func newGoalsFailCmd(c *client) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "fail <id>",
		Short: "Fail a goal and its dependents",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var g goal.Goal
			if err := c.post("/api/goals/"+url.PathEscape(args[0])+"/fail",
				map[string]string{"reason": reason}, &g); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", g.ID, g.Status)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "why the goal failed")
	return cmd
}

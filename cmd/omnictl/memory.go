package main

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"github.com/redskulldevv/omni-agi/internal/memory"
	"github.com/spf13/cobra"
)

func newMemoryCmd(c *client) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memory",
		Short: "Inspect the memory store",
	}
	cmd.AddCommand(newMemoryStatsCmd(c), newMemorySearchCmd(c))
	return cmd
}

func newMemoryStatsCmd(c *client) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show memory counts by type and priority",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var st memory.Stats
			if err := c.get("/api/memories/stats", nil, &st); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "total: %d memories, %d tags\n", st.TotalMemories, st.TotalTags)
			for _, t := range memory.Types {
				fmt.Fprintf(out, "  %-10s %5d  (avg access %.1f)\n", t, st.ByType[t], st.AvgAccessCount[t])
			}
			prios := make([]string, 0, len(st.ByPriority))
			for p := range st.ByPriority {
				prios = append(prios, p)
			}
			sort.Strings(prios)
			for _, p := range prios {
				fmt.Fprintf(out, "  priority %-8s %d\n", p, st.ByPriority[p])
			}
			return nil
		},
	}
}

func newMemorySearchCmd(c *client) *cobra.Command {
	var (
		typ   string
		limit int
	)
	cmd := &cobra.Command{
		Use:   "search <tag>...",
		Short: "Find memories by tag",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q := url.Values{"tags": {strings.Join(args, ",")}, "limit": {strconv.Itoa(limit)}}
			if typ != "" {
				q.Set("type", typ)
			}
			var found []memory.Memory
			if err := c.get("/api/memories/search", q, &found); err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "no memories")
				return nil
			}
			for _, m := range found {
				fmt.Fprintf(out, "[%s/%s] %s\n", m.Type, m.Priority, m.Text())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&typ, "type", "", "restrict to one memory type")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	return cmd
}

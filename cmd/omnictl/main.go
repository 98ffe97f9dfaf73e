// Command omnictl inspects and steers a running omni agent over its HTTP API.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string
	c := &client{}

	root := &cobra.Command{
		Use:           "omnictl",
		Short:         "Inspect and steer a running omni agent",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			c.base = addr
		},
	}
	def := os.Getenv("OMNI_ADDR")
	if def == "" {
		def = "http://localhost:8080"
	}
	root.PersistentFlags().StringVar(&addr, "addr", def, "agent API address (env OMNI_ADDR)")

	root.AddCommand(newGoalsCmd(c), newMemoryCmd(c), newStatusCmd(c))
	return root
}

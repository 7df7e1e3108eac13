package main

import (
	"fmt"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/monitor"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/spf13/cobra"
)

const clearScreen = "\033[H\033[2J"

var monitorHost string

var monitorCmd = &cobra.Command{
	Use:   "monitor",
	Short: "Show the live status table of a running limiter",
	Long: `Connect to the status API of a running limiter and redraw the per-phase
table after every cycle. Lost connections are retried with backoff.`,
	RunE: runMonitor,
}

func init() {
	monitorCmd.Flags().StringVar(&monitorHost, "host", "localhost:9040", "Status API host:port")
	rootCmd.AddCommand(monitorCmd)
}

func runMonitor(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext(cmd)
	defer stop()

	out := cmd.OutOrStdout()
	return monitor.StartListener(ctx, monitorHost, func(s *types.CycleSnapshot) {
		fmt.Fprint(out, clearScreen)
		fmt.Fprint(out, monitor.Render(s))
	})
}

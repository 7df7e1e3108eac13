package main

import (
	"github.com/NotCoffee418/p1_charge_limiter/pkg/relay"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/serialport"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var relayCmd = &cobra.Command{
	Use:   "relay",
	Short: "Forward the input port to the output port unmodified",
	Long: `Copy everything read from the input port to the output port once per cycle
interval without decoding it. Use this to check the wiring and the charger's
meter input before enabling the limiter.`,
	RunE: runRelay,
}

func init() {
	rootCmd.AddCommand(relayCmd)
}

func runRelay(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	in, err := serialport.Open(cfg.InputPort)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := serialport.Open(cfg.OutputPort)
	if err != nil {
		return err
	}
	defer out.Close()

	ctx, stop := signalContext(cmd)
	defer stop()

	log.Info().
		Str("input", cfg.InputPort.Device).
		Str("output", cfg.OutputPort.Device).
		Dur("interval", cfg.Interval()).
		Msg("Relaying telegrams unmodified")
	return relay.New(cfg.Interval()).Run(ctx, in, out)
}

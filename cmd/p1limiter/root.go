package main

import (
	"github.com/NotCoffee418/p1_charge_limiter/pkg/config"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/logging"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/pathing"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	configPath string
	logLevel   string
	logPretty  bool
)

var rootCmd = &cobra.Command{
	Use:   "p1limiter",
	Short: "P1 telegram current limiter for EV chargers",
	Long: `p1limiter reads DSMR telegrams from a smart meter's P1 port, adjusts the
per-phase currents and writes the telegram with a fresh checksum to the
charger's meter input. The charger then only draws what the controller allows.

Settings are read from the config file and can be overridden with the
P1_READ_PORT, P1_WRITE_PORT, P1_CURRENT_LIMIT and P1_CHARGING_PHASES
environment variables.`,
	Version:       "1.0.0",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return logging.Setup(logLevel, logPretty)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", pathing.GetConfigPath(), "Config file, created with defaults when missing")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", false, "Human readable log output")
}

// loadConfig reads the config file. Logging is reconfigured from it unless
// the log flags were given explicitly.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}

	level, pretty := cfg.Log.Level, cfg.Log.Pretty
	if cmd.Flags().Changed("log-level") {
		level = logLevel
	}
	if cmd.Flags().Changed("pretty") {
		pretty = logPretty
	}
	if err := logging.Setup(level, pretty); err != nil {
		return nil, err
	}

	log.Info().Str("path", configPath).Msg("Config loaded")
	return cfg, nil
}

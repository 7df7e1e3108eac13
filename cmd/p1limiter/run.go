package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/config"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/controller"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/cycle"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/journal"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/metrics"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/pathing"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/serialport"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/status"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const journalCleanupInterval = time.Hour

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the current limiter",
	Long: `Decode telegrams from the input port, run the current controller every cycle
interval and write the modified telegram to the output port.

With regulation = "surplus" (default) the charger is throttled while power is
imported and opened up on export. With regulation = "import" net import raises
the deduction instead: 2 kW of import at 8 A on a 25 A single phase limit then
advertises 1-0:31.7.0(17.000*A) after one cycle.

The status API, metrics and the cycle journal are started as configured.`,
	RunE: runLimiter,
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func runLimiter(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	ctrlCfg, err := cfg.ControllerConfig()
	if err != nil {
		return err
	}
	ctrl, err := controller.New(ctrlCfg)
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
	g, ctx := errgroup.WithContext(ctx)

	opts := []cycle.Option{cycle.WithInterval(cfg.Interval())}

	if cfg.Status.Enabled {
		hub, reg := status.NewHub(), newRegistry()
		opts = append(opts, cycle.WithObserver(metrics.New(reg)), cycle.WithObserver(hub))
		srv := status.NewServer(cfg.StatusAddr(), hub, reg)
		g.Go(func() error { return srv.ListenAndServe(ctx) })
	}

	if cfg.Journal.Enabled {
		j, err := openJournal()
		if err != nil {
			return err
		}
		defer j.Close()
		opts = append(opts, cycle.WithObserver(j))
		g.Go(func() error { return j.RunCleanup(ctx, cfg.Retention(), journalCleanupInterval) })
	}

	logStart(cfg, ctrlCfg)
	orchestrator := cycle.New(telegram.NewDecoder(cfg.CurrentLimit), ctrl, telegram.NewEncoder(cfg.EncoderOptions()...), opts...)
	g.Go(func() error { return orchestrator.Run(ctx, in, out) })

	return g.Wait()
}

func newRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func openJournal() (*journal.Journal, error) {
	if err := pathing.EnsureDataDir(); err != nil {
		return nil, err
	}
	return journal.Open(pathing.GetJournalDbPath())
}

func logStart(cfg *config.Config, ctrlCfg controller.Config) {
	log.Info().
		Str("input", cfg.InputPort.Device).
		Str("output", cfg.OutputPort.Device).
		Float64("current_limit", ctrlCfg.CurrentLimit).
		Stringer("phases", ctrlCfg.Topology).
		Stringer("regulation", ctrlCfg.Regulation).
		Dur("interval", cfg.Interval()).
		Bool("status_api", cfg.Status.Enabled).
		Bool("journal", cfg.Journal.Enabled).
		Msg("Starting P1 charge limiter")
}

// signalContext is shared by the long running commands.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/antenna-tracker/catalog"
	"github.com/signalsfoundry/antenna-tracker/core"
	"github.com/signalsfoundry/antenna-tracker/internal/config"
	"github.com/signalsfoundry/antenna-tracker/internal/hamlib"
	"github.com/signalsfoundry/antenna-tracker/internal/logging"
	"github.com/signalsfoundry/antenna-tracker/internal/notify"
	"github.com/signalsfoundry/antenna-tracker/internal/observability"
	"github.com/signalsfoundry/antenna-tracker/internal/selection"
	"github.com/signalsfoundry/antenna-tracker/internal/tracker"
	"github.com/signalsfoundry/antenna-tracker/timectrl"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "tracker:", err)
		os.Exit(1)
	}
}

type flags struct {
	configPath  string
	catalogPath string
	logLevel    string
	at          string
}

func newRootCommand() *cobra.Command {
	var f flags
	cmd := &cobra.Command{
		Use:   "tracker",
		Short: "Point a rotor at the selected satellite and keep the receiver doppler-corrected",
		Long: `tracker connects to rotctld and gqrx, homes the rotor, and then listens for
satellite names on TCP. While the selected satellite is above the horizon
the rotor follows it and the receiver tracks its doppler-shifted downlink.
Send EXIT to the selection port to stop.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(f.configPath)
			if err != nil {
				return err
			}
			if f.catalogPath != "" {
				cfg.Catalog = f.catalogPath
			}
			if f.logLevel != "" {
				cfg.Log.Level = f.logLevel
			}

			var h hooks
			if f.at != "" {
				start, err := time.Parse(time.RFC3339, f.at)
				if err != nil {
					return fmt.Errorf("--at: %w", err)
				}
				h.clock = timectrl.NewTimeController(start)
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(ctx, cfg, h)
		},
	}
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "YAML configuration file")
	cmd.Flags().StringVar(&f.catalogPath, "catalog", "", "satellite catalog (.yaml or .csv); overrides the config")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error; overrides the config")
	cmd.Flags().StringVar(&f.at, "at", "", "propagate from this RFC3339 instant instead of the wall clock")
	return cmd
}

// hooks replaces pieces of the runtime wiring in tests.
type hooks struct {
	logger     logging.Logger
	registry   prometheus.Registerer
	propagator core.Propagator
	clock      timectrl.Clock
	// onListening receives the bound selection address.
	onListening func(net.Addr)
}

// run wires every component and blocks until the coordinator stops. An
// interrupt or an EXIT selection is a clean shutdown.
func run(ctx context.Context, cfg config.Config, h hooks) error {
	log := h.logger
	if log == nil {
		log = logging.New(cfg.Log)
	}

	shutdownTracing, err := observability.InitTracing(ctx, cfg.Tracing, log)
	if err != nil {
		return fmt.Errorf("init tracing: %w", err)
	}
	defer observability.ShutdownWithTimeout(context.Background(), shutdownTracing, log)

	collector, err := observability.NewTrackerCollector(h.registry)
	if err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		return err
	}
	log.Info(ctx, "catalog loaded", logging.String("path", cfg.Catalog), logging.Int("satellites", cat.Len()))

	propagator := h.propagator
	if propagator == nil {
		sgp4, err := core.NewSGP4Propagator(cfg.ElementCacheSize)
		if err != nil {
			return err
		}
		propagator = sgp4
	}

	peerOpts := hamlib.Options{
		HandshakeTimeout: cfg.Timing.HandshakeTimeout,
		IOTimeout:        cfg.Timing.IOTimeout,
		Logger:           log,
	}
	rotor, err := hamlib.DialRotor(ctx, cfg.Rotor.Addr, peerOpts)
	if err != nil {
		return err
	}
	defer rotor.Close()
	receiver, err := hamlib.DialReceiver(ctx, cfg.Receiver.Addr, peerOpts)
	if err != nil {
		return err
	}
	defer receiver.Close()

	notifier := notify.NewUDPNotifier(cfg.Notifier.Addr, cfg.Notifier.Payload, log)
	box := selection.NewMailbox()
	listener := selection.NewListener(cat, box, log, collector)
	health := observability.NewHealthServer(collector, log)

	coordinator, err := tracker.New(tracker.Config{
		Station:            cfg.Station,
		DefaultFrequencyHz: cfg.DefaultFrequencyHz,
		SelectionWait:      cfg.Timing.SelectionWait,
		TrackThrottle:      cfg.Timing.TrackThrottle,
		HomingInterval:     cfg.Timing.HomingInterval,
		ArrivalInterval:    cfg.Timing.ArrivalInterval,
		PositionTolerance:  cfg.Timing.PositionTolerance,
	}, tracker.Deps{
		Catalog:    cat,
		Mailbox:    box,
		Propagator: propagator,
		Rotor:      rotor,
		Receiver:   receiver,
		Notifier:   notifier,
		Metrics:    collector,
		Clock:      h.clock,
		Logger:     log,
	}, tracker.WithPhaseObserver(func(p tracker.Phase) {
		log.Debug(ctx, "tracker phase", logging.String("phase", p.String()))
		health.SetServing(p == tracker.PhaseRunning)
	}))
	if err != nil {
		return err
	}

	var lc net.ListenConfig
	selectionLn, err := lc.Listen(ctx, "tcp", cfg.Listener.Addr)
	if err != nil {
		return fmt.Errorf("listen for selections: %w", err)
	}
	healthLn, err := lc.Listen(ctx, "tcp", cfg.HealthAddr)
	if err != nil {
		_ = selectionLn.Close()
		return fmt.Errorf("listen for health checks: %w", err)
	}
	metricsLn, err := lc.Listen(ctx, "tcp", cfg.MetricsAddr)
	if err != nil {
		_ = selectionLn.Close()
		_ = healthLn.Close()
		return fmt.Errorf("listen for metrics: %w", err)
	}
	if h.onListening != nil {
		h.onListening(selectionLn.Addr())
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	metricsSrv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info(ctx, "serving Prometheus metrics", logging.String("addr", metricsLn.Addr().String()))
		if err := metricsSrv.Serve(metricsLn); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return health.Serve(healthLn)
	})
	g.Go(func() error {
		return listener.Serve(selectionLn)
	})
	g.Go(func() error {
		defer func() {
			_ = listener.Close()
			health.Stop()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsSrv.Shutdown(shutdownCtx)
		}()

		err := coordinator.Run(gctx)
		if err != nil && ctx.Err() != nil && errors.Is(err, ctx.Err()) {
			log.Info(ctx, "interrupted; shutting down")
			return nil
		}
		return err
	})

	if err := g.Wait(); err != nil {
		log.Error(ctx, "tracker stopped", logging.Error(err))
		return err
	}
	log.Info(ctx, "tracker stopped")
	return nil
}

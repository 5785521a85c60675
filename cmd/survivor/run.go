package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"survivor-go/internal/config"
	"survivor-go/internal/exchange"
	"survivor-go/internal/execution"
	"survivor-go/internal/instrument"
	"survivor-go/internal/metrics"
	"survivor-go/internal/paper"
	"survivor-go/internal/risk"
	"survivor-go/internal/runner"
	"survivor-go/internal/strategy"
	"survivor-go/internal/util"
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every enabled instance until interrupted or the feed ends",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx, cancel := ossignal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return run(ctx, cfg)
		},
	}
	addOverrideFlags(cmd)
	return cmd
}

// paperVenue keeps the per-instance paper brokers so their books can be summarised on exit.
type paperVenue struct {
	brokers  map[string]*exchange.PaperBroker
	ledger   *paper.Ledger
	recorder *paper.JSONLRecorder
}

func run(ctx context.Context, cfg *config.Config) error {
	log := util.NewLogger(cfg.App.LogLevel)
	if cfg.App.Console {
		log = util.NewConsoleLogger(cfg.App.LogLevel)
	}
	log = log.With().Str("app", cfg.App.Name).Str("env", cfg.App.Env).Logger()

	active := cfg.Active()
	venue := &paperVenue{brokers: make(map[string]*exchange.PaperBroker), ledger: paper.NewLedger(64)}
	var bridge *exchange.BridgeBroker

	switch strings.ToLower(cfg.Broker.Provider) {
	case exchange.BrokerBridge:
		creds, err := config.LoadCredentials(cfg.Broker.EnvFile)
		if err != nil {
			return err
		}
		if creds.Empty() {
			log.Warn().Msg("bridge credentials missing, requests go out unauthenticated")
		}
		bridge = exchange.NewBridgeBroker(cfg.Broker.BaseURL,
			exchange.BridgeAuth{APIKey: creds.APIKey, AccessToken: creds.AccessToken},
			cfg.Broker.CallTimeout(), log)
	default:
		if cfg.Paper.FillsPath != "" {
			rec, err := paper.NewJSONLRecorder(cfg.Paper.FillsPath, log)
			if err != nil {
				return err
			}
			venue.recorder = rec
			defer rec.Close()
		}
		var shared []instrument.Instrument
		if cfg.Broker.InstrumentsPath != "" {
			loaded, err := instrument.LoadFile(cfg.Broker.InstrumentsPath)
			if err != nil {
				return err
			}
			shared = loaded
		}
		for _, inst := range active {
			instruments := shared
			if instruments == nil {
				instruments = syntheticChain(cfg, inst)
			}
			venue.brokers[inst.Name] = newPaperBroker(cfg, log, instruments, venue)
		}
	}

	instances := make([]*runner.Instance, 0, len(active))
	for _, inst := range active {
		var broker exchange.Broker = bridge
		if pb, ok := venue.brokers[inst.Name]; ok {
			broker = pb
		}
		ri, err := buildInstance(ctx, cfg, log, inst, broker, venue.brokers[inst.Name])
		if err != nil {
			return fmt.Errorf("%s: %w", inst.Name, err)
		}
		instances = append(instances, ri)
	}

	srv := metrics.Serve(cfg.App.MetricsAddr, metrics.Route{Pattern: "/status", Handler: runner.StatusHandler(instances)})
	defer srv.Close()
	log.Info().Str("addr", cfg.App.MetricsAddr).Str("broker", cfg.Broker.Provider).Int("instances", len(instances)).Msg("survivor engine started")

	err := runner.RunAll(ctx, instances)
	venue.summarise(log)
	if err != nil {
		log.Error().Err(err).Msg("engine stopped with errors")
		return err
	}
	log.Info().Msg("shutting down")
	return nil
}

func buildInstance(ctx context.Context, cfg *config.Config, log zerolog.Logger, inst config.Instance, broker exchange.Broker, observer *exchange.PaperBroker) (*runner.Instance, error) {
	instruments, err := broker.Instruments(ctx)
	if err != nil {
		return nil, fmt.Errorf("instruments: %w", err)
	}
	executor := execution.NewExecutor(log, broker,
		execution.WithThrottle(risk.NewThrottle(cfg.Risk.OrderRatePerSec)),
		execution.WithTimeout(cfg.Broker.CallTimeout()),
	)
	strat, err := strategy.Build(inst.Strategy, inst.Params(), instruments, broker, executor, log,
		strategy.WithName(inst.Name),
		strategy.WithCallTimeout(cfg.Broker.CallTimeout()),
	)
	if err != nil {
		return nil, err
	}

	feed := exchange.NewFeed(strings.ToLower(cfg.Feed.Provider), inst.IndexSymbol, log,
		exchange.WithInterval(time.Duration(cfg.Feed.IntervalMs)*time.Millisecond),
		exchange.WithScript(cfg.Feed.Script),
		exchange.WithRandomWalk(cfg.Feed.WalkStart, cfg.Feed.WalkStep, cfg.Feed.Seed),
		exchange.WithWebsocket(cfg.Feed.URL, cfg.Feed.SubscribeMessage),
		exchange.WithReconnect(0, time.Duration(cfg.Feed.MaxReconnectMs)*time.Millisecond),
	)
	log.Info().Str("instance", inst.Name).Str("feed", feed.Symbol()).Str("provider", cfg.Feed.Provider).Msg("instance wired")
	opts := []runner.Option{runner.WithBuffer(cfg.Feed.Buffer)}
	if observer != nil {
		opts = append(opts, runner.WithObserver(observer))
	}
	return runner.NewInstance(strat, feed, log, opts...), nil
}

func syntheticChain(cfg *config.Config, inst config.Instance) []instrument.Instrument {
	center := cfg.Paper.Chain.Center
	if center <= 0 {
		center = cfg.Feed.WalkStart
	}
	return instrument.GenerateChain(instrument.ChainSpec{
		Prefix:   inst.SymbolInitials,
		Exchange: inst.Exchange,
		Center:   center,
		Spacing:  cfg.Paper.Chain.Spacing,
		Strikes:  cfg.Paper.Chain.Strikes,
		LotSize:  cfg.Paper.Chain.LotSize,
	})
}

func newPaperBroker(cfg *config.Config, log zerolog.Logger, instruments []instrument.Instrument, venue *paperVenue) *exchange.PaperBroker {
	recorders := paper.Tee{venue.ledger}
	if venue.recorder != nil {
		recorders = append(recorders, venue.recorder)
	}
	opts := []exchange.PaperOption{exchange.WithRecorder(recorders)}
	if cfg.Paper.TimeValue > 0 && cfg.Paper.Decay > 0 {
		opts = append(opts, exchange.WithPricing(exchange.PaperPricing{TimeValue: cfg.Paper.TimeValue, Decay: cfg.Paper.Decay}))
	}
	return exchange.NewPaperBroker(log, instruments, paper.NewAccount(cfg.Paper.MaxQtyPerSymbol), opts...)
}

func (v *paperVenue) summarise(log zerolog.Logger) {
	for name, b := range v.brokers {
		snap := b.Account().Snapshot(nil)
		log.Info().
			Str("instance", name).
			Int("positions", len(snap.Positions)).
			Float64("realized_pnl", snap.RealizedPnL).
			Msg("paper book")
	}
	if fills := v.ledger.Snapshot(); len(fills) > 0 {
		log.Info().Int("fills", len(fills)).Interface("qty_by_symbol", v.ledger.QtyBySymbol()).Msg("paper fills")
	}
}

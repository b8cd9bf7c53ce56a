// Command vaultboard ranks the followers of a Hyperliquid vault.
// It prints a single leaderboard, refreshes one in the terminal, serves a browser
// dashboard or reports a user's portfolio, configured via flags or a YAML file.
//
// Usage:
//
//	vaultboard --vault 0x... --top 20
//	vaultboard --live --sort-by roi --min-equity 1000
//	vaultboard --web --addr :8000
//	vaultboard --user 0x...
//	vaultboard --setup
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"

	"github.com/vadiminshakov/vaultboard/config"
	"github.com/vadiminshakov/vaultboard/dashboard"
	"github.com/vadiminshakov/vaultboard/internal/clients"
	"github.com/vadiminshakov/vaultboard/internal/monitor"
	"github.com/vadiminshakov/vaultboard/internal/services/accumulator"
	"github.com/vadiminshakov/vaultboard/internal/services/alerts"
	"github.com/vadiminshakov/vaultboard/internal/services/leaderboard"
	"github.com/vadiminshakov/vaultboard/internal/setup"
	"github.com/vadiminshakov/vaultboard/internal/storage/followercache"
	"github.com/vadiminshakov/vaultboard/internal/storage/snapshots"
	"github.com/vadiminshakov/vaultboard/pkg/retrier"
)

// terminal modes log to a file so the leaderboard stays readable
const defaultTerminalLog = "vaultboard.log"

func main() {
	cfg, warnings, err := config.Get()
	if err != nil {
		log.Fatal(err)
	}

	if cfg.Mode == config.ModeSetup {
		if err := setup.RunTUI(config.DefaultGeneratedConfig); err != nil {
			log.Fatal(err)
		}
		cfg, warnings, err = config.Parse([]string{"--config", config.DefaultGeneratedConfig}, os.Stderr)
		if err != nil {
			log.Fatal(err)
		}
	}

	logger, err := newLogger(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	for _, w := range warnings {
		logger.Warn(w)
		if cfg.Mode != config.ModeWeb {
			fmt.Fprintln(os.Stderr, "warning:", w)
		}
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cancel, cfg, logger); err != nil {
		logger.Error("vaultboard stopped with error", zap.Error(err))
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cancel context.CancelFunc, cfg config.Config, logger *zap.Logger) error {
	client := clients.NewHyperliquidClient(cfg.APIURL,
		clients.WithRetrier(retrier.New(
			retrier.WithMaxRetries(cfg.Retries-1),
			retrier.WithRetryIf(clients.IsRetryable),
		)),
	)

	if cfg.Mode == config.ModeUser {
		return showUser(ctx, client, cfg.UserAddress)
	}

	cache, err := followercache.NewStore(cfg.CacheDir)
	if err != nil {
		// the cache only saves requests, run without it
		logger.Warn("follower cache disabled", zap.Error(err))
		cache = nil
	}

	var acc *accumulator.Accumulator
	if cache != nil {
		acc, err = accumulator.New(client, cache, logger)
	} else {
		acc, err = accumulator.New(client, nil, logger)
	}
	if err != nil {
		return err
	}

	settings := monitor.NewSettingsStore(monitor.Settings{
		Interval: cfg.RefreshInterval,
		Top:      cfg.Top,
		SortBy:   cfg.SortBy,
		Filter:   leaderboard.Filter{MinEquity: cfg.MinEquity, MinROI: cfg.MinROI},
		Alerts: alerts.Thresholds{
			PnlAbove: cfg.AlertPnlAbove,
			PnlBelow: cfg.AlertPnlBelow,
			TVLAbove: cfg.AlertTVLAbove,
		},
	})

	switch cfg.Mode {
	case config.ModeLive:
		return runLive(ctx, cancel, cfg, acc, settings, logger)
	case config.ModeWeb:
		return runWeb(ctx, cfg, acc, settings, logger)
	default:
		runner, err := monitor.NewRunner(acc, settings, logger, cfg.VaultAddress, cfg.TargetFollowers, cfg.BatchSize,
			monitor.WithRenderer(monitor.NewRenderer(os.Stdout, false)))
		if err != nil {
			return err
		}
		return runner.Once(ctx)
	}
}

func runLive(
	ctx context.Context,
	cancel context.CancelFunc,
	cfg config.Config,
	acc *accumulator.Accumulator,
	settings *monitor.SettingsStore,
	logger *zap.Logger,
) error {
	runner, err := monitor.NewRunner(acc, settings, logger, cfg.VaultAddress, cfg.TargetFollowers, cfg.BatchSize,
		monitor.WithRenderer(monitor.NewRenderer(os.Stdout, true)))
	if err != nil {
		return err
	}

	if cfg.Interactive {
		go monitor.ReadCommands(ctx, os.Stdin, os.Stdout, settings, cancel)
	}

	err = runner.Run(ctx)
	fmt.Println("\nMonitoring stopped.")
	return err
}

func runWeb(
	ctx context.Context,
	cfg config.Config,
	acc *accumulator.Accumulator,
	settings *monitor.SettingsStore,
	logger *zap.Logger,
) error {
	store, err := snapshots.NewWALStore(cfg.WALDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("failed to close snapshot store", zap.Error(err))
		}
	}()

	latest := &monitor.LatestVault{}
	runner, err := monitor.NewRunner(acc, settings, logger, cfg.VaultAddress, cfg.TargetFollowers, cfg.BatchSize,
		monitor.WithSnapshotSaver(store),
		monitor.WithLatest(latest))
	if err != nil {
		return err
	}

	server := dashboard.NewServer(cfg.WebAddr, store, latest, logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(gctx)
	})
	g.Go(func() error {
		if len(cfg.TLSDomains) > 0 {
			return server.StartWithAutoTLS(gctx, cfg.TLSDomains, cfg.CertCacheDir)
		}
		return server.Start(gctx)
	})

	return g.Wait()
}

func showUser(ctx context.Context, client *clients.HyperliquidClient, user string) error {
	renderer := monitor.NewRenderer(os.Stdout, false)

	periods, err := client.UserPortfolio(ctx, user)
	if err != nil {
		return errors.Wrap(err, "fetch portfolio")
	}
	equities, err := client.UserVaultEquities(ctx, user)
	if err != nil {
		return errors.Wrap(err, "fetch vault equities")
	}

	renderer.Portfolio(user, periods, equities)
	return nil
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()

	level, err := zapcore.ParseLevel(strings.ToLower(cfg.LogLevel))
	if err != nil {
		level = zapcore.InfoLevel
	}
	zcfg.Level = zap.NewAtomicLevelAt(level)
	zcfg.EncoderConfig.TimeKey = "ts"
	zcfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	output := cfg.LogFile
	if output == "" && cfg.Mode != config.ModeWeb {
		output = defaultTerminalLog
	}
	if output != "" {
		zcfg.OutputPaths = []string{output}
		zcfg.ErrorOutputPaths = []string{output}
	}

	return zcfg.Build()
}

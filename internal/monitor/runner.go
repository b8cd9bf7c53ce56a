package monitor

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/internal/services/accumulator"
	"github.com/vadiminshakov/vaultboard/internal/services/alerts"
	"github.com/vadiminshakov/vaultboard/internal/services/leaderboard"
	"github.com/vadiminshakov/vaultboard/pkg/indicators"
)

const (
	// DefaultRetryDelay wait after a cycle that produced no data.
	DefaultRetryDelay = 10 * time.Second
	// DefaultTrendPeriod EMA period, in cycles, of the TVL trend.
	DefaultTrendPeriod = 5

	trendWindow     = 100
	fallbackRefresh = 5 * time.Second
)

type followerAccumulator interface {
	Accumulate(ctx context.Context, vaultAddress string, targetCount, batchSize int) (*accumulator.Result, error)
}

type snapshotSaver interface {
	Save(snapshot domain.LeaderboardSnapshot) (uint64, error)
}

// Runner polls a vault, ranks its followers, checks alerts and publishes the result.
// One Runner serves one loop; it is not safe for concurrent cycles.
type Runner struct {
	acc      followerAccumulator
	settings *SettingsStore
	logger   *zap.Logger

	vaultAddress string
	target       int
	batch        int

	renderer    *Renderer
	saver       snapshotSaver
	latest      *LatestVault
	tracker     *alerts.Tracker
	tvl         *indicators.Series
	trendPeriod int
	retryDelay  time.Duration
	now         func() time.Time
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithRenderer draws every cycle to a terminal.
func WithRenderer(r *Renderer) RunnerOption {
	return func(rn *Runner) {
		rn.renderer = r
	}
}

// WithSnapshotSaver journals every cycle's leaderboard.
func WithSnapshotSaver(s snapshotSaver) RunnerOption {
	return func(rn *Runner) {
		rn.saver = s
	}
}

// WithLatest publishes every accumulated vault to l.
func WithLatest(l *LatestVault) RunnerOption {
	return func(rn *Runner) {
		rn.latest = l
	}
}

// WithRetryDelay overrides the wait after a failed cycle.
func WithRetryDelay(d time.Duration) RunnerOption {
	return func(rn *Runner) {
		rn.retryDelay = d
	}
}

// WithTrendPeriod overrides the TVL EMA period.
func WithTrendPeriod(n int) RunnerOption {
	return func(rn *Runner) {
		if n > 0 {
			rn.trendPeriod = n
		}
	}
}

// WithRunnerClock overrides the time source.
func WithRunnerClock(now func() time.Time) RunnerOption {
	return func(rn *Runner) {
		rn.now = now
	}
}

// NewRunner creates a Runner for vaultAddress.
func NewRunner(
	acc followerAccumulator,
	settings *SettingsStore,
	logger *zap.Logger,
	vaultAddress string,
	target, batch int,
	opts ...RunnerOption,
) (*Runner, error) {
	if acc == nil {
		return nil, errors.New("accumulator is nil")
	}
	if settings == nil {
		return nil, errors.New("settings store is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	r := &Runner{
		acc:          acc,
		settings:     settings,
		logger:       logger.With(zap.String("vault", vaultAddress)),
		vaultAddress: vaultAddress,
		target:       target,
		batch:        batch,
		tracker:      alerts.NewTracker(),
		tvl:          indicators.NewSeries(trendWindow),
		trendPeriod:  DefaultTrendPeriod,
		retryDelay:   DefaultRetryDelay,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}

	return r, nil
}

// Run executes cycles until ctx is cancelled. Cancellation is observed between cycles: a
// started cycle runs to completion on a context detached from ctx.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.Info("starting monitor loop",
		zap.Int("target", r.target),
		zap.Duration("interval", r.settings.Load().Interval))

	for {
		if ctx.Err() != nil {
			r.logger.Info("monitor loop stopped")
			return nil
		}

		wait, _ := r.cycle(context.WithoutCancel(ctx), true)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			r.logger.Info("monitor loop stopped")
			return nil
		case <-timer.C:
		}
	}
}

// Once executes a single cycle.
func (r *Runner) Once(ctx context.Context) error {
	_, err := r.cycle(ctx, false)
	return err
}

// cycle returns how long to wait before the next one.
func (r *Runner) cycle(ctx context.Context, live bool) (time.Duration, error) {
	settings := r.settings.Load()

	res, err := r.acc.Accumulate(ctx, r.vaultAddress, r.target, r.batch)
	if err != nil {
		if errors.Is(err, accumulator.ErrNoData) {
			r.logger.Warn("no vault data this cycle", zap.Duration("retry_in", r.retryDelay))
		} else {
			r.logger.Error("accumulation failed", zap.Error(err), zap.Duration("retry_in", r.retryDelay))
		}
		if r.renderer != nil {
			r.renderer.Notice("error fetching data, retrying in %s", r.retryDelay)
		}
		return r.retryDelay, err
	}

	now := r.now()
	followers := res.Vault.Followers
	ranked := leaderboard.Build(followers, settings.SortBy, settings.Filter)
	tvl := leaderboard.TotalEquity(followers)
	trend := r.observeTVL(tvl)

	fired := r.tracker.Check(settings.Alerts, ranked, tvl)
	for _, a := range fired {
		r.logger.Info("alert fired",
			zap.String("kind", string(a.Kind)),
			zap.String("user", a.User),
			zap.String("threshold", a.Threshold.String()),
			zap.String("value", a.Value.String()))
	}

	entries := leaderboard.Top(ranked, settings.Top)

	if r.latest != nil {
		r.latest.Set(res.Vault, now)
	}

	if r.saver != nil {
		snapshot := domain.LeaderboardSnapshot{
			Timestamp:      now,
			Vault:          res.Vault.Metadata(),
			TotalFollowers: len(followers),
			TVL:            tvl,
			SortBy:         settings.SortBy,
			Entries:        entries,
		}
		if idx, err := r.saver.Save(snapshot); err != nil {
			r.logger.Error("failed to save leaderboard snapshot", zap.Error(err))
		} else {
			r.logger.Debug("leaderboard snapshot saved", zap.Uint64("index", idx))
		}
	}

	if r.renderer != nil {
		r.renderer.Leaderboard(View{
			Vault:          res.Vault.Metadata(),
			TotalFollowers: len(followers),
			Matching:       len(ranked),
			TVL:            tvl,
			Trend:          trend,
			Settings:       settings,
			Entries:        entries,
			Alerts:         fired,
			UpdatedAt:      now,
			Rounds:         res.Rounds,
			Cached:         res.Cached,
			New:            res.NewFollowers,
		}, live)
	}

	r.logger.Info("cycle complete",
		zap.Int("followers", len(followers)),
		zap.Int("matching", len(ranked)),
		zap.String("tvl", tvl.StringFixed(2)),
		zap.Int("alerts", len(fired)))

	if settings.Interval <= 0 {
		return fallbackRefresh, nil
	}
	return settings.Interval, nil
}

func (r *Runner) observeTVL(tvl decimal.Decimal) *indicators.Reading {
	r.tvl.Add(tvl)
	if r.tvl.Len() < r.trendPeriod {
		return nil
	}

	reading, err := indicators.Read(r.tvl.Values(), r.trendPeriod)
	if err != nil {
		r.logger.Debug("tvl trend unavailable", zap.Error(err))
		return nil
	}
	return &reading
}

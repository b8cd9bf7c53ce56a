// Package accumulator builds the largest follower list it can for a vault out of an endpoint
// that truncates every answer to 100 followers.
package accumulator

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

const (
	// MaxRounds ceiling of requests per session. Empirical, not derived from the endpoint contract.
	MaxRounds = 20
	// DefaultBatchSize follower count the endpoint returns at most per answer.
	DefaultBatchSize = 100
	// DefaultRoundDelay pause between two rounds.
	DefaultRoundDelay = 300 * time.Millisecond

	// earlyStopFromRound first round index at which a round without new followers ends the session.
	earlyStopFromRound = 2
)

// ErrNoData is returned when no round of a session produced vault details.
var ErrNoData = errors.New("no vault data received")

type vaultSource interface {
	VaultDetails(ctx context.Context, req domain.VaultDetailsRequest) (*domain.Vault, error)
}

type followerCache interface {
	Load(vaultAddress string) (*domain.FollowerCacheEntry, error)
	Save(entry domain.FollowerCacheEntry) error
}

// Result outcome of one accumulation session.
type Result struct {
	SessionID string
	// Vault metadata from the first successful round with Followers set to the merged list.
	Vault domain.Vault
	// Cached number of followers seeded from the cache.
	Cached         int
	Rounds         int
	FailedRequests int
	NewFollowers   int
	StoppedEarly   bool
	TargetReached  bool
}

// Accumulator polls a vault repeatedly and merges followers across answers and sessions.
type Accumulator struct {
	source     vaultSource
	cache      followerCache
	logger     *zap.Logger
	roundDelay time.Duration
	now        func() time.Time
	sleep      func(time.Duration)
}

// Option configures the Accumulator.
type Option func(*Accumulator)

// WithRoundDelay overrides the pause between rounds.
func WithRoundDelay(d time.Duration) Option {
	return func(a *Accumulator) {
		a.roundDelay = d
	}
}

// WithClock overrides the time source used for cache timestamps.
func WithClock(now func() time.Time) Option {
	return func(a *Accumulator) {
		a.now = now
	}
}

// WithSleep overrides how the pause between rounds is taken.
func WithSleep(sleep func(time.Duration)) Option {
	return func(a *Accumulator) {
		a.sleep = sleep
	}
}

// New creates an Accumulator. cache may be nil to disable persistence.
func New(source vaultSource, cache followerCache, logger *zap.Logger, opts ...Option) (*Accumulator, error) {
	if source == nil {
		return nil, errors.New("vault source is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &Accumulator{
		source:     source,
		cache:      cache,
		logger:     logger,
		roundDelay: DefaultRoundDelay,
		now:        time.Now,
		sleep:      time.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}

	return a, nil
}

// Accumulate runs one polling session for vaultAddress. Rounds run sequentially; a failed
// round is logged and skipped. The session stops after the round budget, when the target is
// reached, or when a round from the third on brings no new follower. That last rule is a
// heuristic: the endpoint may still hold followers it never returns.
func (a *Accumulator) Accumulate(ctx context.Context, vaultAddress string, targetCount, batchSize int) (*Result, error) {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}

	res := &Result{SessionID: uuid.New().String()}
	logger := a.logger.With(zap.String("vault", vaultAddress), zap.String("session", res.SessionID))

	set := newFollowerSet(a.loadCache(vaultAddress, logger))
	res.Cached = set.len()

	rounds := roundBudget(targetCount, set.len(), batchSize)
	logger.Info("starting follower accumulation",
		zap.Int("target", targetCount),
		zap.Int("cached", res.Cached),
		zap.Int("rounds", rounds))

	var vault *domain.Vault
	for round := 0; round < rounds; round++ {
		strategy := strategyFor(round)
		req := strategy.build(vaultAddress, round, batchSize)
		res.Rounds++

		details, err := a.source.VaultDetails(ctx, req)
		if err != nil {
			res.FailedRequests++
			logger.Warn("vault details request failed",
				zap.Int("round", round+1),
				zap.String("strategy", strategy.name),
				zap.Error(err))
		} else {
			if vault == nil {
				meta := details.Metadata()
				vault = &meta
			}

			// an answer without a followers key says nothing about exhaustion
			if details.Followers == nil {
				logger.Warn("no followers in response",
					zap.Int("round", round+1),
					zap.String("strategy", strategy.name))
				a.pause(round, rounds)
				continue
			}

			added := set.merge(details.Followers)
			res.NewFollowers += added

			logger.Debug("round merged",
				zap.Int("round", round+1),
				zap.String("strategy", strategy.name),
				zap.Strings("keys", req.HintKeys()),
				zap.Int("received", len(details.Followers)),
				zap.Int("new", added),
				zap.Int("total", set.len()))

			if round >= earlyStopFromRound && added == 0 {
				res.StoppedEarly = true
				logger.Info("no new followers, stopping", zap.Int("round", round+1), zap.Int("total", set.len()))
				break
			}
			if targetCount > 0 && set.len() >= targetCount {
				break
			}
		}

		a.pause(round, rounds)
	}

	if vault == nil {
		logger.Error("all vault details requests failed", zap.Int("rounds", res.Rounds))
		return nil, ErrNoData
	}

	if set.len() > 0 {
		a.saveCache(vaultAddress, set.followers(), logger)
	}

	vault.Followers = set.followers()
	res.Vault = *vault
	res.TargetReached = targetCount > 0 && set.len() >= targetCount

	logger.Info("follower accumulation complete",
		zap.Int("total", set.len()),
		zap.Int("new", res.NewFollowers),
		zap.Int("requests", res.Rounds),
		zap.Int("failed", res.FailedRequests),
		zap.Bool("target_reached", res.TargetReached))

	return res, nil
}

// pause waits between two rounds, never after the last one.
func (a *Accumulator) pause(round, rounds int) {
	if round < rounds-1 && a.roundDelay > 0 {
		a.sleep(a.roundDelay)
	}
}

// roundBudget is ceil((target-current)/batch) clamped to [1, MaxRounds].
func roundBudget(targetCount, current, batchSize int) int {
	missing := targetCount - current
	if missing <= 0 {
		return 1
	}
	rounds := (missing + batchSize - 1) / batchSize
	if rounds > MaxRounds {
		rounds = MaxRounds
	}
	if rounds < 1 {
		rounds = 1
	}
	return rounds
}

func (a *Accumulator) loadCache(vaultAddress string, logger *zap.Logger) []domain.Follower {
	if a.cache == nil {
		return nil
	}
	entry, err := a.cache.Load(vaultAddress)
	if err != nil {
		logger.Warn("failed to load follower cache, starting empty", zap.Error(err))
		return nil
	}
	if entry == nil {
		return nil
	}
	logger.Info("loaded followers from cache", zap.Int("count", len(entry.Followers)), zap.Time("cached_at", entry.CachedAt))
	return entry.Followers
}

func (a *Accumulator) saveCache(vaultAddress string, followers []domain.Follower, logger *zap.Logger) {
	if a.cache == nil {
		return
	}
	entry := domain.FollowerCacheEntry{
		VaultAddress: vaultAddress,
		Followers:    followers,
		CachedAt:     a.now().UTC(),
	}
	if err := a.cache.Save(entry); err != nil {
		logger.Error("failed to save follower cache", zap.Error(err))
		return
	}
	logger.Info("saved followers to cache", zap.Int("count", len(followers)))
}

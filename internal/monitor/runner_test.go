package monitor

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/internal/services/accumulator"
	"github.com/vadiminshakov/vaultboard/internal/services/alerts"
)

const testVault = "0xdfc24b077bc1425ad1dea75bcb6f8158e10df303"

type fakeAccumulator struct {
	results []*accumulator.Result
	errs    []error
	calls   int
	onCall  func(ctx context.Context)
}

func (f *fakeAccumulator) Accumulate(ctx context.Context, _ string, _, _ int) (*accumulator.Result, error) {
	i := f.calls
	f.calls++
	if f.onCall != nil {
		f.onCall(ctx)
	}
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.results) == 0 {
		return nil, accumulator.ErrNoData
	}
	if i >= len(f.results) {
		i = len(f.results) - 1
	}
	return f.results[i], nil
}

type memorySaver struct {
	saved []domain.LeaderboardSnapshot
	err   error
}

func (m *memorySaver) Save(s domain.LeaderboardSnapshot) (uint64, error) {
	if m.err != nil {
		return 0, m.err
	}
	m.saved = append(m.saved, s)
	return uint64(len(m.saved)), nil
}

func resultWith(followers ...domain.Follower) *accumulator.Result {
	return &accumulator.Result{
		Vault:  domain.Vault{Name: "HLP", VaultAddress: testVault, APR: 0.12, Followers: followers},
		Rounds: 3,
	}
}

func f(user string, equity, pnl int64) domain.Follower {
	return domain.Follower{User: user, VaultEquity: decimal.NewFromInt(equity), AllTimePnl: decimal.NewFromInt(pnl)}
}

func TestRunner_OnceRanksSavesAndRenders(t *testing.T) {
	threshold := decimal.NewFromInt(100)
	store := NewSettingsStore(Settings{
		Interval: time.Second,
		Top:      2,
		SortBy:   domain.SortByAllTimePnl,
		Alerts:   alerts.Thresholds{PnlAbove: &threshold},
	})
	acc := &fakeAccumulator{results: []*accumulator.Result{
		resultWith(f("0xaaaa", 1000, 50), f("0xbbbb", 500, 300), f("0xcccc", 200, 150)),
	}}
	saver := &memorySaver{}
	latest := &LatestVault{}
	var out bytes.Buffer
	now := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 2000, 100,
		WithRenderer(NewRenderer(&out, false)),
		WithSnapshotSaver(saver),
		WithLatest(latest),
		WithRunnerClock(func() time.Time { return now }))
	require.NoError(t, err)

	require.NoError(t, runner.Once(context.Background()))

	require.Len(t, saver.saved, 1)
	snap := saver.saved[0]
	assert.True(t, now.Equal(snap.Timestamp))
	assert.Equal(t, 3, snap.TotalFollowers)
	assert.True(t, decimal.NewFromInt(1700).Equal(snap.TVL))
	assert.Empty(t, snap.Vault.Followers)
	require.Len(t, snap.Entries, 2)
	assert.Equal(t, "0xbbbb", snap.Entries[0].User)
	assert.Equal(t, "0xcccc", snap.Entries[1].User)

	vault, at, ok := latest.Latest()
	require.True(t, ok)
	assert.Len(t, vault.Followers, 3)
	assert.True(t, now.Equal(at))

	rendered := out.String()
	assert.Contains(t, rendered, "HLP")
	assert.Contains(t, rendered, "$1,700")
	assert.Contains(t, rendered, "ALERT")
	assert.Contains(t, rendered, "3 total | 3 matching | showing 2")
}

func TestRunner_OnceNoData(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Second, Top: 10})
	acc := &fakeAccumulator{errs: []error{accumulator.ErrNoData}}
	saver := &memorySaver{}
	var out bytes.Buffer

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 2000, 100,
		WithRenderer(NewRenderer(&out, false)), WithSnapshotSaver(saver), WithRetryDelay(time.Millisecond))
	require.NoError(t, err)

	err = runner.Once(context.Background())
	assert.ErrorIs(t, err, accumulator.ErrNoData)
	assert.Empty(t, saver.saved)
	assert.Contains(t, out.String(), "retrying in 1ms")
}

func TestRunner_SaveErrorDoesNotFailCycle(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Second, Top: 10})
	acc := &fakeAccumulator{results: []*accumulator.Result{resultWith(f("0xaaaa", 1, 1))}}

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 10, 100,
		WithSnapshotSaver(&memorySaver{err: errors.New("disk full")}))
	require.NoError(t, err)

	assert.NoError(t, runner.Once(context.Background()))
}

func TestRunner_PicksUpSettingsBetweenCycles(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Second, Top: 10, SortBy: domain.SortByAllTimePnl})
	acc := &fakeAccumulator{results: []*accumulator.Result{
		resultWith(f("0xsmall", 10, 100), f("0xbig", 10_000, 1)),
	}}
	saver := &memorySaver{}

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 10, 100, WithSnapshotSaver(saver))
	require.NoError(t, err)

	require.NoError(t, runner.Once(context.Background()))

	next, _, err := ApplyCommand("s equity", store.Load())
	require.NoError(t, err)
	store.Store(next)

	require.NoError(t, runner.Once(context.Background()))

	require.Len(t, saver.saved, 2)
	assert.Equal(t, "0xsmall", saver.saved[0].Entries[0].User)
	assert.Equal(t, domain.SortByEquity, saver.saved[1].SortBy)
	assert.Equal(t, "0xbig", saver.saved[1].Entries[0].User)
}

func TestRunner_RunStopsBetweenCycles(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Hour, Top: 10})
	ctx, cancel := context.WithCancel(context.Background())

	var cycleCtxErr error
	acc := &fakeAccumulator{results: []*accumulator.Result{resultWith(f("0xaaaa", 1, 1))}}
	acc.onCall = func(cycleCtx context.Context) {
		// quit arrives while the cycle is in flight
		cancel()
		cycleCtxErr = cycleCtx.Err()
	}
	saver := &memorySaver{}

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 10, 100, WithSnapshotSaver(saver))
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}

	assert.Equal(t, 1, acc.calls)
	assert.NoError(t, cycleCtxErr, "in-flight cycle must not observe cancellation")
	assert.Len(t, saver.saved, 1, "in-flight cycle completes")
}

func TestRunner_RunRetriesAfterNoData(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Hour, Top: 10})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	acc := &fakeAccumulator{
		errs:    []error{accumulator.ErrNoData, nil},
		results: []*accumulator.Result{resultWith(f("0xaaaa", 1, 1))},
	}
	acc.onCall = func(context.Context) {
		if acc.calls == 2 {
			cancel()
		}
	}

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 10, 100, WithRetryDelay(time.Millisecond))
	require.NoError(t, err)

	require.NoError(t, runner.Run(ctx))
	assert.Equal(t, 2, acc.calls)
}

func TestRunner_TVLTrendAppearsAfterPeriod(t *testing.T) {
	store := NewSettingsStore(Settings{Interval: time.Second, Top: 10})
	acc := &fakeAccumulator{results: []*accumulator.Result{
		resultWith(f("0xaaaa", 100, 1)),
		resultWith(f("0xaaaa", 100, 1)),
		resultWith(f("0xaaaa", 300, 1)),
	}}
	var out bytes.Buffer

	runner, err := NewRunner(acc, store, zap.NewNop(), testVault, 10, 100,
		WithRenderer(NewRenderer(&out, false)), WithTrendPeriod(2))
	require.NoError(t, err)

	require.NoError(t, runner.Once(context.Background()))
	assert.NotContains(t, out.String(), "EMA")

	require.NoError(t, runner.Once(context.Background()))
	require.NoError(t, runner.Once(context.Background()))
	assert.Contains(t, out.String(), "EMA")
}

func TestNewRunner_Validation(t *testing.T) {
	_, err := NewRunner(nil, NewSettingsStore(Settings{}), zap.NewNop(), testVault, 1, 1)
	assert.Error(t, err)

	_, err = NewRunner(&fakeAccumulator{}, nil, zap.NewNop(), testVault, 1, 1)
	assert.Error(t, err)
}

// Package leaderboard ranks vault followers.
package leaderboard

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

// Filter optional lower bounds applied before ranking. Nil fields do not filter.
type Filter struct {
	MinEquity *decimal.Decimal
	MinROI    *decimal.Decimal
}

// IsZero reports whether no bound is set.
func (f Filter) IsZero() bool {
	return f.MinEquity == nil && f.MinROI == nil
}

func (f Filter) keep(follower domain.Follower, roi decimal.Decimal) bool {
	if f.MinEquity != nil && follower.VaultEquity.LessThan(*f.MinEquity) {
		return false
	}
	if f.MinROI != nil && roi.LessThan(*f.MinROI) {
		return false
	}
	return true
}

// Build filters followers, sorts them descending by sortKey and assigns 1-based ranks.
// Followers with equal keys keep their input order. An unknown key sorts by all-time PnL.
func Build(followers []domain.Follower, sortKey domain.SortKey, filter Filter) []domain.RankedFollower {
	ranked := make([]domain.RankedFollower, 0, len(followers))
	for _, f := range followers {
		roi := f.ROI()
		if !filter.keep(f, roi) {
			continue
		}
		ranked = append(ranked, domain.RankedFollower{Follower: f, ROI: roi})
	}

	less := byKey(sortKey)
	sort.SliceStable(ranked, func(i, j int) bool {
		return less(ranked[j], ranked[i])
	})

	for i := range ranked {
		ranked[i].Rank = i + 1
	}
	return ranked
}

// byKey returns an ascending comparator for the metric of sortKey.
func byKey(sortKey domain.SortKey) func(a, b domain.RankedFollower) bool {
	switch sortKey {
	case domain.SortByROI:
		return func(a, b domain.RankedFollower) bool { return a.ROI.LessThan(b.ROI) }
	case domain.SortByEquity:
		return func(a, b domain.RankedFollower) bool { return a.VaultEquity.LessThan(b.VaultEquity) }
	case domain.SortByDays:
		return func(a, b domain.RankedFollower) bool { return a.DaysFollowing < b.DaysFollowing }
	default:
		return func(a, b domain.RankedFollower) bool { return a.AllTimePnl.LessThan(b.AllTimePnl) }
	}
}

// TotalEquity sums vault equity over followers (TVL).
func TotalEquity(followers []domain.Follower) decimal.Decimal {
	total := decimal.Zero
	for _, f := range followers {
		total = total.Add(f.VaultEquity)
	}
	return total
}

// Top returns at most n leading entries. n <= 0 returns all.
func Top(ranked []domain.RankedFollower, n int) []domain.RankedFollower {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// Snapshot ranks followers of vault and packs the result for publishing.
func Snapshot(vault domain.Vault, sortKey domain.SortKey, filter Filter, top int) domain.LeaderboardSnapshot {
	meta := vault.Metadata()
	return domain.LeaderboardSnapshot{
		Vault:          meta,
		TotalFollowers: len(vault.Followers),
		TVL:            TotalEquity(vault.Followers),
		SortBy:         sortKey,
		Entries:        Top(Build(vault.Followers, sortKey, filter), top),
	}
}

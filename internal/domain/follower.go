// Package domain defines core data structures shared by the vault leaderboard tool.
package domain

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Follower a user holding equity in a vault.
type Follower struct {
	// User wallet address, unique within a vault.
	User string `json:"user"`
	// VaultEquity current stake value.
	VaultEquity decimal.Decimal `json:"vaultEquity"`
	// Pnl current-period profit/loss.
	Pnl decimal.Decimal `json:"pnl"`
	// AllTimePnl cumulative profit/loss since joining the vault.
	AllTimePnl decimal.Decimal `json:"allTimePnl"`
	// DaysFollowing number of days since the user joined.
	DaysFollowing int `json:"daysFollowing"`
	// VaultEntryTime epoch millis of the first deposit, when reported.
	VaultEntryTime int64 `json:"vaultEntryTime,omitempty"`
	// LockupUntil epoch millis of the withdrawal lockup end, when reported.
	LockupUntil int64 `json:"lockupUntil,omitempty"`
}

// ROI returns all-time PnL as a percentage of current equity, zero when equity is not positive.
func (f Follower) ROI() decimal.Decimal {
	if !f.VaultEquity.IsPositive() {
		return decimal.Zero
	}
	return f.AllTimePnl.Div(f.VaultEquity).Mul(decimal.NewFromInt(100))
}

// RankedFollower follower with its leaderboard position and derived ROI.
type RankedFollower struct {
	Follower
	Rank int             `json:"rank"`
	ROI  decimal.Decimal `json:"roi"`
}

// FollowerCacheEntry merged follower set persisted per vault.
type FollowerCacheEntry struct {
	VaultAddress string     `json:"vault_address"`
	Followers    []Follower `json:"followers"`
	CachedAt     time.Time  `json:"cached_at"`
}

// cacheTimeLayouts accepted for cached_at, the second one being naive local "YYYY-MM-DD HH:MM:SS[.ffffff]".
var cacheTimeLayouts = []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999999"}

// UnmarshalJSON decodes an entry. A cached_at in an unknown layout leaves CachedAt zero
// instead of rejecting the followers.
func (e *FollowerCacheEntry) UnmarshalJSON(data []byte) error {
	type plain FollowerCacheEntry
	aux := struct {
		*plain
		CachedAt json.RawMessage `json:"cached_at"`
	}{plain: (*plain)(e)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	e.CachedAt = parseCacheTime(aux.CachedAt)
	return nil
}

func parseCacheTime(raw json.RawMessage) time.Time {
	var s string
	if len(raw) == 0 || json.Unmarshal(raw, &s) != nil {
		return time.Time{}
	}
	s = strings.TrimSpace(s)
	for _, layout := range cacheTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.Local); err == nil {
			return t
		}
	}
	return time.Time{}
}

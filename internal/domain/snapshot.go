package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// LeaderboardSnapshot ranked state of a vault at one poll cycle.
type LeaderboardSnapshot struct {
	Timestamp      time.Time        `json:"ts"`
	Vault          Vault            `json:"vault"`
	TotalFollowers int              `json:"total_followers"`
	TVL            decimal.Decimal  `json:"tvl"`
	SortBy         SortKey          `json:"sort_by"`
	Entries        []RankedFollower `json:"entries"`
}

// LeaderboardSnapshotRecord bundles a snapshot with its journal index.
type LeaderboardSnapshotRecord struct {
	Index    uint64
	Snapshot LeaderboardSnapshot
}

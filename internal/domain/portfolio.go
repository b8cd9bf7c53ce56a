package domain

import (
	"github.com/shopspring/decimal"
)

// PortfolioPeriod performance of a user over one window ("day", "week", "month", "allTime", ...).
type PortfolioPeriod struct {
	Name               string
	Volume             decimal.Decimal
	LatestPnl          decimal.Decimal
	LatestAccountValue decimal.Decimal
	// HasHistory false when the period carries no PnL history points.
	HasHistory bool
}

// UserVaultEquity deposit of a user in one vault.
type UserVaultEquity struct {
	VaultAddress         string          `json:"vaultAddress"`
	Equity               decimal.Decimal `json:"equity"`
	LockedUntilTimestamp int64           `json:"lockedUntilTimestamp,omitempty"`
}

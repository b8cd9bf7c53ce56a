package domain

import "strings"

// SortKey leaderboard ordering metric.
type SortKey string

const (
	// SortByAllTimePnl orders by cumulative PnL.
	SortByAllTimePnl SortKey = "pnl"
	// SortByROI orders by derived ROI.
	SortByROI SortKey = "roi"
	// SortByEquity orders by vault equity.
	SortByEquity SortKey = "equity"
	// SortByDays orders by days following.
	SortByDays SortKey = "days"
)

// ParseSortKey maps a user-supplied name to a SortKey. The second return value is false
// for unrecognized names, in which case SortByAllTimePnl is returned.
func ParseSortKey(s string) (SortKey, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pnl", "alltimepnl":
		return SortByAllTimePnl, true
	case "roi":
		return SortByROI, true
	case "equity", "vaultequity":
		return SortByEquity, true
	case "days", "daysfollowing":
		return SortByDays, true
	default:
		return SortByAllTimePnl, false
	}
}

// String returns the string representation.
func (k SortKey) String() string {
	return string(k)
}

// IsValid checks if the SortKey value is known.
func (k SortKey) IsValid() bool {
	parsed, ok := ParseSortKey(string(k))
	return ok && parsed == k
}

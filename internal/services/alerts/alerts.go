// Package alerts detects threshold crossings between poll cycles.
package alerts

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

// Kind of alert.
type Kind string

const (
	PnlAbove Kind = "pnl_above"
	PnlBelow Kind = "pnl_below"
	TVLAbove Kind = "tvl_above"
)

// Thresholds alert levels. Nil disables the corresponding alert.
type Thresholds struct {
	PnlAbove *decimal.Decimal
	PnlBelow *decimal.Decimal
	TVLAbove *decimal.Decimal
}

// Enabled reports whether any alert is configured.
func (t Thresholds) Enabled() bool {
	return t.PnlAbove != nil || t.PnlBelow != nil || t.TVLAbove != nil
}

// Alert a single threshold crossing.
type Alert struct {
	Kind      Kind
	User      string
	Threshold decimal.Decimal
	Value     decimal.Decimal
}

// String formats the alert for terminal output.
func (a Alert) String() string {
	switch a.Kind {
	case PnlAbove:
		return fmt.Sprintf("user %s PnL crossed $%s (now $%s)",
			domain.ShortAddress(a.User), a.Threshold.StringFixed(2), a.Value.StringFixed(2))
	case PnlBelow:
		return fmt.Sprintf("user %s PnL dropped below $%s (now $%s)",
			domain.ShortAddress(a.User), a.Threshold.StringFixed(2), a.Value.StringFixed(2))
	case TVLAbove:
		return fmt.Sprintf("vault TVL crossed $%s (now $%s)", a.Threshold.StringFixed(2), a.Value.StringFixed(2))
	default:
		return string(a.Kind)
	}
}

// Tracker remembers the last observed values and reports crossings.
// An alert fires when the current value is on the alert side of the threshold and the previous
// value was absent or on the other side. Not safe for concurrent use.
type Tracker struct {
	prevPnl map[string]decimal.Decimal
	prevTVL *decimal.Decimal
}

// NewTracker creates an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{prevPnl: make(map[string]decimal.Decimal)}
}

// Check evaluates followers and tvl against thresholds and records them as previous values.
// Previous values are only recorded while the matching alert is enabled.
func (t *Tracker) Check(th Thresholds, followers []domain.RankedFollower, tvl decimal.Decimal) []Alert {
	var out []Alert

	if th.PnlAbove != nil || th.PnlBelow != nil {
		for _, f := range followers {
			pnl := f.AllTimePnl
			prev, seen := t.prevPnl[f.User]

			if th.PnlAbove != nil && pnl.GreaterThanOrEqual(*th.PnlAbove) &&
				(!seen || prev.LessThan(*th.PnlAbove)) {
				out = append(out, Alert{Kind: PnlAbove, User: f.User, Threshold: *th.PnlAbove, Value: pnl})
			}
			if th.PnlBelow != nil && pnl.LessThanOrEqual(*th.PnlBelow) &&
				(!seen || prev.GreaterThan(*th.PnlBelow)) {
				out = append(out, Alert{Kind: PnlBelow, User: f.User, Threshold: *th.PnlBelow, Value: pnl})
			}

			t.prevPnl[f.User] = pnl
		}
	}

	if th.TVLAbove != nil {
		if tvl.GreaterThanOrEqual(*th.TVLAbove) && (t.prevTVL == nil || t.prevTVL.LessThan(*th.TVLAbove)) {
			out = append(out, Alert{Kind: TVLAbove, Threshold: *th.TVLAbove, Value: tvl})
		}
		t.prevTVL = &tvl
	}

	return out
}

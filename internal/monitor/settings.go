// Package monitor runs the periodic poll-rank-render loop and its interactive controls.
package monitor

import (
	"sync/atomic"
	"time"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/internal/services/alerts"
	"github.com/vadiminshakov/vaultboard/internal/services/leaderboard"
)

// Settings user-adjustable display and alert parameters. Values are immutable once stored:
// decimal pointers inside are replaced, never written through.
type Settings struct {
	Interval time.Duration
	Top      int
	SortBy   domain.SortKey
	Filter   leaderboard.Filter
	Alerts   alerts.Thresholds
}

// SettingsStore holds the current Settings snapshot. Readers load a whole snapshot per cycle;
// the input goroutine is the only writer.
type SettingsStore struct {
	current atomic.Pointer[Settings]
}

// NewSettingsStore creates a store holding initial.
func NewSettingsStore(initial Settings) *SettingsStore {
	s := &SettingsStore{}
	s.current.Store(&initial)
	return s
}

// Load returns a copy of the current snapshot.
func (s *SettingsStore) Load() Settings {
	return *s.current.Load()
}

// Store replaces the snapshot.
func (s *SettingsStore) Store(next Settings) {
	s.current.Store(&next)
}

package monitor

import (
	"sync"
	"time"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

// LatestVault keeps the most recent accumulated vault for readers outside the loop.
type LatestVault struct {
	mu        sync.RWMutex
	vault     domain.Vault
	updatedAt time.Time
	ok        bool
}

// Set replaces the held vault. The follower slice is owned by LatestVault afterwards.
func (l *LatestVault) Set(vault domain.Vault, at time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.vault = vault
	l.updatedAt = at
	l.ok = true
}

// Latest returns the held vault. ok is false until the first Set. Callers must not modify
// the returned followers.
func (l *LatestVault) Latest() (vault domain.Vault, updatedAt time.Time, ok bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.vault, l.updatedAt, l.ok
}

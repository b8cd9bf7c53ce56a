package snapshots

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/vadiminshakov/gowal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

const (
	DefaultDir   = "./wal/leaderboard"
	segmentLimit = 200
	maxSegments  = 20

	snapshotKeyPrefix = "leaderboard_"
)

// WALStore persists leaderboard snapshots in a WAL for streaming to the dashboard.
type WALStore struct {
	wal *gowal.Wal
	mu  sync.RWMutex
}

// NewWALStore initializes a WAL-backed snapshot store under the provided directory.
func NewWALStore(dir string) (*WALStore, error) {
	if dir == "" {
		dir = DefaultDir
	}

	cfg := gowal.Config{
		Dir:              dir,
		Prefix:           "leaderboard_",
		SegmentThreshold: segmentLimit,
		MaxSegments:      maxSegments,
		IsInSyncDiskMode: true,
	}

	wal, err := gowal.NewWAL(cfg)
	if err != nil {
		return nil, errors.Wrap(err, "init leaderboard snapshot WAL")
	}

	return &WALStore{wal: wal}, nil
}

// Save appends the snapshot to the WAL and returns its index. snapshot.Vault.VaultAddress must be set.
func (s *WALStore) Save(snapshot domain.LeaderboardSnapshot) (uint64, error) {
	if s == nil || s.wal == nil {
		return 0, errors.New("leaderboard snapshot store is not initialized")
	}
	if snapshot.Vault.VaultAddress == "" {
		return 0, errors.New("leaderboard snapshot vault address is required")
	}

	payload, err := json.Marshal(snapshot)
	if err != nil {
		return 0, errors.Wrap(err, "marshal leaderboard snapshot")
	}

	key := snapshotKeyPrefix + strings.ToLower(snapshot.Vault.VaultAddress)

	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.wal.CurrentIndex() + 1
	if err := s.wal.Write(idx, key, payload); err != nil {
		return 0, errors.Wrap(err, "write leaderboard snapshot")
	}
	return idx, nil
}

// SnapshotsAfter returns all snapshots written after the provided WAL index, oldest first.
// Indexes evicted with old segments are skipped.
func (s *WALStore) SnapshotsAfter(index uint64) ([]domain.LeaderboardSnapshotRecord, error) {
	if s == nil || s.wal == nil {
		return nil, errors.New("leaderboard snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	current := s.wal.CurrentIndex()
	if current <= index {
		return nil, nil
	}

	records := make([]domain.LeaderboardSnapshotRecord, 0, current-index)
	for idx := index + 1; idx <= current; idx++ {
		record, ok, err := s.get(idx)
		if err != nil {
			return nil, err
		}
		if ok {
			records = append(records, record)
		}
	}

	return records, nil
}

// Latest returns the most recent snapshot. ok is false when the store is empty.
func (s *WALStore) Latest() (record domain.LeaderboardSnapshotRecord, ok bool, err error) {
	if s == nil || s.wal == nil {
		return record, false, errors.New("leaderboard snapshot store is not initialized")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for idx := s.wal.CurrentIndex(); idx > 0; idx-- {
		record, ok, err = s.get(idx)
		if err != nil || ok {
			return record, ok, err
		}
	}
	return record, false, nil
}

func (s *WALStore) get(idx uint64) (domain.LeaderboardSnapshotRecord, bool, error) {
	key, payload, err := s.wal.Get(idx)
	if err != nil || !strings.HasPrefix(key, snapshotKeyPrefix) {
		return domain.LeaderboardSnapshotRecord{}, false, nil
	}

	var snapshot domain.LeaderboardSnapshot
	if err := json.Unmarshal(payload, &snapshot); err != nil {
		return domain.LeaderboardSnapshotRecord{}, false, errors.Wrapf(err, "decode leaderboard snapshot %d", idx)
	}
	return domain.LeaderboardSnapshotRecord{Index: idx, Snapshot: snapshot}, true, nil
}

// CurrentIndex returns the latest WAL index stored.
func (s *WALStore) CurrentIndex() uint64 {
	if s == nil || s.wal == nil {
		return 0
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.wal.CurrentIndex()
}

// Close closes the underlying WAL.
func (s *WALStore) Close() error {
	if s == nil || s.wal == nil {
		return errors.New("leaderboard snapshot store is not initialized")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	return s.wal.Close()
}

package followercache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

const (
	// DefaultDir is used when neither the caller nor VAULTBOARD_CACHE_DIR set a directory.
	DefaultDir = "vault_cache"

	fileSuffix = "_followers.json"
)

// Store keeps one JSON file of merged followers per vault address.
// There is no locking: a single process is expected to own a vault's file.
type Store struct {
	dir string
}

// Dir resolves the cache directory: explicit value, then VAULTBOARD_CACHE_DIR, then DefaultDir.
func Dir(dir string) string {
	if dir != "" {
		return dir
	}
	if env := os.Getenv("VAULTBOARD_CACHE_DIR"); env != "" {
		return env
	}
	return DefaultDir
}

// NewStore creates the cache directory if needed.
func NewStore(dir string) (*Store, error) {
	dir = Dir(dir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create follower cache dir")
	}
	return &Store{dir: dir}, nil
}

// Path returns the cache file location for a vault.
func (s *Store) Path(vaultAddress string) string {
	return filepath.Join(s.dir, fmt.Sprintf("%s%s", sanitize(vaultAddress), fileSuffix))
}

// Load reads the cached entry for a vault. A missing or empty file yields (nil, nil).
func (s *Store) Load(vaultAddress string) (*domain.FollowerCacheEntry, error) {
	if s == nil || s.dir == "" {
		return nil, nil
	}

	payload, err := os.ReadFile(s.Path(vaultAddress))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "read follower cache")
	}

	if len(payload) == 0 {
		return nil, nil
	}

	var entry domain.FollowerCacheEntry
	if err := json.Unmarshal(payload, &entry); err != nil {
		return nil, errors.Wrap(err, "decode follower cache")
	}

	return &entry, nil
}

// Save overwrites the vault's cache file atomically via temp file.
func (s *Store) Save(entry domain.FollowerCacheEntry) error {
	if s == nil || s.dir == "" {
		return nil
	}
	if entry.VaultAddress == "" {
		return errors.New("follower cache entry vault address is required")
	}

	payload, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode follower cache")
	}

	path := s.Path(entry.VaultAddress)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return errors.Wrap(err, "write follower cache temp file")
	}

	if err := os.Rename(tmp, path); err != nil {
		return errors.Wrap(err, "persist follower cache")
	}

	return nil
}

// sanitize keeps file names inside the cache directory whatever the caller passes as address.
func sanitize(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			continue
		}
		b.WriteByte('_')
	}

	if b.Len() == 0 {
		return "unknown"
	}
	return b.String()
}

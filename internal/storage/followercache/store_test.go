package followercache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

const vault = "0xdfc24b077bc1425ad1dea75bcb6f8158e10df303"

func TestStore_LoadMissing(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	entry, err := store.Load(vault)
	require.NoError(t, err)
	assert.Nil(t, entry)
}

func TestStore_SaveAndLoad(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	cachedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	entry := domain.FollowerCacheEntry{
		VaultAddress: vault,
		Followers: []domain.Follower{
			{User: "0x01", VaultEquity: decimal.NewFromInt(1000), AllTimePnl: decimal.NewFromInt(250), DaysFollowing: 3},
			{User: "0x02", VaultEquity: decimal.RequireFromString("12.75"), Pnl: decimal.NewFromInt(-2)},
		},
		CachedAt: cachedAt,
	}
	require.NoError(t, store.Save(entry))

	assert.FileExists(t, filepath.Join(dir, vault+"_followers.json"))
	_, err = os.Stat(filepath.Join(dir, vault+"_followers.json.tmp"))
	assert.True(t, os.IsNotExist(err))

	loaded, err := store.Load(vault)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, vault, loaded.VaultAddress)
	assert.True(t, cachedAt.Equal(loaded.CachedAt))
	require.Len(t, loaded.Followers, 2)
	assert.Equal(t, "0x01", loaded.Followers[0].User)
	assert.True(t, decimal.NewFromInt(250).Equal(loaded.Followers[0].AllTimePnl))
	assert.True(t, decimal.RequireFromString("12.75").Equal(loaded.Followers[1].VaultEquity))
}

func TestStore_LoadLegacyTimestamp(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	legacy := `{
  "vault_address": "0xdfc24b077bc1425ad1dea75bcb6f8158e10df303",
  "followers": [
    {"user": "0x01", "vaultEquity": "1500.25", "pnl": "-3.5", "allTimePnl": "120.0", "daysFollowing": 42, "vaultEntryTime": 1700000000000, "lockupUntil": 1700345600000},
    {"user": "0x02", "vaultEquity": "10.0", "pnl": "0.0", "allTimePnl": "-1.0", "daysFollowing": 1}
  ],
  "cached_at": "2025-01-02 03:04:05.123456"
}`
	require.NoError(t, os.WriteFile(store.Path(vault), []byte(legacy), 0o644))

	entry, err := store.Load(vault)
	require.NoError(t, err)
	require.NotNil(t, entry)
	require.Len(t, entry.Followers, 2)
	assert.True(t, decimal.RequireFromString("1500.25").Equal(entry.Followers[0].VaultEquity))
	assert.Equal(t, 42, entry.Followers[0].DaysFollowing)
	assert.Equal(t, int64(1700345600000), entry.Followers[0].LockupUntil)

	want := time.Date(2025, 1, 2, 3, 4, 5, 123456000, time.Local)
	assert.True(t, want.Equal(entry.CachedAt), "got %s", entry.CachedAt)
}

func TestStore_LoadUnknownTimestampKeepsFollowers(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	payload := `{"vault_address": "` + vault + `", "followers": [{"user": "0x01", "vaultEquity": "1"}], "cached_at": "yesterday"}`
	require.NoError(t, os.WriteFile(store.Path(vault), []byte(payload), 0o644))

	entry, err := store.Load(vault)
	require.NoError(t, err)
	require.NotNil(t, entry)
	assert.Len(t, entry.Followers, 1)
	assert.True(t, entry.CachedAt.IsZero())
}

func TestStore_LoadCorrupted(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(store.Path(vault), []byte("{broken"), 0o644))

	entry, err := store.Load(vault)
	assert.Error(t, err)
	assert.Nil(t, entry)
}

func TestStore_SaveRequiresVault(t *testing.T) {
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Save(domain.FollowerCacheEntry{}))
}

func TestStore_PathStaysInsideDir(t *testing.T) {
	dir := t.TempDir()
	store, err := NewStore(dir)
	require.NoError(t, err)

	path := store.Path("../../etc/passwd")
	assert.Equal(t, dir, filepath.Dir(path))
}

func TestDir(t *testing.T) {
	t.Setenv("VAULTBOARD_CACHE_DIR", "")
	assert.Equal(t, "explicit", Dir("explicit"))
	assert.Equal(t, DefaultDir, Dir(""))

	t.Setenv("VAULTBOARD_CACHE_DIR", "/tmp/from-env")
	assert.Equal(t, "/tmp/from-env", Dir(""))
}

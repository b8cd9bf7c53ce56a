package dashboard

import (
	"compress/gzip"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/vaultboard/internal/domain"
)

type memorySnapshots struct {
	mu      sync.Mutex
	records []domain.LeaderboardSnapshotRecord
	err     error
}

func (m *memorySnapshots) SnapshotsAfter(index uint64) ([]domain.LeaderboardSnapshotRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	var out []domain.LeaderboardSnapshotRecord
	for _, r := range m.records {
		if r.Index > index {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memorySnapshots) CurrentIndex() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.records) == 0 {
		return 0
	}
	return m.records[len(m.records)-1].Index
}

type staticVault struct {
	vault domain.Vault
	at    time.Time
	ok    bool
}

func (s staticVault) Latest() (domain.Vault, time.Time, bool) {
	return s.vault, s.at, s.ok
}

func follower(user string, equity, allTime int64, days int) domain.Follower {
	return domain.Follower{
		User:          user,
		VaultEquity:   decimal.NewFromInt(equity),
		Pnl:           decimal.NewFromInt(allTime / 2),
		AllTimePnl:    decimal.NewFromInt(allTime),
		DaysFollowing: days,
	}
}

func testVault() staticVault {
	return staticVault{
		vault: domain.Vault{
			Name:         "HLP",
			VaultAddress: domain.DefaultVaultAddress,
			APR:          0.12,
			Followers: []domain.Follower{
				follower("0xa", 100, 10, 3),
				follower("0xb", 1000, 50, 30),
				follower("0xc", 50, 25, 7),
			},
		},
		at: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		ok: true,
	}
}

func newTestServer(store snapshotReader, latest vaultReader) *Server {
	s := NewServer(":0", store, latest, zap.NewNop())
	s.pollInterval = 10 * time.Millisecond
	s.heartbeat = time.Hour
	return s
}

func TestHandleLeaderboard_Ranks(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?sort=roi&top=2", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, "HLP", resp.Vault.Name)
	assert.Empty(t, resp.Vault.Followers)
	assert.Equal(t, 3, resp.TotalFollowers)
	assert.Equal(t, 3, resp.Matching)
	assert.True(t, decimal.NewFromInt(1150).Equal(resp.TVL))
	assert.Equal(t, domain.SortByROI, resp.SortBy)
	require.Len(t, resp.Entries, 2)
	// ROI: 0xc 50%, 0xa 10%, 0xb 5%
	assert.Equal(t, "0xc", resp.Entries[0].User)
	assert.Equal(t, 1, resp.Entries[0].Rank)
	assert.Equal(t, "0xa", resp.Entries[1].User)
}

func TestHandleLeaderboard_Filters(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?min_equity=80&min_roi=6&top=0", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 3, resp.TotalFollowers)
	assert.Equal(t, 1, resp.Matching)
	require.Len(t, resp.Entries, 1)
	assert.Equal(t, "0xa", resp.Entries[0].User)
}

func TestHandleLeaderboard_NonPositiveFilterDisabled(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?min_equity=0&min_roi=-5", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp leaderboardResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 3, resp.Matching)
}

func TestHandleLeaderboard_BadQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{name: "unknown sort", query: "sort=volume"},
		{name: "negative top", query: "top=-1"},
		{name: "non numeric top", query: "top=ten"},
		{name: "bad min equity", query: "min_equity=abc"},
		{name: "bad min roi", query: "min_roi=1e"},
	}

	s := newTestServer(&memorySnapshots{}, testVault())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?"+tt.query, nil)
			rec := httptest.NewRecorder()
			s.Handler().ServeHTTP(rec, req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleLeaderboard_NoData(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, staticVault{})

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/leaderboard", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleLeaderboard_MethodNotAllowed(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/leaderboard", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestHandleLeaderboard_CSV(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	req := httptest.NewRequest(http.MethodGet, "/api/leaderboard?format=csv&sort=equity&top=0", nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "leaderboard_20260301_120000.csv")

	rows, err := csv.NewReader(rec.Body).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, "Rank", rows[0][0])
	assert.Equal(t, []string{"1", "0xb", "1000.00", "25.00", "50.00", "5.00", "30"}, rows[1])
	assert.Equal(t, "0xc", rows[3][1])
}

func TestHandleHealth(t *testing.T) {
	store := &memorySnapshots{records: []domain.LeaderboardSnapshotRecord{{Index: 7}}}
	s := newTestServer(store, testVault())

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp struct {
		Status    string `json:"status"`
		LastIndex uint64 `json:"last_index"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, uint64(7), resp.LastIndex)
}

func streamFor(t *testing.T, s *Server, target string, header http.Header) string {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 80*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, target, nil).WithContext(ctx)
	for k, v := range header {
		req.Header[k] = v
	}
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	return rec.Body.String()
}

func snapshotRecord(index uint64, tvl int64) domain.LeaderboardSnapshotRecord {
	return domain.LeaderboardSnapshotRecord{
		Index: index,
		Snapshot: domain.LeaderboardSnapshot{
			Timestamp: time.Unix(int64(index), 0).UTC(),
			Vault:     domain.Vault{VaultAddress: domain.DefaultVaultAddress},
			TVL:       decimal.NewFromInt(tvl),
			SortBy:    domain.SortByAllTimePnl,
		},
	}
}

func TestLeaderboardStream_SendsSnapshots(t *testing.T) {
	store := &memorySnapshots{records: []domain.LeaderboardSnapshotRecord{
		snapshotRecord(1, 100),
		snapshotRecord(2, 200),
	}}
	s := newTestServer(store, testVault())

	body := streamFor(t, s, "/leaderboard/stream", nil)

	assert.Contains(t, body, "id: 1\nevent: leaderboard\n")
	assert.Contains(t, body, "id: 2\nevent: leaderboard\n")
	assert.Contains(t, body, `"tvl":"200"`)
	assert.NotContains(t, body, "event: no_data")
}

func TestLeaderboardStream_ResumesFromLastEventID(t *testing.T) {
	store := &memorySnapshots{records: []domain.LeaderboardSnapshotRecord{
		snapshotRecord(1, 100),
		snapshotRecord(2, 200),
		snapshotRecord(3, 300),
	}}
	s := newTestServer(store, testVault())

	body := streamFor(t, s, "/leaderboard/stream", http.Header{"Last-Event-Id": {"2"}})
	assert.NotContains(t, body, "id: 1\n")
	assert.NotContains(t, body, "id: 2\n")
	assert.Contains(t, body, "id: 3\n")

	body = streamFor(t, s, "/leaderboard/stream?last_event_id=1", nil)
	assert.NotContains(t, body, "id: 1\n")
	assert.Contains(t, body, "id: 2\n")
}

func TestLeaderboardStream_NoData(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, staticVault{})

	body := streamFor(t, s, "/leaderboard/stream", nil)
	assert.Contains(t, body, "event: no_data\ndata: {}\n\n")
}

func TestLeaderboardStream_PicksUpNewSnapshots(t *testing.T) {
	store := &memorySnapshots{}
	s := newTestServer(store, staticVault{})

	go func() {
		time.Sleep(20 * time.Millisecond)
		store.mu.Lock()
		store.records = append(store.records, snapshotRecord(1, 100))
		store.mu.Unlock()
	}()

	body := streamFor(t, s, "/leaderboard/stream", nil)
	assert.Contains(t, body, "event: no_data")
	assert.Contains(t, body, "id: 1\nevent: leaderboard\n")
}

func TestLeaderboardStream_NoStore(t *testing.T) {
	s := newTestServer(nil, testVault())
	s.Store = nil

	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/leaderboard/stream", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestStaticHandler_Gzip(t *testing.T) {
	s := newTestServer(&memorySnapshots{}, testVault())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "gzip", rec.Header().Get("Content-Encoding"))

	zr, err := gzip.NewReader(rec.Body)
	require.NoError(t, err)
	html, err := io.ReadAll(zr)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(html), "Vault follower leaderboard"))
}

func TestParseLastEventID(t *testing.T) {
	tests := []struct {
		name   string
		header string
		query  string
		want   uint64
	}{
		{name: "empty", want: 0},
		{name: "header", header: "12", want: 12},
		{name: "header wins", header: "12", query: "3", want: 12},
		{name: "query", query: " 3 ", want: 3},
		{name: "invalid", header: "abc", want: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLastEventID(tt.header, tt.query, zap.NewNop()))
		})
	}
}

func TestThinRecords(t *testing.T) {
	var records []domain.LeaderboardSnapshotRecord
	for i := uint64(1); i <= 500; i++ {
		records = append(records, domain.LeaderboardSnapshotRecord{Index: i})
	}

	thinned := thinRecords(records)

	require.Less(t, len(thinned), len(records))
	require.GreaterOrEqual(t, len(thinned), keepRecent)
	assert.Equal(t, records[len(records)-keepRecent:], thinned[len(thinned)-keepRecent:])
	for i := 1; i < len(thinned); i++ {
		assert.Less(t, thinned[i-1].Index, thinned[i].Index)
	}

	short := records[:10]
	assert.Equal(t, short, thinRecords(short))
}

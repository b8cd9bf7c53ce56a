package dashboard

import (
	"compress/gzip"
	"context"
	"crypto/tls"
	"embed"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/crypto/acme/autocert"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/internal/services/leaderboard"
)

const (
	snapshotPollInterval = 3 * time.Second
	heartbeatInterval    = 20 * time.Second

	defaultTop = 10
	maxTop     = 5000
)

//go:embed static
var staticFiles embed.FS

type snapshotReader interface {
	SnapshotsAfter(index uint64) ([]domain.LeaderboardSnapshotRecord, error)
	CurrentIndex() uint64
}

type vaultReader interface {
	Latest() (vault domain.Vault, updatedAt time.Time, ok bool)
}

// Server exposes HTTP endpoints serving the HTML UI, a JSON API and an SSE stream.
type Server struct {
	Addr   string
	Store  snapshotReader
	Latest vaultReader

	logger       *zap.Logger
	pollInterval time.Duration
	heartbeat    time.Duration
}

// NewServer creates a new web server instance.
func NewServer(addr string, store snapshotReader, latest vaultReader, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		Addr:         addr,
		Store:        store,
		Latest:       latest,
		logger:       logger,
		pollInterval: snapshotPollInterval,
		heartbeat:    heartbeatInterval,
	}
}

// Handler returns the routes of the dashboard.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/", s.staticHandler())
	mux.HandleFunc("/api/leaderboard", s.handleLeaderboard)
	mux.HandleFunc("/leaderboard/stream", s.handleLeaderboardStream)
	mux.HandleFunc("/healthz", s.handleHealth)
	return mux
}

// Start runs the HTTP server (blocking) and shuts it down when ctx is cancelled.
func (s *Server) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	server := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	s.logger.Info("dashboard listening", zap.String("addr", s.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// StartWithAutoTLS runs an HTTPS server with automatic TLS certificates via ACME.
// It also starts an HTTP server on port 80 to handle ACME HTTP-01 challenges.
func (s *Server) StartWithAutoTLS(ctx context.Context, domains []string, cacheDir string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if len(domains) == 0 {
		return errors.New("no domains provided for automatic TLS")
	}
	if cacheDir == "" {
		cacheDir = "cert-cache"
	}

	manager := &autocert.Manager{
		Prompt:     autocert.AcceptTOS,
		HostPolicy: autocert.HostWhitelist(domains...),
		Cache:      autocert.DirCache(cacheDir),
	}

	// HTTP server on port 80 for ACME challenges and HTTP->HTTPS redirects.
	httpSrv := &http.Server{
		Addr:              ":80",
		Handler:           manager.HTTPHandler(nil),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	tlsConfig := manager.TLSConfig()
	tlsConfig.MinVersion = tls.VersionTLS12

	httpsSrv := &http.Server{
		Addr:              s.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       120 * time.Second,
		TLSConfig:         tlsConfig,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("http (acme) server shutdown error", zap.Error(err))
		}
		if err := httpsSrv.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Warn("https server shutdown error", zap.Error(err))
		}
	}()

	go func() {
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("http (acme) server error", zap.Error(err))
		}
	}()

	s.logger.Info("dashboard listening with automatic TLS", zap.String("addr", s.Addr), zap.Strings("domains", domains))
	if err := httpsSrv.ListenAndServeTLS("", ""); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type leaderboardResponse struct {
	Vault          domain.Vault            `json:"vault"`
	UpdatedAt      time.Time               `json:"updated_at"`
	TotalFollowers int                     `json:"total_followers"`
	Matching       int                     `json:"matching"`
	TVL            decimal.Decimal         `json:"tvl"`
	SortBy         domain.SortKey          `json:"sort_by"`
	Entries        []domain.RankedFollower `json:"entries"`
}

// leaderboardQuery settings taken from the query string of /api/leaderboard.
type leaderboardQuery struct {
	sortBy domain.SortKey
	top    int
	filter leaderboard.Filter
	csv    bool
}

func parseLeaderboardQuery(r *http.Request) (leaderboardQuery, error) {
	q := r.URL.Query()
	out := leaderboardQuery{sortBy: domain.SortByAllTimePnl, top: defaultTop, csv: q.Get("format") == "csv"}

	if raw := q.Get("sort"); raw != "" {
		key, ok := domain.ParseSortKey(raw)
		if !ok {
			return out, errors.Errorf("invalid sort %q", raw)
		}
		out.sortBy = key
	}

	if raw := q.Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return out, errors.Errorf("invalid top %q", raw)
		}
		// 0 means every follower
		out.top = n
		if n > maxTop {
			out.top = maxTop
		}
	}

	var err error
	if out.filter.MinEquity, err = positiveDecimal(q.Get("min_equity")); err != nil {
		return out, errors.Wrap(err, "invalid min_equity")
	}
	if out.filter.MinROI, err = positiveDecimal(q.Get("min_roi")); err != nil {
		return out, errors.Wrap(err, "invalid min_roi")
	}

	return out, nil
}

// positiveDecimal parses an optional filter bound. Empty, zero and negative values disable it.
func positiveDecimal(raw string) (*decimal.Decimal, error) {
	if raw == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, err
	}
	if !d.IsPositive() {
		return nil, nil
	}
	return &d, nil
}

func (s *Server) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.Latest == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "leaderboard not available"})
		return
	}

	query, err := parseLeaderboardQuery(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	vault, updatedAt, ok := s.Latest.Latest()
	if !ok {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "no data yet"})
		return
	}

	ranked := leaderboard.Build(vault.Followers, query.sortBy, query.filter)
	resp := leaderboardResponse{
		Vault:          vault.Metadata(),
		UpdatedAt:      updatedAt,
		TotalFollowers: len(vault.Followers),
		Matching:       len(ranked),
		TVL:            leaderboard.TotalEquity(vault.Followers),
		SortBy:         query.sortBy,
		Entries:        leaderboard.Top(ranked, query.top),
	}

	if query.csv {
		s.writeCSV(w, resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) writeCSV(w http.ResponseWriter, resp leaderboardResponse) {
	filename := fmt.Sprintf("leaderboard_%s.csv", resp.UpdatedAt.UTC().Format("20060102_150405"))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"Rank", "User", "Equity", "Current PnL", "All-Time PnL", "ROI (%)", "Days"})
	for _, e := range resp.Entries {
		_ = cw.Write([]string{
			strconv.Itoa(e.Rank),
			e.User,
			e.VaultEquity.StringFixed(2),
			e.Pnl.StringFixed(2),
			e.AllTimePnl.StringFixed(2),
			e.ROI.StringFixed(2),
			strconv.Itoa(e.DaysFollowing),
		})
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		s.logger.Warn("csv write failed", zap.Error(err))
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	resp := struct {
		Status    string    `json:"status"`
		LastIndex uint64    `json:"last_index"`
		UpdatedAt time.Time `json:"updated_at,omitempty"`
	}{Status: "ok"}

	if s.Store != nil {
		resp.LastIndex = s.Store.CurrentIndex()
	}
	if s.Latest != nil {
		if _, at, ok := s.Latest.Latest(); ok {
			resp.UpdatedAt = at
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleLeaderboardStream(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprint(w, "snapshot store not available")
		return
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	// send a comment heartbeat so proxies keep connection
	heartbeat := time.NewTicker(s.heartbeat)
	defer heartbeat.Stop()

	pollTicker := time.NewTicker(s.pollInterval)
	defer pollTicker.Stop()

	lastIndex := parseLastEventID(r.Header.Get("Last-Event-ID"), r.URL.Query().Get("last_event_id"), s.logger)
	isFirstLoad := lastIndex == 0
	sendSnapshots := func() error {
		records, err := s.Store.SnapshotsAfter(lastIndex)
		if err != nil {
			return err
		}

		toSend := records
		if isFirstLoad && len(records) > keepRecent {
			toSend = thinRecords(records)
		}
		isFirstLoad = false

		for _, record := range toSend {
			payload, err := json.Marshal(record.Snapshot)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "id: %d\n", record.Index)
			fmt.Fprintf(w, "event: leaderboard\n")
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
			lastIndex = record.Index
		}
		return nil
	}

	if err := sendSnapshots(); err != nil {
		http.Error(w, "failed to load snapshots", http.StatusInternalServerError)
		s.logger.Error("leaderboard stream initial load", zap.Error(err))
		return
	}

	// tell the client there is nothing yet so it can leave the loading state
	if lastIndex == 0 {
		fmt.Fprintf(w, "event: no_data\n")
		fmt.Fprintf(w, "data: {}\n\n")
		flusher.Flush()
	}

	for {
		select {
		case <-r.Context().Done():
			return
		case <-heartbeat.C:
			fmt.Fprintf(w, ": ping\n\n")
			flusher.Flush()
		case <-pollTicker.C:
			if err := sendSnapshots(); err != nil {
				s.logger.Warn("leaderboard stream poll", zap.Error(err))
			}
		}
	}
}

func (s *Server) staticHandler() http.Handler {
	root, err := fs.Sub(staticFiles, "static")
	if err != nil {
		panic(err)
	}
	fileServer := http.FileServer(http.FS(root))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assetPath := r.URL.Path
		if assetPath == "" || assetPath == "/" {
			assetPath = "/index.html"
		}

		if !shouldCompress(assetPath) || !strings.Contains(r.Header.Get("Accept-Encoding"), "gzip") {
			fileServer.ServeHTTP(w, r)
			return
		}

		w.Header().Set("Content-Encoding", "gzip")
		w.Header().Set("Vary", "Accept-Encoding")

		gz := gzip.NewWriter(w)
		defer gz.Close()

		gzw := &gzipResponseWriter{ResponseWriter: w, writer: gz}
		fileServer.ServeHTTP(gzw, r)
	})
}

type gzipResponseWriter struct {
	http.ResponseWriter
	writer *gzip.Writer
}

func (w *gzipResponseWriter) WriteHeader(statusCode int) {
	w.Header().Del("Content-Length")
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *gzipResponseWriter) Write(b []byte) (int, error) {
	return w.writer.Write(b)
}

func shouldCompress(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if ext == "" {
		return true
	}
	switch ext {
	case ".html", ".css", ".js", ".json", ".svg", ".txt":
		return true
	default:
		return false
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// parseLastEventID extracts an SSE event ID from either the Last-Event-ID header or a query parameter.
// The header is preferred; the query parameter allows manual reconnects to resume from a known index.
func parseLastEventID(headerVal, queryVal string, logger *zap.Logger) uint64 {
	idStr := strings.TrimSpace(headerVal)
	if idStr == "" {
		idStr = strings.TrimSpace(queryVal)
	}
	if idStr == "" {
		return 0
	}

	id, err := strconv.ParseUint(idStr, 10, 64)
	if err != nil {
		logger.Debug("invalid last event id", zap.String("id", idStr), zap.Error(err))
		return 0
	}
	return id
}

const keepRecent = 100

// thinRecords keeps the last keepRecent records and exponentially thins older ones.
func thinRecords(records []domain.LeaderboardSnapshotRecord) []domain.LeaderboardSnapshotRecord {
	if len(records) <= keepRecent {
		return records
	}

	older := records[:len(records)-keepRecent]
	var thinned []domain.LeaderboardSnapshotRecord

	skip := 1
	for i := len(older) - 1; i >= 0; i-- {
		thinned = append([]domain.LeaderboardSnapshotRecord{older[i]}, thinned...)
		i -= skip
		// double skip every 12 records
		if (len(older)-1-i)%12 == 0 {
			skip *= 2
		}
	}

	return append(thinned, records[len(records)-keepRecent:]...)
}

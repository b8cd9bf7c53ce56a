package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/vadiminshakov/vaultboard/internal/domain"
	"github.com/vadiminshakov/vaultboard/pkg/retrier"
)

const (
	// DefaultInfoURL public mainnet info endpoint.
	DefaultInfoURL = "https://api.hyperliquid.xyz/info"

	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// ErrEmptyResponse is returned when the endpoint answers with JSON null.
var ErrEmptyResponse = errors.New("hyperliquid returned empty response")

// StatusError non-2xx answer from the info endpoint.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("hyperliquid info API returned status %d: %s", e.StatusCode, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= http.StatusInternalServerError
}

// HyperliquidClient talks to the public Hyperliquid info API with raw JSON payloads,
// so callers control every field of the request body.
type HyperliquidClient struct {
	infoURL    string
	httpClient *http.Client
	retrier    *retrier.Retrier
}

// Option configures the client.
type Option func(*HyperliquidClient)

// WithHTTPClient overrides the default HTTP client (10s timeout).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *HyperliquidClient) {
		c.httpClient = hc
	}
}

// WithRetrier retries transport failures, 429 and 5xx answers with the given backoff.
func WithRetrier(r *retrier.Retrier) Option {
	return func(c *HyperliquidClient) {
		c.retrier = r
	}
}

// NewHyperliquidClient creates a client for the given info endpoint URL.
func NewHyperliquidClient(infoURL string, opts ...Option) *HyperliquidClient {
	if infoURL == "" {
		infoURL = DefaultInfoURL
	}
	c := &HyperliquidClient{
		infoURL: infoURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsRetryable reports whether err is worth another attempt: transport errors, 429 and 5xx.
func IsRetryable(err error) bool {
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Temporary()
	}
	var decodeErr *decodeError
	if errors.As(err, &decodeErr) {
		return false
	}
	return !errors.Is(err, ErrEmptyResponse)
}

// VaultDetails fetches vault metadata and the (capped) follower list.
func (c *HyperliquidClient) VaultDetails(ctx context.Context, req domain.VaultDetailsRequest) (*domain.Vault, error) {
	if req.Type == "" {
		req.Type = domain.RequestTypeVaultDetails
	}

	var vault *domain.Vault
	if err := c.post(ctx, req, &vault); err != nil {
		return nil, err
	}
	if vault == nil {
		return nil, ErrEmptyResponse
	}
	return vault, nil
}

type userRequest struct {
	Type string `json:"type"`
	User string `json:"user"`
}

type portfolioData struct {
	AccountValueHistory [][]json.RawMessage `json:"accountValueHistory"`
	PnlHistory          [][]json.RawMessage `json:"pnlHistory"`
	Vlm                 decimal.Decimal     `json:"vlm"`
}

// UserPortfolio fetches per-period performance of a user.
// The endpoint answers with [["day", {...}], ["week", {...}], ...] tuples.
func (c *HyperliquidClient) UserPortfolio(ctx context.Context, user string) ([]domain.PortfolioPeriod, error) {
	var raw [][]json.RawMessage
	if err := c.post(ctx, userRequest{Type: "portfolio", User: user}, &raw); err != nil {
		return nil, err
	}

	periods := make([]domain.PortfolioPeriod, 0, len(raw))
	for _, tuple := range raw {
		if len(tuple) != 2 {
			continue
		}

		var period domain.PortfolioPeriod
		if err := json.Unmarshal(tuple[0], &period.Name); err != nil {
			return nil, &decodeError{errors.Wrap(err, "decode portfolio period name")}
		}

		var data portfolioData
		if err := json.Unmarshal(tuple[1], &data); err != nil {
			return nil, &decodeError{errors.Wrapf(err, "decode portfolio period %s", period.Name)}
		}
		period.Volume = data.Vlm

		if v, ok := lastHistoryValue(data.PnlHistory); ok {
			period.LatestPnl = v
			period.HasHistory = true
		}
		if v, ok := lastHistoryValue(data.AccountValueHistory); ok {
			period.LatestAccountValue = v
		}

		periods = append(periods, period)
	}

	return periods, nil
}

// UserVaultEquities fetches the vault deposits of a user.
func (c *HyperliquidClient) UserVaultEquities(ctx context.Context, user string) ([]domain.UserVaultEquity, error) {
	var equities []domain.UserVaultEquity
	if err := c.post(ctx, userRequest{Type: "userVaultEquities", User: user}, &equities); err != nil {
		return nil, err
	}
	return equities, nil
}

// lastHistoryValue returns the value of the last [timestamp, value] point.
func lastHistoryValue(history [][]json.RawMessage) (decimal.Decimal, bool) {
	if len(history) == 0 {
		return decimal.Zero, false
	}
	last := history[len(history)-1]
	if len(last) < 2 {
		return decimal.Zero, false
	}
	var v decimal.Decimal
	if err := json.Unmarshal(last[1], &v); err != nil {
		return decimal.Zero, false
	}
	return v, true
}

type decodeError struct {
	err error
}

func (e *decodeError) Error() string { return e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func (c *HyperliquidClient) post(ctx context.Context, payload any, out any) error {
	var (
		body []byte
		err  error
	)
	if c.retrier == nil {
		body, err = c.sendRequest(ctx, payload)
	} else {
		body, err = retrier.DoWithData(c.retrier, ctx, func(ctx context.Context) ([]byte, error) {
			return c.sendRequest(ctx, payload)
		})
	}
	if err != nil {
		return err
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &decodeError{errors.Wrap(err, "failed to unmarshal response")}
	}
	return nil
}

// sendRequest returns the body of a 2xx answer.
func (c *HyperliquidClient) sendRequest(ctx context.Context, payload any) ([]byte, error) {
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return nil, &decodeError{errors.Wrap(err, "failed to marshal request")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.infoURL, bytes.NewReader(jsonData))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create HTTP request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read response body")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(body)}
	}

	return body, nil
}

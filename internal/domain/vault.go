package domain

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// Vault metadata of a pooled trading account together with its followers.
type Vault struct {
	Name             string          `json:"name"`
	VaultAddress     string          `json:"vaultAddress"`
	Leader           string          `json:"leader"`
	Description      string          `json:"description,omitempty"`
	APR              float64         `json:"apr"`
	MaxWithdrawable  decimal.Decimal `json:"maxWithdrawable"`
	MaxDistributable decimal.Decimal `json:"maxDistributable"`
	LeaderCommission float64         `json:"leaderCommission"`
	LeaderFraction   float64         `json:"leaderFraction"`
	IsClosed         bool            `json:"isClosed"`
	AllowDeposits    bool            `json:"allowDeposits"`
	Followers        []Follower      `json:"followers,omitempty"`
}

// Metadata returns a copy of the vault without followers.
func (v Vault) Metadata() Vault {
	v.Followers = nil
	return v
}

// UnmarshalJSON decodes a vault. apr is accepted as a number or a numeric string; anything
// else leaves APR zero.
func (v *Vault) UnmarshalJSON(data []byte) error {
	type plain Vault
	aux := struct {
		*plain
		APR json.RawMessage `json:"apr"`
	}{plain: (*plain)(v)}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	v.APR = parseAPR(aux.APR)
	return nil
}

func parseAPR(raw json.RawMessage) float64 {
	s := strings.Trim(strings.TrimSpace(string(raw)), `"`)
	apr, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return apr
}

// VaultDetailsRequest body of the vaultDetails info request.
// Limit and Offset are speculative pagination hints the endpoint is not known to honour.
type VaultDetailsRequest struct {
	Type         string `json:"type"`
	VaultAddress string `json:"vaultAddress"`
	User         string `json:"user,omitempty"`
	Limit        *int   `json:"limit,omitempty"`
	Offset       *int   `json:"offset,omitempty"`
}

// RequestTypeVaultDetails info request type for vault details.
const RequestTypeVaultDetails = "vaultDetails"

// NewVaultDetailsRequest creates a request without pagination hints.
func NewVaultDetailsRequest(vaultAddress string) VaultDetailsRequest {
	return VaultDetailsRequest{Type: RequestTypeVaultDetails, VaultAddress: vaultAddress}
}

// HintKeys returns the names of the JSON keys the request carries, for logging.
func (r VaultDetailsRequest) HintKeys() []string {
	keys := []string{"type", "vaultAddress"}
	if r.User != "" {
		keys = append(keys, "user")
	}
	if r.Offset != nil {
		keys = append(keys, "offset")
	}
	if r.Limit != nil {
		keys = append(keys, "limit")
	}
	return keys
}

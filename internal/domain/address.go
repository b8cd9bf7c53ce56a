package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/pkg/errors"
)

// DefaultVaultAddress HLP vault on mainnet.
const DefaultVaultAddress = "0xdfc24b077bc1425ad1dea75bcb6f8158e10df303"

// NormalizeAddress validates a hex wallet/vault address and returns it lowercased with 0x prefix.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", errors.Errorf("invalid address %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}

// ShortAddress abbreviates an address for display, e.g. 0xdfc24b...0df303.
func ShortAddress(addr string) string {
	if len(addr) <= 16 {
		return addr
	}
	return addr[:8] + "..." + addr[len(addr)-6:]
}

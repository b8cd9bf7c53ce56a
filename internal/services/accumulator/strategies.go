package accumulator

import "github.com/vadiminshakov/vaultboard/internal/domain"

// requestStrategy shapes the vaultDetails request of one polling round.
type requestStrategy struct {
	name  string
	build func(vaultAddress string, round, batchSize int) domain.VaultDetailsRequest
}

// strategies are tried round-robin by round index. The endpoint caps followers at 100 per
// answer and documents no pagination, so none of these is known to work; append new shapes
// here if the remote contract changes.
var strategies = []requestStrategy{
	{
		name: "plain",
		build: func(vaultAddress string, _, _ int) domain.VaultDetailsRequest {
			return domain.NewVaultDetailsRequest(vaultAddress)
		},
	},
	{
		name: "limit",
		build: func(vaultAddress string, _, batchSize int) domain.VaultDetailsRequest {
			req := domain.NewVaultDetailsRequest(vaultAddress)
			req.Limit = intPtr(batchSize)
			return req
		},
	},
	{
		name: "offset_limit",
		build: func(vaultAddress string, round, batchSize int) domain.VaultDetailsRequest {
			req := domain.NewVaultDetailsRequest(vaultAddress)
			req.Offset = intPtr(round * batchSize)
			req.Limit = intPtr(batchSize)
			return req
		},
	},
}

func strategyFor(round int) requestStrategy {
	return strategies[round%len(strategies)]
}

func intPtr(v int) *int {
	return &v
}

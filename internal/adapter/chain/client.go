package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"

	"clarity-storefront/internal/core/ports"

	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
)

// Dial connects to the RPC endpoint and logs the chain it serves.
// The returned client backs the oracle, the purchase contract and the chain data reader.
func Dial(ctx context.Context, endpoint string, log zerolog.Logger) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("rpc endpoint required")
	}
	client, err := ethclient.DialContext(ctx, trimmed)
	if err != nil {
		return nil, fmt.Errorf("dial rpc: %w", err)
	}

	// The chain id is checked before every payment; here it is only logged.
	if id, err := client.ChainID(ctx); err != nil {
		log.Warn().Err(err).Msg("RPC endpoint did not report a chain id")
	} else {
		log.Info().Str("chain_id", id.String()).Msg("RPC endpoint connected")
	}
	return client, nil
}

// ChainIDBig converts a configured chain id for go-ethereum signers.
func ChainIDBig(id uint64) *big.Int {
	return new(big.Int).SetUint64(id)
}

// HealthCheck reports whether the RPC endpoint answers.
type HealthCheck struct {
	net ports.NetworkInspector
}

// NewHealthCheck creates an RPC health checker.
func NewHealthCheck(net ports.NetworkInspector) *HealthCheck {
	return &HealthCheck{net: net}
}

// Ping asks the endpoint for its chain id.
func (h *HealthCheck) Ping(ctx context.Context) error {
	_, err := h.net.ChainID(ctx)
	return err
}

// Name returns "rpc".
func (h *HealthCheck) Name() string {
	return "rpc"
}

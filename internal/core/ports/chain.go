package ports

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// NetworkInspector reports which chain the RPC endpoint serves.
type NetworkInspector interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// ChainReader is the read side of an RPC endpoint. *ethclient.Client satisfies it.
type ChainReader interface {
	NetworkInspector
	TransactionByHash(ctx context.Context, hash common.Hash) (tx *types.Transaction, isPending bool, err error)
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
}

// RoundData is the result of AggregatorV3Interface.latestRoundData.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       *big.Int
	UpdatedAt       *big.Int
	AnsweredInRound *big.Int
}

// PriceOracle reads a Chainlink-style ETH/USD aggregator.
type PriceOracle interface {
	Decimals(ctx context.Context) (uint8, error)
	LatestRoundData(ctx context.Context) (*RoundData, error)
}

// WalletSigner is the buyer's wallet: it owns an address and signs on its behalf.
type WalletSigner interface {
	Address() common.Address
	// SignMessage signs msg as an EIP-191 personal message. V is 27 or 28.
	SignMessage(ctx context.Context, msg []byte) ([]byte, error)
	SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// PaymentContract submits purchases to the on-chain payment contract.
type PaymentContract interface {
	// Purchase sends purchase(merchant, signature) with value wei, signed by wallet.
	Purchase(ctx context.Context, wallet WalletSigner, merchant common.Address, signature []byte, value *big.Int) (common.Hash, error)
	// WaitReceipt blocks until the transaction is mined or ctx is done.
	WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error)
}

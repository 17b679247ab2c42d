package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"clarity-storefront/internal/core/ports"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// Backend is the part of the RPC API needed to send a transaction and watch it land.
// *ethclient.Client satisfies it.
type Backend interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// PurchaseContract implements ports.PaymentContract.
type PurchaseContract struct {
	backend      Backend
	address      common.Address
	chainID      *big.Int
	pollInterval time.Duration
	log          zerolog.Logger
}

// NewPurchaseContract creates a client for the purchase contract at address.
func NewPurchaseContract(backend Backend, address common.Address, chainID uint64, pollInterval time.Duration, log zerolog.Logger) *PurchaseContract {
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	return &PurchaseContract{
		backend:      backend,
		address:      address,
		chainID:      ChainIDBig(chainID),
		pollInterval: pollInterval,
		log:          log,
	}
}

// Purchase builds a dynamic-fee call to purchase(merchant, signature) carrying value,
// has the wallet sign it, and broadcasts it.
func (c *PurchaseContract) Purchase(ctx context.Context, wallet ports.WalletSigner, merchant common.Address, signature []byte, value *big.Int) (common.Hash, error) {
	data, err := purchaseABI.Pack("purchase", merchant, signature)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pack purchase: %w", err)
	}
	from := wallet.Address()

	nonce, err := c.backend.PendingNonceAt(ctx, from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("pending nonce: %w", err)
	}
	tip, err := c.backend.SuggestGasTipCap(ctx)
	if err != nil {
		return common.Hash{}, fmt.Errorf("suggest gas tip: %w", err)
	}
	head, err := c.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("latest header: %w", err)
	}
	if head.BaseFee == nil {
		return common.Hash{}, errors.New("chain does not support dynamic fee transactions")
	}
	// Room for the base fee to double before the transaction is priced out.
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))

	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  from,
		To:    &c.address,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("estimate gas: %w", err)
	}
	gas += gas / 5

	tx := types.NewTx(&types.DynamicFeeTx{
		ChainID:   c.chainID,
		Nonce:     nonce,
		GasTipCap: tip,
		GasFeeCap: feeCap,
		Gas:       gas,
		To:        &c.address,
		Value:     value,
		Data:      data,
	})
	signed, err := wallet.SignTx(ctx, tx, c.chainID)
	if err != nil {
		return common.Hash{}, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("send transaction: %w", err)
	}

	c.log.Info().
		Str("tx_hash", signed.Hash().Hex()).
		Str("from", from.Hex()).
		Str("merchant", merchant.Hex()).
		Str("value_wei", value.String()).
		Uint64("nonce", nonce).
		Uint64("gas", gas).
		Msg("Purchase transaction broadcast")

	return signed.Hash(), nil
}

// WaitReceipt polls for the receipt until it appears or ctx is done.
func (c *PurchaseContract) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("fetch receipt: %w", err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

package service

import (
	"context"
	"errors"
	"fmt"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// ChainDataServiceImpl implements ports.ChainDataService.
type ChainDataServiceImpl struct {
	reader ports.ChainReader
	log    zerolog.Logger
}

// NewChainDataService creates a new ChainDataServiceImpl.
func NewChainDataService(reader ports.ChainReader, log zerolog.Logger) *ChainDataServiceImpl {
	return &ChainDataServiceImpl{reader: reader, log: log}
}

// Fetch reads the transaction, its receipt and its block once each. Any of the
// three missing means CHAIN_002; there is no retry.
func (s *ChainDataServiceImpl) Fetch(ctx context.Context, txHash string) (*domain.TransactionReceipt, error) {
	raw, err := hexutil.Decode(txHash)
	if err != nil || len(raw) != common.HashLength {
		return nil, apperror.Validation("tx_hash must be a 0x-prefixed 32-byte hex string")
	}
	hash := common.BytesToHash(raw)

	tx, _, err := s.reader.TransactionByHash(ctx, hash)
	if err != nil {
		return nil, s.lookupError(hash, "transaction", err)
	}
	receipt, err := s.reader.TransactionReceipt(ctx, hash)
	if err != nil {
		return nil, s.lookupError(hash, "receipt", err)
	}
	if receipt.BlockNumber == nil {
		return nil, apperror.ErrTransactionNotFound(hash.Hex())
	}
	header, err := s.reader.HeaderByNumber(ctx, receipt.BlockNumber)
	if err != nil {
		return nil, s.lookupError(hash, "block", err)
	}

	out := &domain.TransactionReceipt{
		Hash:        hash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		Timestamp:   header.Time,
		Value:       domain.WeiToEth(tx.Value()).String(),
		Status:      domain.ReceiptStatusFromCode(receipt.Status),
	}
	if to := tx.To(); to != nil {
		out.To = to.Hex()
	}
	if from, err := senderOf(tx); err != nil {
		s.log.Warn().Err(err).Str("tx_hash", hash.Hex()).Msg("Could not recover transaction sender")
	} else {
		out.From = from.Hex()
	}

	return out, nil
}

func (s *ChainDataServiceImpl) lookupError(hash common.Hash, what string, err error) error {
	if errors.Is(err, ethereum.NotFound) {
		return apperror.ErrTransactionNotFound(hash.Hex())
	}
	return apperror.ErrChainUnavailable(fmt.Errorf("fetch %s %s: %w", what, hash.Hex(), err))
}

func senderOf(tx *types.Transaction) (common.Address, error) {
	chainID := tx.ChainId()
	if chainID != nil && chainID.Sign() == 0 {
		chainID = nil
	}
	return types.Sender(types.LatestSignerForChainID(chainID), tx)
}

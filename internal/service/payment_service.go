package service

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/rs/zerolog"
)

// PaymentServiceImpl implements ports.PaymentService: sign the purchase message,
// send purchase() with the ETH value, wait for the receipt.
type PaymentServiceImpl struct {
	wallet         ports.WalletSigner
	contract       ports.PaymentContract
	network        ports.NetworkInspector
	chainID        uint64
	receiptTimeout time.Duration
	log            zerolog.Logger
}

// NewPaymentService creates a new PaymentServiceImpl. A nil wallet means no wallet
// is connected and every payment fails with WALLET_001.
func NewPaymentService(
	wallet ports.WalletSigner,
	contract ports.PaymentContract,
	network ports.NetworkInspector,
	chainID uint64,
	receiptTimeout time.Duration,
	log zerolog.Logger,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		wallet:         wallet,
		contract:       contract,
		network:        network,
		chainID:        chainID,
		receiptTimeout: receiptTimeout,
		log:            log,
	}
}

// BuyerAddress returns the checksummed address of the connected wallet.
func (s *PaymentServiceImpl) BuyerAddress() (string, error) {
	if s.wallet == nil {
		return "", apperror.ErrNoWalletProvider()
	}
	return s.wallet.Address().Hex(), nil
}

// Pay submits the purchase for intent and blocks until it is mined or the receipt
// timeout passes. Nothing is retried.
func (s *PaymentServiceImpl) Pay(ctx context.Context, intent domain.PurchaseIntent) (*ports.PaymentResult, error) {
	if s.wallet == nil {
		return nil, apperror.ErrNoWalletProvider()
	}
	buyer := s.wallet.Address()
	if intent.Buyer != "" && !strings.EqualFold(intent.Buyer, buyer.Hex()) {
		return nil, apperror.Validation("buyer does not match the connected wallet")
	}
	if !common.IsHexAddress(intent.Merchant) {
		return nil, apperror.Validation("invalid merchant address")
	}
	merchant := common.HexToAddress(intent.Merchant)

	wei := domain.EthToWei(intent.EthTotal.Round(domain.EthDecimals))
	if wei.Sign() <= 0 {
		return nil, apperror.ErrInvalidAmount()
	}

	if err := verifyChain(ctx, s.network, s.chainID); err != nil {
		return nil, asAppError(err, apperror.ErrChainUnavailable)
	}

	msgHash := PurchaseMessageHash(buyer, merchant, wei, new(big.Int).SetUint64(s.chainID))
	signature, err := s.wallet.SignMessage(ctx, msgHash.Bytes())
	if err != nil {
		return nil, classifyWalletError(fmt.Errorf("sign purchase message: %w", err))
	}

	txHash, err := s.contract.Purchase(ctx, s.wallet, merchant, signature, wei)
	if err != nil {
		return nil, classifyWalletError(fmt.Errorf("send purchase: %w", err))
	}

	s.log.Info().
		Str("tx_hash", txHash.Hex()).
		Str("buyer", buyer.Hex()).
		Str("merchant", merchant.Hex()).
		Str("wei", wei.String()).
		Msg("Purchase transaction submitted")

	waitCtx, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()

	receipt, err := s.contract.WaitReceipt(waitCtx, txHash)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperror.ErrReceiptTimeout(txHash.Hex())
		}
		return nil, apperror.ErrPaymentFailed(fmt.Errorf("wait receipt %s: %w", txHash.Hex(), err))
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, apperror.ErrPaymentReverted(txHash.Hex())
	}

	result := &ports.PaymentResult{TxHash: txHash.Hex()}
	if receipt.BlockNumber != nil {
		result.BlockNumber = receipt.BlockNumber.Uint64()
	}
	return result, nil
}

// classifyWalletError maps wallet and RPC failures onto the payment error codes.
func classifyWalletError(err error) error {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "user rejected"), strings.Contains(msg, "user denied"):
		return apperror.ErrUserRejected()
	case strings.Contains(msg, "insufficient funds"):
		return apperror.ErrInsufficientFunds()
	}
	return apperror.ErrPaymentFailed(err)
}

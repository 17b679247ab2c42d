package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// KeySigner implements ports.WalletSigner with a locally held secp256k1 key.
type KeySigner struct {
	key     *ecdsa.PrivateKey
	address common.Address
}

// NewKeySigner parses a hex private key, with or without the 0x prefix.
func NewKeySigner(hexKey string) (*KeySigner, error) {
	material := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if material == "" {
		return nil, fmt.Errorf("wallet private key not set")
	}
	key, err := crypto.HexToECDSA(material)
	if err != nil {
		return nil, fmt.Errorf("invalid wallet private key: %w", err)
	}
	return &KeySigner{key: key, address: crypto.PubkeyToAddress(key.PublicKey)}, nil
}

// Address returns the wallet address.
func (s *KeySigner) Address() common.Address {
	return s.address
}

// SignMessage produces an EIP-191 personal_sign signature with V in {27, 28},
// which is what ecrecover-based contracts expect.
func (s *KeySigner) SignMessage(ctx context.Context, msg []byte) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	sig, err := crypto.Sign(accounts.TextHash(msg), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign message: %w", err)
	}
	sig[crypto.RecoveryIDOffset] += 27
	return sig, nil
}

// SignTx signs tx for chainID with the latest signer rules.
func (s *KeySigner) SignTx(ctx context.Context, tx *types.Transaction, chainID *big.Int) (*types.Transaction, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}
	signed, err := types.SignTx(tx, types.LatestSignerForChainID(chainID), s.key)
	if err != nil {
		return nil, fmt.Errorf("sign transaction: %w", err)
	}
	return signed, nil
}

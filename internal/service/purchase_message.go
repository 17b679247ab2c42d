package service

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// PurchaseMessageHash binds a payment to its parties, amount and chain:
// keccak256(buyer ‖ merchant ‖ uint256(wei) ‖ uint256(chainID)), tightly packed.
// The field order and widths are the contract's wire format; changing them
// invalidates every signature the contract would accept.
func PurchaseMessageHash(buyer, merchant common.Address, wei, chainID *big.Int) common.Hash {
	return crypto.Keccak256Hash(
		buyer.Bytes(),
		merchant.Bytes(),
		common.LeftPadBytes(wei.Bytes(), 32),
		common.LeftPadBytes(chainID.Bytes(), 32),
	)
}

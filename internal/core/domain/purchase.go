package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

const (
	UsdDecimals = 2
	EthDecimals = 6
	weiDecimals = 18
)

// PurchaseIntent binds buyer, merchant and amounts for one checkout.
// It is built at checkout time and never persisted on its own.
type PurchaseIntent struct {
	Buyer    string          `json:"buyer"`
	Merchant string          `json:"merchant"`
	UsdTotal decimal.Decimal `json:"usd_total"`
	EthTotal decimal.Decimal `json:"eth_total"`
	Items    []string        `json:"items"`
}

// EthToWei converts an ETH amount to wei, truncating anything below one wei.
func EthToWei(eth decimal.Decimal) *big.Int {
	return eth.Shift(weiDecimals).Truncate(0).BigInt()
}

// WeiToEth converts wei to ETH.
func WeiToEth(wei *big.Int) decimal.Decimal {
	if wei == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(wei, -weiDecimals)
}

// Attestation builds the loyalty record written once the payment for p is confirmed.
func (p PurchaseIntent) Attestation(txHash string, at time.Time, pointsPerUSD decimal.Decimal) AttestationData {
	items := make([]string, len(p.Items))
	copy(items, p.Items)
	return AttestationData{
		Buyer:           p.Buyer,
		Merchant:        p.Merchant,
		Eth:             p.EthTotal.StringFixed(EthDecimals),
		Usd:             p.UsdTotal.StringFixed(UsdDecimals),
		Items:           items,
		Time:            uint64(at.Unix()),
		Points:          LoyaltyPoints(p.UsdTotal, pointsPerUSD).StringFixed(UsdDecimals),
		TransactionType: TransactionTypePurchase,
		TxHash:          txHash,
	}
}

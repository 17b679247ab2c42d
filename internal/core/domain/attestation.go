package domain

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
)

// TransactionType classifies a loyalty attestation.
type TransactionType string

const (
	TransactionTypePurchase TransactionType = "purchase"
	TransactionTypeRefund   TransactionType = "refund"
	TransactionTypeExchange TransactionType = "exchange"
)

// IsValid reports whether t is a known transaction type.
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypePurchase, TransactionTypeRefund, TransactionTypeExchange:
		return true
	}
	return false
}

// SchemaField is one typed column of an attestation schema.
type SchemaField struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

// Schema is an attestation schema as registered on the network.
type Schema struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Fields      []SchemaField `json:"data"`
}

// PurchaseSchemaFields is the field layout every loyalty attestation is written with.
// Order matters: it is the ABI tuple order of the encoded payload.
var PurchaseSchemaFields = []SchemaField{
	{Name: "buyer", Type: "address"},
	{Name: "merchant", Type: "address"},
	{Name: "eth", Type: "string"},
	{Name: "usd", Type: "string"},
	{Name: "items", Type: "string[]"},
	{Name: "time", Type: "uint256"},
	{Name: "points", Type: "string"},
	{Name: "transactiontype", Type: "string"},
	{Name: "txHash", Type: "string"},
}

// MatchesPurchaseSchema reports whether fields has the same names and types, in order.
func MatchesPurchaseSchema(fields []SchemaField) bool {
	if len(fields) != len(PurchaseSchemaFields) {
		return false
	}
	for i, f := range fields {
		want := PurchaseSchemaFields[i]
		if f.Name != want.Name || f.Type != want.Type {
			return false
		}
	}
	return true
}

// AttestationData is the decoded payload of a loyalty attestation.
type AttestationData struct {
	Buyer           string          `json:"buyer"`
	Merchant        string          `json:"merchant"`
	Eth             string          `json:"eth"`
	Usd             string          `json:"usd"`
	Items           []string        `json:"items"`
	Time            uint64          `json:"time"` // unix seconds
	Points          string          `json:"points"`
	TransactionType TransactionType `json:"transactiontype"`
	TxHash          string          `json:"txHash"`
}

// IndexingValue is the lookup key the record is stored under.
func (d AttestationData) IndexingValue() string {
	return strings.ToLower(d.Buyer)
}

// Validate checks the fields the network would otherwise reject.
func (d AttestationData) Validate() error {
	var errs []error
	if !common.IsHexAddress(d.Buyer) {
		errs = append(errs, fmt.Errorf("buyer %q is not an address", d.Buyer))
	}
	if !common.IsHexAddress(d.Merchant) {
		errs = append(errs, fmt.Errorf("merchant %q is not an address", d.Merchant))
	}
	for name, v := range map[string]string{"eth": d.Eth, "usd": d.Usd, "points": d.Points} {
		if _, err := decimal.NewFromString(v); err != nil {
			errs = append(errs, fmt.Errorf("%s %q is not a decimal", name, v))
		}
	}
	if !d.TransactionType.IsValid() {
		errs = append(errs, fmt.Errorf("unknown transaction type %q", d.TransactionType))
	}
	return errors.Join(errs...)
}

// AttestationRecord is an attestation as listed by the index service.
// Decoded is nil when the payload could not be decoded; DecodeError then says why.
type AttestationRecord struct {
	ID              string           `json:"id"`
	SchemaID        string           `json:"schema_id"`
	Attester        string           `json:"attester"`
	ValidUntil      string           `json:"valid_until"`
	AttestTimestamp string           `json:"attest_timestamp"`
	Revoked         bool             `json:"revoked"`
	Data            string           `json:"data"`
	Decoded         *AttestationData `json:"decoded_data,omitempty"`
	DecodeError     string           `json:"decode_error,omitempty"`
}

// LoyaltyStats aggregates a buyer's decoded attestations.
type LoyaltyStats struct {
	TotalPoints    decimal.Decimal `json:"total_points"`
	TotalPurchases int             `json:"total_purchases"`
	TotalUsdSpent  decimal.Decimal `json:"total_usd_spent"`
}

// ComputeStats folds over the records that decoded. Unparseable amounts count as zero.
func ComputeStats(records []AttestationRecord) LoyaltyStats {
	stats := LoyaltyStats{TotalPoints: decimal.Zero, TotalUsdSpent: decimal.Zero}
	for _, r := range records {
		if r.Decoded == nil {
			continue
		}
		stats.TotalPoints = stats.TotalPoints.Add(parseAmount(r.Decoded.Points))
		stats.TotalUsdSpent = stats.TotalUsdSpent.Add(parseAmount(r.Decoded.Usd))
		stats.TotalPurchases++
	}
	return stats
}

func parseAmount(s string) decimal.Decimal {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero
	}
	return d
}

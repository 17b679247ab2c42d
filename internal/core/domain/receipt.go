package domain

// ReceiptStatus is the outcome of a mined transaction.
type ReceiptStatus string

const (
	ReceiptStatusSuccess ReceiptStatus = "success"
	ReceiptStatusFailed  ReceiptStatus = "failed"
)

// ReceiptStatusFromCode maps an EVM receipt status: 1 is success, anything else failed.
func ReceiptStatusFromCode(code uint64) ReceiptStatus {
	if code == 1 {
		return ReceiptStatusSuccess
	}
	return ReceiptStatusFailed
}

// TransactionReceipt is the on-chain summary of a payment, fetched once after confirmation.
type TransactionReceipt struct {
	Hash        string        `json:"hash"`
	BlockNumber uint64        `json:"block_number"`
	Timestamp   uint64        `json:"timestamp"` // unix seconds
	From        string        `json:"from"`
	To          string        `json:"to"`
	Value       string        `json:"value"` // ETH
	Status      ReceiptStatus `json:"status"`
}

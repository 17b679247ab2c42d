package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CheckoutState is a step of the checkout pipeline.
type CheckoutState string

const (
	CheckoutStateIdle                CheckoutState = "IDLE"
	CheckoutStateProcessing          CheckoutState = "PROCESSING"
	CheckoutStateConfirmed           CheckoutState = "CONFIRMED"
	CheckoutStateFetchingChainData   CheckoutState = "FETCHING_CHAIN_DATA"
	CheckoutStateCreatingAttestation CheckoutState = "CREATING_ATTESTATION"
	CheckoutStateDone                CheckoutState = "DONE"
	CheckoutStateError               CheckoutState = "ERROR"
)

// FetchingChainData may jump to Done: without on-chain data there is nothing to attest.
var checkoutTransitions = map[CheckoutState][]CheckoutState{
	CheckoutStateIdle:                {CheckoutStateProcessing, CheckoutStateError},
	CheckoutStateProcessing:          {CheckoutStateConfirmed, CheckoutStateError},
	CheckoutStateConfirmed:           {CheckoutStateFetchingChainData, CheckoutStateError},
	CheckoutStateFetchingChainData:   {CheckoutStateCreatingAttestation, CheckoutStateDone, CheckoutStateError},
	CheckoutStateCreatingAttestation: {CheckoutStateDone, CheckoutStateError},
}

// CanTransitionTo reports whether next directly follows s.
func (s CheckoutState) CanTransitionTo(next CheckoutState) bool {
	for _, allowed := range checkoutTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// IsTerminal returns true for Done and Error.
func (s CheckoutState) IsTerminal() bool {
	return s == CheckoutStateDone || s == CheckoutStateError
}

// IsPaid returns true once the payment has been confirmed on chain.
func (s CheckoutState) IsPaid() bool {
	switch s {
	case CheckoutStateConfirmed, CheckoutStateFetchingChainData,
		CheckoutStateCreatingAttestation, CheckoutStateDone:
		return true
	}
	return false
}

// CheckoutSession records one run of the checkout pipeline.
type CheckoutSession struct {
	ID            uuid.UUID           `json:"id"`
	SessionID     uuid.UUID           `json:"session_id"`
	State         CheckoutState       `json:"state"`
	Buyer         string              `json:"buyer,omitempty"`
	Merchant      string              `json:"merchant"`
	UsdTotal      decimal.Decimal     `json:"usd_total"`
	EthTotal      decimal.Decimal     `json:"eth_total"`
	EthUsdPrice   decimal.Decimal     `json:"eth_usd_price"`
	Items         []string            `json:"items"`
	TxHash        string              `json:"tx_hash,omitempty"`
	Receipt       *TransactionReceipt `json:"receipt,omitempty"`
	AttestationID string              `json:"attestation_id,omitempty"`
	Warnings      []string            `json:"warnings,omitempty"`
	ErrorCode     string              `json:"error_code,omitempty"`
	ErrorMessage  string              `json:"error_message,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	UpdatedAt     time.Time           `json:"updated_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// NewCheckoutSession starts a run in the Idle state.
func NewCheckoutSession(sessionID uuid.UUID, merchant string, now time.Time) *CheckoutSession {
	return &CheckoutSession{
		ID:        uuid.New(),
		SessionID: sessionID,
		State:     CheckoutStateIdle,
		Merchant:  merchant,
		Items:     []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Advance moves the session to next. It returns false and leaves the session
// untouched when the transition is not allowed.
func (c *CheckoutSession) Advance(next CheckoutState, now time.Time) bool {
	if !c.State.CanTransitionTo(next) {
		return false
	}
	c.State = next
	c.UpdatedAt = now
	if next.IsTerminal() {
		c.CompletedAt = &now
	}
	return true
}

// Fail moves the session to Error and records the cause.
func (c *CheckoutSession) Fail(code, message string, now time.Time) bool {
	if !c.Advance(CheckoutStateError, now) {
		return false
	}
	c.ErrorCode = code
	c.ErrorMessage = message
	return true
}

// Warn records a non-fatal problem in a post-payment step.
func (c *CheckoutSession) Warn(msg string) {
	c.Warnings = append(c.Warnings, msg)
}

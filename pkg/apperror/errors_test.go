package apperror

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAppError_Error(t *testing.T) {
	tests := []struct {
		name     string
		appErr   *AppError
		expected string
	}{
		{
			name:     "without wrapped error",
			appErr:   New("PAY_001", "Insufficient funds", http.StatusPaymentRequired),
			expected: "[PAY_001] Insufficient funds",
		},
		{
			name:     "with wrapped error",
			appErr:   Wrap("SYS_001", "DB error", http.StatusInternalServerError, fmt.Errorf("connection refused")),
			expected: "[SYS_001] DB error: connection refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.appErr.Error())
		})
	}
}

func TestAppError_Unwrap(t *testing.T) {
	inner := fmt.Errorf("inner error")
	appErr := Wrap("SYS_001", "wrapped", http.StatusInternalServerError, inner)
	assert.True(t, errors.Is(appErr, inner))
}

func TestAppError_IsMatchesByCode(t *testing.T) {
	wrapped := fmt.Errorf("submit: %w", ErrUserRejected())
	assert.True(t, errors.Is(wrapped, ErrUserRejected()))
	assert.False(t, errors.Is(wrapped, ErrInsufficientFunds()))

	var appErr *AppError
	assert.True(t, errors.As(wrapped, &appErr))
	assert.Equal(t, "WALLET_002", appErr.Code)
}

func TestCheckoutFlowErrors(t *testing.T) {
	inner := errors.New("boom")
	tests := []struct {
		name       string
		err        *AppError
		code       string
		httpStatus int
	}{
		{"ProductNotFound", ErrProductNotFound(), "CART_001", 404},
		{"EmptyCart", ErrEmptyCart(), "CART_002", 400},
		{"OracleUnavailable", ErrOracleUnavailable(inner), "PRICE_001", 503},
		{"WrongNetwork", ErrWrongNetwork(11155111, 1), "CHAIN_001", 409},
		{"TransactionNotFound", ErrTransactionNotFound("0xabc"), "CHAIN_002", 404},
		{"NoWalletProvider", ErrNoWalletProvider(), "WALLET_001", 412},
		{"UserRejected", ErrUserRejected(), "WALLET_002", 400},
		{"InsufficientFunds", ErrInsufficientFunds(), "PAY_001", 402},
		{"InvalidAmount", ErrInvalidAmount(), "PAY_002", 400},
		{"ReceiptTimeout", ErrReceiptTimeout("0xabc"), "PAY_003", 504},
		{"PaymentFailed", ErrPaymentFailed(inner), "PAY_004", 502},
		{"PaymentReverted", ErrPaymentReverted("0xabc"), "PAY_005", 422},
		{"AttestationCreateFailed", ErrAttestationCreateFailed(inner), "ATT_001", 502},
		{"AttestationQueryFailed", ErrAttestationQueryFailed(inner), "ATT_002", 502},
		{"SchemaNotFound", ErrSchemaNotFound("0xb994"), "ATT_003", 404},
		{"CheckoutInProgress", ErrCheckoutInProgress(), "CHK_001", 409},
		{"InvalidToken", ErrInvalidToken(), "AUTH_001", 401},
		{"RateLimit", ErrRateLimitExceeded(), "RATE_001", 429},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, tt.err.Code)
			assert.Equal(t, tt.httpStatus, tt.err.HTTPStatus)
		})
	}
}

func TestWrongNetwork_MessageIsActionable(t *testing.T) {
	err := ErrWrongNetwork(11155111, 1)
	assert.Contains(t, err.Message, "switch to chain 11155111")
	assert.Contains(t, err.Message, "chain 1,")
}

func TestSystemErrors(t *testing.T) {
	inner := fmt.Errorf("pg: connection closed")
	dbErr := ErrDatabaseError(inner)
	assert.Equal(t, "SYS_001", dbErr.Code)
	assert.Equal(t, 500, dbErr.HTTPStatus)
	assert.True(t, errors.Is(dbErr, inner))

	internal := InternalError(inner)
	assert.Equal(t, "SYS_001", internal.Code)
	assert.Equal(t, "Internal server error", internal.Message)
}

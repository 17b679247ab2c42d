package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another *AppError by code, so errors.Is(err, apperror.ErrUserRejected())
// works across separately constructed values.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Cart (CART) ----

func ErrProductNotFound() *AppError {
	return New("CART_001", "Product not found", http.StatusNotFound)
}

func ErrEmptyCart() *AppError {
	return New("CART_002", "Cart is empty", http.StatusBadRequest)
}

// ---- Price oracle (PRICE) ----

func ErrOracleUnavailable(err error) *AppError {
	return Wrap("PRICE_001", "Price oracle unavailable, please try again", http.StatusServiceUnavailable, err)
}

// ---- Network & chain data (CHAIN) ----

func ErrWrongNetwork(expected, actual uint64) *AppError {
	return New("CHAIN_001",
		fmt.Sprintf("Wrong network: connected to chain %d, switch to chain %d", actual, expected),
		http.StatusConflict)
}

func ErrTransactionNotFound(hash string) *AppError {
	return New("CHAIN_002", fmt.Sprintf("Transaction %s not found", hash), http.StatusNotFound)
}

func ErrChainUnavailable(err error) *AppError {
	return Wrap("CHAIN_003", "Chain RPC unavailable", http.StatusBadGateway, err)
}

// ---- Wallet (WALLET) ----

func ErrNoWalletProvider() *AppError {
	return New("WALLET_001", "No wallet configured, connect a wallet first", http.StatusPreconditionFailed)
}

func ErrUserRejected() *AppError {
	return New("WALLET_002", "User rejected the request", http.StatusBadRequest)
}

// ---- Payment (PAY) ----

func ErrInsufficientFunds() *AppError {
	return New("PAY_001", "Insufficient funds for transaction", http.StatusPaymentRequired)
}

func ErrInvalidAmount() *AppError {
	return New("PAY_002", "Invalid amount", http.StatusBadRequest)
}

func ErrReceiptTimeout(hash string) *AppError {
	return New("PAY_003", fmt.Sprintf("Transaction %s was submitted but not confirmed in time", hash), http.StatusGatewayTimeout)
}

func ErrPaymentFailed(err error) *AppError {
	return Wrap("PAY_004", "Failed to complete purchase, please try again", http.StatusBadGateway, err)
}

func ErrPaymentReverted(hash string) *AppError {
	return New("PAY_005", fmt.Sprintf("Payment transaction %s reverted", hash), http.StatusUnprocessableEntity)
}

// ---- Attestation (ATT) ----

func ErrAttestationCreateFailed(err error) *AppError {
	return Wrap("ATT_001", "Failed to create attestation", http.StatusBadGateway, err)
}

func ErrAttestationQueryFailed(err error) *AppError {
	return Wrap("ATT_002", "Failed to fetch attestations, please try again later", http.StatusBadGateway, err)
}

func ErrSchemaNotFound(schemaID string) *AppError {
	return New("ATT_003", fmt.Sprintf("Schema %s not found", schemaID), http.StatusNotFound)
}

func ErrAttestationNotFound(id string) *AppError {
	return New("ATT_004", fmt.Sprintf("Attestation %s not found", id), http.StatusNotFound)
}

// ---- Checkout (CHK) ----

func ErrCheckoutInProgress() *AppError {
	return New("CHK_001", "Checkout already in progress", http.StatusConflict)
}

func ErrCheckoutNotFound() *AppError {
	return New("CHK_002", "Checkout not found", http.StatusNotFound)
}

// ---- Session (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_001", "Invalid or expired session token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}

// Validation returns a VAL_001 validation error.
func Validation(message string) *AppError {
	return New("VAL_001", message, http.StatusBadRequest)
}

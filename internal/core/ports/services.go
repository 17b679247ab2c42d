package ports

import (
	"context"
	"time"

	"clarity-storefront/internal/core/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TokenService issues and validates session tokens.
type TokenService interface {
	Generate(sessionID uuid.UUID) (string, time.Time, error)
	Validate(tokenString string) (*TokenClaims, error)
}

// TokenClaims holds the parsed session claims.
type TokenClaims struct {
	SessionID uuid.UUID
}

// --- Service Ports (Business Logic) ---

// CartService owns the per-session cart.
type CartService interface {
	GetCart(ctx context.Context, sessionID uuid.UUID) (*domain.Cart, error)
	AddItem(ctx context.Context, sessionID uuid.UUID, productID int64, quantity int) (*domain.Cart, error)
	RemoveItem(ctx context.Context, sessionID uuid.UUID, productID int64) (*domain.Cart, error)
	// Settle takes paid lines out of the cart, leaving anything added since.
	Settle(ctx context.Context, sessionID uuid.UUID, paid []domain.CartItem) error
	Clear(ctx context.Context, sessionID uuid.UUID) error
}

// PriceQuote is an ETH/USD price and when it was read.
type PriceQuote struct {
	Price     decimal.Decimal
	UpdatedAt time.Time
}

// PriceService converts USD to ETH through the price oracle.
type PriceService interface {
	CurrentEthUsdPrice(ctx context.Context) (decimal.Decimal, error)
	UsdToEth(ctx context.Context, usd decimal.Decimal) (decimal.Decimal, error)
	// Latest returns the last successfully read price, if any.
	Latest() (PriceQuote, bool)
}

// PaymentResult is a confirmed on-chain payment.
type PaymentResult struct {
	TxHash      string
	BlockNumber uint64
}

// PaymentService signs and submits purchases.
type PaymentService interface {
	// BuyerAddress returns the connected wallet address.
	BuyerAddress() (string, error)
	Pay(ctx context.Context, intent domain.PurchaseIntent) (*PaymentResult, error)
}

// ChainDataService re-reads a mined transaction for display.
type ChainDataService interface {
	Fetch(ctx context.Context, txHash string) (*domain.TransactionReceipt, error)
}

// BuyerAttestations is a buyer's attestation history.
type BuyerAttestations struct {
	Buyer   string
	Records []domain.AttestationRecord
	Stats   domain.LoyaltyStats
}

// SchemaStatus reports whether the configured schema exists and has the purchase layout.
type SchemaStatus struct {
	Schema  *domain.Schema
	Matches bool
}

// AttestationService writes and reads loyalty attestations.
type AttestationService interface {
	Create(ctx context.Context, data domain.AttestationData) (string, error)
	ListForBuyer(ctx context.Context, buyer string) (*BuyerAttestations, error)
	Get(ctx context.Context, id string) (*domain.AttestationRecord, error)
	VerifySchema(ctx context.Context) (*SchemaStatus, error)
	RegisterSchema(ctx context.Context, schema domain.Schema) (string, error)
	Template(ctx context.Context) (*domain.AttestationData, error)
}

// CheckoutQuote is what the buyer would pay for the current cart.
type CheckoutQuote struct {
	Items       []domain.CartItem
	UsdTotal    decimal.Decimal
	EthTotal    decimal.Decimal
	EthUsdPrice decimal.Decimal
	Points      decimal.Decimal
	QuotedAt    time.Time
}

// CheckoutService runs the checkout pipeline.
type CheckoutService interface {
	Quote(ctx context.Context, sessionID uuid.UUID) (*CheckoutQuote, error)
	Checkout(ctx context.Context, sessionID uuid.UUID) (*domain.CheckoutSession, error)
	GetCheckout(ctx context.Context, sessionID, checkoutID uuid.UUID) (*domain.CheckoutSession, error)
	ListCheckouts(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.CheckoutSession, error)
}

// LoyaltyService builds the coalition dashboard.
type LoyaltyService interface {
	Summary(ctx context.Context, buyer string) (*domain.CoalitionSummary, error)
}

// CheckoutMetrics records pipeline outcomes.
type CheckoutMetrics interface {
	CheckoutFinished(state domain.CheckoutState, errorCode string, elapsed time.Duration)
	PostPaymentWarning(step string)
	PriceObserved(price decimal.Decimal)
}

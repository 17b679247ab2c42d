package ports

import (
	"context"
	"time"

	"clarity-storefront/internal/core/domain"

	"github.com/google/uuid"
)

// CartRepository persists one cart per session.
type CartRepository interface {
	// Get returns an empty cart when the session has none.
	Get(ctx context.Context, sessionID uuid.UUID) (*domain.Cart, error)
	// Update applies fn to the stored cart and saves the result. A write that
	// raced another update is retried with the fresh cart, so fn may run more than once.
	Update(ctx context.Context, sessionID uuid.UUID, fn func(*domain.Cart) error) (*domain.Cart, error)
	Delete(ctx context.Context, sessionID uuid.UUID) error
}

// CheckoutRepository persists checkout runs.
type CheckoutRepository interface {
	Create(ctx context.Context, session *domain.CheckoutSession) error
	Update(ctx context.Context, session *domain.CheckoutSession) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.CheckoutSession, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit int) ([]domain.CheckoutSession, error)
}

// CheckoutGuard admits at most one checkout per session at a time.
type CheckoutGuard interface {
	// Acquire returns false when a checkout for the session is already running.
	// On success the returned token identifies this holder.
	Acquire(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) (token string, ok bool, err error)
	// Release frees the slot only while token still holds it, and reports whether it did.
	Release(ctx context.Context, sessionID uuid.UUID, token string) (bool, error)
}

// RateLimitResult holds the outcome of a rate limit check.
type RateLimitResult struct {
	Allowed   bool
	Limit     int64
	Remaining int64
	ResetAt   int64 // Unix timestamp
}

// RateLimiter counts requests per key in fixed windows.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (*RateLimitResult, error)
}

package service

import (
	"context"
	"fmt"

	"clarity-storefront/internal/core/domain"
	"clarity-storefront/internal/core/ports"
	"clarity-storefront/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// CartServiceImpl implements ports.CartService on top of a CartRepository.
type CartServiceImpl struct {
	repo ports.CartRepository
	log  zerolog.Logger
}

// NewCartService creates a new CartServiceImpl.
func NewCartService(repo ports.CartRepository, log zerolog.Logger) *CartServiceImpl {
	return &CartServiceImpl{repo: repo, log: log}
}

// GetCart returns the session's cart, empty if none was saved.
func (s *CartServiceImpl) GetCart(ctx context.Context, sessionID uuid.UUID) (*domain.Cart, error) {
	cart, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("load cart: %w", err))
	}
	return cart, nil
}

// AddItem adds quantity units of a catalog product. One click adds one unit,
// so quantities below one are treated as one.
func (s *CartServiceImpl) AddItem(ctx context.Context, sessionID uuid.UUID, productID int64, quantity int) (*domain.Cart, error) {
	product, ok := domain.FindProduct(productID)
	if !ok {
		return nil, apperror.ErrProductNotFound()
	}
	if quantity < 1 {
		quantity = 1
	}

	cart, err := s.repo.Update(ctx, sessionID, func(c *domain.Cart) error {
		c.Add(domain.CartItem{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: product.Price,
			Quantity:  quantity,
		})
		return nil
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save cart: %w", err))
	}

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Int64("product_id", productID).
		Int("quantity", cart.Items[productID].Quantity).
		Msg("Cart item added")

	return cart, nil
}

// RemoveItem drops a product line. Removing an absent product is a no-op.
func (s *CartServiceImpl) RemoveItem(ctx context.Context, sessionID uuid.UUID, productID int64) (*domain.Cart, error) {
	cart, err := s.repo.Update(ctx, sessionID, func(c *domain.Cart) error {
		c.Remove(productID)
		return nil
	})
	if err != nil {
		return nil, apperror.InternalError(fmt.Errorf("save cart: %w", err))
	}
	return cart, nil
}

// Settle takes the paid lines out of the session's cart.
func (s *CartServiceImpl) Settle(ctx context.Context, sessionID uuid.UUID, paid []domain.CartItem) error {
	cart, err := s.repo.Update(ctx, sessionID, func(c *domain.Cart) error {
		c.Deduct(paid)
		return nil
	})
	if err != nil {
		return apperror.InternalError(fmt.Errorf("settle cart: %w", err))
	}

	s.log.Debug().
		Str("session_id", sessionID.String()).
		Int("paid_lines", len(paid)).
		Int("remaining_lines", len(cart.Items)).
		Msg("Cart settled")
	return nil
}

// Clear empties the session's cart.
func (s *CartServiceImpl) Clear(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.repo.Delete(ctx, sessionID); err != nil {
		return apperror.InternalError(fmt.Errorf("clear cart: %w", err))
	}
	return nil
}

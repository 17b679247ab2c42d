package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"clarity-storefront/internal/core/domain"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// CartStore implements ports.CartRepository as one JSON value per session.
// Carts expire with the session that owns them.
type CartStore struct {
	client *goredis.Client
	prefix string
	ttl    time.Duration
}

// NewCartStore creates a Redis-backed cart store.
func NewCartStore(client *goredis.Client, ttl time.Duration) *CartStore {
	return &CartStore{
		client: client,
		prefix: "cart:",
		ttl:    ttl,
	}
}

// maxCartRetries bounds how often Update retries after losing a WATCH race.
const maxCartRetries = 8

// ErrCartContended is returned when Update keeps losing to concurrent writers.
var ErrCartContended = errors.New("cart update contended")

// Get returns the session's cart, or an empty cart if none is stored.
func (s *CartStore) Get(ctx context.Context, sessionID uuid.UUID) (*domain.Cart, error) {
	return s.load(ctx, s.client, s.key(sessionID))
}

// Update reads the cart under WATCH, applies fn and writes it back in MULTI/EXEC.
// If another writer touched the key in between, the whole cycle runs again.
// An empty result deletes the key; otherwise the TTL is refreshed.
func (s *CartStore) Update(ctx context.Context, sessionID uuid.UUID, fn func(*domain.Cart) error) (*domain.Cart, error) {
	key := s.key(sessionID)
	var updated *domain.Cart

	txf := func(tx *goredis.Tx) error {
		cart, err := s.load(ctx, tx, key)
		if err != nil {
			return err
		}
		if err := fn(cart); err != nil {
			return err
		}

		var val []byte
		if !cart.IsEmpty() {
			if val, err = json.Marshal(cart); err != nil {
				return fmt.Errorf("encoding cart: %w", err)
			}
		}
		_, err = tx.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
			if val == nil {
				pipe.Del(ctx, key)
				return nil
			}
			pipe.Set(ctx, key, val, s.ttl)
			return nil
		})
		if err != nil {
			return err
		}
		updated = cart
		return nil
	}

	for attempt := 0; attempt < maxCartRetries; attempt++ {
		err := s.client.Watch(ctx, txf, key)
		if err == nil {
			return updated, nil
		}
		if errors.Is(err, goredis.TxFailedErr) {
			continue
		}
		return nil, err
	}
	return nil, ErrCartContended
}

// stringGetter is satisfied by both the client and a WATCH transaction.
type stringGetter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (s *CartStore) load(ctx context.Context, c stringGetter, key string) (*domain.Cart, error) {
	val, err := c.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return domain.NewCart(), nil
		}
		return nil, fmt.Errorf("redis cart get: %w", err)
	}

	cart := domain.NewCart()
	if err := json.Unmarshal(val, cart); err != nil {
		return nil, fmt.Errorf("decoding cart: %w", err)
	}
	if cart.Items == nil {
		cart.Items = make(map[int64]domain.CartItem)
	}
	return cart, nil
}

// Delete removes the session's cart.
func (s *CartStore) Delete(ctx context.Context, sessionID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis cart delete: %w", err)
	}
	return nil
}

func (s *CartStore) key(sessionID uuid.UUID) string {
	return s.prefix + sessionID.String()
}

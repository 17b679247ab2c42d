package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while it still holds the caller's token,
// so a run whose slot lapsed cannot free a later run's slot.
var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// CheckoutGuard implements ports.CheckoutGuard using Redis SET NX.
// The TTL frees the slot if the process dies mid-checkout; it must outlast
// the run deadline.
type CheckoutGuard struct {
	client *goredis.Client
	prefix string
}

// NewCheckoutGuard creates a new Redis-backed checkout guard.
func NewCheckoutGuard(client *goredis.Client) *CheckoutGuard {
	return &CheckoutGuard{
		client: client,
		prefix: "checkout:lock:",
	}
}

// Acquire claims the session's checkout slot with a fresh token.
// Returns false if another checkout already holds it.
func (g *CheckoutGuard) Acquire(ctx context.Context, sessionID uuid.UUID, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	result, err := g.client.SetArgs(ctx, g.key(sessionID), token, goredis.SetArgs{
		Mode: "NX",
		TTL:  ttl,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("redis checkout guard acquire: %w", err)
	}
	if result != "OK" {
		return "", false, nil
	}
	return token, true, nil
}

// Release frees the session's checkout slot if token still owns it.
func (g *CheckoutGuard) Release(ctx context.Context, sessionID uuid.UUID, token string) (bool, error) {
	n, err := releaseScript.Run(ctx, g.client, []string{g.key(sessionID)}, token).Int64()
	if err != nil {
		return false, fmt.Errorf("redis checkout guard release: %w", err)
	}
	return n == 1, nil
}

func (g *CheckoutGuard) key(sessionID uuid.UUID) string {
	return g.prefix + sessionID.String()
}

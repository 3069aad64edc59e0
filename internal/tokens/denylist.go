package tokens

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const denylistPrefix = "revoked:"

// Denylist records signed-out token IDs in Redis until they would have
// expired anyway.
type Denylist struct {
	redis redis.UniversalClient
	now   func() time.Time
}

func NewDenylist(client redis.UniversalClient) *Denylist {
	return &Denylist{redis: client, now: time.Now}
}

// Revoke marks the token as signed out. Already expired tokens are ignored.
func (d *Denylist) Revoke(ctx context.Context, claims Claims) error {
	if claims.TokenID == "" {
		return nil
	}
	ttl := claims.ExpiresAt.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.redis.Set(ctx, denylistPrefix+claims.TokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return nil
}

// Verify returns ErrRevoked when the token was signed out.
func (d *Denylist) Verify(ctx context.Context, claims Claims) error {
	revoked, err := d.IsRevoked(ctx, claims.TokenID)
	if err != nil {
		return err
	}
	if revoked {
		return ErrRevoked
	}
	return nil
}

// IsRevoked reports whether the token ID was signed out.
func (d *Denylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	if tokenID == "" {
		return false, nil
	}
	err := d.redis.Get(ctx, denylistPrefix+tokenID).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check token revocation: %w", err)
	}
	return true, nil
}

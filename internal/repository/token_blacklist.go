package repository

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/redis/go-redis/v9"
)

// TokenBlacklist stores revoked access tokens in Redis so revocation
// works across multiple server instances. Entries carry a TTL equal to
// the remaining lifetime of the token, after which the token is
// expired anyway and the entry is useless.
//
// A nil client degrades to a no-op blacklist: logout still revokes the
// refresh token in the database, but access tokens then simply age out.
type TokenBlacklist struct {
	rdb    *redis.Client
	prefix string
}

func NewTokenBlacklist(rdb *redis.Client) *TokenBlacklist {
	return &TokenBlacklist{rdb: rdb, prefix: "blacklist:"}
}

// key hashes the raw token so Redis never stores a usable credential.
func (b *TokenBlacklist) key(rawToken string) string {
	sum := sha256.Sum256([]byte(rawToken))
	return b.prefix + hex.EncodeToString(sum[:])
}

// Add revokes an access token until its expiry. Tokens already past
// their expiry are ignored.
func (b *TokenBlacklist) Add(ctx context.Context, rawToken string, expiresAt time.Time) error {
	if b == nil || b.rdb == nil {
		return nil
	}
	ttl := time.Until(expiresAt)
	if ttl <= 0 {
		return nil
	}
	return b.rdb.Set(ctx, b.key(rawToken), "1", ttl).Err()
}

// IsRevoked reports whether a token has been blacklisted. Redis errors
// are returned so the middleware can decide whether to fail open.
func (b *TokenBlacklist) IsRevoked(ctx context.Context, rawToken string) (bool, error) {
	if b == nil || b.rdb == nil {
		return false, nil
	}
	n, err := b.rdb.Exists(ctx, b.key(rawToken)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

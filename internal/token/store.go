package token

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// RevocationStore tracks issued and revoked token identifiers in Redis.
// Keys carry a TTL bounded by the token's own expiry, so expired state cleans
// itself up. Writes are idempotent and reads observe completed writes
// immediately (single Redis primary, no caching layer in between).
type RevocationStore struct {
	client *redis.Client
}

// NewRevocationStore builds a store around the shared Redis client.
func NewRevocationStore(client *redis.Client) *RevocationStore {
	return &RevocationStore{client: client}
}

func issuedKey(id uuid.UUID) string  { return "warden:token:issued:" + id.String() }
func revokedKey(id uuid.UUID) string { return "warden:token:revoked:" + id.String() }

// MarkIssued records a freshly issued token identifier.
func (s *RevocationStore) MarkIssued(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, issuedKey(id), "1", ttl).Err()
}

// MarkRevoked transitions a token identifier to the revoked state. Revoking
// an already-revoked or already-expired token is a no-op.
func (s *RevocationStore) MarkRevoked(ctx context.Context, id uuid.UUID, expiresAt, now time.Time) error {
	ttl := expiresAt.Sub(now)
	if ttl <= 0 {
		return nil
	}
	return s.client.Set(ctx, revokedKey(id), "1", ttl).Err()
}

// IsRevoked reports whether the token identifier has been revoked.
func (s *RevocationStore) IsRevoked(ctx context.Context, id uuid.UUID) (bool, error) {
	n, err := s.client.Exists(ctx, revokedKey(id)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// TokenClaims is the payload stored against an issued bearer token.
type TokenClaims struct {
	AccountID string    `json:"account_id"`
	Email     string    `json:"email"`
	IssuedAt  time.Time `json:"issued_at"`
}

// TokenStore keeps issued bearer tokens in Redis with a TTL, so revocation
// and expiry need no database round trip.
type TokenStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewTokenStore constructs a TokenStore.
func NewTokenStore(client *redis.Client, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, ttl: ttl}
}

// TTL exposes the configured token lifetime.
func (s *TokenStore) TTL() time.Duration {
	return s.ttl
}

// Issue mints an opaque token for the account and stores its claims.
func (s *TokenStore) Issue(ctx context.Context, account *Account) (string, time.Time, error) {
	token := uuid.NewString()
	claims := TokenClaims{
		AccountID: account.ID.String(),
		Email:     account.Email,
		IssuedAt:  time.Now().UTC(),
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("identity: marshal claims: %w", err)
	}
	if err := s.client.Set(ctx, s.key(token), payload, s.ttl).Err(); err != nil {
		return "", time.Time{}, fmt.Errorf("identity: store token: %w", err)
	}
	return token, claims.IssuedAt.Add(s.ttl), nil
}

// Lookup resolves a token to its claims. Unknown or expired tokens return
// ErrTokenUnknown.
func (s *TokenStore) Lookup(ctx context.Context, token string) (*TokenClaims, error) {
	payload, err := s.client.Get(ctx, s.key(token)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrTokenUnknown
		}
		return nil, fmt.Errorf("identity: lookup token: %w", err)
	}
	var claims TokenClaims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("identity: decode claims: %w", err)
	}
	return &claims, nil
}

// Revoke deletes a token. Revoking an unknown token is not an error.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("identity: revoke token: %w", err)
	}
	return nil
}

func (s *TokenStore) key(token string) string {
	return "token:" + token
}

package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const tokenKeyPrefix = "gescom:auth:token:"

// TokenStore keeps bearer tokens in Redis. Only an HMAC of the token is
// stored, so a dump of the store cannot be replayed as credentials.
type TokenStore struct {
	client *redis.Client
	secret []byte
	ttl    time.Duration
}

// NewTokenStore constructs a token store.
func NewTokenStore(client *redis.Client, secret string, ttl time.Duration) *TokenStore {
	return &TokenStore{client: client, secret: []byte(secret), ttl: ttl}
}

// Issue creates a fresh token bound to the user and returns it. The raw
// token exists only in the response; it is never persisted.
func (s *TokenStore) Issue(ctx context.Context, userID int64) (string, error) {
	token := uuid.NewString()
	key := s.key(token)
	if err := s.client.Set(ctx, key, userID, s.ttl).Err(); err != nil {
		return "", err
	}
	return token, nil
}

// Resolve returns the user ID a token belongs to, refreshing its TTL.
func (s *TokenStore) Resolve(ctx context.Context, token string) (int64, error) {
	if token == "" {
		return 0, ErrTokenInvalid
	}
	key := s.key(token)
	raw, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return 0, ErrTokenInvalid
	}
	if err != nil {
		return 0, err
	}
	userID, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, ErrTokenInvalid
	}
	_ = s.client.Expire(ctx, key, s.ttl).Err()
	return userID, nil
}

// Revoke drops the token.
func (s *TokenStore) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.client.Del(ctx, s.key(token)).Err()
}

func (s *TokenStore) key(token string) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(token))
	return tokenKeyPrefix + hex.EncodeToString(mac.Sum(nil))
}

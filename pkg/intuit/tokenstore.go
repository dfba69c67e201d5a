package intuit

import (
	"context"
	"fmt"
	"strconv"

	"github.com/redis/go-redis/v9"
)

// DefaultTokenKey is the fixed cache key holding the token pair.
const DefaultTokenKey = "connector:intuit:tokens"

// TokenStore persists the OAuth token pair in Redis as a hash, one field
// per token attribute. Writes touch only the fields the caller supplies,
// so a worker holding a slightly stale snapshot can never clobber a
// fresher value another worker already persisted for an untouched field.
type TokenStore struct {
	client redis.UniversalClient
	key    string
}

// NewTokenStore creates a token store. An empty key applies DefaultTokenKey.
func NewTokenStore(client redis.UniversalClient, key string) (*TokenStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if key == "" {
		key = DefaultTokenKey
	}
	return &TokenStore{client: client, key: key}, nil
}

// Get reads the current token pair. Returns (nil, nil) when no pair has
// been persisted yet.
func (s *TokenStore) Get(ctx context.Context) (*Tokens, error) {
	fields, err := s.client.HGetAll(ctx, s.key).Result()
	if err != nil {
		return nil, fmt.Errorf("token store get: %w", err)
	}
	if len(fields) == 0 {
		return nil, nil
	}
	t := &Tokens{
		AccessToken:  fields["accessToken"],
		RefreshToken: fields["refreshToken"],
	}
	t.AccessTokenExpiration, _ = strconv.ParseInt(fields["accessTokenExpiration"], 10, 64)
	t.RefreshTokenExpiration, _ = strconv.ParseInt(fields["refreshTokenExpiration"], 10, 64)
	return t, nil
}

// Merge writes the supplied pair over the persisted one field by field and
// returns the stored result. Zero-valued fields are left untouched.
func (s *TokenStore) Merge(ctx context.Context, t Tokens) (*Tokens, error) {
	values := make([]any, 0, 8)
	if t.AccessToken != "" {
		values = append(values, "accessToken", t.AccessToken)
	}
	if t.AccessTokenExpiration != 0 {
		values = append(values, "accessTokenExpiration", strconv.FormatInt(t.AccessTokenExpiration, 10))
	}
	if t.RefreshToken != "" {
		values = append(values, "refreshToken", t.RefreshToken)
	}
	if t.RefreshTokenExpiration != 0 {
		values = append(values, "refreshTokenExpiration", strconv.FormatInt(t.RefreshTokenExpiration, 10))
	}
	if len(values) > 0 {
		if err := s.client.HSet(ctx, s.key, values...).Err(); err != nil {
			return nil, fmt.Errorf("token store merge: %w", err)
		}
	}
	return s.Get(ctx)
}

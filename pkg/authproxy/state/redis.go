// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Default timeouts for Redis operations.
const (
	DefaultDialTimeout  = 5 * time.Second
	DefaultReadTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Key namespaces within the Redis store. Prefixes keep the record types
// logically partitioned so no two flows ever touch the same key.
const (
	keyTypePending = "pending"
	keyTypeCode    = "code"
	keyTypeSession = "session"
)

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	// Addr is the host:port of the Redis server.
	Addr string

	// Username and Password are optional ACL credentials.
	Username string
	Password string

	// DB is the Redis database number.
	DB int

	// KeyPrefix namespaces all keys, e.g. "oauthgate:".
	KeyPrefix string

	// Timeouts (defaults: Dial=5s, Read=3s, Write=3s).
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RedisStore implements Store with a Redis backend. Per-entry expiration is
// delegated to Redis TTLs, and one-time consumption uses GETDEL so that two
// concurrent redemptions of the same key can never both succeed.
type RedisStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisStore creates Redis-backed storage.
// Returns an error if configuration validation fails or the connection
// cannot be established.
func NewRedisStore(ctx context.Context, cfg RedisConfig) (*RedisStore, error) {
	if cfg.Addr == "" {
		return nil, errors.New("redis address is required")
	}

	if cfg.DialTimeout == 0 {
		cfg.DialTimeout = DefaultDialTimeout
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = DefaultReadTimeout
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = DefaultWriteTimeout
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisStore{
		client:    client,
		keyPrefix: cfg.KeyPrefix,
	}, nil
}

// NewRedisStoreWithClient creates a RedisStore with a pre-configured client.
// This is useful for testing with miniredis.
func NewRedisStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisStore {
	return &RedisStore{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (s *RedisStore) key(keyType, id string) string {
	return s.keyPrefix + keyType + ":" + id
}

// storedPendingAuthorization is the serialized form of PendingAuthorization.
type storedPendingAuthorization struct {
	FlowType             string `json:"flow_type"`
	ClientID             string `json:"client_id,omitempty"`
	RedirectURI          string `json:"redirect_uri,omitempty"`
	State                string `json:"state,omitempty"`
	PKCEChallenge        string `json:"pkce_challenge,omitempty"`
	PKCEMethod           string `json:"pkce_method,omitempty"`
	Scope                string `json:"scope,omitempty"`
	Resource             string `json:"resource,omitempty"`
	UpstreamPKCEVerifier string `json:"upstream_pkce_verifier"`
	CreatedAt            int64  `json:"created_at"`
}

// PutPendingAuthorization stores a pending authorization keyed by internal state.
func (s *RedisStore) PutPendingAuthorization(
	ctx context.Context, state string, pending *PendingAuthorization, ttl time.Duration,
) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if pending == nil {
		return errors.New("pending authorization cannot be nil")
	}

	stored := storedPendingAuthorization{
		FlowType:             string(pending.FlowType),
		ClientID:             pending.ClientID,
		RedirectURI:          pending.RedirectURI,
		State:                pending.State,
		PKCEChallenge:        pending.PKCEChallenge,
		PKCEMethod:           pending.PKCEMethod,
		Scope:                pending.Scope,
		Resource:             pending.Resource,
		UpstreamPKCEVerifier: pending.UpstreamPKCEVerifier,
		CreatedAt:            pending.CreatedAt.Unix(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal pending authorization: %w", err)
	}

	return s.client.Set(ctx, s.key(keyTypePending, state), data, ttl).Err()
}

// TakePendingAuthorization atomically retrieves and deletes a pending
// authorization via GETDEL.
func (s *RedisStore) TakePendingAuthorization(
	ctx context.Context, state string,
) (*PendingAuthorization, error) {
	data, err := s.client.GetDel(ctx, s.key(keyTypePending, state)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to take pending authorization: %w", err)
	}

	var stored storedPendingAuthorization
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pending authorization: %w", err)
	}

	return &PendingAuthorization{
		FlowType:             FlowType(stored.FlowType),
		ClientID:             stored.ClientID,
		RedirectURI:          stored.RedirectURI,
		State:                stored.State,
		PKCEChallenge:        stored.PKCEChallenge,
		PKCEMethod:           stored.PKCEMethod,
		Scope:                stored.Scope,
		Resource:             stored.Resource,
		UpstreamPKCEVerifier: stored.UpstreamPKCEVerifier,
		CreatedAt:            time.Unix(stored.CreatedAt, 0),
	}, nil
}

// storedAuthorizationCode is the serialized form of AuthorizationCode.
type storedAuthorizationCode struct {
	AccessToken   string `json:"access_token"`
	RefreshToken  string `json:"refresh_token,omitempty"`
	ClientID      string `json:"client_id"`
	RedirectURI   string `json:"redirect_uri"`
	PKCEChallenge string `json:"pkce_challenge"`
	PKCEMethod    string `json:"pkce_method"`
	Resource      string `json:"resource,omitempty"`
	Scope         string `json:"scope,omitempty"`
	ExpiresIn     int64  `json:"expires_in"`
	CreatedAt     int64  `json:"created_at"`
}

// PutAuthorizationCode stores an issued authorization code.
func (s *RedisStore) PutAuthorizationCode(
	ctx context.Context, code string, issued *AuthorizationCode, ttl time.Duration,
) error {
	if code == "" {
		return errors.New("code cannot be empty")
	}
	if issued == nil {
		return errors.New("authorization code record cannot be nil")
	}

	stored := storedAuthorizationCode{
		AccessToken:   issued.AccessToken,
		RefreshToken:  issued.RefreshToken,
		ClientID:      issued.ClientID,
		RedirectURI:   issued.RedirectURI,
		PKCEChallenge: issued.PKCEChallenge,
		PKCEMethod:    issued.PKCEMethod,
		Resource:      issued.Resource,
		Scope:         issued.Scope,
		ExpiresIn:     issued.ExpiresIn,
		CreatedAt:     issued.CreatedAt.Unix(),
	}

	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal authorization code: %w", err)
	}

	return s.client.Set(ctx, s.key(keyTypeCode, code), data, ttl).Err()
}

// TakeAuthorizationCode atomically retrieves and deletes an issued code via
// GETDEL. This is the one-time-use guarantee.
func (s *RedisStore) TakeAuthorizationCode(
	ctx context.Context, code string,
) (*AuthorizationCode, error) {
	data, err := s.client.GetDel(ctx, s.key(keyTypeCode, code)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to take authorization code: %w", err)
	}

	var stored storedAuthorizationCode
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, fmt.Errorf("failed to unmarshal authorization code: %w", err)
	}

	return &AuthorizationCode{
		AccessToken:   stored.AccessToken,
		RefreshToken:  stored.RefreshToken,
		ClientID:      stored.ClientID,
		RedirectURI:   stored.RedirectURI,
		PKCEChallenge: stored.PKCEChallenge,
		PKCEMethod:    stored.PKCEMethod,
		Resource:      stored.Resource,
		Scope:         stored.Scope,
		ExpiresIn:     stored.ExpiresIn,
		CreatedAt:     time.Unix(stored.CreatedAt, 0),
	}, nil
}

// PutSession stores a browser session. The value is the bare upstream access
// token; no wrapper type is needed.
func (s *RedisStore) PutSession(
	ctx context.Context, sessionID, accessToken string, ttl time.Duration,
) error {
	if sessionID == "" {
		return errors.New("session ID cannot be empty")
	}
	return s.client.Set(ctx, s.key(keyTypeSession, sessionID), accessToken, ttl).Err()
}

// GetSession retrieves the access token for a browser session.
func (s *RedisStore) GetSession(ctx context.Context, sessionID string) (string, error) {
	token, err := s.client.Get(ctx, s.key(keyTypeSession, sessionID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	return token, nil
}

// DeleteSession removes a browser session.
func (s *RedisStore) DeleteSession(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(keyTypeSession, sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// Health checks Redis connectivity.
func (s *RedisStore) Health(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Compile-time interface compliance check.
var _ Store = (*RedisStore)(nil)

// SPDX-FileCopyrightText: Copyright 2025 oauthgate contributors
// SPDX-License-Identifier: Apache-2.0

package state

import (
	"context"
	"fmt"
)

// Backend identifies a storage backend type.
type Backend string

const (
	// BackendMemory selects the in-memory store (single instance only).
	BackendMemory Backend = "memory"

	// BackendRedis selects the Redis store.
	BackendRedis Backend = "redis"
)

// Config selects and configures a storage backend.
type Config struct {
	// Backend is the storage backend type. Defaults to memory.
	Backend Backend

	// Redis holds the Redis connection settings when Backend is redis.
	Redis RedisConfig
}

// NewStore creates the configured storage backend.
func NewStore(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Backend {
	case BackendMemory, "":
		return NewMemoryStore(), nil
	case BackendRedis:
		return NewRedisStore(ctx, cfg.Redis)
	default:
		return nil, fmt.Errorf("unknown storage backend: %q (must be %q or %q)",
			cfg.Backend, BackendMemory, BackendRedis)
	}
}

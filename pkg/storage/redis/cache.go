/*
Copyright 2026 Brightline Collections.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

// Package redis implements D6: a read-through cache for D1's tenant context,
// backed by github.com/redis/go-redis/v9.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	orcherrors "github.com/brightline/collections-orchestrator/internal/errors"
	"github.com/brightline/collections-orchestrator/pkg/egress/tenant"
)

const keyPrefix = "orc:tenant-context:"

// TenantContextCache fronts D1 with a TTL'd read-through cache row — the
// one piece of tenant-data state that lives in Redis rather than Postgres.
type TenantContextCache struct {
	client *redis.Client
	ttl    time.Duration
	source tenant.Client
}

// NewTenantContextCache wraps source with a read-through cache of ttl.
func NewTenantContextCache(client *redis.Client, ttl time.Duration, source tenant.Client) *TenantContextCache {
	return &TenantContextCache{client: client, ttl: ttl, source: source}
}

// Get returns tenantID's cached context, falling back to source on a cache
// miss and populating the cache with the result.
func (c *TenantContextCache) Get(ctx context.Context, tenantID string) (tenant.Context, error) {
	key := keyPrefix + tenantID

	raw, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached tenant.Context
		if jsonErr := json.Unmarshal(raw, &cached); jsonErr == nil {
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return c.source.Get(ctx, tenantID)
	}

	tc, err := c.source.Get(ctx, tenantID)
	if err != nil {
		return tenant.Context{}, err
	}

	if encoded, jsonErr := json.Marshal(tc); jsonErr == nil {
		if setErr := c.client.Set(ctx, key, encoded, c.ttl).Err(); setErr != nil {
			return tc, orcherrors.Wrap(setErr, orcherrors.ErrorTypeExternalService, "caching tenant context").WithDetailsf("tenant_id=%s", tenantID)
		}
	}
	return tc, nil
}

// Invalidate evicts tenantID's cached row.
func (c *TenantContextCache) Invalidate(ctx context.Context, tenantID string) error {
	if err := c.client.Del(ctx, keyPrefix+tenantID).Err(); err != nil {
		return orcherrors.Wrap(err, orcherrors.ErrorTypeExternalService, "invalidating tenant context cache")
	}
	return nil
}

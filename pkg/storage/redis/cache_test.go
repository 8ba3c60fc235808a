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

package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	goredis "github.com/redis/go-redis/v9"

	"github.com/brightline/collections-orchestrator/pkg/egress/tenant"
)

func TestRedisCache(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Redis Cache Suite")
}

type fakeTenantSource struct {
	calls int
	ctx   tenant.Context
	err   error
}

func (f *fakeTenantSource) Get(ctx context.Context, tenantID string) (tenant.Context, error) {
	f.calls++
	return f.ctx, f.err
}

func newMiniredis() (*miniredis.Miniredis, *goredis.Client) {
	mr, err := miniredis.Run()
	Expect(err).ToNot(HaveOccurred())
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	return mr, client
}

var _ = Describe("TenantContextCache", func() {
	It("falls through to the source on a miss and caches the result", func() {
		mr, client := newMiniredis()
		defer mr.Close()

		source := &fakeTenantSource{ctx: tenant.Context{TenantID: "t1", AmountOwed: 500}}
		cache := NewTenantContextCache(client, time.Minute, source)

		got, err := cache.Get(context.Background(), "t1")
		Expect(err).ToNot(HaveOccurred())
		Expect(got.TenantID).To(Equal("t1"))
		Expect(source.calls).To(Equal(1))

		got2, err := cache.Get(context.Background(), "t1")
		Expect(err).ToNot(HaveOccurred())
		Expect(got2.TenantID).To(Equal("t1"))
		Expect(source.calls).To(Equal(1), "second read should hit cache, not re-call source")
	})

	It("invalidates a cached row", func() {
		mr, client := newMiniredis()
		defer mr.Close()

		source := &fakeTenantSource{ctx: tenant.Context{TenantID: "t1"}}
		cache := NewTenantContextCache(client, time.Minute, source)

		_, err := cache.Get(context.Background(), "t1")
		Expect(err).ToNot(HaveOccurred())
		Expect(cache.Invalidate(context.Background(), "t1")).To(Succeed())

		_, err = cache.Get(context.Background(), "t1")
		Expect(err).ToNot(HaveOccurred())
		Expect(source.calls).To(Equal(2), "a miss after invalidation should re-call the source")
	})

	It("propagates a source error on a miss without caching it", func() {
		mr, client := newMiniredis()
		defer mr.Close()

		source := &fakeTenantSource{err: context.DeadlineExceeded}
		cache := NewTenantContextCache(client, time.Minute, source)

		_, err := cache.Get(context.Background(), "t1")
		Expect(err).To(HaveOccurred())
	})
})

package gate_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/diewo77/go-crm/gate"
)

func TestCachedResolver_CachesProfile(t *testing.T) {
	inner := gate.NewStaticResolver[string]()
	profile := gate.NewStaticProfile("sales")
	inner.Set("u1", profile)

	cached := gate.NewCachedResolver[string](inner, 5*time.Minute)

	// First call - cache miss
	p1, err := cached.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p1.Name() != "sales" {
		t.Errorf("expected 'sales', got '%s'", p1.Name())
	}

	// Modify inner resolver (simulate change)
	newProfile := gate.NewStaticProfile("admin")
	inner.Set("u1", newProfile)

	// Second call - should return cached value
	p2, err := cached.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p2.Name() != "sales" {
		t.Errorf("expected cached 'sales', got '%s'", p2.Name())
	}
}

func TestCachedResolver_Invalidate(t *testing.T) {
	inner := gate.NewStaticResolver[string]()
	profile := gate.NewStaticProfile("sales")
	inner.Set("u1", profile)

	cached := gate.NewCachedResolver[string](inner, 5*time.Minute)

	// Populate cache
	_, _ = cached.Resolve(context.Background(), "u1")

	// Modify inner
	newProfile := gate.NewStaticProfile("admin")
	inner.Set("u1", newProfile)

	// Invalidate cache for u1
	cached.Invalidate("u1")

	// Should now get new value
	p, err := cached.Resolve(context.Background(), "u1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name() != "admin" {
		t.Errorf("expected 'admin' after invalidation, got '%s'", p.Name())
	}
}

func TestCachedResolver_InvalidateAll(t *testing.T) {
	inner := gate.NewStaticResolver[string]()
	inner.Set("u1", gate.NewStaticProfile("sales"))
	inner.Set("u2", gate.NewStaticProfile("user"))

	cached := gate.NewCachedResolver[string](inner, 5*time.Minute)

	// Populate cache
	_, _ = cached.Resolve(context.Background(), "u1")
	_, _ = cached.Resolve(context.Background(), "u2")

	// Modify both
	inner.Set("u1", gate.NewStaticProfile("admin"))
	inner.Set("u2", gate.NewStaticProfile("admin"))

	// Invalidate all
	cached.InvalidateAll()

	// Both should return new values
	p1, _ := cached.Resolve(context.Background(), "u1")
	p2, _ := cached.Resolve(context.Background(), "u2")

	if p1.Name() != "admin" || p2.Name() != "admin" {
		t.Error("expected both profiles to be 'admin' after InvalidateAll")
	}
}

func TestCachedResolver_TTLExpiry(t *testing.T) {
	inner := gate.NewStaticResolver[string]()
	inner.Set("u1", gate.NewStaticProfile("sales"))

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cached := gate.NewCachedResolver[string](inner, time.Minute)
	cached.SetClock(func() time.Time { return now })

	// Populate cache
	_, _ = cached.Resolve(context.Background(), "u1")

	// Modify inner
	inner.Set("u1", gate.NewStaticProfile("admin"))

	// Move past the TTL
	now = now.Add(time.Minute + time.Second)

	// Should get new value
	p, _ := cached.Resolve(context.Background(), "u1")
	if p.Name() != "admin" {
		t.Errorf("expected 'admin' after TTL expiry, got '%s'", p.Name())
	}
}

type failingResolver struct{ calls int }

func (f *failingResolver) Resolve(context.Context, string) (gate.Profile, error) {
	f.calls++
	return nil, errors.New("store down")
}

func TestCachedResolver_DoesNotCacheErrors(t *testing.T) {
	inner := &failingResolver{}
	cached := gate.NewCachedResolver[string](inner, time.Minute)

	for i := 0; i < 2; i++ {
		if _, err := cached.Resolve(context.Background(), "u1"); err == nil {
			t.Fatal("expected error")
		}
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}
}

func TestCachedResolver_ZeroTTLDisablesCache(t *testing.T) {
	inner := gate.NewStaticResolver[string]()
	inner.Set("u1", gate.NewStaticProfile("sales"))
	cached := gate.NewCachedResolver[string](inner, 0)

	_, _ = cached.Resolve(context.Background(), "u1")
	inner.Set("u1", gate.NewStaticProfile("admin"))

	p, _ := cached.Resolve(context.Background(), "u1")
	if p.Name() != "admin" {
		t.Errorf("expected uncached 'admin', got '%s'", p.Name())
	}
}

// racingResolver invalidates the cache while a lookup is in flight, the way a
// session revocation can land between the store read and the cache write.
type racingResolver struct {
	cached *gate.CachedResolver[string]
	roles  []string
	calls  int
}

func (r *racingResolver) Resolve(context.Context, string) (gate.Profile, error) {
	role := r.roles[r.calls]
	r.calls++
	if r.calls == 1 {
		r.cached.Invalidate("u1")
	}
	return gate.NewStaticProfile(role), nil
}

func TestCachedResolver_InvalidateDuringLookupSkipsCache(t *testing.T) {
	inner := &racingResolver{roles: []string{"sales", "admin", "admin"}}
	cached := gate.NewCachedResolver[string](inner, 5*time.Minute)
	inner.cached = cached

	p, _ := cached.Resolve(context.Background(), "u1")
	if p.Name() != "sales" {
		t.Fatalf("expected 'sales' from the first lookup, got '%s'", p.Name())
	}

	p, _ = cached.Resolve(context.Background(), "u1")
	if p.Name() != "admin" {
		t.Errorf("expected stale lookup not to be cached, got '%s'", p.Name())
	}
	if inner.calls != 2 {
		t.Errorf("expected 2 inner calls, got %d", inner.calls)
	}

	_, _ = cached.Resolve(context.Background(), "u1")
	if inner.calls != 2 {
		t.Errorf("expected the second lookup to be cached, got %d inner calls", inner.calls)
	}
}

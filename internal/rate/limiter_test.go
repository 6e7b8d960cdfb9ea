package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestLimiter(t *testing.T, cfg Config) *Limiter {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return New(client, cfg)
}

func TestTryAcquireDisabled(t *testing.T) {
	l := newTestLimiter(t, Config{Enabled: false})

	d, err := l.TryAcquire(context.Background(), "10.0.0.1", EndpointLogin)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !d.Allowed {
		t.Fatal("disabled limiter must allow everything")
	}
}

func TestTryAcquireExhaustion(t *testing.T) {
	l := newTestLimiter(t, Config{
		Enabled: true,
		Profiles: map[Endpoint]Profile{
			EndpointLogin: {Capacity: 3, RefillTokens: 3, RefillPeriod: time.Minute},
		},
	})

	ctx := context.Background()

	for i := 0; i < 3; i++ {
		d, err := l.TryAcquire(ctx, "10.0.0.1", EndpointLogin)
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if !d.Allowed {
			t.Fatalf("attempt %d: denied before capacity exhausted", i)
		}
	}

	d, err := l.TryAcquire(ctx, "10.0.0.1", EndpointLogin)
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if d.Allowed {
		t.Fatal("fourth attempt must be denied")
	}
	if d.RetryAfter <= 0 {
		t.Fatalf("denied decision must carry RetryAfter, got %v", d.RetryAfter)
	}
}

func TestTryAcquireKeysAreIndependent(t *testing.T) {
	l := newTestLimiter(t, Config{
		Enabled: true,
		Profiles: map[Endpoint]Profile{
			EndpointLogin: {Capacity: 1, RefillTokens: 1, RefillPeriod: time.Minute},
		},
	})

	ctx := context.Background()

	if d, _ := l.TryAcquire(ctx, "10.0.0.1", EndpointLogin); !d.Allowed {
		t.Fatal("first key: first attempt denied")
	}
	if d, _ := l.TryAcquire(ctx, "10.0.0.1", EndpointLogin); d.Allowed {
		t.Fatal("first key: second attempt must be denied")
	}
	if d, _ := l.TryAcquire(ctx, "10.0.0.2", EndpointLogin); !d.Allowed {
		t.Fatal("second key must have its own bucket")
	}
}

func TestTryAcquireRefill(t *testing.T) {
	l := newTestLimiter(t, Config{
		Enabled: true,
		Profiles: map[Endpoint]Profile{
			EndpointRefresh: {Capacity: 1, RefillTokens: 1, RefillPeriod: 30 * time.Millisecond},
		},
	})

	ctx := context.Background()

	if d, _ := l.TryAcquire(ctx, "sess", EndpointRefresh); !d.Allowed {
		t.Fatal("first attempt denied")
	}
	if d, _ := l.TryAcquire(ctx, "sess", EndpointRefresh); d.Allowed {
		t.Fatal("bucket must be empty")
	}

	time.Sleep(40 * time.Millisecond)

	if d, _ := l.TryAcquire(ctx, "sess", EndpointRefresh); !d.Allowed {
		t.Fatal("bucket must refill after the period elapses")
	}
}

func TestTryAcquireUnknownEndpoint(t *testing.T) {
	l := newTestLimiter(t, Config{
		Enabled:  true,
		Profiles: map[Endpoint]Profile{},
	})

	d, err := l.TryAcquire(context.Background(), "k", Endpoint("introspect"))
	if err != nil {
		t.Fatalf("TryAcquire: %v", err)
	}
	if !d.Allowed {
		t.Fatal("endpoints without a profile must not be throttled")
	}
}

func TestTryAcquireRedisDownFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l := New(client, Config{
		Enabled: true,
		Profiles: map[Endpoint]Profile{
			EndpointLogin: {Capacity: 5, RefillTokens: 5, RefillPeriod: time.Minute},
		},
	})

	mr.Close()

	d, err := l.TryAcquire(context.Background(), "10.0.0.1", EndpointLogin)
	if err == nil {
		t.Fatal("expected error when redis is unreachable")
	}
	if d.Allowed {
		t.Fatal("redis outage must not admit requests")
	}
}

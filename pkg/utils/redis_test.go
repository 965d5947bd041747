package utils

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func TestConcurrencyScriptsCompile(t *testing.T) {
	if concurrencyAcquireScript == nil || concurrencyReleaseScript == nil {
		t.Fatalf("expected scripts to be initialized")
	}
}

func TestConcurrencyCap_ValidatesArguments(t *testing.T) {
	ctx := context.Background()
	if _, err := AcquireConcurrencyCap(ctx, nil, "k", 1, time.Second); !errors.Is(err, ErrNilRedis) {
		t.Fatalf("expected ErrNilRedis, got %v", err)
	}

	// Validation happens before any command is sent.
	rdb := redis.NewClient(&redis.Options{Addr: "127.0.0.1:0"})
	defer rdb.Close()
	cases := []struct {
		key   string
		limit int
		ttl   time.Duration
	}{
		{"", 1, time.Second},
		{"k", 0, time.Second},
		{"k", 1, 0},
	}
	for _, tc := range cases {
		if _, err := AcquireConcurrencyCap(ctx, rdb, tc.key, tc.limit, tc.ttl); !errors.Is(err, ErrInvalidCap) {
			t.Fatalf("acquire(%q, %d, %s): expected ErrInvalidCap, got %v", tc.key, tc.limit, tc.ttl, err)
		}
	}
	if err := ReleaseConcurrencyCap(ctx, rdb, ""); !errors.Is(err, ErrInvalidCap) {
		t.Fatalf("release: expected ErrInvalidCap, got %v", err)
	}
}

func TestOpenRedis_RequiresAddr(t *testing.T) {
	if _, err := OpenRedis(context.Background(), RedisConfig{}); err == nil {
		t.Fatalf("expected error without addr")
	}
}

func TestRedisConfig_Defaults(t *testing.T) {
	c := RedisConfig{Addr: "x"}.withDefaults()
	if c.PoolSize != 5 || c.PingTimeout != 2*time.Second || c.WriteTimeout != 5*time.Second {
		t.Fatalf("unexpected defaults: %+v", c)
	}
}

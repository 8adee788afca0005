package cache

import (
	"context"
	"testing"
	"time"
)

func TestSummaryKeysDeduplicates(t *testing.T) {
	keys := SummaryKeys([]uint{3, 3, 0}, []uint{7, 7})
	if len(keys) != 2 {
		t.Fatalf("expected 2 keys, got %v", keys)
	}
	if keys[0] != "shipping:pallet:3:summary" || keys[1] != "shipping:shipment:7:summary" {
		t.Fatalf("unexpected keys: %v", keys)
	}
}

func TestDisabledCacheIsNoop(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if Enabled() {
		t.Fatalf("cache should be disabled")
	}
	var dest map[string]int
	hit, err := GetJSON(context.Background(), "k", &dest)
	if err != nil || hit {
		t.Fatalf("disabled cache should miss without error, hit=%v err=%v", hit, err)
	}
	if err := SetJSON(context.Background(), "k", map[string]int{"a": 1}, time.Minute); err != nil {
		t.Fatalf("disabled set should be noop: %v", err)
	}
	if err := InvalidateSummaries(context.Background(), []uint{1}, []uint{2}); err != nil {
		t.Fatalf("disabled invalidate should be noop: %v", err)
	}
}

func TestBuildKeyUsesPrefix(t *testing.T) {
	redisPrefix = normalizePrefix("  ")
	if got := buildKey("shipping:pallet:1:summary"); got != "hanes:shipping:pallet:1:summary" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestAddrDefaults(t *testing.T) {
	if got := Addr(" ", 0); got != "127.0.0.1:6379" {
		t.Fatalf("unexpected default addr: %s", got)
	}
	if got := Addr("redis.local", 6380); got != "redis.local:6380" {
		t.Fatalf("unexpected addr: %s", got)
	}
}

func TestPingDisabled(t *testing.T) {
	if err := InitRedis(nil); err != nil {
		t.Fatalf("init disabled redis failed: %v", err)
	}
	if err := Ping(context.Background()); err != ErrDisabled {
		t.Fatalf("expected ErrDisabled, got %v", err)
	}
}

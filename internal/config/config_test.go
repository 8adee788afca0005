package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestSetDefaultsShippingSection(t *testing.T) {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		t.Fatalf("unmarshal defaults failed: %v", err)
	}
	if cfg.Database.Driver != "sqlite" {
		t.Fatalf("unexpected default driver: %s", cfg.Database.Driver)
	}
	if cfg.Database.TxMaxRetries != 3 {
		t.Fatalf("unexpected tx retries: %d", cfg.Database.TxMaxRetries)
	}
	if cfg.Shipping.MaxBatchSize != 500 {
		t.Fatalf("unexpected max batch size: %d", cfg.Shipping.MaxBatchSize)
	}
	if cfg.Auth.Enabled {
		t.Fatalf("auth should be disabled by default")
	}
	if cfg.Queue.Queues["shipping"] != 10 {
		t.Fatalf("unexpected shipping queue weight: %v", cfg.Queue.Queues)
	}
}

func TestNormalizeClampsInvalidValues(t *testing.T) {
	cfg := Config{}
	cfg.Database.TxMaxRetries = -1
	cfg.Shipping.MaxBatchSize = 0
	cfg.Shipping.SummaryCacheTTLSeconds = -5
	cfg.normalize()

	if cfg.Database.TxMaxRetries != 0 {
		t.Fatalf("expected retries clamped to 0, got %d", cfg.Database.TxMaxRetries)
	}
	if cfg.Shipping.MaxBatchSize != 500 {
		t.Fatalf("expected batch size fallback, got %d", cfg.Shipping.MaxBatchSize)
	}
	if cfg.Shipping.SummaryCacheTTLSeconds != 0 {
		t.Fatalf("expected ttl clamped to 0, got %d", cfg.Shipping.SummaryCacheTTLSeconds)
	}
}

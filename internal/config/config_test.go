package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Outbox.PollInterval != 5*time.Second {
		t.Errorf("Outbox.PollInterval = %v, want 5s", cfg.Outbox.PollInterval)
	}
	if cfg.Outbox.ClaimLease != 2*time.Minute {
		t.Errorf("Outbox.ClaimLease = %v, want 2m", cfg.Outbox.ClaimLease)
	}
	if cfg.Kafka.StatusTopic != "backoffice.status-changes" {
		t.Errorf("Kafka.StatusTopic = %q", cfg.Kafka.StatusTopic)
	}
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("KAFKA_ENABLED", "true")
	t.Setenv("KAFKA_BROKERS", "k1:9092, k2:9092,")
	t.Setenv("CACHE_TTL", "30s")
	t.Setenv("DB_MAX_CONCURRENT_TX", "4")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if len(cfg.Kafka.Brokers) != 2 || cfg.Kafka.Brokers[1] != "k2:9092" {
		t.Errorf("Kafka.Brokers = %v", cfg.Kafka.Brokers)
	}
	if cfg.Cache.TTL != 30*time.Second {
		t.Errorf("Cache.TTL = %v, want 30s", cfg.Cache.TTL)
	}
	if cfg.DB.MaxConcurrentTxns != 4 {
		t.Errorf("DB.MaxConcurrentTxns = %d, want 4", cfg.DB.MaxConcurrentTxns)
	}
}

func TestLoadRejectsBadPort(t *testing.T) {
	t.Setenv("PORT", "70000")

	if _, err := Load(); err == nil {
		t.Fatal("expected error for out-of-range port")
	}
}

func TestDBConnString(t *testing.T) {
	cfg := &Config{DB: DBConfig{Host: "db", Port: 5432, User: "u", Password: "p", Name: "bo", SSLMode: "disable"}}

	want := "host=db port=5432 user=u password=p dbname=bo sslmode=disable"
	if got := cfg.GetDBConnString(); got != want {
		t.Fatalf("GetDBConnString() = %q, want %q", got, want)
	}
}

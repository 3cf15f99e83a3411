package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SECKILL_MODE", "")
	t.Setenv("HTTP_ADDR", "")
	t.Setenv("SHUTDOWN_TIMEOUT", "")
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("RABBITMQ_URL", "")
	t.Setenv("SNOWFLAKE_NODE", "")
	t.Setenv("DEFAULT_PURCHASE_LIMIT", "")
	t.Setenv("ORDER_STATUS_TTL", "")
	t.Setenv("STOCK_RESET_ENABLED", "")
	c := Load()
	if c.Mode != ModeInfra {
		t.Fatalf("Mode default")
	}
	if c.HTTPAddr != ":8080" {
		t.Fatalf("HTTPAddr default")
	}
	if c.ShutdownTimeout != 10*time.Second {
		t.Fatalf("ShutdownTimeout default")
	}
	if c.RedisAddr != "localhost:6379" {
		t.Fatalf("RedisAddr default")
	}
	if c.SnowflakeNode != 1 {
		t.Fatalf("SnowflakeNode default")
	}
	if c.DefaultLimit != 1 {
		t.Fatalf("DefaultLimit default")
	}
	if c.StatusTTL != 300*time.Second {
		t.Fatalf("StatusTTL default")
	}
	if c.ResetEnabled {
		t.Fatalf("ResetEnabled default")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("SECKILL_MODE", "memory")
	t.Setenv("HTTP_ADDR", ":9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2")
	t.Setenv("REDIS_ADDR", "redis:6379")
	t.Setenv("SNOWFLAKE_NODE", "7")
	t.Setenv("DEFAULT_PURCHASE_LIMIT", "2")
	t.Setenv("ORDER_STATUS_TTL", "60")
	t.Setenv("STOCK_RESET_ENABLED", "true")
	c := Load()
	if c.Mode != ModeMemory {
		t.Fatalf("Mode env")
	}
	if c.HTTPAddr != ":9090" {
		t.Fatalf("HTTPAddr env")
	}
	if c.ShutdownTimeout != 2*time.Second {
		t.Fatalf("ShutdownTimeout env")
	}
	if c.RedisAddr != "redis:6379" {
		t.Fatalf("RedisAddr env")
	}
	if c.SnowflakeNode != 7 {
		t.Fatalf("SnowflakeNode env")
	}
	if c.DefaultLimit != 2 {
		t.Fatalf("DefaultLimit env")
	}
	if c.StatusTTL != 60*time.Second {
		t.Fatalf("StatusTTL env")
	}
	if !c.ResetEnabled {
		t.Fatalf("ResetEnabled env")
	}
}

func TestLoadIgnoresMalformedNumbers(t *testing.T) {
	t.Setenv("SNOWFLAKE_NODE", "not-a-number")
	t.Setenv("DEFAULT_PURCHASE_LIMIT", "")
	c := Load()
	if c.SnowflakeNode != 1 {
		t.Fatalf("malformed SNOWFLAKE_NODE should fall back to default")
	}
}

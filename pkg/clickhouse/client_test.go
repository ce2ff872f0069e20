package clickhouse

import (
	"context"
	"testing"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"
)

func TestOptions(t *testing.T) {
	opts := options(Config{
		Host:             "ch.internal",
		Port:             9000,
		Database:         "weather",
		User:             "reader",
		Password:         "secret",
		MaxOpenConns:     10,
		MaxIdleConns:     5,
		ReadTimeout:      30 * time.Second,
		MaxExecutionTime: 90 * time.Second,
	})
	if len(opts.Addr) != 1 || opts.Addr[0] != "ch.internal:9000" {
		t.Fatalf("addr = %v", opts.Addr)
	}
	if opts.Protocol != clickhouse.Native || opts.Auth.Database != "weather" || opts.Auth.Username != "reader" {
		t.Fatalf("options = %+v", opts)
	}
	if opts.Settings["max_execution_time"] != 90 {
		t.Fatalf("settings = %v", opts.Settings)
	}

	opts = options(Config{Host: "ch.internal", Port: 8123, UseHTTP: true})
	if opts.Protocol != clickhouse.HTTP || opts.Settings != nil {
		t.Fatalf("http options = %+v", opts)
	}
}

func TestNewClientRequiresHost(t *testing.T) {
	if _, err := NewClient(context.Background(), Config{}); err == nil {
		t.Fatalf("expected error without host")
	}
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfig_Defaults(t *testing.T) {
	config, err := loadConfig("")
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.Push.Transport != TransportWebSocket {
		t.Errorf("Transport = %q, want %q", config.Push.Transport, TransportWebSocket)
	}
	if config.Push.ReconnectDelay != 3*time.Second {
		t.Errorf("ReconnectDelay = %s, want 3s", config.Push.ReconnectDelay)
	}
	if config.API.PageSize != 20 {
		t.Errorf("PageSize = %d, want 20", config.API.PageSize)
	}
}

func TestLoadConfig_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auctionwatch.yaml")
	data := []byte(`
api:
  base_url: http://market.test
  page_size: 50
push:
  transport: nats
  url: nats://broker:4222
  reconnect_delay: 5s
viewer:
  nickname: alice
  auction_id: 42
bid_strategy: rounded_ten_percent
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("AUCTION_ID", "7")
	t.Setenv("VIEWER_NICKNAME", "bob")

	config, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if config.API.BaseURL != "http://market.test" || config.API.PageSize != 50 {
		t.Errorf("api = %+v", config.API)
	}
	if config.Push.Transport != TransportNATS || config.Push.ReconnectDelay != 5*time.Second {
		t.Errorf("push = %+v", config.Push)
	}
	if config.Viewer.AuctionID != 7 || config.Viewer.Nickname != "bob" {
		t.Errorf("env did not override viewer: %+v", config.Viewer)
	}
	if config.BidStrategy != "rounded_ten_percent" {
		t.Errorf("BidStrategy = %q", config.BidStrategy)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name string
		key  string
		val  string
	}{
		{name: "unknown transport", key: "PUSH_TRANSPORT", val: "carrier-pigeon"},
		{name: "unknown strategy", key: "BID_STRATEGY", val: "whatever"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.val)
			if _, err := loadConfig(""); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

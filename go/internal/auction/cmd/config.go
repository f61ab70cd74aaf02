package main

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mcdev12/bidlive/go/clients/marketplace_client"
	"github.com/mcdev12/bidlive/go/internal/auction/bidpolicy"
)

// Push transports
const (
	TransportWebSocket = "websocket"
	TransportNATS      = "nats"
)

type Config struct {
	API struct {
		BaseURL  string `yaml:"base_url"`
		Token    string `yaml:"token"`
		PageSize int    `yaml:"page_size"`
	} `yaml:"api"`
	Push struct {
		Transport      string        `yaml:"transport"`
		URL            string        `yaml:"url"`
		SubjectPrefix  string        `yaml:"subject_prefix"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay"`
	} `yaml:"push"`
	Viewer struct {
		Nickname  string `yaml:"nickname"`
		AuctionID int64  `yaml:"auction_id"`
	} `yaml:"viewer"`
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	LogLevel    string `yaml:"log_level"`
	BidStrategy string `yaml:"bid_strategy"`
}

func defaultConfig() *Config {
	var config Config
	config.API.BaseURL = "http://localhost:8080"
	config.API.PageSize = marketplace_client.DefaultPageSize
	config.Push.Transport = TransportWebSocket
	config.Push.URL = "ws://localhost:8080/ws"
	config.Push.SubjectPrefix = "auction"
	config.Push.ReconnectDelay = 3 * time.Second
	config.Server.Port = "8090"
	config.LogLevel = "info"
	config.BidStrategy = bidpolicy.NameStartPriceTenth
	return &config
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

// loadConfig reads the optional YAML file at path over the defaults and then
// applies environment overrides.
func loadConfig(path string) (*Config, error) {
	config := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	config.API.BaseURL = getEnv("MARKETPLACE_API_URL", config.API.BaseURL)
	config.API.Token = getEnv("ACCESS_TOKEN", config.API.Token)
	config.API.PageSize = getEnvAsInt("BID_PAGE_SIZE", config.API.PageSize)
	config.Push.Transport = getEnv("PUSH_TRANSPORT", config.Push.Transport)
	config.Push.URL = getEnv("PUSH_URL", config.Push.URL)
	config.Push.SubjectPrefix = getEnv("PUSH_SUBJECT_PREFIX", config.Push.SubjectPrefix)
	if sec := getEnvAsInt("PUSH_RECONNECT_DELAY_SEC", 0); sec > 0 {
		config.Push.ReconnectDelay = time.Duration(sec) * time.Second
	}
	config.Viewer.Nickname = getEnv("VIEWER_NICKNAME", config.Viewer.Nickname)
	config.Viewer.AuctionID = int64(getEnvAsInt("AUCTION_ID", int(config.Viewer.AuctionID)))
	config.Server.Port = getEnv("PORT", config.Server.Port)
	config.LogLevel = getEnv("LOG_LEVEL", config.LogLevel)
	config.BidStrategy = getEnv("BID_STRATEGY", config.BidStrategy)

	if err := config.validate(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) validate() error {
	switch c.Push.Transport {
	case TransportWebSocket, TransportNATS:
	default:
		return fmt.Errorf("unknown push transport %q", c.Push.Transport)
	}
	if _, err := bidpolicy.Lookup(c.BidStrategy); err != nil {
		return fmt.Errorf("invalid bid strategy: %w", err)
	}
	if c.Push.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect delay must be positive, got %s", c.Push.ReconnectDelay)
	}
	if c.Viewer.AuctionID < 0 {
		return fmt.Errorf("invalid auction id %d", c.Viewer.AuctionID)
	}
	return nil
}

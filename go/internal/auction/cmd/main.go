package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/mcdev12/bidlive/go/clients/marketplace_client"
	"github.com/mcdev12/bidlive/go/internal/auction/bidpolicy"
	"github.com/mcdev12/bidlive/go/internal/auction/push"
	"github.com/mcdev12/bidlive/go/internal/auction/view"
	"github.com/mcdev12/bidlive/go/internal/credentials"
	"github.com/mcdev12/bidlive/go/internal/notify"
)

func main() {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Warn().Err(err).Msg("could not load .env file")
	}

	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := loadConfig(getEnv("AUCTIONWATCH_CONFIG", ""))
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}

	level, err := zerolog.ParseLevel(config.LogLevel)
	if err != nil {
		log.Warn().Err(err).Str("log_level", config.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	strategy, err := bidpolicy.Lookup(config.BidStrategy)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to select bid strategy")
	}

	var creds credentials.Provider = credentials.Anonymous{}
	if config.API.Token != "" {
		creds = credentials.NewStatic(config.API.Token)
	}

	log.Info().
		Str("api_url", config.API.BaseURL).
		Str("transport", config.Push.Transport).
		Str("push_url", config.Push.URL).
		Int64("auction_id", config.Viewer.AuctionID).
		Str("port", config.Server.Port).
		Msg("starting auctionwatch")

	client := marketplace_client.NewClient(config.API.BaseURL, creds)
	client.SetPageSize(config.API.PageSize)

	clock := clockwork.NewRealClock()
	pushConfig := push.DefaultConfig()
	pushConfig.ReconnectDelay = config.Push.ReconnectDelay
	manager := push.NewManager(newDialer(config), creds, clock, pushConfig)

	controller := view.NewController(view.Config{
		Nickname: config.Viewer.Nickname,
		Strategy: strategy,
		Clock:    clock,
		Notifier: notify.LogSink{},
		Listener: logViewModel,
	}, client, client, manager)

	// Context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	controllerDone := make(chan struct{})
	go func() {
		defer close(controllerDone)
		if err := controller.Run(ctx); err != nil {
			log.Error().Err(err).Msg("view controller failed")
		}
	}()

	if config.Viewer.AuctionID > 0 {
		if err := controller.Show(ctx, config.Viewer.AuctionID); err != nil {
			log.Fatal().Err(err).Int64("auction_id", config.Viewer.AuctionID).Msg("failed to open auction view")
		}
	}

	server := setupServer(config, controller)

	// Start HTTP server
	go func() {
		log.Info().Str("addr", server.Addr).Msg("HTTP server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan

	log.Info().Str("signal", sig.String()).Msg("received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	// Stopping the controller closes the open push handle
	cancel()
	select {
	case <-controllerDone:
	case <-shutdownCtx.Done():
		log.Warn().Msg("view controller did not stop in time")
	}

	log.Info().Msg("auctionwatch shutdown complete")
}

func newDialer(config *Config) push.Dialer {
	if config.Push.Transport == TransportNATS {
		natsConfig := push.DefaultNATSConfig()
		natsConfig.URL = config.Push.URL
		natsConfig.SubjectPrefix = config.Push.SubjectPrefix
		return push.NewNATSDialer(natsConfig)
	}
	return push.NewWebSocketDialer(push.DefaultWebSocketConfig(config.Push.URL))
}

func logViewModel(vm view.ViewModel) {
	if !vm.Open() {
		log.Info().Msg("no auction in view")
		return
	}
	log.Debug().
		Int64("auction_id", vm.AuctionID).
		Uint64("generation", vm.Generation).
		Bool("loaded", vm.Loaded).
		Int64("current_price", vm.CurrentPrice).
		Int64("bid_count", vm.BidCount).
		Str("status", string(vm.Status)).
		Int("remaining_sec", vm.RemainingSec).
		Int64("minimum_next_bid", vm.MinimumNextBid).
		Int("bids", len(vm.Bids)).
		Msg("view updated")
}

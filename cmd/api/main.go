package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Tanner253/ClaudeLotto/internal/agent"
	"github.com/Tanner253/ClaudeLotto/internal/config"
	"github.com/Tanner253/ClaudeLotto/internal/handlers"
	"github.com/Tanner253/ClaudeLotto/internal/history"
	"github.com/Tanner253/ClaudeLotto/internal/infra"
	"github.com/Tanner253/ClaudeLotto/internal/injection"
	"github.com/Tanner253/ClaudeLotto/internal/ledger"
	"github.com/Tanner253/ClaudeLotto/internal/metrics"
	"github.com/Tanner253/ClaudeLotto/internal/middleware"
	"github.com/Tanner253/ClaudeLotto/internal/replay"
	"github.com/Tanner253/ClaudeLotto/internal/session"
	"github.com/Tanner253/ClaudeLotto/internal/throttle"
)

func main() {
	// .env is optional; real deployments inject the environment directly.
	_ = godotenv.Load()

	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, nil)))

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		slog.Error("Config load failed", "error", err)
		os.Exit(1)
	}
	secrets := config.LoadSecrets()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.Server.Port
	}

	// Redis backs the replay protocol, which fails closed. No Redis, no
	// service.
	redisClient, err := infra.NewGoRedisAdapter(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		slog.Error("Redis init failed", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	historyStore, err := history.NewStore(secrets.SupabaseURL, secrets.SupabaseServiceKey)
	if err != nil {
		slog.Error("History store init failed", "error", err)
		os.Exit(1)
	}

	rpcClient := ledger.NewClient(cfg.Ledger.RPCURL, nil)

	payout, err := ledger.NewPayout(
		rpcClient,
		secrets.TreasuryKey,
		secrets.DevWallet,
		cfg.Game.WinnerPercentage,
		cfg.Game.DevPercentage,
		cfg.Ledger.RentReserveLamports,
	)
	if err != nil {
		slog.Error("Payout init failed", "error", err)
		os.Exit(1)
	}

	potWallet := secrets.TreasuryWallet
	if potWallet == "" {
		potWallet = payout.TreasuryAddress()
	}

	verifier := ledger.NewVerifier(rpcClient, potWallet, cfg.MaxTxAge(), cfg.Ledger.AmountTolerancePct)
	detector := injection.NewDetector(injection.Weights{
		BlockThreshold:  cfg.Policy.BlockThreshold,
		Homoglyph:       cfg.Policy.HomoglyphWeight,
		Invisible:       cfg.Policy.InvisibleWeight,
		StructuralMatch: cfg.Policy.StructuralWeight,
	})

	server := handlers.NewServer(
		detector,
		replay.NewReserver(replay.NewRedisStore(redisClient, "")),
		verifier,
		throttle.New(redisClient, cfg.ThrottleWindow()),
		session.NewManager(redisClient, cfg.SessionTTL()),
		agent.NewClient(secrets.AnthropicAPIKey),
		payout,
		historyStore,
		metrics.New(),
		handlers.GameRules{
			MessageCostLamports:   cfg.Game.MessageCostLamports,
			MaxMessageLength:      cfg.Policy.MaxMessageLength,
			MaxConversationLength: cfg.Game.MaxConversationLength,
			WinnerShare:           cfg.Game.WinnerPercentage,
		},
		secrets.AdminSecret,
	)

	router := mux.NewRouter()
	router.Use(middleware.CORS)
	router.Use(middleware.Logging)
	router.Use(middleware.NewRateLimiter(120).Middleware)
	router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	server.Register(router)

	httpServer := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 90 * time.Second, // the model call dominates
		IdleTimeout:  60 * time.Second,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		slog.Info("Shutdown signal received, draining")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(ctx); err != nil {
			slog.Error("Server shutdown error", "error", err)
		}
	}()

	slog.Info("ClaudeLotto API starting", "port", port, "potWallet", potWallet)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
	slog.Info("Server stopped")
}

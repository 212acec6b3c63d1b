package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stackshub/relay-service/config"
	"github.com/stackshub/relay-service/internal/postgres"
	"github.com/stackshub/relay-service/internal/service"
	httpx "github.com/stackshub/relay-service/internal/transport/http"
	"github.com/stackshub/relay-service/internal/transport/ws"
	"github.com/stackshub/relay-service/pkg/logger"

	"github.com/redis/go-redis/v9"
)

func main() {
	// --- config ---
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger.Init(logger.Config{
		Env:       logger.Env(cfg.Logging.Env),
		Service:   cfg.Logging.Service,
		Version:   cfg.Logging.Version,
		Backend:   logger.Backend(cfg.Logging.Backend),
		AddSource: cfg.Logging.AddSource,
		Debug:     cfg.Logging.Debug,
	})
	slog.Info("starting relay-service",
		"env", cfg.Logging.Env, "version", cfg.Logging.Version)

	// --- postgres ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := postgres.New(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Fatalf("postgres: %v", err)
	}
	defer db.Close()

	// --- repos ---
	messageRepo := postgres.NewMessageRepository(db.Pool)
	convRepo := postgres.NewConversationRepository(db.Pool)

	// --- services ---
	chatSvc := service.NewChatService(messageRepo)
	convSvc := service.NewConversationService(convRepo)

	// --- WS Hub & Server ---
	hub := ws.NewHub()
	var bcast ws.Broadcaster = hub
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
		bridge := ws.NewBridge(hub, rdb)
		bcast = bridge
		go func() {
			if err := bridge.Run(ctx); err != nil && ctx.Err() == nil {
				slog.Error("redis bridge stopped", "err", err)
			}
		}()
		slog.Info("redis bridge enabled", "addr", cfg.Redis.Addr)
	}
	wsServer := ws.NewServer(hub, bcast, chatSvc)

	// --- HTTP ---
	handler := httpx.NewHandler(chatSvc, convSvc)
	router := httpx.NewRouter(handler, wsServer, cfg.HTTP.AllowedOrigins)
	httpSrv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("http listen", "addr", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	// --- graceful shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		slog.Info("shutdown signal", "sig", sig)
	case err := <-errCh:
		slog.Error("server error", "err", err)
	}

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()

	cancel()
	_ = httpSrv.Shutdown(ctxShutdown)
	slog.Info("stopped")
}

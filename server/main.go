// Command server runs the signaling relay that meet clients dial.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"example.com/meetease/internal/logging"
	"example.com/meetease/pkg/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	logging.InitWithDefault(slog.LevelInfo)

	if err := run(); err != nil {
		slog.Error("relay stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	presence, closePresence, err := openPresence(cfg.Redis)
	if err != nil {
		return err
	}
	defer closePresence()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	hub := relay.NewHub(relay.HubOptions{
		Capacity: cfg.RoomCapacity,
		Presence: presence,
	})
	defer hub.Close()

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: relay.NewRouter(hub, relay.RouterOptions{
			AllowedOrigins: cfg.AllowedOrigins,
			PublicURL:      cfg.PublicURL,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		slog.Info("relay listening", "addr", srv.Addr, "capacity", cfg.RoomCapacity, "env", cfg.Environment)
		slog.Info("websocket endpoint", "url", "ws://localhost:"+cfg.Port+"/ws/<roomId>")
		errc <- srv.ListenAndServe()
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case s := <-sig:
		slog.Info("shutting down", "signal", s.String())
	}

	// Websocket connections are hijacked, so Shutdown does not wait for
	// them; the deferred hub.Close disconnects participants.
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}

// openPresence connects to Redis when configured and falls back to
// in-memory presence otherwise.
func openPresence(cfg RedisConfig) (relay.PresenceStore, func(), error) {
	if cfg.Addr == "" {
		slog.Info("presence in memory")
		return relay.NewMemoryPresence(), func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, nil, err
	}

	slog.Info("presence in redis", "addr", cfg.Addr, "db", cfg.DB)
	return relay.NewRedisPresence(rdb, "meet", 0), func() { rdb.Close() }, nil
}

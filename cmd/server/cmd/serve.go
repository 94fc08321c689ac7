package cmd

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"chat-relay/internal/api"
	"chat-relay/internal/auth"
	"chat-relay/internal/config"
	"chat-relay/internal/hub"
	"chat-relay/internal/metrics"
	"chat-relay/internal/presence"
	"chat-relay/internal/redis"
	"chat-relay/internal/ws"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "run the relay (default)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(parent context.Context) error {
	if parent == nil {
		parent = context.Background()
	}

	cfg, err := config.Load(envFile)
	if err != nil {
		return err
	}
	cfg.SetupLogger()

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gate, err := auth.NewGate(cfg.AllowedOrigins, cfg.OriginPatterns, cfg.EmitSecret)
	if err != nil {
		return err
	}
	if cfg.EmitSecret == "" {
		slog.Warn("EMIT_SECRET is not set; POST /emit will reject every request")
	}

	mode, err := presence.ParseMode(cfg.PresenceMode)
	if err != nil {
		return err
	}

	m := metrics.New()
	opts := []hub.Option{
		hub.WithGate(gate),
		hub.WithPresenceMode(mode),
		hub.WithTypingTTL(cfg.TypingTTL),
		hub.WithRecorder(m),
	}

	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = redis.NewClient(ctx, cfg.RedisURL, cfg.RedisChannel)
		if err != nil {
			return err
		}
		defer redisClient.Close()
		opts = append(opts, hub.WithPublisher(redisClient))
	}

	h := hub.NewHub(opts...)

	if redisClient != nil {
		go redis.SubscribeToEvents(ctx, redisClient, h)
	}

	wsServer := ws.NewServer(h, gate, cfg.IdentitySecret, cfg.SendBuffer)
	handler := api.NewHandler(h, gate, wsServer, m.Handler())

	server := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("server starting",
			"addr", server.Addr,
			"instance", h.InstanceID(),
			"presenceMode", mode,
			"allowedOrigins", cfg.AllowedOrigins,
			"redis", cfg.RedisURL != "",
			"identityTokens", cfg.IdentitySecret != "",
		)
		if err := server.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			slog.Error("server error", "error", err)
			return err
		}
	case <-ctx.Done():
	}

	slog.Info("server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	h.CloseAll()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

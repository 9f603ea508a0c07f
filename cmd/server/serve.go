package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ashureev/companion/internal/api"
	"github.com/ashureev/companion/internal/config"
	"github.com/ashureev/companion/internal/health"
	"github.com/ashureev/companion/internal/transport/telegram"
	"github.com/ashureev/companion/internal/transport/webchat"
	"github.com/ashureev/companion/web"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot, web chat and operational endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx)
		},
	}
}

func runServe(ctx context.Context) error {
	cfg, logger, err := loadConfig(config.Serve, os.Stdout)
	if err != nil {
		return err
	}
	slog.Info("Starting server", "port", cfg.Port, "dev", cfg.IsDevelopment())

	a, err := newApp(ctx, cfg, logger)
	if err != nil {
		slog.Error("Failed to initialize", "error", err)
		return err
	}

	tg, err := telegram.New(telegram.Config{
		Token:      cfg.Telegram.Token,
		Mode:       cfg.Telegram.Mode,
		WebhookURL: cfg.Telegram.WebhookURL,
		Debug:      cfg.Telegram.Debug,
	}, a.controller, a.dispatcher, logger)
	if err != nil {
		slog.Error("Failed to initialize Telegram bot", "error", err)
		_ = a.close(context.Background())
		return err
	}

	sm := webchat.NewSessionManager()
	routes := api.Routes{
		Metrics:  a.metrics.Handler(),
		WebChat:  webchat.NewHandler(a.controller, a.dispatcher, sm, cfg.FrontendURL, cfg.IsDevelopment()),
		Frontend: web.SPAHandler(),
	}
	if cfg.Telegram.Mode == config.TelegramWebhook {
		routes.Webhook = tg.WebhookHandler()
	}
	router := api.NewRouter(api.NewHandler(a.store, cfg.IsDevelopment()), cfg.FrontendURL, routes)

	// No WriteTimeout: web chat connections are long-lived.
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	errc := make(chan error, 3)
	go func() {
		slog.Info("Server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- fmt.Errorf("http server: %w", err)
		}
	}()

	var hs *health.Server
	if cfg.GRPCPort != "" {
		lis, err := net.Listen("tcp", ":"+cfg.GRPCPort)
		if err != nil {
			slog.Error("Failed to listen for gRPC health", "error", err)
			_ = srv.Close()
			_ = a.close(context.Background())
			return err
		}
		hs = health.New(a.store, 0, logger)
		go hs.Watch(ctx)
		go func() {
			if err := hs.Serve(lis); err != nil {
				errc <- fmt.Errorf("grpc health server: %w", err)
			}
		}()
	}

	go func() {
		if err := tg.Run(ctx); err != nil {
			errc <- fmt.Errorf("telegram: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		slog.Error("Component failed, shutting down", "error", err)
	}

	slog.Info("Shutting down gracefully...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	var result *multierror.Error
	if err := srv.Shutdown(shutdownCtx); err != nil {
		result = multierror.Append(result, fmt.Errorf("http shutdown: %w", err))
	}
	sm.CloseAll()
	if hs != nil {
		hs.Stop()
	}
	if err := a.close(shutdownCtx); err != nil {
		result = multierror.Append(result, err)
	}

	if err := result.ErrorOrNil(); err != nil {
		slog.Error("Shutdown finished with errors", "error", err)
		return err
	}
	slog.Info("Server stopped successfully")
	return nil
}

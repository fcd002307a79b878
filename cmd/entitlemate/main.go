// CLAUDE:SUMMARY Entry point for the EntitleMate relay: flags, YAML/env config, JSON slog, chi HTTP server with graceful shutdown, optional MCP over stdio.
// Command entitlemate runs the EntitleMate relay.
//
// Usage:
//
//	entitlemate                               # relay variant on :5050
//	entitlemate -variant upload               # upload variant on $PORT or :5000
//	entitlemate -config entitlemate.yaml      # settings from file, env overrides
//	entitlemate -mcp                          # serve MCP tools on stdio instead of HTTP
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/hazyhaar/entitlemate/entitlements"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "path to entitlemate.yaml config file")
	variant := flag.String("variant", "", "route set: relay or upload")
	addr := flag.String("addr", "", "listen address (overrides PORT)")
	logLevel := flag.String("log-level", env("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	mcpMode := flag.Bool("mcp", false, "serve MCP tools on stdin/stdout instead of HTTP")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	// stdout belongs to the MCP transport in -mcp mode.
	out := os.Stdout
	if *mcpMode {
		out = os.Stderr
	}
	logger := slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := resolveConfig(*configPath, *variant, *addr)
	if err != nil {
		logger.Error("entitlemate: config", "error", err)
		os.Exit(1)
	}

	if err := run(ctx, logger, cfg, *mcpMode); err != nil {
		logger.Error("entitlemate: fatal", "error", err)
		os.Exit(1)
	}
}

// resolveConfig layers file, environment and flags, in that order.
func resolveConfig(configPath, variant, addr string) (*entitlements.Config, error) {
	cfg := &entitlements.Config{}
	if configPath != "" {
		c, err := entitlements.LoadConfigFile(configPath)
		if err != nil {
			return nil, err
		}
		cfg = c
	}
	if err := entitlements.ApplyEnv(cfg); err != nil {
		return nil, err
	}
	if variant != "" {
		cfg.Variant = entitlements.Variant(variant)
	}
	if addr != "" {
		cfg.Addr = addr
	}
	return cfg, nil
}

func run(ctx context.Context, logger *slog.Logger, cfg *entitlements.Config, mcpMode bool) error {
	svc, err := entitlements.New(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("init: %w", err)
	}
	defer svc.Close()

	if mcpMode {
		srv := mcp.NewServer(&mcp.Implementation{Name: "entitlemate", Version: version}, nil)
		svc.RegisterMCP(srv)
		logger.Info("entitlemate: serving MCP on stdio")
		if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp: %w", err)
		}
		return nil
	}

	srv := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           svc.Handler(ctx),
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		logger.Info("entitlemate: server starting",
			"addr", srv.Addr,
			"variant", cfg.Variant,
			"version", version,
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		if err != nil {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}
	logger.Info("entitlemate: shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	logger.Info("entitlemate: server stopped")
	return nil
}

func env(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

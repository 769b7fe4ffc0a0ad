package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lin-gate/lingate/internal/adapter/inbound/admin"
	"github.com/lin-gate/lingate/internal/adapter/inbound/http"
	"github.com/lin-gate/lingate/internal/adapter/outbound/sqlite"
	"github.com/lin-gate/lingate/internal/adapter/outbound/upstream"
	"github.com/lin-gate/lingate/internal/config"
	"github.com/lin-gate/lingate/internal/cryptor"
	"github.com/lin-gate/lingate/internal/domain/auth"
	"github.com/lin-gate/lingate/internal/domain/setting"
	"github.com/lin-gate/lingate/internal/service"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the proxy server",
	Long: `Start the lingate proxy server.

The server listens on a single port and serves:
  - the endpoint-facing intercept route (default /public-interface.php)
  - the admin API under /admin/api/
  - /health and /metrics

Examples:
  # Start with config file settings
  lingate start

  # Start with a specific config file
  lingate --config /path/to/lingate.yaml start`,
	RunE: runStart,
}

func init() {
	rootCmd.AddCommand(startCmd)
}

func runStart(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Create signal context for graceful shutdown.
	// stop() restores default signal handling so a second Ctrl+C does a hard kill.
	ctx, stop := signal.NotifyContext(context.Background(), gracefulSignals()...)
	go func() {
		<-ctx.Done()
		stop() // Restore default: next Ctrl+C = immediate exit.
	}()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: parseLogLevel(cfg.Server.LogLevel),
	}))

	// Write PID file so "lingate stop" can find us.
	pidPath := pidFilePath()
	if err := writePIDFile(pidPath); err != nil {
		logger.Warn("failed to write PID file", "path", pidPath, "error", err)
	} else {
		defer os.Remove(pidPath)
	}

	if err := run(ctx, cfg, logger); err != nil {
		return err
	}

	logger.Info("lingate stopped")
	return nil
}

// run wires all components together and serves until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	db, err := sqlite.Open(cfg.DB.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	if err := sqlite.Bootstrap(ctx, db); err != nil {
		return fmt.Errorf("failed to bootstrap database: %w", err)
	}
	logger.Info("database ready", "path", cfg.DB.Path)

	ruleStore := sqlite.NewRuleStore(db)
	logStore := sqlite.NewLogStore(db)
	settingStore := sqlite.NewSettingStore(db)
	commandStore := sqlite.NewCommandStore(db)

	// The persisted target_url wins over config so the admin API can repoint
	// the proxy without a restart-and-redeploy cycle.
	targetURL := cfg.Upstream.TargetURL
	if stored, err := settingStore.Get(ctx, setting.KeyTargetURL); err == nil && stored != "" {
		targetURL = stored
	}

	codec, err := cryptor.New([]byte(cfg.Crypto.Key), []byte(cfg.Crypto.IV))
	if err != nil {
		return fmt.Errorf("failed to create cryptor: %w", err)
	}

	client := upstream.New(targetURL, upstream.WithTimeout(cfg.UpstreamTimeout()))
	logger.Info("upstream configured", "target_url", targetURL, "timeout", cfg.UpstreamTimeout())

	svc := service.NewInterceptService(codec, ruleStore, logStore, client,
		service.WithCommandStore(commandStore),
		service.WithLogger(logger),
	)

	issuer := auth.NewTokenIssuer(cfg.Admin.JWTSecret, cfg.AdminTokenTTL())
	adminHandler := admin.NewHandler(settingStore, ruleStore, logStore, commandStore, issuer,
		admin.WithLogger(logger),
	)

	transport := http.NewTransport(svc,
		http.WithAddr(fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)),
		http.WithInterceptPath(cfg.Server.InterceptPath),
		http.WithAdminHandler(adminHandler.Routes()),
		http.WithHealthChecker(http.NewHealthChecker(db, Version)),
		http.WithLogger(logger),
	)

	// The transport owns the Prometheus registry, so the pipeline's metrics
	// hook is wired after both sides exist.
	svc.SetMetrics(transport.Metrics())

	logger.Info("lingate starting",
		"version", Version,
		"addr", fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		"intercept_path", cfg.Server.InterceptPath,
		"db", cfg.DB.Path,
	)

	return transport.Start(ctx)
}

// parseLogLevel converts a string log level to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// pidFilePath returns the standard location for the lingate PID file.
func pidFilePath() string {
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".lingate", "server.pid")
	}
	return filepath.Join(os.TempDir(), "lingate-server.pid")
}

// writePIDFile writes the current process PID to the given path, creating
// parent directories as needed.
func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(fmt.Sprintf("%d\n", os.Getpid())), 0644)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/trace"

	"github.com/gonzalop/miniftp/internal/config"
	"github.com/gonzalop/miniftp/internal/logger"
	"github.com/gonzalop/miniftp/internal/metrics"
	"github.com/gonzalop/miniftp/internal/telemetry"
	"github.com/gonzalop/miniftp/server"
)

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the FTP server in the foreground",
	Long: `Start the FTP server and run until SIGINT or SIGTERM.

Examples:
  # Defaults: listen on :21, data port 20, user root/root
  miniftpd start

  # Custom config file
  miniftpd start --config /etc/miniftp/config.yaml

  # Unprivileged ports for local testing
  MINIFTP_SERVER_LISTEN=:2121 MINIFTP_SERVER_DATA_PORT=0 miniftpd start`,
	RunE: runStart,
}

func runStart(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	log, closeLog, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer closeLog()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	tp, telemetryShutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    "miniftpd",
		ServiceVersion: Version,
		Endpoint:       cfg.Telemetry.Endpoint,
		Insecure:       cfg.Telemetry.Insecure,
		SampleRate:     cfg.Telemetry.SampleRate,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	defer func() {
		if err := telemetryShutdown(context.Background()); err != nil {
			log.Error("telemetry_shutdown_error", "error", err)
		}
	}()

	var collector *metrics.Collector
	var metricsServer *metrics.HTTPServer
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		collector = metrics.NewCollector(reg)
		metricsServer = metrics.NewHTTPServer(cfg.Metrics.Listen, reg, log)
		go func() {
			if err := metricsServer.ListenAndServe(); err != nil {
				log.Error("metrics_server_error", "error", err)
			}
		}()
	}

	srv, closeXferlog, err := buildServer(cfg, log, tp, collector)
	if err != nil {
		return err
	}
	defer closeXferlog()

	log.Info("config_loaded",
		"source", configSource(cfgFile),
		"users", len(cfg.Users),
		"root_dir", cfg.Server.RootDir,
		"telemetry", cfg.Telemetry.Enabled,
		"metrics", cfg.Metrics.Enabled,
	)

	serveErr := make(chan error, 1)
	go func() { serveErr <- srv.ListenAndServe() }()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	log.Info("shutdown_started", "timeout", cfg.Server.ShutdownTimeout)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if metricsServer != nil {
		_ = metricsServer.Shutdown(shutdownCtx)
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	if err := <-serveErr; err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}

	log.Info("server_stopped")
	return nil
}

// buildServer turns the configuration into a server. The returned function
// closes the transfer log, if one was opened.
func buildServer(cfg *config.Config, log *slog.Logger, tp trace.TracerProvider, collector *metrics.Collector) (*server.Server, func() error, error) {
	driver, err := server.NewOSDriver(cfg.Server.RootDir)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid root_dir: %w", err)
	}

	rate, err := cfg.Server.TransferRate()
	if err != nil {
		return nil, nil, err
	}

	opts := []server.Option{
		server.WithDriver(driver),
		server.WithCredentials(server.StaticCredentials(cfg.Credentials())),
		server.WithLogger(log),
		server.WithWelcomeMessage(cfg.Server.WelcomeMessage),
		server.WithDataPort(cfg.Server.DataPort),
		server.WithDataTimeout(cfg.Server.DataTimeout),
		server.WithMaxIdleTime(cfg.Server.MaxIdleTime),
		server.WithMaxConnections(cfg.Server.MaxConnections),
		server.WithStrictPort(cfg.Server.StrictPort),
		server.WithTransferRateLimit(rate),
		server.WithTracerProvider(tp),
	}
	if collector != nil {
		opts = append(opts, server.WithMetricsCollector(collector))
	}

	closeFn := func() error { return nil }
	if cfg.Server.TransferLog != "" {
		f, err := os.OpenFile(cfg.Server.TransferLog, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open transfer log: %w", err)
		}
		opts = append(opts, server.WithTransferLog(f))
		closeFn = f.Close
	}

	srv, err := server.NewServer(cfg.Server.Listen, opts...)
	if err != nil {
		_ = closeFn()
		return nil, nil, err
	}
	return srv, closeFn, nil
}

func configSource(path string) string {
	if path != "" {
		return path
	}
	if _, err := os.Stat(config.DefaultConfigPath()); err == nil {
		return config.DefaultConfigPath()
	}
	return "defaults"
}

package server

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Option is a functional option for configuring an FTP server.
type Option func(*Server) error

// WithDriver sets the filesystem driver used by STOR and RETR.
// It can only be set once. Without it the server uses the local filesystem
// with paths taken exactly as sent by the client.
//
// Example:
//
//	driver, _ := server.NewOSDriver("/tmp/ftp")
//	s, _ := server.NewServer(":21", server.WithDriver(driver))
func WithDriver(driver Driver) Option {
	return func(s *Server) error {
		if s.driver != nil {
			return fmt.Errorf("driver already set")
		}
		s.driver = driver
		return nil
	}
}

// WithCredentials sets the store consulted by PASS.
func WithCredentials(store CredentialStore) Option {
	return func(s *Server) error {
		if store == nil {
			return fmt.Errorf("credential store must not be nil")
		}
		s.credentials = store
		return nil
	}
}

// WithLogger sets a custom logger for the server.
// If not specified, slog.Default() is used.
//
// Example with debug logging:
//
//	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	s, _ := server.NewServer(":21", server.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) error {
		s.logger = logger
		return nil
	}
}

// WithWelcomeMessage sets the greeting sent on connect. A message without a
// leading "220" code gets one.
func WithWelcomeMessage(msg string) Option {
	return func(s *Server) error {
		if !strings.HasPrefix(msg, "220") {
			msg = "220 " + msg
		}
		s.welcomeMessage = msg
		return nil
	}
}

// WithDataPort sets the local port active data connections originate from.
// Port 20 usually needs elevated privileges; 0 picks an ephemeral port.
func WithDataPort(port int) Option {
	return func(s *Server) error {
		if port < 0 || port > 65535 {
			return fmt.Errorf("invalid data port: %d", port)
		}
		s.dataPort = port
		return nil
	}
}

// WithDataTimeout bounds how long the server waits to connect to a client's
// data address.
func WithDataTimeout(d time.Duration) Option {
	return func(s *Server) error {
		s.dataTimeout = d
		return nil
	}
}

// WithMaxIdleTime sets the maximum time a connection can be idle before being closed.
// If not specified, defaults to 5 minutes.
//
// Example:
//
//	s, _ := server.NewServer(":21",
//	    server.WithMaxIdleTime(10*time.Minute),
//	)
func WithMaxIdleTime(duration time.Duration) Option {
	return func(s *Server) error {
		s.maxIdleTime = duration
		return nil
	}
}

// WithMaxConnections sets the maximum number of simultaneous connections.
// If 0, there is no limit. This is the default.
//
// When the limit is reached, new connections receive a "421 Too many users" response.
func WithMaxConnections(max int) Option {
	return func(s *Server) error {
		if max < 0 {
			return fmt.Errorf("invalid max connections: %d", max)
		}
		s.maxConnections = max
		return nil
	}
}

// WithStrictPort rejects PORT commands whose host differs from the client's
// own address. This prevents FTP bounce attacks.
func WithStrictPort(strict bool) Option {
	return func(s *Server) error {
		s.strictPort = strict
		return nil
	}
}

// WithTransferLog writes one xferlog-format line per completed transfer to w.
func WithTransferLog(w io.Writer) Option {
	return func(s *Server) error {
		s.transferLog = w
		return nil
	}
}

// WithTransferRateLimit caps the throughput of every data connection at
// bytesPerSecond. 0 disables the limit. The limit is per transfer, not shared
// between sessions.
func WithTransferRateLimit(bytesPerSecond int64) Option {
	return func(s *Server) error {
		if bytesPerSecond < 0 {
			return fmt.Errorf("invalid transfer rate limit: %d", bytesPerSecond)
		}
		s.transferRate = bytesPerSecond
		return nil
	}
}

// WithMetricsCollector sets an optional metrics collector.
func WithMetricsCollector(collector MetricsCollector) Option {
	return func(s *Server) error {
		s.metricsCollector = collector
		return nil
	}
}

// WithTracerProvider sets the provider STOR/RETR spans are created from.
// If not specified, the global provider is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Server) error {
		s.tracer = tp.Tracer(tracerName)
		return nil
	}
}

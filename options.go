package ftp

import (
	"log/slog"
	"net"
	"time"
)

// Option is a functional option for configuring an FTP client.
type Option func(*Client) error

// WithTimeout sets the timeout for connection and operations.
// This applies to the initial connection, every command reply and the wait
// for the server to dial the data connection.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) error {
		c.timeout = timeout
		return nil
	}
}

// WithLogger enables debug logging using the provided logger.
// All FTP commands and responses will be logged at debug level.
//
// Example:
//
//	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	}))
//	client, _ := ftp.Dial("127.0.0.1:21", ftp.WithLogger(logger))
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) error {
		c.logger = logger
		return nil
	}
}

// WithDialer sets a custom net.Dialer for establishing connections.
// This can be used to configure source addresses, keep-alive settings, etc.
func WithDialer(dialer *net.Dialer) Option {
	return func(c *Client) error {
		c.dialer = dialer
		return nil
	}
}

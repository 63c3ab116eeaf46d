package ftp

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"
	"time"
)

// Client represents an FTP client connection.
type Client struct {
	// conn is the underlying network connection (control channel)
	conn net.Conn

	// reader is a buffered reader for the control channel
	reader *bufio.Reader

	// timeout is the timeout for operations
	timeout time.Duration

	// logger is used for debug logging
	logger *slog.Logger

	// dialer is used to establish connections
	dialer *net.Dialer

	// host and port for the connection
	host string
	port string

	// currentType tracks the current transfer type to avoid redundant TYPE commands
	currentType string

	// mu serializes commands on the control connection
	mu sync.Mutex
}

// Dial connects to an FTP server at the given address and reads its
// greeting. The address should be in the form "host:port".
//
// Example:
//
//	client, err := ftp.Dial("127.0.0.1:21")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
func Dial(addr string, options ...Option) (*Client, error) {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return nil, fmt.Errorf("invalid address: %w", err)
	}

	c := &Client{
		host:    host,
		port:    port,
		timeout: 30 * time.Second,
		dialer:  &net.Dialer{},
		logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	}

	for _, opt := range options {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	c.dialer.Timeout = c.timeout

	if err := c.connect(); err != nil {
		return nil, err
	}

	return c, nil
}

// connect establishes the control connection and reads the greeting.
func (c *Client) connect() error {
	addr := net.JoinHostPort(c.host, c.port)
	c.logger.Debug("connecting to ftp server", "addr", addr)

	conn, err := c.dialer.Dial("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	c.conn = conn
	c.reader = bufio.NewReader(conn)

	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			c.conn.Close()
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		c.conn.Close()
		return fmt.Errorf("failed to read greeting: %w", err)
	}

	c.logger.Debug("ftp greeting", "code", resp.Code, "message", resp.Message)

	if resp.Code != 220 {
		c.conn.Close()
		return &ProtocolError{
			Command:  "CONNECT",
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	return nil
}

// Login authenticates with the FTP server using the provided username and password.
func (c *Client) Login(username, password string) error {
	resp, err := c.sendCommand("USER", username)
	if err != nil {
		return err
	}

	if resp.Code != 331 {
		return &ProtocolError{
			Command:  "USER",
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	if _, err := c.expectCode(230, "PASS", password); err != nil {
		return err
	}

	return nil
}

// Type sets the transfer type. Only "I" (binary) is accepted by the server.
func (c *Client) Type(transferType string) error {
	if c.currentType == transferType {
		c.logger.Debug("transfer type already set, skipping TYPE command", "type", transferType)
		return nil
	}

	if _, err := c.expectCode(200, "TYPE", transferType); err != nil {
		return err
	}

	c.currentType = transferType
	return nil
}

// Quote sends a raw command to the server and returns the response.
//
// Example:
//
//	resp, err := client.Quote("TYPE", "A")
func (c *Client) Quote(command string, args ...string) (*Response, error) {
	return c.sendCommand(command, args...)
}

// Close closes the control connection. The server has no QUIT command;
// hanging up ends the session.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

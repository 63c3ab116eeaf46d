package ftp

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/gonzalop/miniftp/internal/portarg"
)

// formatPORT formats a listener address for the PORT command.
// Converts "192.168.1.100:50000" to "192,168,1,100,195,80"
func formatPORT(addr string) (string, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return "", err
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return "", fmt.Errorf("invalid port: %s", portStr)
	}
	return portarg.Format(host, port)
}

// openDataConn opens a listener on the control connection's local IP,
// advertises it with PORT, and returns a connection that accepts the
// server's dial on first use.
func (c *Client) openDataConn() (net.Conn, error) {
	host, _, err := net.SplitHostPort(c.conn.LocalAddr().String())
	if err != nil {
		host = "127.0.0.1"
	}

	listener, err := net.Listen("tcp", net.JoinHostPort(host, "0"))
	if err != nil {
		return nil, fmt.Errorf("failed to create listener: %w", err)
	}

	portArg, err := formatPORT(listener.Addr().String())
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to format PORT command: %w", err)
	}

	if _, err := c.expectCode(200, "PORT", portArg); err != nil {
		listener.Close()
		return nil, err
	}

	// The server dials only after the transfer command is sent, so the
	// accept is deferred to the first read or write.
	return &activeDataConn{
		listener: listener,
		timeout:  c.timeout,
	}, nil
}

// activeDataConn wraps a listener for active mode connections.
type activeDataConn struct {
	listener net.Listener
	conn     net.Conn
	timeout  time.Duration
}

func (a *activeDataConn) accept() error {
	if a.timeout > 0 {
		if l, ok := a.listener.(*net.TCPListener); ok {
			_ = l.SetDeadline(time.Now().Add(a.timeout))
		}
	}
	c, err := a.listener.Accept()
	if err != nil {
		return err
	}
	a.conn = c
	return nil
}

func (a *activeDataConn) Read(p []byte) (n int, err error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetReadDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Read(p)
}

func (a *activeDataConn) Write(p []byte) (n int, err error) {
	if a.conn == nil {
		if err := a.accept(); err != nil {
			return 0, err
		}
	}
	if a.timeout > 0 {
		_ = a.conn.SetWriteDeadline(time.Now().Add(a.timeout))
	}
	return a.conn.Write(p)
}

// Close closes the accepted connection, accepting it first if nothing was
// transferred, so an empty upload still reaches the server as end of stream.
func (a *activeDataConn) Close() error {
	if a.conn == nil && a.listener != nil {
		_ = a.accept()
	}

	var err1, err2 error
	if a.conn != nil {
		err1 = a.conn.Close()
	}
	if a.listener != nil {
		err2 = a.listener.Close()
	}
	if err1 != nil {
		return err1
	}
	return err2
}

func (a *activeDataConn) LocalAddr() net.Addr {
	if a.conn != nil {
		return a.conn.LocalAddr()
	}
	return a.listener.Addr()
}

func (a *activeDataConn) RemoteAddr() net.Addr {
	if a.conn != nil {
		return a.conn.RemoteAddr()
	}
	return nil
}

func (a *activeDataConn) SetDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetReadDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetReadDeadline(t)
	}
	return nil
}

func (a *activeDataConn) SetWriteDeadline(t time.Time) error {
	if a.conn != nil {
		return a.conn.SetWriteDeadline(t)
	}
	return nil
}

// cmdDataConnFrom executes a command that requires a data connection.
// It sends PORT, then the command, and expects a 1xx reply.
// The caller is responsible for calling finishDataConn.
func (c *Client) cmdDataConnFrom(cmd string, args ...string) (net.Conn, error) {
	dataConn, err := c.openDataConn()
	if err != nil {
		return nil, err
	}

	resp, err := c.sendCommand(cmd, args...)
	if err != nil {
		dataConn.(*activeDataConn).listener.Close()
		return nil, err
	}

	if !resp.Is1xx() {
		dataConn.(*activeDataConn).listener.Close()
		return nil, &ProtocolError{
			Command:  cmd,
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	return dataConn, nil
}

// finishDataConn closes the data connection and reads the final response.
// This should be called after the data transfer is complete.
func (c *Client) finishDataConn(cmd string, dataConn net.Conn) error {
	if err := dataConn.Close(); err != nil {
		return fmt.Errorf("failed to close data connection: %w", err)
	}

	c.mu.Lock()
	resp, err := c.readReply()
	c.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to read completion response: %w", err)
	}

	c.logger.Debug("ftp data transfer complete", "code", resp.Code, "message", resp.Message)

	if resp.Code != 226 {
		return &ProtocolError{
			Command:  cmd,
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	return nil
}

package ftp

import (
	"bufio"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Response represents an FTP server response.
type Response struct {
	// Code is the three-digit response code (e.g., 220, 550)
	Code int

	// Message is the human-readable message from the server
	Message string
}

// Is1xx returns true if the response code is in the 1xx range (preliminary).
func (r *Response) Is1xx() bool {
	return r.Code >= 100 && r.Code < 200
}

// Is2xx returns true if the response code is in the 2xx range (success).
func (r *Response) Is2xx() bool {
	return r.Code >= 200 && r.Code < 300
}

// String returns the response as it appeared on the wire, without CRLF.
func (r *Response) String() string {
	return fmt.Sprintf("%03d %s", r.Code, r.Message)
}

// readResponse reads a single "<code> <message>" response line.
func readResponse(r *bufio.Reader) (*Response, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}

	line = strings.TrimRight(line, "\r\n")
	if len(line) < 4 || line[3] != ' ' {
		return nil, fmt.Errorf("invalid response line: %q", line)
	}

	code, err := strconv.Atoi(line[0:3])
	if err != nil {
		return nil, fmt.Errorf("invalid response code: %q", line[0:3])
	}

	return &Response{
		Code:    code,
		Message: line[4:],
	}, nil
}

// sendCommand sends an FTP command and returns the response.
func (c *Client) sendCommand(command string, args ...string) (*Response, error) {
	cmd := command
	if len(args) > 0 {
		cmd = fmt.Sprintf("%s %s", command, strings.Join(args, " "))
	}

	logCmd := cmd
	if command == "PASS" {
		logCmd = "PASS ***"
	}
	c.logger.Debug("ftp command", "cmd", logCmd)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.timeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set write deadline: %w", err)
		}
	}

	if _, err := fmt.Fprintf(c.conn, "%s\r\n", cmd); err != nil {
		return nil, fmt.Errorf("failed to send command: %w", err)
	}

	resp, err := c.readReply()
	if err != nil {
		return nil, err
	}

	c.logger.Debug("ftp response", "code", resp.Code, "message", resp.Message)
	return resp, nil
}

// readReply reads the next response with the client timeout applied.
func (c *Client) readReply() (*Response, error) {
	if c.timeout > 0 {
		if err := c.conn.SetReadDeadline(time.Now().Add(c.timeout)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	resp, err := readResponse(c.reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	return resp, nil
}

// expectCode sends a command and verifies the response code matches the expected code.
// Returns an error if the code doesn't match or if the command fails.
func (c *Client) expectCode(expectedCode int, command string, args ...string) (*Response, error) {
	resp, err := c.sendCommand(command, args...)
	if err != nil {
		return nil, err
	}

	if resp.Code != expectedCode {
		return resp, &ProtocolError{
			Command:  command,
			Response: resp.Message,
			Code:     resp.Code,
		}
	}

	return resp, nil
}

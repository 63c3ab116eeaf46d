package server

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

// dataChannel is a single outbound data connection carrying exactly one
// file. It is closed once the transfer finishes in either direction.
type dataChannel struct {
	conn net.Conn
	addr Address

	// ctx bounds throttled copies. limiter is nil for unlimited transfers.
	ctx     context.Context
	limiter *ratelimit.Limiter
}

// dialConfig describes the local side of an active-mode data connection.
type dialConfig struct {
	// localIP is the address the data socket binds to. Normally the local
	// address of the control connection.
	localIP net.IP

	// port is the local data port. 0 picks an ephemeral port.
	port int

	timeout time.Duration
}

// openActive connects from the local data port to the address the client
// advertised with PORT. The server always dials; it never listens for data
// connections.
func openActive(ctx context.Context, cfg dialConfig, addr Address) (*dataChannel, error) {
	dialer := &net.Dialer{
		LocalAddr: &net.TCPAddr{IP: cfg.localIP, Port: cfg.port},
		Timeout:   cfg.timeout,
		Control:   dataSocketControl,
	}

	conn, err := dialer.DialContext(ctx, "tcp", addr.String())
	if err != nil {
		return nil, &DataConnectError{Addr: addr.String(), Err: err}
	}

	return &dataChannel{conn: conn, addr: addr, ctx: ctx}, nil
}

// sendFile streams path to the client. onOpen is called once the file has
// been opened and before any byte is sent.
//
// An open failure is returned as a *FileError with Op "read" and leaves the
// channel untouched. A failure while copying is returned as a
// *DataConnectError. The channel is closed in both success and copy failure
// cases so the client sees end of stream.
func (c *dataChannel) sendFile(driver Driver, path string, onOpen func() error) (int64, error) {
	src, err := driver.Open(path)
	if err != nil {
		return 0, &FileError{Op: "read", Path: path, Err: err}
	}
	defer src.Close()

	if onOpen != nil {
		if err := onOpen(); err != nil {
			return 0, err
		}
	}

	n, err := io.Copy(ratelimit.NewWriter(c.copyContext(), c.conn, c.limiter), src)
	closeErr := c.conn.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return n, &DataConnectError{Addr: c.addr.String(), Err: err}
	}

	return n, nil
}

// receiveFile reads from the channel until the client closes it and writes
// every byte to path, creating or truncating the file.
//
// An open failure is returned as a *FileError with Op "write". A channel
// failure mid-transfer is returned as a *DataConnectError and the partially
// written file is removed. A failure writing the file is returned as a
// *FileError with Op "write" and the file is removed as well.
func (c *dataChannel) receiveFile(driver Driver, path string, onOpen func() error) (int64, error) {
	dst, err := driver.Create(path)
	if err != nil {
		return 0, &FileError{Op: "write", Path: path, Err: err}
	}

	if onOpen != nil {
		if err := onOpen(); err != nil {
			_ = dst.Close()
			_ = driver.Remove(path)
			return 0, err
		}
	}

	n, err := copyFromChannel(dst, ratelimit.NewReader(c.copyContext(), c.conn, c.limiter))
	_ = c.conn.Close()
	closeErr := dst.Close()

	if err == nil && closeErr != nil {
		err = &FileError{Op: "write", Path: path, Err: closeErr}
	}
	if err != nil {
		var fileErr *FileError
		if errors.As(err, &fileErr) {
			fileErr.Path = path
		} else {
			err = &DataConnectError{Addr: c.addr.String(), Err: err}
		}
		_ = driver.Remove(path)
		return n, err
	}

	return n, nil
}

func (c *dataChannel) copyContext() context.Context {
	if c.ctx == nil {
		return context.Background()
	}
	return c.ctx
}

// close releases the connection. Safe to call after a transfer already
// closed it.
func (c *dataChannel) close() error {
	return c.conn.Close()
}

// copyFromChannel is io.Copy that tells write failures (the file) apart from
// read failures (the channel).
func copyFromChannel(dst io.Writer, src io.Reader) (int64, error) {
	buf := make([]byte, 32*1024)
	var written int64
	for {
		nr, rerr := src.Read(buf)
		if nr > 0 {
			nw, werr := dst.Write(buf[:nr])
			written += int64(nw)
			if werr == nil && nw != nr {
				werr = io.ErrShortWrite
			}
			if werr != nil {
				return written, &FileError{Op: "write", Err: werr}
			}
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, rerr
		}
	}
}

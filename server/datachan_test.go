package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strconv"
	"syscall"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

// listenAddress returns a loopback listener and its address as an Address.
func listenAddress(t *testing.T) (net.Listener, Address) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	port, _ := strconv.Atoi(portStr)
	return ln, Address{Host: "127.0.0.1", Port: port}
}

func testDialConfig() dialConfig {
	return dialConfig{localIP: net.IPv4(127, 0, 0, 1), port: 0, timeout: 2 * time.Second}
}

func TestOpenActive_SendFile(t *testing.T) {
	t.Parallel()
	ln, addr := listenAddress(t)

	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "hello.txt", []byte("hello over data"), 0o644))
	driver := NewFSDriver(fs)

	received := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- nil
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- data
	}()

	ch, err := openActive(context.Background(), testDialConfig(), addr)
	require.NoError(t, err)

	opened := false
	n, err := ch.sendFile(driver, "hello.txt", func() error {
		opened = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, opened)
	assert.EqualValues(t, 15, n)
	assert.Equal(t, []byte("hello over data"), <-received)
}

func TestOpenActive_ReceiveFile(t *testing.T) {
	t.Parallel()
	ln, addr := listenAddress(t)

	fs := afero.NewMemMapFs()
	driver := NewFSDriver(fs)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		_, _ = conn.Write([]byte("uploaded bytes"))
		conn.Close()
	}()

	ch, err := openActive(context.Background(), testDialConfig(), addr)
	require.NoError(t, err)

	n, err := ch.receiveFile(driver, "up.bin", nil)
	require.NoError(t, err)
	assert.EqualValues(t, 14, n)

	data, err := afero.ReadFile(fs, "up.bin")
	require.NoError(t, err)
	assert.Equal(t, "uploaded bytes", string(data))
}

func TestOpenActive_ConnectionRefused(t *testing.T) {
	t.Parallel()
	ln, addr := listenAddress(t)
	ln.Close()

	_, err := openActive(context.Background(), testDialConfig(), addr)
	var dce *DataConnectError
	require.ErrorAs(t, err, &dce)
	assert.Equal(t, addr.String(), dce.Addr)
	assert.ErrorIs(t, err, syscall.ECONNREFUSED)
}

func TestSendFile_Missing(t *testing.T) {
	t.Parallel()
	client, srv := net.Pipe()
	defer client.Close()

	ch := &dataChannel{conn: srv, addr: Address{Host: "127.0.0.1", Port: 1}}
	called := false
	_, err := ch.sendFile(NewFSDriver(afero.NewMemMapFs()), "missing", func() error {
		called = true
		return nil
	})

	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "read", fe.Op)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.False(t, called, "nothing is announced for a file that cannot be opened")
}

func TestReceiveFile_Unwritable(t *testing.T) {
	t.Parallel()
	client, srv := net.Pipe()
	defer client.Close()

	driver := NewFSDriver(afero.NewReadOnlyFs(afero.NewMemMapFs()))
	ch := &dataChannel{conn: srv, addr: Address{Host: "127.0.0.1", Port: 1}}

	_, err := ch.receiveFile(driver, "out.bin", nil)
	var fe *FileError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "write", fe.Op)
	assert.Equal(t, "out.bin", fe.Path)
}

// brokenConn delivers some bytes and then fails like a reset connection.
type brokenConn struct {
	net.Conn
	data []byte
}

func (c *brokenConn) Read(p []byte) (int, error) {
	if len(c.data) > 0 {
		n := copy(p, c.data)
		c.data = c.data[n:]
		return n, nil
	}
	return 0, syscall.ECONNRESET
}

func (c *brokenConn) Close() error { return nil }

func TestReceiveFile_AbortRemovesPartialFile(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	driver := NewFSDriver(fs)

	ch := &dataChannel{
		conn: &brokenConn{data: []byte("partial")},
		addr: Address{Host: "127.0.0.1", Port: 1},
	}

	n, err := ch.receiveFile(driver, "partial.bin", nil)
	assert.EqualValues(t, 7, n)

	var dce *DataConnectError
	require.ErrorAs(t, err, &dce)
	assert.True(t, errors.Is(err, syscall.ECONNRESET))

	exists, err := afero.Exists(fs, "partial.bin")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestReceiveFile_OnOpenFailure(t *testing.T) {
	t.Parallel()
	fs := afero.NewMemMapFs()
	driver := NewFSDriver(fs)

	ch := &dataChannel{conn: &brokenConn{}, addr: Address{Host: "127.0.0.1", Port: 1}}
	announceErr := errors.New("control connection gone")

	_, err := ch.receiveFile(driver, "never.bin", func() error { return announceErr })
	assert.ErrorIs(t, err, announceErr)

	exists, _ := afero.Exists(fs, "never.bin")
	assert.False(t, exists)
}

func TestSendFile_RateLimited(t *testing.T) {
	t.Parallel()
	ln, addr := listenAddress(t)

	fs := afero.NewMemMapFs()
	payload := make([]byte, 48*1024)
	require.NoError(t, afero.WriteFile(fs, "slow.bin", payload, 0o644))

	received := make(chan int, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			received <- -1
			return
		}
		defer conn.Close()
		data, _ := io.ReadAll(conn)
		received <- len(data)
	}()

	ch, err := openActive(context.Background(), testDialConfig(), addr)
	require.NoError(t, err)
	// 32 KiB/s: the first 32 KiB burst is immediate, the rest takes ~0.5s.
	ch.limiter = ratelimit.New(32 * 1024)

	start := time.Now()
	n, err := ch.sendFile(NewFSDriver(fs), "slow.bin", nil)
	require.NoError(t, err)
	assert.EqualValues(t, len(payload), n)
	assert.GreaterOrEqual(t, time.Since(start), 400*time.Millisecond)
	assert.Equal(t, len(payload), <-received)
}

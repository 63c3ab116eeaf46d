package ftp

import (
	"bytes"
	"context"
	"crypto/rand"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gonzalop/miniftp/server"
)

// startServer runs a server rooted at a temporary directory and returns its
// address and root.
func startServer(t *testing.T) (string, string) {
	t.Helper()
	rootDir := t.TempDir()

	driver, err := server.NewOSDriver(rootDir)
	require.NoError(t, err)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s, err := server.NewServer(ln.Addr().String(),
		server.WithDriver(driver),
		server.WithDataPort(0),
		server.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
	require.NoError(t, err)

	go func() {
		if err := s.Serve(ln); err != nil && err != server.ErrServerClosed {
			t.Logf("Serve error: %v", err)
		}
	}()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = s.Shutdown(ctx)
	})

	return ln.Addr().String(), rootDir
}

func dialAndLogin(t *testing.T, addr string) *Client {
	t.Helper()
	c, err := Dial(addr, WithTimeout(5*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	require.NoError(t, c.Login("root", "root"))
	return c
}

func TestIntegration_StoreRetrieveRoundTrip(t *testing.T) {
	t.Parallel()
	addr, rootDir := startServer(t)

	payload := make([]byte, 256*1024)
	_, err := rand.Read(payload)
	require.NoError(t, err)

	c := dialAndLogin(t, addr)
	require.NoError(t, c.Store("blob.bin", bytes.NewReader(payload)))

	onDisk, err := os.ReadFile(filepath.Join(rootDir, "blob.bin"))
	require.NoError(t, err)
	assert.Equal(t, payload, onDisk)

	// A second session reads the same bytes back.
	c2 := dialAndLogin(t, addr)
	var buf bytes.Buffer
	require.NoError(t, c2.Retrieve("blob.bin", &buf))
	assert.Equal(t, payload, buf.Bytes())
}

func TestIntegration_EmptyFile(t *testing.T) {
	t.Parallel()
	addr, rootDir := startServer(t)

	c := dialAndLogin(t, addr)
	require.NoError(t, c.Store("empty", bytes.NewReader(nil)))

	info, err := os.Stat(filepath.Join(rootDir, "empty"))
	require.NoError(t, err)
	assert.Zero(t, info.Size())

	var buf bytes.Buffer
	require.NoError(t, c.Retrieve("empty", &buf))
	assert.Zero(t, buf.Len())
}

func TestIntegration_FileHelpers(t *testing.T) {
	t.Parallel()
	addr, rootDir := startServer(t)
	localDir := t.TempDir()

	src := filepath.Join(localDir, "src.txt")
	require.NoError(t, os.WriteFile(src, []byte("local content"), 0o644))

	c := dialAndLogin(t, addr)
	require.NoError(t, c.StoreFrom("remote.txt", src))

	got, err := os.ReadFile(filepath.Join(rootDir, "remote.txt"))
	require.NoError(t, err)
	assert.Equal(t, "local content", string(got))

	dst := filepath.Join(localDir, "dst.txt")
	require.NoError(t, c.RetrieveTo("remote.txt", dst))
	got, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "local content", string(got))

	// A failed download leaves no local file behind.
	missing := filepath.Join(localDir, "missing.txt")
	err = c.RetrieveTo("does-not-exist.txt", missing)
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 550, pe.Code)
	assert.NoFileExists(t, missing)
}

func TestIntegration_LoginFailure(t *testing.T) {
	t.Parallel()
	addr, _ := startServer(t)

	c, err := Dial(addr, WithTimeout(5*time.Second))
	require.NoError(t, err)
	defer c.Close()

	err = c.Login("root", "nope")
	var pe *ProtocolError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, 500, pe.Code)

	// Retry in the same session is allowed.
	require.NoError(t, c.Login("root", "root"))
}

func TestIntegration_SequentialTransfersReuseSession(t *testing.T) {
	t.Parallel()
	addr, _ := startServer(t)

	c := dialAndLogin(t, addr)
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		require.NoError(t, c.Store(name, bytes.NewReader([]byte(name))))
	}
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		var buf bytes.Buffer
		require.NoError(t, c.Retrieve(name, &buf))
		assert.Equal(t, name, buf.String())
	}
}

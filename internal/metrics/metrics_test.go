package metrics

import (
	"context"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCommand("STOR", true, 10*time.Millisecond)
	c.RecordCommand("PASS", false, time.Millisecond)
	c.RecordCommand("PASS", true, time.Millisecond)
	c.RecordTransfer("STOR", 1024, 5*time.Millisecond)
	c.RecordTransfer("RETR", 512, 5*time.Millisecond)
	c.RecordTransfer("RETR", 512, 5*time.Millisecond)
	c.RecordConnection(true, "accepted")
	c.RecordConnection(false, "global_limit_reached")
	c.RecordAuthentication(false, "root")
	c.RecordAuthentication(true, "root")

	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("STOR", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.commands.WithLabelValues("PASS", "error")))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.transfers.WithLabelValues("RETR")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.transferBytes.WithLabelValues("STOR")))
	assert.Equal(t, 1024.0, testutil.ToFloat64(c.transferBytes.WithLabelValues("RETR")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.connections.WithLabelValues("rejected", "global_limit_reached")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.authentications.WithLabelValues("ok")))

	assert.Equal(t, 2, testutil.CollectAndCount(c.transferSeconds))
}

func TestCollector_Nil(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordCommand("USER", true, 0)
		c.RecordTransfer("STOR", 1, 0)
		c.RecordConnection(true, "accepted")
		c.RecordAuthentication(true, "root")
	})
}

func TestRouter(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordTransfer("STOR", 42, time.Millisecond)

	h := NewRouter(reg)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `miniftp_transfer_bytes_total{operation="STOR"} 42`)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHTTPServer_ServeAndShutdown(t *testing.T) {
	reg := prometheus.NewRegistry()
	s := NewHTTPServer("127.0.0.1:0", reg, slog.New(slog.NewTextHandler(io.Discard, nil)))

	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- s.Serve(l) }()

	resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "ok", strings.TrimSpace(string(body)))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
	assert.NoError(t, <-done)
}

package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/dustin/go-humanize"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/gonzalop/miniftp/internal/ratelimit"
)

func (s *session) handlePORT(arg string) {
	if !s.auth.authenticated() {
		s.reply(530, "Not login")
		return
	}

	addr, err := ParseAddress(arg)
	if err != nil {
		s.server.logger.Info("port_rejected",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"error", err,
		)
		s.reply(501, "Illegal PORT command")
		return
	}

	if s.server.strictPort && !s.validateActiveIP(addr.IP()) {
		s.server.logger.Warn("port_rejected",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"reason", "address_mismatch",
			"addr", addr.String(),
		)
		s.reply(500, "Illegal PORT command")
		return
	}

	s.dataAddr = &addr
	s.reply(200, "PORT command successful")
}

// validateActiveIP ensures the data connection target matches the control connection source.
// This prevents FTP bounce attacks.
func (s *session) validateActiveIP(ip net.IP) bool {
	remoteIP := net.ParseIP(s.remoteIP)
	if remoteIP == nil || ip == nil {
		return false
	}
	return ip.Equal(remoteIP)
}

func (s *session) handleSTOR(path string) {
	if !s.auth.authenticated() {
		s.reply(530, "Not login")
		return
	}
	if !s.dataAddressReady() {
		return
	}

	s.transfer("STOR", path)
}

func (s *session) handleRETR(path string) {
	if !s.auth.authenticated() {
		s.reply(530, "Not login")
		return
	}
	if !s.dataAddressReady() {
		return
	}

	info, err := s.server.driver.Stat(path)
	if err != nil {
		s.replyError(err)
		return
	}
	if info.IsDir() {
		s.reply(550, "Not a regular file")
		return
	}

	s.transfer("RETR", path)
}

// dataAddressReady reports whether a PORT has been accepted in this session
// and answers 503 if not.
func (s *session) dataAddressReady() bool {
	if s.dataAddr != nil {
		return true
	}
	s.server.logger.Info("transfer_rejected",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"error", ErrNoDataAddress,
	)
	s.reply(503, "No data address specified, use PORT first")
	return false
}

// transfer moves one file over a fresh data channel. The 150 reply is sent
// only after both the channel and the file are open, and the 226 only after
// the channel has been closed.
func (s *session) transfer(op, path string) {
	ctx, span := s.server.tracer.Start(s.ctx, "ftp."+op,
		trace.WithSpanKind(trace.SpanKindServer),
		trace.WithAttributes(
			attribute.String("ftp.session_id", s.sessionID),
			attribute.String("ftp.user", s.user),
			attribute.String("ftp.path", path),
			attribute.String("ftp.data_addr", s.dataAddr.String()),
		),
	)
	defer span.End()

	ch, err := s.openDataChannel(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "data connection failed")
		s.server.logger.Warn("data_connect_failed",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"operation", op,
			"error", err,
		)
		s.reply(425, "Can't open data connection")
		return
	}
	defer ch.close()

	started := false
	onOpen := func() error {
		started = true
		s.reply(150, "Ok to send data")
		return s.writeErr
	}

	startTime := time.Now()
	var n int64
	if op == "STOR" {
		n, err = ch.receiveFile(s.server.driver, path, onOpen)
	} else {
		n, err = ch.sendFile(s.server.driver, path, onOpen)
	}
	duration := time.Since(startTime)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "transfer failed")
		s.replyTransferError(op, path, started, err)
		return
	}

	span.SetAttributes(attribute.Int64("ftp.bytes", n))

	throughputMBps := float64(0)
	if duration.Seconds() > 0 {
		throughputMBps = float64(n) / duration.Seconds() / 1024 / 1024
	}

	s.server.logger.Info("transfer_complete",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", op,
		"path", path,
		"bytes", n,
		"size", humanize.Bytes(uint64(n)),
		"duration_ms", duration.Milliseconds(),
		"throughput_mbps", fmt.Sprintf("%.2f", throughputMBps),
	)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordTransfer(op, n, duration)
	}
	s.logTransfer(op, path, n, duration)

	s.reply(226, "Transfer complete")
}

// replyTransferError reports a failed transfer. Failures before the 150
// reply are answered like any other file error. Once data has started to
// flow the reply says the transfer was aborted.
func (s *session) replyTransferError(op, path string, started bool, err error) {
	s.server.logger.Warn("transfer_failed",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"operation", op,
		"path", path,
		"error", err,
	)

	if s.writeErr != nil {
		return
	}

	var fileErr *FileError
	isFileErr := errors.As(err, &fileErr)

	switch {
	case !started && isFileErr:
		s.replyError(fileErr.Err)
	case isFileErr:
		s.reply(451, "Local error in processing; transfer aborted")
	default:
		s.reply(426, "Connection closed; transfer aborted")
	}
}

// openDataChannel dials the address from the last PORT, originating from the
// control connection's local IP and the configured data port. The
// connection is tracked so Shutdown can interrupt it.
func (s *session) openDataChannel(ctx context.Context) (*dataChannel, error) {
	var localIP net.IP
	if tcpAddr, ok := s.conn.LocalAddr().(*net.TCPAddr); ok {
		localIP = tcpAddr.IP
	}

	s.server.logger.Debug("dialing_data_connection",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"addr", s.dataAddr.String(),
		"data_port", s.server.dataPort,
	)

	ch, err := openActive(ctx, dialConfig{
		localIP: localIP,
		port:    s.server.dataPort,
		timeout: s.server.dataTimeout,
	}, *s.dataAddr)
	if err != nil {
		return nil, err
	}

	if !s.server.trackConnection(ch.conn, true) {
		return nil, &DataConnectError{Addr: s.dataAddr.String(), Err: ErrServerClosed}
	}
	ch.conn = &trackingConn{Conn: ch.conn, server: s.server}
	ch.limiter = ratelimit.New(s.server.transferRate)

	return ch, nil
}

// logTransfer logs a file transfer in standard xferlog format.
// Format: current-time transfer-time remote-host file-size filename transfer-type special-action-flag direction access-mode username service-name authentication-method authenticated-user-id completion-status
func (s *session) logTransfer(op, filename string, bytes int64, duration time.Duration) {
	if s.server.transferLog == nil {
		return
	}

	transferTime := int64(duration.Seconds())
	if transferTime == 0 {
		transferTime = 1
	}

	// Direction: o (outgoing/download), i (incoming/upload)
	direction := "o"
	if op == "STOR" {
		direction = "i"
	}

	// Mon Dec 25 15:04:05 2025 1 127.0.0.1 1024 /file.txt b _ o r root ftp 0 * c
	line := fmt.Sprintf("%s %d %s %d %s %s %s %s %s %s %s %s %s %s\n",
		time.Now().Format("Mon Jan 02 15:04:05 2006"),
		transferTime,
		s.remoteIP,
		bytes,
		filename,
		"b",
		"_",
		direction,
		"r",
		s.user,
		"ftp",
		"0",
		"*",
		"c",
	)

	_, _ = s.server.transferLog.Write([]byte(line))
}

package server

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
)

// session represents an FTP client session. It is owned by the goroutine
// serving its connection and is never shared.
type session struct {
	server *Server
	conn   net.Conn
	codec  *lineCodec
	ctx    context.Context
	cancel context.CancelFunc

	// Session tracking
	sessionID string
	remoteIP  string

	// State
	auth         *authState
	user         string
	transferType string   // only "I" is ever selected
	dataAddr     *Address // set by PORT, reused by every later transfer

	// lastCode is the code of the most recent reply.
	lastCode int
	// writeErr is the first failure writing to the command connection.
	// Once set the session ends after the current command.
	writeErr error
}

// commandHandlers maps FTP commands to their handler functions.
// All handlers have the signature: func(s *session, arg string)
var commandHandlers = map[string]func(*session, string){
	// Access control
	"USER": (*session).handleUSER,
	"PASS": (*session).handlePASS,

	// Transfer parameters
	"TYPE": (*session).handleTYPE,
	"PORT": (*session).handlePORT,

	// File transfer
	"STOR": (*session).handleSTOR,
	"RETR": (*session).handleRETR,
}

// newSession creates a new session.
func newSession(server *Server, conn net.Conn) *session {
	remoteAddr := conn.RemoteAddr().String()
	remoteIP, _, err := net.SplitHostPort(remoteAddr)
	if err != nil {
		remoteIP = remoteAddr
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &session{
		server:       server,
		conn:         conn,
		codec:        newLineCodec(conn),
		ctx:          ctx,
		cancel:       cancel,
		sessionID:    uuid.NewString(),
		remoteIP:     remoteIP,
		auth:         newAuthState(),
		transferType: "I",
	}
}

// serve runs the session: greet, then read and execute commands in order
// until the client hangs up or the command connection fails.
func (s *session) serve() {
	defer s.close()

	if err := s.codec.writeLine(s.server.welcomeMessage); err != nil {
		return
	}

	s.server.logger.Info("session_started",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
	)

	for {
		if s.server.maxIdleTime > 0 {
			_ = s.conn.SetReadDeadline(time.Now().Add(s.server.maxIdleTime))
		}

		line, err := s.codec.readLine()
		if err != nil {
			s.handleReadError(err)
			return
		}

		_ = s.conn.SetReadDeadline(time.Time{})

		if err := s.handleCommand(line); err != nil {
			s.server.logger.Warn("write_error",
				"session_id", s.sessionID,
				"remote_ip", s.remoteIP,
				"user", s.user,
				"error", err,
			)
			return
		}
	}
}

func (s *session) handleReadError(err error) {
	var netErr net.Error
	switch {
	case errors.Is(err, io.EOF):
		s.server.logger.Debug("client_disconnected",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
		)
	case errors.Is(err, errLineTooLong):
		s.reply(500, "Command line too long")
	case errors.As(err, &netErr) && netErr.Timeout():
		s.server.logger.Info("session_idle_timeout",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
		)
	default:
		s.server.logger.Warn("read_error",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
			"error", err,
		)
	}
}

// close closes the session and underlying connection.
func (s *session) close() {
	s.cancel()
	s.conn.Close()
	s.codec.release()

	s.server.logger.Debug("session_closed",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
}

// handleCommand parses and dispatches a request line. It returns an error
// only when the command connection can no longer be written to.
func (s *session) handleCommand(line string) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}

	cmd, arg, ok := parseRequest(line)
	if !ok {
		s.handleMalformed(line)
		return s.writeErr
	}

	logArg := arg
	if cmd == "PASS" {
		logArg = "***"
	}
	s.server.logger.Debug("command_received",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
		"cmd", cmd,
		"arg", logArg,
	)

	handler, ok := commandHandlers[cmd]
	if !ok {
		s.server.logger.Info("unknown_command",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"cmd", cmd,
		)
		s.reply(500, "Unknown command")
		return s.writeErr
	}

	start := time.Now()
	handler(s, arg)

	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordCommand(cmd, s.lastCode < 400, time.Since(start))
	}

	return s.writeErr
}

// handleMalformed answers a line that is not exactly "COMMAND argument".
func (s *session) handleMalformed(line string) {
	fields := strings.Fields(line)
	cmd := strings.ToUpper(fields[0])

	if _, known := commandHandlers[cmd]; !known {
		s.server.logger.Info("unknown_command",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"cmd", cmd,
		)
		s.reply(500, "Unknown command")
		return
	}

	s.server.logger.Info("malformed_command",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"cmd", cmd,
		"fields", len(fields),
	)
	s.reply(500, "Syntax error")
}

func (s *session) handleUSER(name string) {
	if s.auth.authenticated() {
		s.reply(500, "User has already logged in")
		return
	}

	if err := s.auth.fire(s.ctx, eventUser); err != nil {
		s.reply(500, "User has already logged in")
		return
	}
	s.user = name
	s.reply(331, "Please specify the password")
}

func (s *session) handlePASS(pass string) {
	if s.auth.authenticated() {
		s.reply(500, "User has already logged in")
		return
	}
	if !s.auth.userGiven() {
		s.reply(500, "User is not specified")
		return
	}

	ok := s.server.credentials.Authenticate(s.user, pass)
	if s.server.metricsCollector != nil {
		s.server.metricsCollector.RecordAuthentication(ok, s.user)
	}
	if !ok {
		s.server.logger.Warn("auth_failed",
			"session_id", s.sessionID,
			"remote_ip", s.remoteIP,
			"user", s.user,
		)
		s.reply(500, "Auth error")
		return
	}

	if err := s.auth.fire(s.ctx, eventLogin); err != nil {
		s.server.logger.Error("auth_state_error",
			"session_id", s.sessionID,
			"state", s.auth.current(),
			"error", err,
		)
		s.reply(500, "Auth error")
		return
	}

	s.server.logger.Info("user_login",
		"session_id", s.sessionID,
		"remote_ip", s.remoteIP,
		"user", s.user,
	)
	s.reply(230, "Login successful")
}

// handleTYPE accepts binary only. The transfer type never changes how STOR
// and RETR move bytes.
func (s *session) handleTYPE(arg string) {
	switch strings.ToUpper(arg) {
	case "I":
		s.transferType = "I"
		s.reply(200, "Switching to binary mode")
	case "A":
		s.reply(500, "Only support binary mode")
	default:
		s.reply(500, "Unknown type")
	}
}

// replyError sends a standard error response based on the error type.
func (s *session) replyError(err error) {
	if os.IsNotExist(err) {
		s.reply(550, "File not exist")
		return
	}
	if os.IsPermission(err) {
		s.reply(550, "Permission denied")
		return
	}
	s.reply(550, "Action failed")
}

// reply sends a response to the client. The first write failure is kept in
// writeErr and later replies are dropped.
func (s *session) reply(code int, message string) {
	s.lastCode = code
	if s.writeErr != nil {
		return
	}
	if err := s.codec.writeReply(code, message); err != nil {
		s.writeErr = err
	}
}

package server

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/gonzalop/miniftp/server"

// Server is an active-mode FTP server.
//
// It accepts command connections and runs one session per connection, each
// in its own goroutine. Sessions share nothing except the read-only
// credential store and the filesystem driver.
//
// Lifecycle:
//  1. Create server with NewServer()
//  2. Start with ListenAndServe() or Serve()
//  3. Server runs until Shutdown is called or the listener fails
//
// Basic example:
//
//	s, err := server.NewServer(":21",
//	    server.WithCredentials(server.StaticCredentials{"root": "root"}),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	log.Fatal(s.ListenAndServe())
type Server struct {
	// addr is the TCP address to listen on (e.g., ":21").
	addr string

	// credentials authenticates USER/PASS.
	credentials CredentialStore

	// driver performs file operations for STOR and RETR.
	driver Driver

	// logger is the logger instance.
	logger *slog.Logger

	// welcomeMessage is the greeting sent to clients on connection.
	// Defaults to "220 Hello!".
	welcomeMessage string

	// dataPort is the local port data connections originate from.
	// Defaults to 20. 0 picks an ephemeral port.
	dataPort int

	// dataTimeout bounds how long dialing the client's data address may take.
	dataTimeout time.Duration

	// maxIdleTime is the maximum time a connection can be idle before being closed.
	// Defaults to 5 minutes. 0 disables the limit.
	maxIdleTime time.Duration

	// maxConnections is the maximum number of simultaneous connections.
	// If 0, there is no limit.
	maxConnections int

	// strictPort rejects PORT addresses that differ from the client's IP.
	strictPort bool

	// transferLog receives one xferlog line per completed transfer.
	transferLog io.Writer

	// transferRate caps each data connection in bytes per second. 0 means
	// unlimited.
	transferRate int64

	metricsCollector MetricsCollector
	tracer           trace.Tracer

	// activeConns tracks the number of currently active sessions.
	activeConns atomic.Int32

	// Shutdown handling
	mu         sync.Mutex
	listener   net.Listener
	conns      map[net.Conn]struct{}
	inShutdown atomic.Bool
	sessions   sync.WaitGroup
}

// NewServer creates a new FTP server with the given address and options.
// The address should be in the form ":port" or "host:port".
//
// Default values:
//   - Credentials: DefaultCredentials() (root/root)
//   - Driver: local filesystem, paths used as given
//   - Logger: slog.Default()
//   - Welcome message: "220 Hello!"
//   - Data port: 20
//   - Data timeout: 10 seconds
//   - MaxIdleTime: 5 minutes
//   - MaxConnections: 0 (unlimited)
//
// With a sandboxed root and a custom account:
//
//	driver, _ := server.NewOSDriver("/srv/ftp")
//	s, _ := server.NewServer(":21",
//	    server.WithDriver(driver),
//	    server.WithCredentials(server.StaticCredentials{"alice": "secret"}),
//	    server.WithMaxConnections(100),
//	)
func NewServer(addr string, options ...Option) (*Server, error) {
	s := &Server{
		addr:           addr,
		logger:         slog.Default(),
		welcomeMessage: "220 Hello!",
		dataPort:       20,
		dataTimeout:    10 * time.Second,
		maxIdleTime:    5 * time.Minute,
		conns:          make(map[net.Conn]struct{}),
	}

	for _, opt := range options {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	if s.credentials == nil {
		s.credentials = DefaultCredentials()
	}
	if s.driver == nil {
		driver, err := NewOSDriver("")
		if err != nil {
			return nil, err
		}
		s.driver = driver
	}
	if s.tracer == nil {
		s.tracer = otel.Tracer(tracerName)
	}

	return s, nil
}

// ListenAndServe starts the FTP server on the configured address.
// It blocks until the server stops or an error occurs.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}

	s.logger.Info("server_listening", "addr", ln.Addr().String(), "data_port", s.dataPort)
	return s.Serve(ln)
}

// Serve accepts incoming connections on the listener l.
// It blocks until Shutdown is called, then returns ErrServerClosed.
//
// Accepting never waits on session work: each connection is handed to its
// own goroutine immediately.
func (s *Server) Serve(l net.Listener) error {
	s.mu.Lock()
	if s.inShutdown.Load() {
		s.mu.Unlock()
		l.Close()
		return ErrServerClosed
	}
	s.listener = l
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		if s.listener == l {
			s.listener = nil
		}
		s.mu.Unlock()
		l.Close()
	}()

	var tempDelay time.Duration
	for {
		conn, err := l.Accept()
		if err != nil {
			if s.inShutdown.Load() {
				return ErrServerClosed
			}
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if tempDelay == 0 {
					tempDelay = 5 * time.Millisecond
				} else {
					tempDelay *= 2
				}
				if tempDelay > time.Second {
					tempDelay = time.Second
				}
				s.logger.Warn("accept_error", "error", err, "retry_in", tempDelay)
				time.Sleep(tempDelay)
				continue
			}
			return fmt.Errorf("accept: %w", err)
		}
		tempDelay = 0

		s.sessions.Add(1)
		go s.handleConnection(conn)
	}
}

// Shutdown stops the server.
//
// It closes the listener and every active connection, control and data,
// then waits for session goroutines to return or ctx to be done.
func (s *Server) Shutdown(ctx context.Context) error {
	s.inShutdown.Store(true)

	s.mu.Lock()
	ln := s.listener
	s.listener = nil
	conns := s.conns
	s.conns = make(map[net.Conn]struct{})
	s.mu.Unlock()

	var err error
	if ln != nil {
		err = ln.Close()
	}

	for conn := range maps.Keys(conns) {
		conn.Close()
	}

	done := make(chan struct{})
	go func() {
		s.sessions.Wait()
		close(done)
	}()

	select {
	case <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// handleConnection handles a new client connection.
func (s *Server) handleConnection(conn net.Conn) {
	defer s.sessions.Done()

	if !s.trackConnection(conn, true) {
		return
	}
	defer s.trackConnection(conn, false)

	s.handleSession(conn)
}

// trackConnection returns false if we're shutting down.
func (s *Server) trackConnection(conn net.Conn, add bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !add {
		delete(s.conns, conn)
		return true
	}

	if s.inShutdown.Load() {
		conn.Close()
		return false
	}
	s.conns[conn] = struct{}{}
	return true
}

// trackingConn wraps a net.Conn to track its lifetime in the server.
type trackingConn struct {
	net.Conn
	server *Server
}

func (c *trackingConn) Close() error {
	c.server.trackConnection(c.Conn, false)
	return c.Conn.Close()
}

// handleSession enforces the connection limit and runs the session.
func (s *Server) handleSession(conn net.Conn) {
	if s.maxConnections > 0 && s.activeConns.Load() >= int32(s.maxConnections) {
		ip, _, _ := net.SplitHostPort(conn.RemoteAddr().String())
		s.logger.Warn("connection_rejected",
			"remote_ip", ip,
			"reason", "global_limit_reached",
			"limit", s.maxConnections,
		)
		if s.metricsCollector != nil {
			s.metricsCollector.RecordConnection(false, "global_limit_reached")
		}
		fmt.Fprintf(conn, "421 Too many users, sorry.\r\n")
		conn.Close()
		return
	}

	s.activeConns.Add(1)
	defer s.activeConns.Add(-1)

	if s.metricsCollector != nil {
		s.metricsCollector.RecordConnection(true, "accepted")
	}

	session := newSession(s, conn)
	session.serve()
}

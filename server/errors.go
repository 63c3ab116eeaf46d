package server

import (
	"errors"
	"fmt"
)

var (
	// ErrServerClosed is returned by Serve and ListenAndServe after a call to
	// Shutdown.
	ErrServerClosed = errors.New("ftp: Server closed")

	// ErrAddressFormat is returned when a PORT argument is not six
	// comma-separated byte values.
	ErrAddressFormat = errors.New("malformed data address")

	// ErrNoDataAddress is returned when a transfer is requested before any
	// PORT command was accepted in the session.
	ErrNoDataAddress = errors.New("no data address specified")

	// errLineTooLong is returned by readLine when a request exceeds
	// MaxCommandLength.
	errLineTooLong = errors.New("command too long")
)

// DataConnectError reports a failure to establish or use the data channel.
type DataConnectError struct {
	// Addr is the client address the server dialed.
	Addr string
	Err  error
}

func (e *DataConnectError) Error() string {
	return fmt.Sprintf("data connection to %s: %v", e.Addr, e.Err)
}

func (e *DataConnectError) Unwrap() error {
	return e.Err
}

// FileError reports a failure to read or write a local file during a
// transfer. Op is either "read" or "write".
type FileError struct {
	Op   string
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}

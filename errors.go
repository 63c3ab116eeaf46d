package ftp

import "fmt"

// ProtocolError represents an FTP protocol error with the command that was
// sent and the response that rejected it.
type ProtocolError struct {
	// Command is the FTP command that was sent (e.g., "STOR")
	Command string

	// Response is the message received from the server (e.g., "Not login")
	Response string

	// Code is the numeric FTP response code (e.g., 530)
	Code int
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	return fmt.Sprintf("ftp: %s failed: %s (code %d)", e.Command, e.Response, e.Code)
}

// IsTemporary returns true if the error is a temporary failure (4xx).
// This can be used to implement retry logic.
func (e *ProtocolError) IsTemporary() bool {
	return e.Code >= 400 && e.Code < 500
}

// IsPermanent returns true if the error is a permanent failure (5xx).
func (e *ProtocolError) IsPermanent() bool {
	return e.Code >= 500 && e.Code < 600
}

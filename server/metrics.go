package server

import "time"

// MetricsCollector is an optional interface for collecting server metrics.
// Implementations can send metrics to monitoring systems like Prometheus,
// StatsD, DataDog, etc.
//
// All methods are called from session goroutines and should be non-blocking.
//
// The server will check if the collector is nil before calling methods,
// so implementations don't need to handle nil receivers.
type MetricsCollector interface {
	// RecordCommand records metrics for an FTP command execution.
	// cmd is the command name (e.g., "USER", "STOR").
	// success indicates whether the command got a positive reply.
	// duration is how long the command took to execute.
	RecordCommand(cmd string, success bool, duration time.Duration)

	// RecordTransfer records metrics for a completed file transfer.
	// operation is either "RETR" (download) or "STOR" (upload).
	RecordTransfer(operation string, bytes int64, duration time.Duration)

	// RecordConnection records metrics for connection attempts.
	// reason is "accepted" or why the connection was refused.
	RecordConnection(accepted bool, reason string)

	// RecordAuthentication records metrics for authentication attempts.
	RecordAuthentication(success bool, user string)
}

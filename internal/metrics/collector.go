// Package metrics exports FTP server metrics to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/gonzalop/miniftp/server"
)

// Collector is the Prometheus implementation of server.MetricsCollector.
// A nil *Collector records nothing.
type Collector struct {
	commands        *prometheus.CounterVec
	commandDuration *prometheus.HistogramVec
	transfers       *prometheus.CounterVec
	transferBytes   *prometheus.CounterVec
	transferSeconds *prometheus.HistogramVec
	connections     *prometheus.CounterVec
	authentications *prometheus.CounterVec
}

var _ server.MetricsCollector = (*Collector)(nil)

// NewCollector registers the FTP metrics with reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	f := promauto.With(reg)

	return &Collector{
		commands: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftp_commands_total",
				Help: "Commands handled, by command and outcome",
			},
			[]string{"command", "status"}, // status: "ok", "error"
		),
		commandDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniftp_command_duration_seconds",
				Help:    "Time spent handling a command, including any transfer",
				Buckets: prometheus.ExponentialBuckets(0.0005, 4, 10),
			},
			[]string{"command"},
		),
		transfers: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftp_transfers_total",
				Help: "Completed file transfers by direction",
			},
			[]string{"operation"},
		),
		transferBytes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftp_transfer_bytes_total",
				Help: "Bytes moved over data connections by direction",
			},
			[]string{"operation"},
		),
		transferSeconds: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "miniftp_transfer_duration_seconds",
				Help:    "Duration of completed file transfers",
				Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
			},
			[]string{"operation"},
		),
		connections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftp_connections_total",
				Help: "Command connections by outcome",
			},
			[]string{"status", "reason"},
		),
		authentications: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "miniftp_authentications_total",
				Help: "PASS attempts by outcome",
			},
			[]string{"status"},
		),
	}
}

func (c *Collector) RecordCommand(cmd string, success bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.commands.WithLabelValues(cmd, status(success)).Inc()
	c.commandDuration.WithLabelValues(cmd).Observe(duration.Seconds())
}

func (c *Collector) RecordTransfer(operation string, bytes int64, duration time.Duration) {
	if c == nil {
		return
	}
	c.transfers.WithLabelValues(operation).Inc()
	c.transferBytes.WithLabelValues(operation).Add(float64(bytes))
	c.transferSeconds.WithLabelValues(operation).Observe(duration.Seconds())
}

func (c *Collector) RecordConnection(accepted bool, reason string) {
	if c == nil {
		return
	}
	st := "accepted"
	if !accepted {
		st = "rejected"
	}
	c.connections.WithLabelValues(st, reason).Inc()
}

// RecordAuthentication counts outcomes only. User names are left out of the
// labels to keep cardinality bounded.
func (c *Collector) RecordAuthentication(success bool, _ string) {
	if c == nil {
		return
	}
	c.authentications.WithLabelValues(status(success)).Inc()
}

func status(ok bool) string {
	if ok {
		return "ok"
	}
	return "error"
}

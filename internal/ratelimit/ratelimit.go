// Package ratelimit throttles data connection throughput.
//
// Each transfer gets its own Limiter, so the configured rate applies per
// data connection rather than to the server as a whole.
package ratelimit

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// minBurst keeps the bucket large enough for one copy buffer.
const minBurst = 32 * 1024

// Limiter paces a byte stream to a fixed number of bytes per second.
// A nil *Limiter does not limit anything.
type Limiter struct {
	lim   *rate.Limiter
	burst int
}

// New returns a limiter for bytesPerSecond, or nil when bytesPerSecond is
// not positive (unlimited).
func New(bytesPerSecond int64) *Limiter {
	if bytesPerSecond <= 0 {
		return nil
	}

	burst := max(int(bytesPerSecond), minBurst)
	return &Limiter{
		lim:   rate.NewLimiter(rate.Limit(bytesPerSecond), burst),
		burst: burst,
	}
}

// Rate returns the configured limit in bytes per second. Zero means
// unlimited.
func (l *Limiter) Rate() int64 {
	if l == nil {
		return 0
	}
	return int64(l.lim.Limit())
}

type reader struct {
	ctx     context.Context
	r       io.Reader
	limiter *Limiter
}

// NewReader returns r throttled by limiter. With a nil limiter r is returned
// unchanged. Reads fail with ctx's error once ctx is done.
func NewReader(ctx context.Context, r io.Reader, limiter *Limiter) io.Reader {
	if limiter == nil {
		return r
	}
	return &reader{ctx: ctx, r: r, limiter: limiter}
}

// Read never asks for more than one burst, then waits for the bytes it got.
func (r *reader) Read(p []byte) (int, error) {
	if len(p) > r.limiter.burst {
		p = p[:r.limiter.burst]
	}

	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.limiter.lim.WaitN(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type writer struct {
	ctx     context.Context
	w       io.Writer
	limiter *Limiter
}

// NewWriter returns w throttled by limiter. With a nil limiter w is returned
// unchanged.
func NewWriter(ctx context.Context, w io.Writer, limiter *Limiter) io.Writer {
	if limiter == nil {
		return w
	}
	return &writer{ctx: ctx, w: w, limiter: limiter}
}

// Write waits before each burst-sized chunk so backpressure reaches the
// caller.
func (w *writer) Write(p []byte) (int, error) {
	written := 0
	for written < len(p) {
		chunk := min(len(p)-written, w.limiter.burst)

		if err := w.limiter.lim.WaitN(w.ctx, chunk); err != nil {
			return written, err
		}

		n, err := w.w.Write(p[written : written+chunk])
		written += n
		if err != nil {
			return written, err
		}
	}
	return written, nil
}

// Package client implements the foreground controller façade: connects to
// an RDA server, performs the protocol handshake, spawns the background
// ingest worker, and exposes read/wait/poll operations over the shared
// ring buffer.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"rdaclient/internal/config"
	"rdaclient/internal/ingest"
	"rdaclient/internal/rda"
	"rdaclient/pkg/ring"
)

// Sentinel errors.
var (
	ErrHandshakeTimeout = errors.New("client: handshake timed out waiting for start frame")
	ErrAlreadyStreaming = errors.New("client: already streaming")
	ErrNotStreaming     = errors.New("client: not streaming")
	ErrNotConnected     = errors.New("client: not connected")
)

// Logger is the minimal ambient-logging surface the controller needs.
type Logger interface {
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{}) {}

// Client is the controller façade described by the component design.
type Client struct {
	logger Logger

	conn net.Conn

	ring      *ring.Ring
	nChannels int
	start     *rda.StartMessage

	worker *ingest.Worker

	cfg         config.Config
	timelogPath string
}

// Option configures optional Client behavior.
type Option func(*Client)

// WithLogger installs an ambient logger.
func WithLogger(l Logger) Option {
	return func(c *Client) { c.logger = l }
}

// WithConfig installs the full buffer/network/diagnostics configuration.
// Buffer.MaxRegionSize is applied as a row-capacity ceiling once nChannels
// is known at handshake time (see ClampCapacity in StartStreaming).
func WithConfig(cfg *config.Config) Option {
	return func(c *Client) { c.cfg = *cfg }
}

// WithRingSizing overrides just the buffer capacity knobs on top of the
// installed config, leaving MaxRegionSize and other fields as installed
// (the defaults unless WithConfig came first). Mainly useful in tests that
// don't need a full config.
func WithRingSizing(bufCapacity, pocketCapacity int) Option {
	return func(c *Client) {
		c.cfg.Buffer.Capacity = bufCapacity
		c.cfg.Buffer.PocketCapacity = pocketCapacity
	}
}

// WithTimelogPath sets where the ingest worker writes its diagnostic
// time-log when StopStreaming is called with saveTimelog=true.
func WithTimelogPath(path string) Option {
	return func(c *Client) { c.timelogPath = path }
}

// New constructs a Client. Call Connect and then StartStreaming.
func New(opts ...Option) *Client {
	c := &Client{
		logger: noopLogger{},
		cfg:    *config.DefaultConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Connect opens a TCP connection to address and disables Nagle's algorithm.
func (c *Client) Connect(address string) error {
	conn, err := net.Dial("tcp", address)
	if err != nil {
		return fmt.Errorf("client: dial %s: %w", address, err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		_ = tcp.SetNoDelay(true)
	}
	c.conn = conn
	c.logger.Infof("client: connected to %s", address)
	return nil
}

// StartStreaming performs the handshake and spawns the ingest worker.
func (c *Client) StartStreaming(ctx context.Context, timeout time.Duration) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if c.worker != nil && c.worker.State() != ingest.StateStopped {
		return ErrAlreadyStreaming
	}

	deadline := time.Now().Add(timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}

	for {
		if time.Now().After(deadline) {
			return ErrHandshakeTimeout
		}
		if err := ctx.Err(); err != nil {
			return ErrHandshakeTimeout
		}

		c.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
		hdr, err := rda.ReadHeader(c.conn)
		if err != nil {
			var ne net.Error
			if errors.As(err, &ne) && ne.Timeout() {
				continue
			}
			return fmt.Errorf("client: handshake read: %w", err)
		}

		body, err := rda.ReadFull(c.conn, hdr.BodySize())
		if err != nil {
			return fmt.Errorf("client: handshake body read: %w", err)
		}

		switch hdr.NType {
		case rda.TypeStart:
			start, err := rda.DecodeStart(body)
			if err != nil {
				return fmt.Errorf("client: decode start frame: %w", err)
			}
			c.start = start
			c.nChannels = int(start.NChannels)
			c.cfg.ClampCapacity(c.nChannels)
			c.ring = ring.Initialize(c.nChannels, c.cfg.Buffer.Capacity, c.cfg.Buffer.PocketCapacity, ring.Float32, c.logger)
			c.logger.Infof("client: handshake complete, nChannels=%d", c.nChannels)
			c.spawnWorker()
			c.conn.SetReadDeadline(time.Time{})
			return nil

		case rda.TypeFloatData:
			if c.start != nil && c.ring != nil {
				c.logger.Infof("client: resuming session without re-handshake")
				c.spawnWorker()
				c.conn.SetReadDeadline(time.Time{})
				return nil
			}
			// No prior session recorded; discard and keep waiting.

		default:
			// Discard and keep waiting.
		}
	}
}

func (c *Client) spawnWorker() {
	c.worker = ingest.New(c.conn, c.ring, c.nChannels, c.timelogPath, c.logger)
	go c.worker.Run()
}

// StopStreaming signals the worker to stop, optionally saving the
// time-log, and joins it.
func (c *Client) StopStreaming(ctx context.Context, saveTimelog bool) error {
	if c.worker == nil || c.worker.State() == ingest.StateStopped {
		return ErrNotStreaming
	}
	c.worker.Stop(saveTimelog)

	select {
	case <-c.worker.Done():
		c.logger.Infof("client: streaming stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Disconnect closes the underlying socket.
func (c *Client) Disconnect() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// Get delegates to the ring, returning an empty slice on any error.
func (c *Client) Get(startIdx, endIdx int64) []float32 {
	if c.ring == nil {
		return nil
	}
	got, err := c.ring.Get(startIdx, endIdx)
	if err != nil {
		return nil
	}
	return got
}

// LastSample returns the ring's current sample count, or 0 if not yet
// initialized.
func (c *Client) LastSample() int64 {
	if c.ring == nil {
		return 0
	}
	return c.ring.LastSample()
}

// Alive reports whether the ingest worker is still running.
func (c *Client) Alive() bool {
	return c.worker != nil && c.worker.State() != ingest.StateStopped
}

// RingStatus exposes the underlying ring for diag.Broadcaster, which only
// depends on a small structural interface (LastSample/BufCapacity/
// PocketCapacity/SlowModeCount), not the ring package itself.
func (c *Client) RingStatus() *ring.Ring { return c.ring }

// WorkerErr surfaces a fatal transport error from the ingest worker, if any.
func (c *Client) WorkerErr() error {
	if c.worker == nil {
		return nil
	}
	return c.worker.Err()
}

// Wait repeatedly attempts ring.Get(startIdx, endIdx) until it succeeds, a
// non-retryable error occurs, the wall-clock timeout elapses, or ctx is
// done. It returns the sample slice, or nil if no data became available.
func (c *Client) Wait(ctx context.Context, startIdx, endIdx int64, timeout, sleep time.Duration) []float32 {
	if c.ring == nil {
		return nil
	}
	deadline := time.Now().Add(timeout)

	for {
		got, err := c.ring.Get(startIdx, endIdx)
		if err == nil {
			return got
		}
		if !errors.Is(err, ring.ErrNotReady) {
			return nil
		}
		if time.Now().After(deadline) {
			return nil
		}
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(sleep):
		}
	}
}

// Poll waits for at least one new sample, then returns the most recent
// nSamples rows.
func (c *Client) Poll(ctx context.Context, nSamples int64, timeout, sleep time.Duration) []float32 {
	if c.ring == nil {
		return nil
	}
	ls := c.LastSample()
	if got := c.Wait(ctx, ls, ls+1, timeout, sleep); got == nil {
		return nil
	}

	end := c.LastSample()
	start := end - nSamples
	if start < 0 {
		start = 0
	}
	return c.Get(start, end)
}

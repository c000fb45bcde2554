// Package ingest implements the background worker that reads RDA frames
// from a socket and deposits samples into the shared ring buffer.
package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync/atomic"
	"time"

	"rdaclient/internal/rda"
	"rdaclient/pkg/ring"
)

// State is the worker's lifecycle state.
type State int32

const (
	StateInit State = iota
	StateRunning
	StateDraining
	StateStopped
)

// Command tokens sent over the worker's command channel.
type Command int

const (
	CmdStop Command = iota
	CmdSaveTimelog
)

// Logger is the minimal ambient-logging surface the worker needs.
type Logger interface {
	Warnf(format string, args ...interface{})
	Infof(format string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Warnf(string, ...interface{}) {}
func (noopLogger) Infof(string, ...interface{}) {}

// timelogEntry is one row of the diagnostic time-log artifact: a textual,
// newline-delimited-JSON analogue of the original numpy.save dump, chosen
// since no Go/py interop is required downstream.
type timelogEntry struct {
	SampleCount int64 `json:"sampleCount"`
	UnixNano    int64 `json:"unixNano"`
}

// Worker owns the socket read loop and feeds a ring.Ring.
type Worker struct {
	conn      net.Conn
	ring      *ring.Ring
	nChannels int
	logger    Logger

	cmd   chan Command
	state atomic.Int32
	err   atomic.Value // error
	done  chan struct{}

	timelog     []timelogEntry
	timelogPath string
}

// New constructs a Worker attached to conn and r. timelogPath, if non-empty,
// is where the diagnostic time-log is written when a CmdSaveTimelog command
// precedes CmdStop.
func New(conn net.Conn, r *ring.Ring, nChannels int, timelogPath string, logger Logger) *Worker {
	if logger == nil {
		logger = noopLogger{}
	}
	w := &Worker{
		conn:        conn,
		ring:        r,
		nChannels:   nChannels,
		logger:      logger,
		cmd:         make(chan Command, 2),
		timelogPath: timelogPath,
		done:        make(chan struct{}),
	}
	w.state.Store(int32(StateInit))
	return w
}

// State returns the worker's current lifecycle state.
func (w *Worker) State() State { return State(w.state.Load()) }

// Done returns a channel closed once Run has returned, for joining.
func (w *Worker) Done() <-chan struct{} { return w.done }

// Err returns the fatal transport error that terminated the worker, if any.
func (w *Worker) Err() error {
	if v := w.err.Load(); v != nil {
		return v.(error)
	}
	return nil
}

// Stop requests the worker to drain and exit, optionally saving the
// time-log. It is safe to call once; it does not block.
func (w *Worker) Stop(saveTimelog bool) {
	if saveTimelog {
		w.cmd <- CmdSaveTimelog
	}
	w.cmd <- CmdStop
}

// cmdPollInterval bounds how long Run can be parked waiting for the next
// frame's first byte before it re-checks the command channel. It only ever
// fires before any byte of a new frame has been consumed, so a timeout
// never desyncs the length-prefixed framing.
const cmdPollInterval = 50 * time.Millisecond

// Run executes the read loop until a stop command is received or the
// connection fails. It is meant to be run in its own goroutine; Alive()
// style liveness is observed by the controller through State()/Err().
func (w *Worker) Run() {
	w.state.Store(int32(StateRunning))
	defer func() {
		w.state.Store(int32(StateStopped))
		close(w.done)
	}()

	for {
		select {
		case cmd := <-w.cmd:
			if w.handleCommand(cmd) {
				return
			}
			continue
		default:
		}

		hdr, ok, err := w.readHeader()
		if err != nil {
			// The read may have been interrupted by the connection being
			// closed right after Stop queued its commands (Stop itself does
			// not close it; the caller or the peer may). Prefer a
			// queued command's exit path over the fatal-transport-error
			// one so Stop(saveTimelog=true) still gets to write the
			// time-log instead of being short-circuited by the close.
			select {
			case cmd := <-w.cmd:
				if w.handleCommand(cmd) {
					return
				}
				continue
			default:
			}
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				w.err.Store(fmt.Errorf("ingest: connection closed: %w", err))
			} else {
				w.err.Store(fmt.Errorf("ingest: read header: %w", err))
			}
			return
		}
		if !ok {
			// No frame arrived within the poll window; loop back around so
			// a queued Stop/SaveTimelog is observed without waiting on the
			// next frame.
			continue
		}
		if !hdr.ValidGUID() {
			w.logger.Warnf("ingest: frame with unexpected GUID, type=%d size=%d", hdr.NType, hdr.NSize)
		}
		if hdr.NSize < rda.HeaderSize {
			w.err.Store(fmt.Errorf("ingest: malformed frame length %d", hdr.NSize))
			return
		}

		body, err := rda.ReadFull(w.conn, hdr.BodySize())
		if err != nil {
			w.err.Store(fmt.Errorf("ingest: read body: %w", err))
			return
		}

		if stop := w.dispatch(hdr, body); stop {
			w.drain()
			return
		}
	}
}

// readHeader waits for the next frame's header, but only ever blocks up to
// cmdPollInterval before giving Run a chance to observe w.cmd. It reads the
// header's first byte under a short deadline; once that byte has arrived
// the deadline is cleared and the remaining HeaderSize-1 bytes are read
// atomically, so a timeout can never land mid-header and desync framing.
// ok is false (with a nil error) when the poll window elapsed with no byte
// available yet.
func (w *Worker) readHeader() (hdr rda.Header, ok bool, err error) {
	first := make([]byte, 1)

	w.conn.SetReadDeadline(time.Now().Add(cmdPollInterval))
	n, err := w.conn.Read(first)
	if n == 0 {
		if err != nil {
			if ne, isNetErr := err.(net.Error); isNetErr && ne.Timeout() {
				return rda.Header{}, false, nil
			}
			return rda.Header{}, false, err
		}
		return rda.Header{}, false, nil
	}

	w.conn.SetReadDeadline(time.Time{})
	rest, err := rda.ReadFull(w.conn, rda.HeaderSize-1)
	if err != nil {
		return rda.Header{}, false, err
	}
	buf := append(first, rest...)
	return rda.ParseHeader(buf), true, nil
}

// dispatch handles one fully-read frame. It returns true if the frame
// itself signals the stream should stop (a server-initiated stop frame).
func (w *Worker) dispatch(hdr rda.Header, body []byte) bool {
	switch hdr.NType {
	case rda.TypeFloatData:
		msg, err := rda.DecodeFloatData(body, w.nChannels)
		if err != nil {
			w.logger.Warnf("ingest: decode float-data: %v", err)
			return false
		}
		if err := w.ring.Put(msg.Samples); err != nil {
			w.logger.Warnf("ingest: ring put: %v", err)
			return false
		}
		w.recordTimelog()
		return false
	case rda.TypeStop:
		w.logger.Infof("ingest: server-initiated stop frame received")
		return true
	case rda.TypeIntData:
		return false
	default:
		return false
	}
}

// handleCommand processes a single command-channel token. It returns true
// if the worker should exit.
func (w *Worker) handleCommand(cmd Command) bool {
	switch cmd {
	case CmdSaveTimelog:
		w.saveTimelog()
		return false
	case CmdStop:
		w.drain()
		return true
	}
	return false
}

// drain lets any already-buffered command (the paired saveTimelog that
// preceded a stop) execute before the worker exits, per the at-most-one
// post-exit command rule.
func (w *Worker) drain() {
	w.state.Store(int32(StateDraining))
	select {
	case cmd := <-w.cmd:
		if cmd == CmdSaveTimelog {
			w.saveTimelog()
		}
	default:
	}
}

func (w *Worker) recordTimelog() {
	w.timelog = append(w.timelog, timelogEntry{
		SampleCount: w.ring.LastSample(),
		UnixNano:    time.Now().UnixNano(),
	})
}

func (w *Worker) saveTimelog() {
	if w.timelogPath == "" {
		return
	}
	f, err := os.Create(w.timelogPath)
	if err != nil {
		w.logger.Warnf("ingest: create timelog %s: %v", w.timelogPath, err)
		return
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	for _, e := range w.timelog {
		if err := enc.Encode(e); err != nil {
			w.logger.Warnf("ingest: write timelog entry: %v", err)
			return
		}
	}
	w.logger.Infof("ingest: wrote %d timelog entries to %s", len(w.timelog), w.timelogPath)
}

package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"rdaclient/pkg/bytering"
)

// StatusSource is the subset of pkg/ring.Ring's surface the broadcaster
// needs. Defined locally so diag has no import-time dependency on the ring
// package; any ring satisfies this by structural typing.
type StatusSource interface {
	LastSample() int64
	BufCapacity() int
	PocketCapacity() int
	SlowModeCount() uint64
}

// status is the JSON frame pushed to connected dashboards.
type status struct {
	LastSample     int64  `json:"lastSample"`
	BufCapacity    int    `json:"bufCapacity"`
	PocketCapacity int    `json:"pocketCapacity"`
	SlowModeCount  uint64 `json:"slowModeCount"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Broadcaster is a read-only websocket status feed. It accepts dashboard
// connections and periodically pushes a status frame; there is no inbound
// command channel, so it cannot reintroduce the excluded event-trigger
// feedback client.
type Broadcaster struct {
	source StatusSource
	logger *Logger
	period time.Duration

	// outbound is a bounded, drop-oldest frame queue: produceLoop is its
	// sole producer, and dashboardConnected ensures at most one websocket
	// connection drains it at a time, preserving single-consumer delivery
	// order.
	outbound           *bytering.FrameRing
	dashboardConnected atomic.Bool
}

// NewBroadcaster constructs a Broadcaster reading metrics from source every
// period.
func NewBroadcaster(source StatusSource, logger *Logger, period time.Duration) *Broadcaster {
	if logger == nil {
		logger = NewLogger("diag: ", false)
	}
	return &Broadcaster{
		source:   source,
		logger:   logger,
		period:   period,
		outbound: bytering.NewFrameRing(256),
	}
}

// Run starts an HTTP server on addr exposing "/status" as a websocket
// upgrade endpoint, and a ticker goroutine that encodes status snapshots
// into the outbound frame queue. It blocks until ctx is canceled.
func (b *Broadcaster) Run(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/status", b.handleStatus)
	srv := &http.Server{Addr: addr, Handler: mux}

	go b.produceLoop(ctx)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case <-ctx.Done():
		b.outbound.Close()
		return srv.Close()
	case err := <-errCh:
		return err
	}
}

// produceLoop is the ticker goroutine: the sole producer into b.outbound.
func (b *Broadcaster) produceLoop(ctx context.Context) {
	ticker := time.NewTicker(b.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap := status{
				LastSample:     b.source.LastSample(),
				BufCapacity:    b.source.BufCapacity(),
				PocketCapacity: b.source.PocketCapacity(),
				SlowModeCount:  b.source.SlowModeCount(),
			}
			buf, err := json.Marshal(snap)
			if err != nil {
				b.logger.Warnf("diag: marshal status: %v", err)
				continue
			}
			if dropped := b.outbound.Push(buf); dropped {
				b.logger.Warnf("diag: outbound queue full, dropped stale status frame")
			}
		}
	}
}

// handleStatus upgrades the connection and drains the outbound queue,
// writing each status frame as its own websocket text message. It is the
// sole consumer of b.outbound for the lifetime of one connection.
func (b *Broadcaster) handleStatus(w http.ResponseWriter, r *http.Request) {
	if !b.dashboardConnected.CompareAndSwap(false, true) {
		http.Error(w, "diag: one dashboard connection at a time", http.StatusServiceUnavailable)
		return
	}
	defer b.dashboardConnected.Store(false)

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.logger.Warnf("diag: websocket upgrade: %v", err)
		return
	}
	defer conn.Close()

	for {
		frame, closed := b.outbound.Pop()
		if frame != nil {
			if err := conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				return
			}
			continue
		}
		if closed {
			return
		}
		time.Sleep(b.period / 4)
	}
}

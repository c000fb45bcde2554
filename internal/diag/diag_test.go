package diag

import (
	"context"
	"net/http"
	nethttptest "net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	last int64
}

func (f *fakeSource) LastSample() int64     { return f.last }
func (f *fakeSource) BufCapacity() int      { return 100 }
func (f *fakeSource) PocketCapacity() int   { return 10 }
func (f *fakeSource) SlowModeCount() uint64 { return 0 }

func TestLoggerDebugGate(t *testing.T) {
	l := NewLogger("test: ", false)
	// Infof is a no-op when disabled; Warnf always runs. Neither should
	// panic regardless of the gate.
	l.Infof("suppressed %d", 1)
	l.Warnf("always %d", 2)

	l2 := NewLogger("test: ", true)
	l2.Infof("shown %d", 3)
}

func TestBroadcasterPushesStatusFrames(t *testing.T) {
	src := &fakeSource{last: 42}
	b := NewBroadcaster(src, nil, 10*time.Millisecond)

	srv := nethttptest.NewServer(http.HandlerFunc(b.handleStatus))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go b.produceLoop(ctx)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	require.Contains(t, string(msg), `"lastSample":42`)
}

func TestBroadcasterRejectsSecondDashboard(t *testing.T) {
	src := &fakeSource{}
	b := NewBroadcaster(src, nil, 50*time.Millisecond)

	srv := nethttptest.NewServer(http.HandlerFunc(b.handleStatus))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/"
	conn1, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn1.Close()

	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	if resp != nil {
		require.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}
}

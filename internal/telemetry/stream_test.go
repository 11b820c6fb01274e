package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MrSnakeDoc/switchboard/internal/clash"
	"github.com/MrSnakeDoc/switchboard/internal/logger"
)

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// wsServer upgrades every request and hands the conn to serve.
func wsServer(t *testing.T, serve func(conn *websocket.Conn)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		serve(conn)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func dialer(srv *httptest.Server) DialFunc {
	u := "ws" + strings.TrimPrefix(srv.URL, "http")
	return func(ctx context.Context) (Conn, error) {
		conn, _, err := websocket.DefaultDialer.DialContext(ctx, u, nil)
		if err != nil {
			return nil, err
		}
		return conn, nil
	}
}

func send(conn *websocket.Conn, frames ...string) {
	for _, f := range frames {
		_ = conn.WriteMessage(websocket.TextMessage, []byte(f))
	}
}

func TestStream_MalformedMessageDoesNotEndStream(t *testing.T) {
	srv := wsServer(t, func(conn *websocket.Conn) {
		send(conn, `{"up":1,"down":2}`, `{"up":`, `not json`, `{"up":3,"down":4}`)
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		time.Sleep(50 * time.Millisecond)
	})

	s := NewStream[clash.TrafficMessage]("traffic", dialer(srv), logger.NewNop())
	drops := &dropCounter{}
	s.SetDropObserver(drops)
	assert.Equal(t, Disconnected, s.State())

	msgs, errc, err := s.Open(context.Background())
	require.NoError(t, err)

	var got []clash.TrafficMessage
	for m := range msgs {
		got = append(got, m)
	}
	<-errc

	assert.Equal(t, []clash.TrafficMessage{{Up: 1, Down: 2}, {Up: 3, Down: 4}}, got)
	assert.Equal(t, uint64(2), s.Malformed())
	assert.Equal(t, 2, drops.counts["traffic/malformed"])
	assert.Equal(t, Disconnected, s.State())
}

func TestStream_CancelClosesConnection(t *testing.T) {
	serverDone := make(chan struct{})
	srv := wsServer(t, func(conn *websocket.Conn) {
		defer close(serverDone)
		send(conn, `{"inuse":1024}`)
		// block until the client goes away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	s := NewStream[clash.MemoryMessage]("memory", dialer(srv), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	msgs, errc, err := s.Open(ctx)
	require.NoError(t, err)

	first := <-msgs
	assert.Equal(t, int64(1024), first.InUse)
	assert.Equal(t, Connected, s.State())

	cancel()
	for range msgs {
	}
	assert.NoError(t, <-errc)
	assert.Equal(t, Disconnected, s.State())

	select {
	case <-serverDone:
	case <-time.After(2 * time.Second):
		t.Fatal("server still holds the connection")
	}
}

func TestStream_DialFailure(t *testing.T) {
	s := NewStream[clash.LogMessage]("logs", func(context.Context) (Conn, error) {
		return nil, assert.AnError
	}, logger.NewNop())

	_, _, err := s.Open(context.Background())
	assert.ErrorIs(t, err, ErrDial)
	assert.Equal(t, Disconnected, s.State())
}

func TestStream_FollowReconnectsWithoutReplay(t *testing.T) {
	var conns atomic.Int32
	srv := wsServer(t, func(conn *websocket.Conn) {
		n := conns.Add(1)
		if n == 1 {
			send(conn, `{"type":"info","payload":"a"}`, `{"type":"info","payload":"b"}`)
			return // drop the connection
		}
		send(conn, `{"type":"warning","payload":"c"}`)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})

	var mu sync.Mutex
	var got []string
	s := NewStream[clash.LogMessage]("logs", dialer(srv), logger.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Follow(ctx, func(m clash.LogMessage) {
			mu.Lock()
			got = append(got, m.Payload)
			mu.Unlock()
		})
	}()

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 3
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, int32(2), conns.Load())
}

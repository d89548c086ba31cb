package remote

import (
	"math"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/sample"
)

func newTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	s := NewServer(":0")
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)
	return s, ts
}

func dialReadout(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func waitWatchers(t *testing.T, s *Server, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return s.Hub().Count() == want
	}, 2*time.Second, 10*time.Millisecond)
}

func TestHub_BroadcastWithoutWatchers(t *testing.T) {
	h := NewHub()
	h.Broadcast(Message{Type: "idle"})
	assert.Zero(t, h.Count())
}

func TestServer_BroadcastReachesAllWatchers(t *testing.T) {
	s, ts := newTestServer(t)

	c1 := dialReadout(t, ts)
	c2 := dialReadout(t, ts)
	waitWatchers(t, s, 2)

	s.Hub().Broadcast(Message{Type: "ping"})

	for _, conn := range []*websocket.Conn{c1, c2} {
		conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg Message
		require.NoError(t, conn.ReadJSON(&msg))
		assert.Equal(t, "ping", msg.Type)
	}
}

func TestServer_WatcherDisconnectCleansUp(t *testing.T) {
	s, ts := newTestServer(t)

	conn := dialReadout(t, ts)
	waitWatchers(t, s, 1)

	conn.Close()
	assert.Eventually(t, func() bool {
		return s.Hub().Count() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestServer_PublishSample(t *testing.T) {
	s, ts := newTestServer(t)

	conn := dialReadout(t, ts)
	waitWatchers(t, s, 1)

	smp := sample.Sample{
		Timestamp: time.UnixMilli(1700000000000),
		Flows: map[channel.Slot]float64{
			channel.SlotA: 12.5,
			channel.SlotB: math.NaN(),
		},
	}
	s.PublishSample(smp, channel.Slots(2))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string `json:"type"`
		Data struct {
			Time  int64               `json:"time"`
			Flows map[string]*float64 `json:"flows"`
		} `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "sample", msg.Type)
	assert.Equal(t, int64(1700000000000), msg.Data.Time)
	require.Contains(t, msg.Data.Flows, "A")
	require.NotNil(t, msg.Data.Flows["A"])
	assert.Equal(t, 12.5, *msg.Data.Flows["A"])
	assert.Nil(t, msg.Data.Flows["B"], "failed readings publish as null")
}

func TestServer_PublishStatus(t *testing.T) {
	s, ts := newTestServer(t)

	conn := dialReadout(t, ts)
	waitWatchers(t, s, 1)

	s.PublishStatus(true, true, 3)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg struct {
		Type string         `json:"type"`
		Data map[string]any `json:"data"`
	}
	require.NoError(t, conn.ReadJSON(&msg))

	assert.Equal(t, "status", msg.Type)
	assert.Equal(t, true, msg.Data["connected"])
	assert.Equal(t, true, msg.Data["running"])
	assert.Equal(t, float64(3), msg.Data["step"])
}

package remote

import (
	"context"
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/itohio/gogmc/pkg/channel"
	"github.com/itohio/gogmc/pkg/sample"
)

// upgrader promotes readout requests to WebSockets. The panel serves the
// lab network only, so any origin may connect.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Server exposes the live readout at /ws.
type Server struct {
	hub *Hub
	srv *http.Server
}

// NewServer creates a readout server that will listen on addr once started.
func NewServer(addr string) *Server {
	s := &Server{hub: NewHub()}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	s.srv = &http.Server{Addr: addr, Handler: mux}
	return s
}

// Handler returns the server's routing, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.srv.Handler
}

// Hub returns the broadcast hub.
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start begins serving in the background.
func (s *Server) Start() {
	go func() {
		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Readout server stopped: %v", err)
		}
	}()
}

// Close shuts the server down, waiting briefly for in-flight handlers.
func (s *Server) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// handleWS upgrades the connection and parks in a read loop. Incoming
// messages are discarded; the loop exists to notice disconnects.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Failed to upgrade readout connection: %v", err)
		return
	}
	client := s.hub.Add(conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			s.hub.Remove(client)
			return
		}
	}
}

// PublishSample broadcasts one polling tick. Failed readings marshal as
// null because JSON has no NaN.
func (s *Server) PublishSample(smp sample.Sample, slots []channel.Slot) {
	flows := make(map[string]any, len(slots))
	for _, slot := range slots {
		if v := smp.Flow(slot); math.IsNaN(v) {
			flows[string(slot)] = nil
		} else {
			flows[string(slot)] = v
		}
	}

	s.hub.Broadcast(Message{
		Type: "sample",
		Data: map[string]any{
			"time":  smp.Timestamp.UnixMilli(),
			"flows": flows,
		},
	})
}

// PublishStatus broadcasts connection and sequence state changes. step is
// the 1-based running step, or 0 when no sequence is active.
func (s *Server) PublishStatus(connected, running bool, step int) {
	s.hub.Broadcast(Message{
		Type: "status",
		Data: map[string]any{
			"connected": connected,
			"running":   running,
			"step":      step,
		},
	})
}

package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// progressStreamInterval is how often a progress snapshot is pushed.
const progressStreamInterval = 2 * time.Second

// handleProgressWS streams GroupProgress snapshots for one group over a
// websocket, so clients don't have to poll GET /schedule/{groupId}. The
// stream ends when every member job is terminal or the peer goes away.
func (s *Server) handleProgressWS(w http.ResponseWriter, r *http.Request) {
	groupID := r.URL.Query().Get("group")
	if groupID == "" {
		writeError(w, http.StatusBadRequest, "group is required")
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Println("[api] websocket upgrade error:", err)
		return
	}

	go s.streamProgress(conn, groupID)
}

func (s *Server) streamProgress(conn *websocket.Conn, groupID string) {
	defer conn.Close()

	// Read pump: only watches for the peer closing the socket.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(progressStreamInterval)
	defer ticker.Stop()

	for {
		ctx, cancel := context.WithTimeout(context.Background(), progressStreamInterval)
		p, err := s.tracker.Progress(ctx, groupID)
		cancel()
		if err != nil {
			log.Printf("[api] progress stream for %s: %v", groupID, err)
			return
		}
		if err := conn.WriteJSON(p); err != nil {
			return
		}
		if p.Total > 0 && p.Completed+p.Failed == p.Total {
			return
		}

		select {
		case <-closed:
			return
		case <-ticker.C:
		}
	}
}

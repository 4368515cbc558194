package sim

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// Feed streams mesh snapshots to websocket clients
type Feed struct {
	mu      sync.RWMutex
	clients map[*websocket.Conn]bool
	frameID uint64
}

// NewFeed creates a feed with no clients
func NewFeed() *Feed {
	return &Feed{clients: map[*websocket.Conn]bool{}}
}

type feedFrame struct {
	T       int64       `json:"t"`
	FrameID uint64      `json:"frame_id"`
	Now     uint32      `json:"now_us"`
	Cells   []CellState `json:"cells"`
}

// ServeHTTP upgrades the request and registers the client until it
// disconnects
func (f *Feed) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	up := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}
	conn, err := up.Upgrade(w, r, nil)
	if err != nil {
		log.Debug().Err(err).Msg("feed upgrade")
		return
	}
	f.mu.Lock()
	f.clients[conn] = true
	f.mu.Unlock()

	go func() {
		defer func() {
			f.mu.Lock()
			delete(f.clients, conn)
			f.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// Publish sends one snapshot to every client
func (f *Feed) Publish(now uint32, cells []CellState) {
	f.mu.Lock()
	f.frameID++
	b, err := json.Marshal(feedFrame{T: time.Now().UnixNano(), FrameID: f.frameID, Now: now, Cells: cells})
	f.mu.Unlock()
	if err != nil {
		log.Error().Err(err).Msg("feed marshal")
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for c := range f.clients {
		c.SetWriteDeadline(time.Now().Add(200 * time.Millisecond))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

// Clients returns the number of connected clients
func (f *Feed) Clients() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.clients)
}

// Package events fans bulk import progress out to connected admin clients.
package events

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	ItemStarted   = "item_started"
	ItemFinished  = "item_finished"
	BatchFinished = "batch_finished"
)

// Event is one progress message. Item fields are zero on batch events and
// the counters are zero on item events.
type Event struct {
	Type      string    `json:"type"`
	BatchID   string    `json:"batch_id"`
	Index     int       `json:"index"`
	URL       string    `json:"url,omitempty"`
	Title     string    `json:"title,omitempty"`
	Status    string    `json:"status,omitempty"`
	Error     string    `json:"error,omitempty"`
	Total     int       `json:"total,omitempty"`
	Succeeded int       `json:"succeeded,omitempty"`
	Failed    int       `json:"failed,omitempty"`
	At        time.Time `json:"at"`
}

const (
	writeWait = 2 * time.Second
	// sendBuffer is how many events a client may lag behind before it is
	// dropped.
	sendBuffer = 64
)

type subscriber struct {
	ws   *websocket.Conn
	send chan []byte
}

// Hub broadcasts events to websocket clients. Each client has its own
// writer goroutine, so Publish never waits on the network.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]*subscriber
}

type Stats struct {
	Clients int `json:"clients"`
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]*subscriber)}
}

// Add sends ws a welcome message and registers it.
func (h *Hub) Add(ws *websocket.Conn) error {
	_ = ws.SetWriteDeadline(time.Now().Add(writeWait))
	if err := ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"welcome","transport":"websocket"}`)); err != nil {
		return err
	}
	sub := &subscriber{ws: ws, send: make(chan []byte, sendBuffer)}
	h.mu.Lock()
	h.clients[ws] = sub
	h.mu.Unlock()
	go h.writeLoop(sub)
	return nil
}

func (h *Hub) writeLoop(sub *subscriber) {
	for b := range sub.send {
		_ = sub.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := sub.ws.WriteMessage(websocket.TextMessage, b); err != nil {
			h.Remove(sub.ws)
			return
		}
	}
}

// Remove unregisters ws and closes it. Removing twice is fine.
func (h *Hub) Remove(ws *websocket.Conn) {
	h.mu.Lock()
	h.unregisterLocked(ws)
	h.mu.Unlock()
	_ = ws.Close()
}

func (h *Hub) unregisterLocked(ws *websocket.Conn) {
	if sub, ok := h.clients[ws]; ok {
		delete(h.clients, ws)
		close(sub.send)
	}
}

// Publish queues ev for every client. A client whose queue is full is
// dropped; the admin UI reconnects.
func (h *Hub) Publish(ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}

	var lagging []*websocket.Conn
	h.mu.Lock()
	for ws, sub := range h.clients {
		select {
		case sub.send <- b:
		default:
			h.unregisterLocked(ws)
			lagging = append(lagging, ws)
		}
	}
	h.mu.Unlock()

	for _, ws := range lagging {
		_ = ws.Close()
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{Clients: len(h.clients)}
}

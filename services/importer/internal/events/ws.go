package events

import (
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Handler upgrades to a websocket and streams hub events until the client
// goes away. origins lists allowed Origin hosts; empty or "*" allows any.
func Handler(hub *Hub, log *zap.Logger, origins []string) http.HandlerFunc {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     checkOrigin(origins),
	}
	return func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		if err := hub.Add(ws); err != nil {
			_ = ws.Close()
			return
		}
		log.Info("events client connected", zap.String("remote", r.RemoteAddr))

		_ = ws.SetReadDeadline(time.Now().Add(pongWait))
		ws.SetPongHandler(func(string) error {
			return ws.SetReadDeadline(time.Now().Add(pongWait))
		})
		done := make(chan struct{})
		go keepAlive(ws, done)

		// Incoming messages are ignored; reading detects disconnects.
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				break
			}
		}

		close(done)
		hub.Remove(ws)
		log.Info("events client disconnected", zap.String("remote", r.RemoteAddr))
	}
}

// keepAlive pings ws until done closes. WriteControl may run alongside
// hub writes.
func keepAlive(ws *websocket.Conn, done <-chan struct{}) {
	t := time.NewTicker(pingPeriod)
	defer t.Stop()
	for {
		select {
		case <-done:
			return
		case <-t.C:
			if err := ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		}
	}
}

func checkOrigin(origins []string) func(*http.Request) bool {
	if len(origins) == 0 || slices.Contains(origins, "*") {
		return func(*http.Request) bool { return true }
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		u, err := url.Parse(origin)
		if err != nil {
			return false
		}
		for _, o := range origins {
			if strings.EqualFold(o, origin) || strings.EqualFold(o, u.Host) {
				return true
			}
		}
		return false
	}
}

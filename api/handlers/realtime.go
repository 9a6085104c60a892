package handlers

import (
	"net/http"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The consoles are trusted clients behind the bearer check; the
	// service does not enforce a browser origin policy.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Realtime upgrades a console connection onto the invalidation channel
type Realtime struct {
	Hub *Hub
}

// RealtimeHandler upgrades the request to a websocket and joins the
// optional unit scope from the query string.
func (rt Realtime) RealtimeHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		zap.S().Errorw("failed to upgrade realtime connection", "error", err)
		return
	}

	c := &hubClient{
		conn:  conn,
		scope: r.URL.Query().Get("unit"),
		send:  make(chan []byte, 16),
	}
	rt.Hub.register(c)

	go c.writePump()
	go c.readPump(rt.Hub)
}

package stubserver

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type liveFrame struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// client is one websocket subscriber; writes are serialized per connection
type client struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *client) send(frame []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, frame)
}

// hub fans consultation events out to the subscribers of each room
type hub struct {
	mu     sync.Mutex
	rooms  map[string]map[*client]struct{}
	logger *logrus.Logger
}

func newHub(logger *logrus.Logger) *hub {
	return &hub{rooms: make(map[string]map[*client]struct{}), logger: logger}
}

func (h *hub) join(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*client]struct{})
	}
	h.rooms[room][c] = struct{}{}
}

func (h *hub) leave(room string, c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[room], c)
	if len(h.rooms[room]) == 0 {
		delete(h.rooms, room)
	}
}

func (h *hub) subscribers(room string) []*client {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]*client, 0, len(h.rooms[room]))
	for c := range h.rooms[room] {
		out = append(out, c)
	}
	return out
}

func (h *hub) broadcast(room, kind string, data any) {
	subs := h.subscribers(room)
	if len(subs) == 0 {
		return
	}
	frame, err := json.Marshal(liveFrame{Type: kind, Data: data})
	if err != nil {
		h.logger.WithError(err).Error("Failed to encode live frame")
		return
	}
	for _, c := range subs {
		if err := c.send(frame); err != nil {
			h.logger.WithError(err).WithField("consultation_id", room).Debug("Dropping live subscriber")
			h.leave(room, c)
			c.conn.Close()
		}
	}
}

// serve upgrades the request and relays frames sent by the client to the
// whole room until the connection closes
func (h *hub) serve(w http.ResponseWriter, r *http.Request, room string) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.WithError(err).Debug("Websocket upgrade failed")
		return
	}
	c := &client{conn: conn}
	h.join(room, c)
	defer func() {
		h.leave(room, c)
		conn.Close()
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var payload map[string]any
		if err := json.Unmarshal(data, &payload); err != nil {
			continue
		}
		h.broadcast(room, "message", payload)
	}
}

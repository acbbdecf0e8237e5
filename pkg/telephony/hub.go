package telephony

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
)

const (
	hubWriteWait  = 10 * time.Second
	hubPongWait   = 60 * time.Second
	hubPingPeriod = (hubPongWait * 9) / 10
)

// callEvent is one entry on the operator event feed.
type callEvent struct {
	Time    string `json:"time"`
	Event   string `json:"event"`
	Session string `json:"session,omitempty"`
	Call    string `json:"call,omitempty"`
	Detail  string `json:"detail,omitempty"`
}

func newCallEvent(event, session, call, detail string) callEvent {
	return callEvent{
		Time:    time.Now().UTC().Format(time.RFC3339),
		Event:   event,
		Session: session,
		Call:    call,
		Detail:  detail,
	}
}

// eventHub fans call lifecycle events out to operator dashboard
// websockets. All client set mutation happens on the run loop; slow
// clients are dropped rather than allowed to stall the broadcast.
type eventHub struct {
	logger *slog.Logger

	clients    map[*hubClient]bool
	broadcast  chan []byte
	register   chan *hubClient
	unregister chan *hubClient

	mu sync.RWMutex
}

func newEventHub(logger *slog.Logger) *eventHub {
	return &eventHub{
		logger:     logger.With("component", "events"),
		clients:    make(map[*hubClient]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *hubClient),
		unregister: make(chan *hubClient),
	}
}

func (h *eventHub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()

		case data := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Client can't keep up; drop it.
					close(client.send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

// publish queues an event for broadcast. Never blocks; the feed is
// best-effort and a full queue drops the event.
func (h *eventHub) publish(ev callEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("event feed backed up, dropping event", "event", ev.Event)
	}
}

func (h *eventHub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// hubClient is one dashboard websocket.
type hubClient struct {
	hub  *eventHub
	conn *websocket.Conn
	send chan []byte
}

// serve registers the client and pumps until the socket drops.
func (h *eventHub) serve(conn *websocket.Conn) {
	client := &hubClient{hub: h, conn: conn, send: make(chan []byte, 64)}
	h.register <- client

	go client.writePump()
	client.readPump()
}

// readPump exists only to detect disconnects and answer pings.
func (c *hubClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(hubPongWait))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

// writePump is the connection's only writer.
func (c *hubClient) writePump() {
	ticker := time.NewTicker(hubPingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(hubWriteWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

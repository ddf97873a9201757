package ws

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait bounds a single frame write to a subscriber.
	writeWait = 10 * time.Second

	// pongWait is how long a subscriber may stay silent before its
	// reads time out; pings go out at pingPeriod to keep it alive.
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10

	maxMessageSize = 4096

	// sendBuffer is the per-subscriber outbound queue. When it fills,
	// new frames are dropped for that subscriber so a slow reader
	// never stalls the tick.
	sendBuffer = 64
)

// client is one subscriber connection. Outbound frames go through the
// buffered send channel; readPump and writePump each own one direction
// of the socket.
type client struct {
	id        string
	conn      *websocket.Conn
	server    *Server
	send      chan []byte
	closeOnce sync.Once
}

func newClient(id string, conn *websocket.Conn, server *Server) *client {
	return &client{
		id:     id,
		conn:   conn,
		server: server,
		send:   make(chan []byte, sendBuffer),
	}
}

// enqueue hands a frame to the writer without blocking. Frames beyond
// the buffer are dropped for this subscriber and logged.
func (c *client) enqueue(msg []byte) {
	select {
	case c.send <- msg:
	default:
		slog.Warn("subscriber queue full, dropping frame", "client", c.id)
	}
}

// close shuts the connection down once; safe from either pump.
func (c *client) close() {
	c.closeOnce.Do(func() {
		close(c.send)
		c.conn.Close()
	})
}

// readPump consumes inbound commands until the connection dies, then
// unregisters the subscriber.
func (c *client) readPump() {
	defer c.server.unregister(c)

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				slog.Debug("subscriber read error", "client", c.id, "err", err)
			}
			return
		}
		c.server.handleCommand(c, msg)
	}
}

// writePump drains the send channel onto the socket and keeps the
// connection alive with pings. A write error unregisters the subscriber.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.server.unregister(c)
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteControl(websocket.CloseMessage, nil, time.Now().Add(writeWait))
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				slog.Debug("subscriber write error", "client", c.id, "err", err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"chat-relay/internal/hub"
	"chat-relay/internal/models"
)

const (
	// Time allowed to write a message
	writeWait = 10 * time.Second

	// Time allowed to read next pong message
	pongWait = 60 * time.Second

	// Send pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10

	// Max inbound message size
	maxMessageSize = 64 * 1024

	// DefaultSendBuffer is the number of outbound frames queued per client
	// before it is treated as too slow and evicted.
	DefaultSendBuffer = 256
)

var (
	errBufferFull = errors.New("send buffer full")
	errClosed     = errors.New("client closed")
)

// Client adapts one gorilla connection to the hub's Conn interface and
// drives the session state machine from inbound frames.
type Client struct {
	id         string
	remoteAddr string
	conn       *websocket.Conn
	send       chan []byte
	done       chan struct{}
	closeOnce  sync.Once
	session    *hub.Session
}

func newClient(id, remoteAddr string, conn *websocket.Conn, buffer int) *Client {
	if buffer <= 0 {
		buffer = DefaultSendBuffer
	}
	return &Client{
		id:         id,
		remoteAddr: remoteAddr,
		conn:       conn,
		send:       make(chan []byte, buffer),
		done:       make(chan struct{}),
	}
}

func (c *Client) ID() string { return c.id }

// Send queues a frame without blocking.
func (c *Client) Send(data []byte) error {
	select {
	case <-c.done:
		return errClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	default:
		return errBufferFull
	}
}

// Close stops the write pump, which sends a close frame and shuts the socket.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// ReadPump pumps frames from the WebSocket into the session.
func (c *Client) ReadPump() {
	defer func() {
		c.session.Close()
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				slog.Warn("[CLIENT] Unexpected close", "client", c.id, "user", c.session.Identity(), "error", err)
			}
			break
		}

		c.handleClientMessage(message)
	}
}

// WritePump pumps frames from the send buffer to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				slog.Debug("[CLIENT] Write failed", "client", c.id, "error", err)
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				slog.Debug("[CLIENT] Failed to send ping", "client", c.id, "error", err)
				return
			}

		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return
		}
	}
}

func (c *Client) handleClientMessage(message []byte) {
	var frame models.Frame
	if err := json.Unmarshal(message, &frame); err != nil {
		slog.Warn("[CLIENT] Error unmarshaling frame", "client", c.id, "error", err)
		return
	}

	var identity string
	if len(frame.Data) > 0 {
		if err := json.Unmarshal(frame.Data, &identity); err != nil {
			slog.Warn("[CLIENT] Payload is not a string", "client", c.id, "event", frame.Event)
			return
		}
	}

	switch frame.Event {
	case models.EventUserOnline:
		c.session.Announce(identity)

	case models.EventTyping:
		c.session.RelayTyping(hub.TypingStart, identity)

	case models.EventStopTyping:
		c.session.RelayTyping(hub.TypingStop, identity)

	case "":
		slog.Warn("[CLIENT] No 'event' field in frame", "client", c.id)

	default:
		slog.Warn("[CLIENT] Unknown event type", "event", frame.Event, "client", c.id)
	}
}

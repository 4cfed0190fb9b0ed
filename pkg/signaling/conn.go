package signaling

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// DialOptions tune the websocket connection to the relay.
type DialOptions struct {
	Header http.Header
	Dialer *websocket.Dialer
	Logger *slog.Logger
}

// Conn is a Channel backed by a websocket to the relay.
type Conn struct {
	ws     *websocket.Conn
	log    *slog.Logger
	roomID string

	outgoing chan Message
	done     chan struct{}
	readOnce sync.Once
	stopOnce sync.Once

	mu      sync.Mutex
	handler func(Message)
	closed  bool
	err     error
}

var _ Channel = (*Conn)(nil)

// RoomURL joins the relay base URL and the room id.
func RoomURL(baseURL, roomID string) (string, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid relay URL: %w", err)
	}
	switch u.Scheme {
	case "ws", "wss":
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("invalid relay URL scheme %q", u.Scheme)
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/" + url.PathEscape(roomID)
	return u.String(), nil
}

// ValidRoomID accepts non-empty ids of letters, digits, '-' and '_' up to
// 64 characters.
func ValidRoomID(id string) bool {
	if id == "" || len(id) > 64 {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}

// Dial connects to the room on the relay at baseURL.
func Dial(ctx context.Context, baseURL, roomID string, opts DialOptions) (*Conn, error) {
	if !ValidRoomID(roomID) {
		return nil, fmt.Errorf("%w: invalid room id %q", ErrTransport, roomID)
	}
	target, err := RoomURL(baseURL, roomID)
	if err != nil {
		return nil, err
	}

	dialer := opts.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ws, resp, err := dialer.DialContext(ctx, target, opts.Header)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusConflict {
			return nil, fmt.Errorf("join %s: %w", roomID, ErrRoomFull)
		}
		return nil, fmt.Errorf("%w: connect to %s: %w", ErrTransport, target, err)
	}

	c := &Conn{
		ws:       ws,
		log:      logger.With("room", roomID),
		roomID:   roomID,
		outgoing: make(chan Message, 16),
		done:     make(chan struct{}),
	}

	ws.SetReadLimit(maxMessageSize)
	ws.SetPongHandler(func(string) error {
		return ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	go c.writePump()

	c.log.Debug("signaling connected", "url", target)
	return c, nil
}

// Send queues msg for the write pump. Order is preserved.
func (c *Conn) Send(ctx context.Context, msg Message) error {
	select {
	case <-c.done:
		return ErrChannelClosed
	default:
	}

	select {
	case c.outgoing <- msg:
		return nil
	case <-c.done:
		return ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Conn) OnMessage(handler func(Message)) {
	c.mu.Lock()
	c.handler = handler
	c.mu.Unlock()

	c.readOnce.Do(func() { go c.readPump() })
}

func (c *Conn) Close() error {
	c.stop(nil)
	return nil
}

func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Conn) stop(cause error) {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.err = cause
		c.mu.Unlock()
		close(c.done)
	})
}

func (c *Conn) readPump() {
	defer c.ws.Close()

	c.ws.SetReadDeadline(time.Now().Add(pongWait))

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.stop(fmt.Errorf("%w: relay closed the connection", ErrTransport))
			} else if !c.isClosed() {
				c.stop(fmt.Errorf("%w: %w", ErrTransport, err))
			}
			return
		}

		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			c.log.Warn("skipping unreadable signaling frame", "error", err)
			continue
		}

		c.mu.Lock()
		handler, closed := c.handler, c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		handler(msg)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.outgoing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				c.stop(fmt.Errorf("%w: write %s: %w", ErrTransport, msg.Type, err))
				return
			}

		case <-ticker.C:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.stop(fmt.Errorf("%w: ping: %w", ErrTransport, err))
				return
			}

		case <-c.done:
			c.drain()
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			err := c.ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			if err != nil && !errors.Is(err, websocket.ErrCloseSent) {
				c.log.Debug("close frame not sent", "error", err)
			}
			return
		}
	}
}

// drain flushes messages queued before Close, so a final bye still goes out.
func (c *Conn) drain() {
	for {
		select {
		case msg := <-c.outgoing:
			c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteJSON(msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) isClosed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

package relay

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"example.com/meetease/pkg/signaling"
)

const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 64 * 1024 // enough for SDP with many candidates
)

// participant is one websocket connection in a room.
type participant struct {
	id     string
	hub    *Hub
	room   *Room
	conn   *websocket.Conn
	log    *slog.Logger
	addr   string
	joined time.Time

	// send is never closed; done stops the write pump.
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	mu        sync.Mutex
	announced string
	saidBye   bool
}

func (p *participant) record() Participant {
	return Participant{ID: p.id, Room: p.room.ID, RemoteAddr: p.addr, JoinedAt: p.joined}
}

func (p *participant) enqueue(data []byte) bool {
	select {
	case <-p.done:
		return true
	default:
	}

	select {
	case p.send <- data:
		return true
	case <-p.done:
		return true
	default:
		return false
	}
}

func (p *participant) close() {
	p.closeOnce.Do(func() { close(p.done) })
}

// observe notes hello and bye frames so the relay can say goodbye on behalf
// of a participant that drops without one. Frames are forwarded unchanged
// either way.
func (p *participant) observe(data []byte) {
	var msg signaling.Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return
	}
	switch msg.Type {
	case signaling.TypeHello, signaling.TypeBye:
	default:
		return
	}
	id, err := msg.Participant()
	if err != nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if msg.Type == signaling.TypeHello {
		p.announced = id
	} else {
		p.saidBye = true
	}
}

func (p *participant) farewell() ([]byte, bool) {
	p.mu.Lock()
	id, saidBye := p.announced, p.saidBye
	p.mu.Unlock()

	if id == "" || saidBye {
		return nil, false
	}
	bye, err := signaling.NewBye(id)
	if err != nil {
		return nil, false
	}
	data, err := json.Marshal(bye)
	if err != nil {
		return nil, false
	}
	return data, true
}

// readPump forwards frames from the connection to the room.
func (p *participant) readPump() {
	defer func() {
		p.close()
		p.hub.leave(p)
		p.conn.Close()
	}()

	p.conn.SetReadLimit(maxMessageSize)
	p.conn.SetReadDeadline(time.Now().Add(pongWait))
	p.conn.SetPongHandler(func(string) error {
		p.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		kind, data, err := p.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				p.log.Debug("read failed", "error", err)
			}
			return
		}
		if kind != websocket.TextMessage {
			continue
		}

		p.observe(data)
		p.hub.forward(p, data)
	}
}

// writePump writes queued frames to the connection and keeps it alive.
func (p *participant) writePump() {
	ticker := time.NewTicker(pingPeriod)

	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case data := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				p.log.Debug("write failed", "error", err)
				p.close()
				return
			}

		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				p.close()
				return
			}

		case <-p.done:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

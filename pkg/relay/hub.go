// Package relay is a room-scoped signaling relay: every frame a participant
// sends is forwarded, unchanged and in order, to the other participants of
// the same room and to no one else.
package relay

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"example.com/meetease/pkg/signaling"
)

const (
	DefaultCapacity   = 2
	defaultSendBuffer = 64
	presenceTimeout   = 2 * time.Second
)

var (
	ErrRoomFull      = errors.New("room is full")
	ErrInvalidRoomID = errors.New("invalid room id")
	ErrHubClosed     = errors.New("relay is shutting down")
)

// HubOptions configures a Hub.
type HubOptions struct {
	// Capacity is the number of participants per room. Zero means
	// DefaultCapacity.
	Capacity int
	// SendBuffer is the per-participant outbound queue. A participant that
	// lets it fill up is disconnected.
	SendBuffer int
	Presence   PresenceStore
	Upgrader   *websocket.Upgrader
	Logger     *slog.Logger
}

// Hub owns the rooms of one relay instance.
type Hub struct {
	capacity   int
	sendBuffer int
	presence   PresenceStore
	upgrader   websocket.Upgrader
	log        *slog.Logger

	mu     sync.Mutex
	rooms  map[string]*Room
	closed bool
}

func NewHub(opts HubOptions) *Hub {
	h := &Hub{
		capacity:   opts.Capacity,
		sendBuffer: opts.SendBuffer,
		presence:   opts.Presence,
		log:        opts.Logger,
		rooms:      make(map[string]*Room),
	}
	if h.capacity <= 0 {
		h.capacity = DefaultCapacity
	}
	if h.sendBuffer <= 0 {
		h.sendBuffer = defaultSendBuffer
	}
	if h.presence == nil {
		h.presence = NewMemoryPresence()
	}
	if h.log == nil {
		h.log = slog.Default()
	}
	if opts.Upgrader != nil {
		h.upgrader = *opts.Upgrader
	} else {
		h.upgrader = websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Origins are checked by the router middleware.
			CheckOrigin: func(r *http.Request) bool { return true },
		}
	}
	return h
}

// Room holds the participants connected under one room id.
type Room struct {
	ID           string
	mu           sync.RWMutex
	participants map[string]*participant
}

// others returns every participant except the one with excludeID, in no
// particular order.
func (r *Room) others(excludeID string) []*participant {
	r.mu.RLock()
	defer r.mu.RUnlock()

	peers := make([]*participant, 0, len(r.participants))
	for id, p := range r.participants {
		if id != excludeID {
			peers = append(peers, p)
		}
	}
	return peers
}

func (r *Room) size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.participants)
}

// ServeRoom upgrades the request and registers the connection in roomID.
// A full room is rejected with 409 before the upgrade.
func (h *Hub) ServeRoom(w http.ResponseWriter, r *http.Request, roomID string) {
	if !signaling.ValidRoomID(roomID) {
		http.Error(w, ErrInvalidRoomID.Error(), http.StatusBadRequest)
		return
	}

	p := &participant{
		id:     uuid.NewString(),
		hub:    h,
		send:   make(chan []byte, h.sendBuffer),
		done:   make(chan struct{}),
		joined: time.Now(),
		addr:   r.RemoteAddr,
	}

	room, err := h.reserve(roomID, p)
	if err != nil {
		status := http.StatusConflict
		if errors.Is(err, ErrHubClosed) {
			status = http.StatusServiceUnavailable
		}
		h.log.Info("join rejected", "room", roomID, "error", err)
		http.Error(w, err.Error(), status)
		return
	}
	p.room = room
	p.log = h.log.With("room", roomID, "peer", p.id)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		p.log.Warn("websocket upgrade failed", "error", err)
		h.release(p)
		return
	}
	p.conn = conn

	ctx, cancel := context.WithTimeout(r.Context(), presenceTimeout)
	if err := h.presence.Join(ctx, p.record()); err != nil {
		p.log.Warn("presence join failed", "error", err)
	}
	cancel()

	p.log.Info("participant joined", "participants", room.size())

	go p.writePump()
	go p.readPump()
}

func (h *Hub) reserve(roomID string, p *participant) (*Room, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.closed {
		return nil, ErrHubClosed
	}

	room, ok := h.rooms[roomID]
	if !ok {
		room = &Room{ID: roomID, participants: make(map[string]*participant)}
		h.rooms[roomID] = room
	}

	room.mu.Lock()
	defer room.mu.Unlock()
	if len(room.participants) >= h.capacity {
		return nil, ErrRoomFull
	}
	room.participants[p.id] = p
	return room, nil
}

// release removes p from its room and drops the room once it is empty.
func (h *Hub) release(p *participant) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := p.room
	room.mu.Lock()
	_, present := room.participants[p.id]
	delete(room.participants, p.id)
	empty := len(room.participants) == 0
	room.mu.Unlock()

	if empty && h.rooms[room.ID] == room {
		delete(h.rooms, room.ID)
	}
	return present
}

// leave is called once per participant when its connection ends.
func (h *Hub) leave(p *participant) {
	if !h.release(p) {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
	defer cancel()
	if err := h.presence.Leave(ctx, p.room.ID, p.id); err != nil {
		p.log.Warn("presence leave failed", "error", err)
	}

	// Say goodbye for participants that vanished without one.
	if bye, ok := p.farewell(); ok {
		h.forward(p, bye)
	}
	p.log.Info("participant left")
}

// forward delivers data to every other participant of p's room. A
// participant whose queue is full is disconnected.
func (h *Hub) forward(from *participant, data []byte) {
	for _, to := range from.room.others(from.id) {
		if !to.enqueue(data) {
			to.log.Warn("send buffer full, disconnecting")
			to.close()
		}
	}
}

// Occupancy is the number of connections currently in roomID.
func (h *Hub) Occupancy(roomID string) int {
	h.mu.Lock()
	room, ok := h.rooms[roomID]
	h.mu.Unlock()
	if !ok {
		return 0
	}
	return room.size()
}

func (h *Hub) Capacity() int { return h.capacity }

func (h *Hub) Presence() PresenceStore { return h.presence }

// Rooms is the number of rooms with at least one participant.
func (h *Hub) Rooms() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// Close disconnects everyone and rejects new joins.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*participant
	for _, room := range h.rooms {
		all = append(all, room.others("")...)
	}
	h.mu.Unlock()

	for _, p := range all {
		p.close()
	}
}

package relay

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"
)

// Participant is the presence record of one relay connection.
type Participant struct {
	ID         string    `msgpack:"id" json:"id"`
	Room       string    `msgpack:"room" json:"room"`
	RemoteAddr string    `msgpack:"remote_addr" json:"remoteAddr"`
	JoinedAt   time.Time `msgpack:"joined_at" json:"joinedAt"`
}

// PresenceStore tracks who is connected to which room.
type PresenceStore interface {
	Join(ctx context.Context, p Participant) error
	Leave(ctx context.Context, room, id string) error
	Participants(ctx context.Context, room string) ([]Participant, error)
}

// MemoryPresence keeps presence in process. It is the default store.
type MemoryPresence struct {
	mu    sync.RWMutex
	rooms map[string]map[string]Participant
}

func NewMemoryPresence() *MemoryPresence {
	return &MemoryPresence{rooms: make(map[string]map[string]Participant)}
}

func (m *MemoryPresence) Join(_ context.Context, p Participant) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[p.Room]
	if !ok {
		room = make(map[string]Participant)
		m.rooms[p.Room] = room
	}
	room[p.ID] = p
	return nil
}

func (m *MemoryPresence) Leave(_ context.Context, room, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.rooms[room], id)
	if len(m.rooms[room]) == 0 {
		delete(m.rooms, room)
	}
	return nil
}

func (m *MemoryPresence) Participants(_ context.Context, room string) ([]Participant, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Participant, 0, len(m.rooms[room]))
	for _, p := range m.rooms[room] {
		out = append(out, p)
	}
	sortByJoin(out)
	return out, nil
}

// RedisPresence stores one hash per room, field = participant id, value =
// msgpack-encoded Participant. Several relay instances can share it.
type RedisPresence struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisPresence builds a presence store backed by Redis. Prefix is
// optional (default "meet"). Room hashes expire after ttl without joins.
func NewRedisPresence(rdb *redis.Client, prefix string, ttl time.Duration) *RedisPresence {
	p := strings.TrimSuffix(strings.TrimSpace(prefix), ":")
	if p == "" {
		p = "meet"
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisPresence{rdb: rdb, prefix: p, ttl: ttl}
}

func (s *RedisPresence) key(room string) string {
	return fmt.Sprintf("%s:room:%s:participants", s.prefix, room)
}

func (s *RedisPresence) Join(ctx context.Context, p Participant) error {
	data, err := msgpack.Marshal(&p)
	if err != nil {
		return fmt.Errorf("encode participant: %w", err)
	}

	key := s.key(p.Room)
	pipe := s.rdb.TxPipeline()
	pipe.HSet(ctx, key, p.ID, data)
	pipe.Expire(ctx, key, s.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("store participant: %w", err)
	}
	return nil
}

func (s *RedisPresence) Leave(ctx context.Context, room, id string) error {
	return s.rdb.HDel(ctx, s.key(room), id).Err()
}

func (s *RedisPresence) Participants(ctx context.Context, room string) ([]Participant, error) {
	vals, err := s.rdb.HGetAll(ctx, s.key(room)).Result()
	if err != nil {
		return nil, err
	}

	out := make([]Participant, 0, len(vals))
	for id, raw := range vals {
		var p Participant
		if err := msgpack.Unmarshal([]byte(raw), &p); err != nil {
			return nil, fmt.Errorf("decode participant %s: %w", id, err)
		}
		out = append(out, p)
	}
	sortByJoin(out)
	return out, nil
}

func sortByJoin(ps []Participant) {
	sort.Slice(ps, func(i, j int) bool { return ps[i].JoinedAt.Before(ps[j].JoinedAt) })
}

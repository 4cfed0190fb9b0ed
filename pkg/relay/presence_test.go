package relay

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisPresence(t *testing.T, ttl time.Duration) (*RedisPresence, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), DisableIdentity: true})
	t.Cleanup(func() { rdb.Close() })
	return NewRedisPresence(rdb, "test:", ttl), mr
}

func TestRedisPresence(t *testing.T) {
	store, mr := newRedisPresence(t, time.Hour)
	ctx := context.Background()
	joined := time.Date(2026, 10, 17, 12, 0, 0, 123456789, time.UTC)

	require.NoError(t, store.Join(ctx, Participant{ID: "bob", Room: "r1", RemoteAddr: "10.0.0.2:4000", JoinedAt: joined.Add(time.Second)}))
	require.NoError(t, store.Join(ctx, Participant{ID: "alice", Room: "r1", RemoteAddr: "10.0.0.1:4000", JoinedAt: joined}))
	require.NoError(t, store.Join(ctx, Participant{ID: "carol", Room: "r2", JoinedAt: joined}))

	key := "test:room:r1:participants"
	assert.True(t, mr.Exists(key))
	fields, err := mr.HKeys(key)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"alice", "bob"}, fields)
	assert.Equal(t, time.Hour, mr.TTL(key))

	ps, err := store.Participants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, ps, 2)
	assert.Equal(t, "alice", ps[0].ID)
	assert.Equal(t, "r1", ps[0].Room)
	assert.Equal(t, "10.0.0.1:4000", ps[0].RemoteAddr)
	assert.True(t, joined.Equal(ps[0].JoinedAt), "joined at %v", ps[0].JoinedAt)
	assert.Equal(t, "bob", ps[1].ID)

	require.NoError(t, store.Leave(ctx, "r1", "alice"))
	ps, err = store.Participants(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, "bob", ps[0].ID)

	other, err := store.Participants(ctx, "r2")
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "carol", other[0].ID)

	empty, err := store.Participants(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestRedisPresenceRoomsExpire(t *testing.T) {
	store, mr := newRedisPresence(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, store.Join(ctx, Participant{ID: "alice", Room: "r1", JoinedAt: time.Now()}))
	mr.FastForward(2 * time.Minute)

	ps, err := store.Participants(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, ps)
}

func TestRedisPresenceCorruptRecord(t *testing.T) {
	store, mr := newRedisPresence(t, 0)
	ctx := context.Background()

	mr.HSet("test:room:r1:participants", "mallory", "not msgpack")

	_, err := store.Participants(ctx, "r1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decode participant mallory")
}

func TestHubRecordsPresenceInRedis(t *testing.T) {
	store, _ := newRedisPresence(t, 0)
	hub, srv := newRelay(t, HubOptions{Presence: store}, RouterOptions{})

	conn := join(t, srv, "r1")
	waitOccupancy(t, hub, "r1", 1)

	present := func(n int) func() bool {
		return func() bool {
			ps, err := store.Participants(context.Background(), "r1")
			return err == nil && len(ps) == n
		}
	}
	require.Eventually(t, present(1), 2*time.Second, 10*time.Millisecond)

	conn.Close()
	waitOccupancy(t, hub, "r1", 0)
	require.Eventually(t, present(0), 2*time.Second, 10*time.Millisecond)
}

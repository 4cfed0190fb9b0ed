package signaling

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pion/webrtc/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescriptionDecoding(t *testing.T) {
	msg, err := NewDescription(webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: "v=0\r\n"})
	require.NoError(t, err)
	assert.Equal(t, TypeOffer, msg.Type)

	desc, err := msg.Description()
	require.NoError(t, err)
	assert.Equal(t, webrtc.SDPTypeOffer, desc.Type)
	assert.Equal(t, "v=0\r\n", desc.SDP)

	tests := []struct {
		name string
		msg  Message
	}{
		{"no data", Message{Type: TypeOffer}},
		{"missing sdp", Message{Type: TypeAnswer, Data: json.RawMessage(`{"type":"answer"}`)}},
		{"empty sdp", Message{Type: TypeAnswer, Data: json.RawMessage(`{"type":"answer","sdp":""}`)}},
		{"type mismatch", Message{Type: TypeOffer, Data: json.RawMessage(`{"type":"answer","sdp":"v=0"}`)}},
		{"not json", Message{Type: TypeOffer, Data: json.RawMessage(`"v=0"`)}},
		{"wrong message", Message{Type: TypeCandidate, Data: json.RawMessage(`{"sdp":"v=0"}`)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.msg.Description()
			assert.ErrorIs(t, err, ErrMalformedMessage)
		})
	}
}

func TestCandidateDecoding(t *testing.T) {
	mid := "0"
	var index uint16
	msg, err := NewCandidate(webrtc.ICECandidateInit{
		Candidate:     "candidate:1 1 udp 2130706431 192.0.2.1 5000 typ host",
		SDPMid:        &mid,
		SDPMLineIndex: &index,
	})
	require.NoError(t, err)

	c, err := msg.Candidate()
	require.NoError(t, err)
	assert.Equal(t, "candidate:1 1 udp 2130706431 192.0.2.1 5000 typ host", c.Candidate)
	require.NotNil(t, c.SDPMid)
	assert.Equal(t, "0", *c.SDPMid)
	require.NotNil(t, c.SDPMLineIndex)
	assert.Zero(t, *c.SDPMLineIndex)

	end, err := Message{Type: TypeCandidate, Data: json.RawMessage(`{"candidate":""}`)}.Candidate()
	require.NoError(t, err)
	assert.Empty(t, end.Candidate)

	_, err = Message{Type: TypeCandidate, Data: json.RawMessage(`{"sdpMid":"0"}`)}.Candidate()
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func TestParticipantDecoding(t *testing.T) {
	msg, err := NewHello("abc")
	require.NoError(t, err)
	id, err := msg.Participant()
	require.NoError(t, err)
	assert.Equal(t, "abc", id)

	_, err = Message{Type: TypeBye, Data: json.RawMessage(`{}`)}.Participant()
	assert.ErrorIs(t, err, ErrMalformedMessage)
}

func collect(ch Channel, n int) <-chan []Message {
	out := make(chan []Message, 1)
	var got []Message
	ch.OnMessage(func(m Message) {
		got = append(got, m)
		if len(got) == n {
			out <- got
		}
	})
	return out
}

func hellos(t *testing.T, ids ...string) []Message {
	t.Helper()
	msgs := make([]Message, 0, len(ids))
	for _, id := range ids {
		m, err := NewHello(id)
		require.NoError(t, err)
		msgs = append(msgs, m)
	}
	return msgs
}

func waitFor(t *testing.T, ch <-chan []Message) []Message {
	t.Helper()
	select {
	case got := <-ch:
		return got
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for messages")
		return nil
	}
}

func TestPipeDeliversInOrder(t *testing.T) {
	a, b := Pipe()
	defer a.Close()
	defer b.Close()

	sent := hellos(t, "1", "2", "3")
	for _, m := range sent {
		require.NoError(t, a.Send(context.Background(), m))
	}

	// registered after sending: earlier messages are held
	got := waitFor(t, collect(b, len(sent)))
	assert.Equal(t, sent, got)
}

func TestPipeSendAfterClose(t *testing.T) {
	a, b := Pipe()
	require.NoError(t, a.Close())
	require.NoError(t, a.Close())

	msg := hellos(t, "x")[0]
	assert.ErrorIs(t, a.Send(context.Background(), msg), ErrChannelClosed)
	assert.NoError(t, b.Send(context.Background(), msg), "peer of a closed end keeps working")

	select {
	case <-a.Done():
	default:
		t.Fatal("done not closed")
	}
	assert.NoError(t, a.Err())
}

var upgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer reflects every frame back to the sender.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/full") {
			http.Error(w, "room is full", http.StatusConflict)
			return
		}
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		if strings.HasSuffix(r.URL.Path, "/drop") {
			return
		}
		for {
			mt, data, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, data); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func TestConnRoundTrip(t *testing.T) {
	srv := echoServer(t)

	conn, err := Dial(context.Background(), wsURL(srv), "room1", DialOptions{})
	require.NoError(t, err)
	defer conn.Close()

	sent := hellos(t, "a", "b", "c", "d")
	received := collect(conn, len(sent))
	for _, m := range sent {
		require.NoError(t, conn.Send(context.Background(), m))
	}

	got := waitFor(t, received)
	require.Len(t, got, len(sent))
	for i := range sent {
		assert.Equal(t, sent[i].Type, got[i].Type)
		assert.JSONEq(t, string(sent[i].Data), string(got[i].Data))
	}

	require.NoError(t, conn.Close())
	assert.ErrorIs(t, conn.Send(context.Background(), sent[0]), ErrChannelClosed)
	assert.NoError(t, conn.Err())
}

func TestConnReplacingHandlerKeepsOneReader(t *testing.T) {
	srv := echoServer(t)

	conn, err := Dial(context.Background(), wsURL(srv), "room1", DialOptions{})
	require.NoError(t, err)
	defer conn.Close()

	conn.OnMessage(func(Message) { t.Error("replaced handler called") })
	sent := hellos(t, "a", "b", "c")
	received := collect(conn, len(sent))
	for _, m := range sent {
		require.NoError(t, conn.Send(context.Background(), m))
	}

	got := waitFor(t, received)
	require.Len(t, got, len(sent))
	for i := range sent {
		assert.JSONEq(t, string(sent[i].Data), string(got[i].Data))
	}
	assert.NoError(t, conn.Err())
}

func TestConnReportsRelayLoss(t *testing.T) {
	srv := echoServer(t)

	conn, err := Dial(context.Background(), wsURL(srv), "drop", DialOptions{})
	require.NoError(t, err)
	conn.OnMessage(func(Message) {})

	select {
	case <-conn.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection loss not reported")
	}
	assert.ErrorIs(t, conn.Err(), ErrTransport)
}

func TestDialRoomFull(t *testing.T) {
	srv := echoServer(t)

	_, err := Dial(context.Background(), wsURL(srv), "full", DialOptions{})
	assert.ErrorIs(t, err, ErrRoomFull)
}

func TestRoomURL(t *testing.T) {
	u, err := RoomURL("http://localhost:8080/ws/", "abc")
	require.NoError(t, err)
	assert.Equal(t, "ws://localhost:8080/ws/abc", u)

	_, err = RoomURL("ftp://localhost", "abc")
	assert.Error(t, err)
}

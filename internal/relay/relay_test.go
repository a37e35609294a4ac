package relay

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/protocol"
)

type mockConn struct {
	id      string
	sent    [][]byte
	sendErr error
	closed  bool
	mu      sync.Mutex
}

func (m *mockConn) ID() string { return m.id }

func (m *mockConn) Send(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	m.sent = append(m.sent, data)
	return nil
}

func (m *mockConn) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockConn) frames(t *testing.T) []map[string]any {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]map[string]any, 0, len(m.sent))
	for _, b := range m.sent {
		var v map[string]any
		require.NoError(t, json.Unmarshal(b, &v))
		out = append(out, v)
	}
	return out
}

func (m *mockConn) framesOfType(t *testing.T, typ string) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, f := range m.frames(t) {
		if f["type"] == typ {
			out = append(out, f)
		}
	}
	return out
}

func (m *mockConn) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = nil
}

type postCall struct {
	roomID, userID, content string
}

type mockChat struct {
	mu    sync.Mutex
	calls []postCall
	err   error
	now   time.Time
}

func (m *mockChat) Post(_ context.Context, roomID, userID, content string) (domain.MessageWithUser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, postCall{roomID, userID, content})
	if m.err != nil {
		return domain.MessageWithUser{}, m.err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.MessageWithUser{}, domain.ErrEmptyMessage
	}
	return domain.MessageWithUser{
		Message: domain.Message{ID: "m1", RoomID: roomID, UserID: userID, Content: content, CreatedAt: m.now},
		User:    &domain.User{ID: userID, Name: "Name of " + userID},
	}, nil
}

type mockVideos struct {
	mu    sync.Mutex
	calls []domain.VideoState
}

func (m *mockVideos) RecordVideo(_ context.Context, _ string, st domain.VideoState) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, st)
	return nil
}

func newTestHandler() (*Handler, *mockChat, *mockVideos) {
	chat := &mockChat{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	videos := &mockVideos{}
	return NewHandler(NewRegistry(), chat, videos), chat, videos
}

func join(t *testing.T, h *Handler, c *mockConn, roomID, userID string) {
	t.Helper()
	h.Handle(context.Background(), c, []byte(`{"type":"join_room","roomId":"`+roomID+`","userId":"`+userID+`","userName":"`+userID+`"}`))
}

func TestHandler_Join_PresenceAndAnnouncement(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}

	join(t, h, a, "r1", "alice")
	a.reset()

	h.Handle(context.Background(), b, []byte(`{"type":"join_room","roomId":"r1","userId":"bob"}`))

	presence := b.framesOfType(t, protocol.TypePresence)
	require.Len(t, presence, 1)
	members := presence[0]["members"].([]any)
	require.Len(t, members, 2)
	var ids []string
	for _, m := range members {
		ids = append(ids, m.(map[string]any)["userId"].(string))
	}
	assert.ElementsMatch(t, []string{"alice", "bob"}, ids)

	joined := a.framesOfType(t, protocol.TypeUserJoined)
	require.Len(t, joined, 1)
	assert.Equal(t, "bob", joined[0]["userId"])
	assert.Equal(t, DefaultUserName, joined[0]["userName"])

	assert.Empty(t, b.framesOfType(t, protocol.TypeUserJoined))
}

func TestHandler_VideoUpdate_ReachesOnlyOtherRoomMembers(t *testing.T) {
	h, _, videos := newTestHandler()
	origin := &mockConn{id: "origin"}
	peers := []*mockConn{{id: "p1"}, {id: "p2"}, {id: "p3"}}
	stranger := &mockConn{id: "stranger"}

	join(t, h, origin, "r1", "u0")
	for i, p := range peers {
		join(t, h, p, "r1", "u"+string(rune('1'+i)))
	}
	join(t, h, stranger, "r2", "x")
	for _, c := range append(peers, origin, stranger) {
		c.reset()
	}

	h.Handle(context.Background(), origin, []byte(`{"type":"video_update","roomId":"r1","isPlaying":true,"timestamp":33.5}`))

	for _, p := range peers {
		got := p.framesOfType(t, protocol.TypeVideoUpdate)
		require.Len(t, got, 1, p.id)
		assert.Equal(t, true, got[0]["isPlaying"])
		assert.Equal(t, 33.5, got[0]["timestamp"])
		assert.Equal(t, "u0", got[0]["userId"])
	}
	assert.Empty(t, origin.frames(t))
	assert.Empty(t, stranger.frames(t))
	assert.Empty(t, videos.calls, "position-only updates are not recorded")
}

func TestHandler_VideoUpdate_NewVideoRecorded(t *testing.T) {
	h, _, videos := newTestHandler()
	a := &mockConn{id: "a"}
	join(t, h, a, "r1", "alice")

	h.Handle(context.Background(), a, []byte(`{"type":"video-update","roomId":"r1","isPlaying":true,"timestamp":0,"url":"https://youtu.be/dQw4w9WgXcQ"}`))

	require.Len(t, videos.calls, 1)
	assert.Equal(t, "https://youtu.be/dQw4w9WgXcQ", videos.calls[0].URL)
	assert.True(t, videos.calls[0].IsPlaying)
}

func TestHandler_Chat_RoundTrip(t *testing.T) {
	h, chat, _ := newTestHandler()
	sender := &mockConn{id: "s"}
	peer := &mockConn{id: "p"}
	other := &mockConn{id: "o"}

	join(t, h, sender, "R", "U")
	join(t, h, peer, "R", "V")
	join(t, h, other, "Q", "W")
	sender.reset()
	peer.reset()
	other.reset()

	h.Handle(context.Background(), sender, []byte(`{"type":"chat_message","roomId":"R","userId":"U","content":"hello"}`))

	require.Len(t, chat.calls, 1)
	assert.Equal(t, postCall{"R", "U", "hello"}, chat.calls[0])

	for _, c := range []*mockConn{sender, peer} {
		got := c.framesOfType(t, protocol.TypeChatMessage)
		require.Len(t, got, 1, c.id)
		assert.Equal(t, "hello", got[0]["content"])
		assert.Equal(t, "U", got[0]["userId"])
		assert.Equal(t, "2024-05-01T12:00:00Z", got[0]["createdAt"])
		assert.Equal(t, "Name of U", got[0]["user"].(map[string]any)["name"])
	}
	assert.Empty(t, other.frames(t))
}

func TestHandler_Chat_UserFallsBackToRegistration(t *testing.T) {
	h, chat, _ := newTestHandler()
	a := &mockConn{id: "a"}
	join(t, h, a, "R", "alice")

	h.Handle(context.Background(), a, []byte(`{"type":"chat_message","roomId":"R","content":"hi"}`))

	require.Len(t, chat.calls, 1)
	assert.Equal(t, "alice", chat.calls[0].userID)
}

func TestHandler_Chat_Rejected(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	join(t, h, a, "R", "alice")
	join(t, h, b, "R", "bob")
	a.reset()
	b.reset()

	h.Handle(context.Background(), a, []byte(`{"type":"chat_message","roomId":"R","userId":"alice","content":"   "}`))

	require.Len(t, a.framesOfType(t, protocol.TypeError), 1)
	assert.Empty(t, a.framesOfType(t, protocol.TypeChatMessage))
	assert.Empty(t, b.frames(t))
}

func TestHandler_Chat_PersistenceFailureDropsBroadcast(t *testing.T) {
	h, chat, _ := newTestHandler()
	chat.err = errors.New("db down")
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	join(t, h, a, "R", "alice")
	join(t, h, b, "R", "bob")
	a.reset()
	b.reset()

	h.Handle(context.Background(), a, []byte(`{"type":"chat_message","roomId":"R","userId":"alice","content":"hello"}`))

	assert.Empty(t, a.frames(t))
	assert.Empty(t, b.frames(t))
	assert.False(t, a.closed)
}

func TestHandler_MalformedFrames_KeepConnectionOpen(t *testing.T) {
	h, chat, _ := newTestHandler()
	a := &mockConn{id: "a"}

	for _, raw := range []string{
		`not json`,
		`{"type":"join_room"}`,
		`{"type":"chat_message","content":"no room"}`,
		`{"type":"teleport","roomId":"R"}`,
		`{"type":"user_joined","roomId":"R"}`,
	} {
		h.Handle(context.Background(), a, []byte(raw))
	}

	assert.Len(t, a.framesOfType(t, protocol.TypeError), 5)
	assert.False(t, a.closed)
	assert.Empty(t, chat.calls)
	rooms, conns := h.Registry().Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

func TestHandler_Ping(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}

	h.Handle(context.Background(), a, []byte(`{"type":"ping","timestamp":12345}`))

	got := a.framesOfType(t, protocol.TypePong)
	require.Len(t, got, 1)
	assert.Equal(t, float64(12345), got[0]["timestamp"])
}

func TestHandler_Disconnect_AnnouncesOnce(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	c := &mockConn{id: "c"}
	join(t, h, a, "R", "alice")
	join(t, h, b, "R", "bob")
	join(t, h, c, "R", "carol")
	b.reset()
	c.reset()

	h.Disconnect(context.Background(), a)
	h.Disconnect(context.Background(), a)

	for _, peer := range []*mockConn{b, c} {
		left := peer.framesOfType(t, protocol.TypeUserLeft)
		require.Len(t, left, 1)
		assert.Equal(t, "alice", left[0]["userId"])
	}
	_, ok := h.Registry().Lookup("a")
	assert.False(t, ok)
}

func TestHandler_Disconnect_LastMemberIsSilent(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}
	join(t, h, a, "R", "alice")
	a.reset()

	h.Disconnect(context.Background(), a)

	assert.Empty(t, a.frames(t))
	rooms, conns := h.Registry().Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

func TestHandler_RejoinOtherRoom_LeavesOldRoom(t *testing.T) {
	h, _, _ := newTestHandler()
	a := &mockConn{id: "a"}
	b := &mockConn{id: "b"}
	join(t, h, a, "R1", "alice")
	join(t, h, b, "R1", "bob")
	b.reset()

	join(t, h, a, "R2", "alice")

	require.Len(t, b.framesOfType(t, protocol.TypeUserLeft), 1)
	assert.Len(t, h.Registry().MembersOf("R1"), 1)
	assert.Len(t, h.Registry().MembersOf("R2"), 1)
}

func TestRegistry_JoinIsIdempotentPerConnection(t *testing.T) {
	r := NewRegistry()
	a := &mockConn{id: "a"}

	_, replaced := r.Join(a, "R", "u1", "one")
	assert.False(t, replaced)
	prev, replaced := r.Join(a, "R", "u1", "renamed")
	assert.True(t, replaced)
	assert.Equal(t, "one", prev.UserName)

	members := r.MembersOf("R")
	require.Len(t, members, 1)
	assert.Equal(t, "renamed", members[0].UserName)

	_, ok := r.Leave("missing")
	assert.False(t, ok)
}

func TestRegistry_BroadcastSkipsFailedSends(t *testing.T) {
	r := NewRegistry()
	ok1 := &mockConn{id: "ok1"}
	broken := &mockConn{id: "broken", sendErr: errors.New("closed")}
	ok2 := &mockConn{id: "ok2"}
	r.Join(ok1, "R", "", "")
	r.Join(broken, "R", "", "")
	r.Join(ok2, "R", "", "")

	n := r.Broadcast("R", []byte(`{}`), "")

	assert.Equal(t, 2, n)
	assert.Len(t, ok1.frames(t), 1)
	assert.Len(t, ok2.frames(t), 1)
	assert.Zero(t, r.Broadcast("empty", []byte(`{}`), ""))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := &mockConn{id: string(rune('A' + i))}
			r.Join(c, "R", "", "")
			r.Broadcast("R", []byte(`{}`), c.ID())
			r.MembersOf("R")
			r.Leave(c.ID())
		}(i)
	}
	wg.Wait()

	rooms, conns := r.Stats()
	assert.Zero(t, rooms)
	assert.Zero(t, conns)
}

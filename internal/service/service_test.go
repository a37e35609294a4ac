package service_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/memstore"
	"github.com/cwrk-planet/watch-party/internal/service"
)

type mapCache struct {
	mu      sync.Mutex
	users   map[string]domain.User
	hits    int
	failGet bool
}

func newMapCache() *mapCache { return &mapCache{users: map[string]domain.User{}} }

func (c *mapCache) GetUser(_ context.Context, id string) (*domain.User, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failGet {
		return nil, false, errors.New("redis down")
	}
	u, ok := c.users[id]
	if !ok {
		return nil, false, nil
	}
	c.hits++
	return &u, true, nil
}

func (c *mapCache) SetUser(_ context.Context, u *domain.User) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.users[u.ID] = *u
	return nil
}

func (c *mapCache) DeleteUser(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.users, id)
	return nil
}

type fixture struct {
	store    *memstore.Store
	cache    *mapCache
	rooms    *service.RoomService
	chat     *service.ChatService
	profiles *service.ProfileService
}

func newFixture() fixture {
	st := memstore.New()
	c := newMapCache()
	profiles := service.NewProfileService(st.Users(), c)
	return fixture{
		store:    st,
		cache:    c,
		rooms:    service.NewRoomService(st.Rooms(), st.Messages()),
		chat:     service.NewChatService(st.Messages(), profiles, 0),
		profiles: profiles,
	}
}

func TestRoomService_CreateCanonicalizesVideo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, "  Friday  ", "host-1", "youtu.be/dQw4w9WgXcQ")
	require.NoError(t, err)
	assert.Equal(t, "Friday", room.Name)
	require.NotNil(t, room.CurrentVideoURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", *room.CurrentVideoURL)

	_, err = f.rooms.CreateRoom(ctx, "   ", "host-1", "")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.rooms.CreateRoom(ctx, "x", "", "")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}

func TestRoomService_DeleteHostOnly(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, "r", "host", "")
	require.NoError(t, err)
	_, err = f.chat.Post(ctx, room.ID, "guest", "hi")
	require.NoError(t, err)

	assert.ErrorIs(t, f.rooms.DeleteRoom(ctx, room.ID, "guest"), domain.ErrNotHost)
	assert.ErrorIs(t, f.rooms.DeleteRoom(ctx, "missing", "host"), domain.ErrRoomNotFound)

	require.NoError(t, f.rooms.DeleteRoom(ctx, room.ID, "host"))
	msgs, err := f.rooms.Messages(ctx, room.ID)
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestRoomService_RecordVideo(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, "r", "host", "")
	require.NoError(t, err)
	require.NoError(t, f.rooms.RecordVideo(ctx, room.ID, domain.VideoState{URL: "dQw4w9WgXcQ", IsPlaying: true}))

	got, err := f.rooms.GetRoom(ctx, room.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CurrentVideoURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", *got.CurrentVideoURL)
	assert.True(t, got.IsPlaying)
}

func TestChatService_Post(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	room, err := f.rooms.CreateRoom(ctx, "r", "host", "")
	require.NoError(t, err)
	require.NoError(t, f.profiles.Save(ctx, &domain.User{ID: "u1", Name: "Ann"}))

	msg, err := f.chat.Post(ctx, room.ID, "u1", "  hello  ")
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.NotEmpty(t, msg.ID)
	assert.False(t, msg.CreatedAt.IsZero())
	require.NotNil(t, msg.User)
	assert.Equal(t, "Ann", msg.User.Name)

	history, err := f.rooms.Messages(ctx, room.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, msg.ID, history[0].ID)
	assert.Equal(t, "hello", history[0].Content)
}

func TestChatService_Validation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	room, err := f.rooms.CreateRoom(ctx, "r", "host", "")
	require.NoError(t, err)

	_, err = f.chat.Post(ctx, room.ID, "u1", " \n ")
	assert.ErrorIs(t, err, domain.ErrEmptyMessage)

	_, err = f.chat.Post(ctx, room.ID, "u1", strings.Repeat("я", service.DefaultMaxMessageLen+1))
	assert.ErrorIs(t, err, domain.ErrMessageTooLong)

	_, err = f.chat.Post(ctx, room.ID, "u1", strings.Repeat("я", service.DefaultMaxMessageLen))
	assert.NoError(t, err)

	_, err = f.chat.Post(ctx, room.ID, "", "hi")
	assert.ErrorIs(t, err, domain.ErrInvalidArgument)

	_, err = f.chat.Post(ctx, "missing-room", "u1", "hi")
	assert.ErrorIs(t, err, domain.ErrRoomNotFound)
}

func TestProfileService_ReadThroughCache(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	require.NoError(t, f.profiles.Save(ctx, &domain.User{ID: "u1", Name: "Ann"}))

	u := f.profiles.Resolve(ctx, "u1")
	require.NotNil(t, u)
	assert.Equal(t, 0, f.cache.hits)

	u = f.profiles.Resolve(ctx, "u1")
	require.NotNil(t, u)
	assert.Equal(t, 1, f.cache.hits)

	// saving invalidates the cached copy
	require.NoError(t, f.profiles.Save(ctx, &domain.User{ID: "u1", Name: "Anna"}))
	assert.Equal(t, "Anna", f.profiles.Resolve(ctx, "u1").Name)

	assert.Nil(t, f.profiles.Resolve(ctx, "nobody"))

	f.cache.failGet = true
	assert.Equal(t, "Anna", f.profiles.Resolve(ctx, "u1").Name, "cache errors fall back to storage")
}

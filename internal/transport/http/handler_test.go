package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/memstore"
	"github.com/cwrk-planet/watch-party/internal/relay"
	"github.com/cwrk-planet/watch-party/internal/service"
	httptransport "github.com/cwrk-planet/watch-party/internal/transport/http"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type fixture struct {
	store  *memstore.Store
	chat   *service.ChatService
	router http.Handler
}

func newFixture(t *testing.T, storage httptransport.Pinger) fixture {
	t.Helper()
	st := memstore.New()
	rooms := service.NewRoomService(st.Rooms(), st.Messages())
	profiles := service.NewProfileService(st.Users(), nil)
	h := httptransport.NewHandler(rooms, profiles, relay.NewRegistry(), storage)
	ws := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusTeapot) })
	return fixture{
		store:  st,
		chat:   service.NewChatService(st.Messages(), profiles, 0),
		router: httptransport.NewRouter(h, ws, httptransport.RouterOptions{}),
	}
}

func (f fixture) do(t *testing.T, method, path, user string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		req.Header.Set("Authorization", "Bearer test")
		req.Header.Set("X-User-ID", user)
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v))
	return v
}

func TestRooms_CRUD(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/api/rooms", "", httptransport.CreateRoomRequest{Name: "x"})
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = f.do(t, http.MethodPost, "/api/rooms", "host", httptransport.CreateRoomRequest{
		Name: "Movie night", VideoURL: "youtube.com/watch?v=dQw4w9WgXcQ",
	})
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	room := decode[httptransport.RoomItem](t, rr)
	assert.Equal(t, "host", room.HostID)
	require.NotNil(t, room.CurrentVideoURL)
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", *room.CurrentVideoURL)

	rr = f.do(t, http.MethodGet, "/api/rooms/"+room.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "Movie night", decode[httptransport.RoomItem](t, rr).Name)

	rr = f.do(t, http.MethodGet, "/api/rooms", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[httptransport.RoomsListResponse](t, rr).Items, 1)

	rr = f.do(t, http.MethodDelete, "/api/rooms/"+room.ID, "guest", nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(t, http.MethodDelete, "/api/rooms/"+room.ID, "host", nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/rooms/"+room.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestRooms_BadInput(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodPost, "/api/rooms", "host", httptransport.CreateRoomRequest{Name: "  "})
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/rooms?limit=abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/rooms?cursor=not-a-cursor!", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestMessages_WithProfiles(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	room := &domain.Room{Name: "r", HostID: "h"}
	require.NoError(t, f.store.Rooms().Create(ctx, room))

	rr := f.do(t, http.MethodPut, "/api/users/me", "u1", httptransport.UpsertProfileRequest{Name: "Ann"})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	_, err := f.chat.Post(ctx, room.ID, "u1", "hello")
	require.NoError(t, err)
	_, err = f.chat.Post(ctx, room.ID, "ghost", "boo")
	require.NoError(t, err)

	rr = f.do(t, http.MethodGet, "/api/rooms/"+room.ID+"/messages", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	msgs := decode[httptransport.MessagesResponse](t, rr).Items
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	require.NotNil(t, msgs[0].User)
	assert.Equal(t, "Ann", msgs[0].User.Name)
	assert.Nil(t, msgs[1].User)

	rr = f.do(t, http.MethodGet, "/api/rooms/missing/messages", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestClassifySource(t *testing.T) {
	f := newFixture(t, nil)

	rr := f.do(t, http.MethodGet, "/api/sources/classify?url=https%3A%2F%2Fvimeo.com%2F76979871", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	got := decode[httptransport.ClassifyResponse](t, rr)
	assert.True(t, got.Supported)
	assert.Equal(t, "vimeo", got.Kind)
	assert.Equal(t, "76979871", got.ID)

	rr = f.do(t, http.MethodGet, "/api/sources/classify?url=https%3A%2F%2Fexample.com%2Fpage", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[httptransport.ClassifyResponse](t, rr).Supported)

	rr = f.do(t, http.MethodGet, "/api/sources/classify", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHealthAndStats(t *testing.T) {
	f := newFixture(t, fakePinger{})
	rr := f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = f.do(t, http.MethodGet, "/api/stats", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, httptransport.StatsResponse{}, decode[httptransport.StatsResponse](t, rr))

	rr = f.do(t, http.MethodGet, "/ws", "", nil)
	assert.Equal(t, http.StatusTeapot, rr.Code)

	f = newFixture(t, fakePinger{err: errors.New("down")})
	rr = f.do(t, http.MethodGet, "/healthz", "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

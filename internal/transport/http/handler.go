package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/relay"
	"github.com/cwrk-planet/watch-party/internal/service"
	httpmw "github.com/cwrk-planet/watch-party/internal/transport/http/middleware"
	"github.com/cwrk-planet/watch-party/internal/videosource"
)

// Pinger reports storage health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	roomSvc    *service.RoomService
	profileSvc *service.ProfileService
	registry   *relay.Registry
	storage    Pinger
}

func NewHandler(rooms *service.RoomService, profiles *service.ProfileService, reg *relay.Registry, storage Pinger) *Handler {
	return &Handler{
		roomSvc:    rooms,
		profileSvc: profiles,
		registry:   reg,
		storage:    storage,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError answers with the mapped status; server errors are logged and not echoed.
func writeError(w http.ResponseWriter, op string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		slog.Error("handler."+op, slog.Any("err", err))
		writeJSON(w, status, ErrorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error()})
}

// GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if h.storage != nil {
		if err := h.storage.Ping(r.Context()); err != nil {
			slog.Warn("handler.Health: storage ping", slog.Any("err", err))
			writeJSON(w, http.StatusServiceUnavailable, ErrorResponse{Error: "storage unavailable"})
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// POST /api/rooms
func (h *Handler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	room, err := h.roomSvc.CreateRoom(r.Context(), req.Name, httpmw.UserIDFromCtx(r.Context()), req.VideoURL)
	if err != nil {
		writeError(w, "CreateRoom", err)
		return
	}

	writeJSON(w, http.StatusCreated, toRoomItem(room, 0))
}

// GET /api/rooms?limit=&cursor=
func (h *Handler) ListRooms(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit"})
			return
		}
		limit = n
	}

	rooms, next, err := h.roomSvc.ListRooms(r.Context(), limit, r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, "ListRooms", err)
		return
	}
	resp := RoomsListResponse{Items: make([]RoomItem, 0, len(rooms)), NextCursor: next}
	for i := range rooms {
		resp.Items = append(resp.Items, toRoomItem(&rooms[i], h.members(rooms[i].ID)))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GET /api/rooms/{id}
func (h *Handler) GetRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	room, err := h.roomSvc.GetRoom(r.Context(), id)
	if err != nil {
		writeError(w, "GetRoom", err)
		return
	}

	writeJSON(w, http.StatusOK, toRoomItem(room, h.members(id)))
}

// DELETE /api/rooms/{id}
func (h *Handler) DeleteRoom(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.roomSvc.DeleteRoom(r.Context(), id, httpmw.UserIDFromCtx(r.Context())); err != nil {
		writeError(w, "DeleteRoom", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/rooms/{id}/messages
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.roomSvc.GetRoom(r.Context(), id); err != nil {
		writeError(w, "ListMessages", err)
		return
	}
	msgs, err := h.roomSvc.Messages(r.Context(), id)
	if err != nil {
		writeError(w, "ListMessages", err)
		return
	}

	resp := MessagesResponse{Items: make([]MessageItem, 0, len(msgs))}
	for _, m := range msgs {
		resp.Items = append(resp.Items, MessageItem{
			ID:        m.ID,
			RoomID:    m.RoomID,
			UserID:    m.UserID,
			Content:   m.Content,
			CreatedAt: m.CreatedAt,
			User:      toUserItem(m.User),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

// GET /api/sources/classify?url=
func (h *Handler) ClassifySource(w http.ResponseWriter, r *http.Request) {
	raw := strings.TrimSpace(r.URL.Query().Get("url"))
	if raw == "" {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "url is required"})
		return
	}

	m, ok := videosource.Classify(raw)
	if !ok {
		writeJSON(w, http.StatusOK, ClassifyResponse{Supported: false})
		return
	}
	writeJSON(w, http.StatusOK, ClassifyResponse{
		Supported: true,
		Kind:      string(m.Kind),
		ID:        m.ID,
		URL:       m.URL,
		EmbedURL:  m.EmbedURL(),
		Live:      m.Live,
	})
}

// GET /api/stats
func (h *Handler) Stats(w http.ResponseWriter, _ *http.Request) {
	rooms, conns := h.registry.Stats()
	writeJSON(w, http.StatusOK, StatsResponse{Rooms: rooms, Connections: conns})
}

// PUT /api/users/me
func (h *Handler) UpsertProfile(w http.ResponseWriter, r *http.Request) {
	var req UpsertProfileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid json"})
		return
	}
	u := &domain.User{ID: httpmw.UserIDFromCtx(r.Context()), Name: req.Name, AvatarURL: req.AvatarURL}
	if err := h.profileSvc.Save(r.Context(), u); err != nil {
		writeError(w, "UpsertProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, toUserItem(u))
}

func (h *Handler) members(roomID string) int {
	if h.registry == nil {
		return 0
	}
	return len(h.registry.MembersOf(roomID))
}

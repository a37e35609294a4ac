package relay

import (
	"context"
	"errors"
	"log/slog"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/protocol"
)

const DefaultUserName = "Anonymous"

// ChatPoster persists a chat message and resolves its author.
type ChatPoster interface {
	Post(ctx context.Context, roomID, userID, content string) (domain.MessageWithUser, error)
}

// VideoRecorder stores the last chosen video of a room. Optional.
type VideoRecorder interface {
	RecordVideo(ctx context.Context, roomID string, st domain.VideoState) error
}

// Handler dispatches inbound frames. One Handler serves every connection of the process;
// the transport must call Handle sequentially per connection.
type Handler struct {
	reg    *Registry
	chat   ChatPoster
	videos VideoRecorder
}

func NewHandler(reg *Registry, chat ChatPoster, videos VideoRecorder) *Handler {
	return &Handler{reg: reg, chat: chat, videos: videos}
}

func (h *Handler) Registry() *Registry { return h.reg }

// Handle processes one raw frame from conn. Bad frames are answered with an error frame;
// nothing here closes the connection.
func (h *Handler) Handle(ctx context.Context, conn Conn, data []byte) {
	f, err := protocol.Decode(data)
	if err != nil {
		slog.Warn("relay: bad frame", "conn", conn.ID(), "err", err)
		h.reply(conn, protocol.NewError(err.Error()))
		return
	}

	switch f.Type {
	case protocol.TypeJoinRoom:
		h.join(conn, f)
	case protocol.TypeVideoUpdate:
		h.videoUpdate(ctx, conn, f)
	case protocol.TypeChatMessage:
		h.chatMessage(ctx, conn, f)
	case protocol.TypePing:
		_, _, ts := f.Playback()
		h.reply(conn, protocol.NewPong(ts))
	default:
		slog.Warn("relay: unsupported frame", "conn", conn.ID(), "type", f.Type)
		h.reply(conn, protocol.NewError("unsupported frame type: "+f.Type))
	}
}

// Disconnect forgets conn and tells the rest of its room.
func (h *Handler) Disconnect(_ context.Context, conn Conn) {
	e, ok := h.reg.Leave(conn.ID())
	if !ok {
		return
	}
	h.announceLeft(e)
}

func (h *Handler) join(conn Conn, f protocol.Frame) {
	roomID := f.RoomID.String()
	userName := f.UserName
	if userName == "" {
		userName = DefaultUserName
	}

	prev, replaced := h.reg.Join(conn, roomID, f.UserID.String(), userName)
	if replaced && prev.RoomID != roomID {
		h.announceLeft(prev)
	}

	members := h.reg.MembersOf(roomID)
	snapshot := make([]protocol.Member, 0, len(members))
	for _, m := range members {
		snapshot = append(snapshot, protocol.Member{UserID: m.UserID, UserName: m.UserName})
	}
	h.reply(conn, protocol.NewPresence(roomID, snapshot))

	h.broadcast(roomID, protocol.NewUserJoined(roomID, f.UserID.String(), userName), conn.ID())
	slog.Info("relay: user joined", "room", roomID, "user", f.UserID, "conn", conn.ID(), "members", len(members))
}

func (h *Handler) announceLeft(e Entry) {
	if len(h.reg.MembersOf(e.RoomID)) == 0 {
		return
	}
	h.broadcast(e.RoomID, protocol.NewUserLeft(e.RoomID, e.UserID, e.UserName), "")
	slog.Info("relay: user left", "room", e.RoomID, "user", e.UserID, "conn", e.Conn.ID())
}

func (h *Handler) videoUpdate(ctx context.Context, conn Conn, f protocol.Frame) {
	roomID := f.RoomID.String()
	url, playing, ts := f.Playback()

	out := protocol.NewVideoUpdate(roomID, url, playing, ts)
	out.UserID = f.UserID.String()
	if e, ok := h.reg.Lookup(conn.ID()); ok && e.UserID != "" {
		out.UserID = e.UserID
	}
	h.broadcast(roomID, out, conn.ID())

	// a url with position zero means a new video was picked; positions are not stored
	if h.videos == nil || url == "" || ts != 0 {
		return
	}
	err := h.videos.RecordVideo(ctx, roomID, domain.VideoState{URL: url, IsPlaying: playing})
	if err != nil && !errors.Is(err, domain.ErrRoomNotFound) {
		slog.Error("relay: record video", "room", roomID, "err", err)
	}
}

func (h *Handler) chatMessage(ctx context.Context, conn Conn, f protocol.Frame) {
	roomID := f.RoomID.String()
	userID := f.UserID.String()
	if userID == "" {
		if e, ok := h.reg.Lookup(conn.ID()); ok {
			userID = e.UserID
		}
	}

	msg, err := h.chat.Post(ctx, roomID, userID, f.Content)
	switch {
	case err == nil:
	case errors.Is(err, domain.ErrEmptyMessage),
		errors.Is(err, domain.ErrMessageTooLong),
		errors.Is(err, domain.ErrInvalidArgument):
		slog.Warn("relay: chat rejected", "room", roomID, "user", userID, "err", err)
		h.reply(conn, protocol.NewError(err.Error()))
		return
	default:
		// no confirmation for the sender
		slog.Error("relay: chat not persisted", "room", roomID, "user", userID, "err", err)
		return
	}

	h.broadcast(roomID, protocol.NewChatMessage(msg), "")
}

func (h *Handler) broadcast(roomID string, v any, excludeID string) {
	data, err := protocol.Encode(v)
	if err != nil {
		slog.Error("relay: encode", "room", roomID, "err", err)
		return
	}
	h.reg.Broadcast(roomID, data, excludeID)
}

func (h *Handler) reply(conn Conn, v any) {
	data, err := protocol.Encode(v)
	if err != nil {
		slog.Error("relay: encode", "conn", conn.ID(), "err", err)
		return
	}
	if err := conn.Send(data); err != nil {
		slog.Debug("relay: reply skipped", "conn", conn.ID(), "err", err)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/pagination"
	"github.com/cwrk-planet/watch-party/internal/videosource"
)

const maxRoomNameLen = 100

type RoomService struct {
	roomRepo RoomRepository
	msgRepo  MessageRepository
}

func NewRoomService(roomRepo RoomRepository, msgRepo MessageRepository) *RoomService {
	return &RoomService{roomRepo: roomRepo, msgRepo: msgRepo}
}

// CreateRoom creates a room owned by hostID. The optional video url is stored canonicalized.
func (s *RoomService) CreateRoom(ctx context.Context, name, hostID, videoURL string) (*domain.Room, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > maxRoomNameLen {
		return nil, fmt.Errorf("%w: room name must be 1..%d characters", domain.ErrInvalidArgument, maxRoomNameLen)
	}
	if hostID == "" {
		return nil, domain.ErrUnauthorized
	}

	room := &domain.Room{Name: name, HostID: hostID}
	if u := videosource.Canonicalize(videoURL); u != "" {
		room.CurrentVideoURL = &u
	}

	if err := s.roomRepo.Create(ctx, room); err != nil {
		return nil, fmt.Errorf("roomRepo.Create: %w", err)
	}
	slog.Info("room created", "room", room.ID, "host", hostID)
	return room, nil
}

func (s *RoomService) GetRoom(ctx context.Context, id string) (*domain.Room, error) {
	room, err := s.roomRepo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domain.ErrRoomNotFound) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, fmt.Errorf("roomRepo.Get: %w", err)
	}
	return room, nil
}

// ListRooms returns rooms newest first with a cursor for the next page.
func (s *RoomService) ListRooms(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error) {
	limit = pagination.ClampLimit(limit, 20, 50)
	return s.roomRepo.List(ctx, limit, cursor)
}

// DeleteRoom removes a room and its messages. Only the host may do it.
func (s *RoomService) DeleteRoom(ctx context.Context, id, callerID string) error {
	room, err := s.GetRoom(ctx, id)
	if err != nil {
		return err
	}
	if room.HostID != callerID {
		return domain.ErrNotHost
	}
	if err := s.roomRepo.Delete(ctx, id); err != nil {
		return fmt.Errorf("roomRepo.Delete: %w", err)
	}
	slog.Info("room deleted", "room", id, "host", callerID)
	return nil
}

// Messages returns the chat history of a room, oldest first. Unknown rooms have no messages.
func (s *RoomService) Messages(ctx context.Context, roomID string) ([]domain.MessageWithUser, error) {
	msgs, err := s.msgRepo.ListByRoom(ctx, roomID)
	if err != nil {
		return nil, fmt.Errorf("msgRepo.ListByRoom: %w", err)
	}
	return msgs, nil
}

// RecordVideo stores the video most recently chosen in a room.
func (s *RoomService) RecordVideo(ctx context.Context, roomID string, st domain.VideoState) error {
	st.URL = videosource.Canonicalize(st.URL)
	return s.roomRepo.UpdateVideo(ctx, roomID, st)
}

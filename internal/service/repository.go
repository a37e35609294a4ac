package service

import (
	"context"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

// RoomRepository is implemented by the postgres and memory drivers.
type RoomRepository interface {
	Create(ctx context.Context, room *domain.Room) error
	Get(ctx context.Context, id string) (*domain.Room, error)
	List(ctx context.Context, limit int, cursor string) ([]domain.Room, string, error)
	UpdateVideo(ctx context.Context, id string, st domain.VideoState) error
	// Delete removes the room together with its messages.
	Delete(ctx context.Context, id string) error
}

type MessageRepository interface {
	// Create fails with domain.ErrRoomNotFound when the room does not exist.
	Create(ctx context.Context, msg *domain.Message) error
	// ListByRoom returns messages oldest first with their authors resolved.
	ListByRoom(ctx context.Context, roomID string) ([]domain.MessageWithUser, error)
}

type UserRepository interface {
	Get(ctx context.Context, id string) (*domain.User, error)
	Upsert(ctx context.Context, user *domain.User) error
}

// ProfileCache is an optional read-through cache for user profiles.
type ProfileCache interface {
	GetUser(ctx context.Context, id string) (*domain.User, bool, error)
	SetUser(ctx context.Context, user *domain.User) error
	DeleteUser(ctx context.Context, id string) error
}

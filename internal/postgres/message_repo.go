package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

type MessageRepository struct {
	db querier
}

func NewMessageRepository(db querier) *MessageRepository {
	return &MessageRepository{db: db}
}

func (r *MessageRepository) Create(ctx context.Context, msg *domain.Message) error {
	err := r.db.QueryRow(ctx, queryCreateMessage, msg.RoomID, msg.UserID, msg.Content).
		Scan(&msg.ID, &msg.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *MessageRepository) ListByRoom(ctx context.Context, roomID string) ([]domain.MessageWithUser, error) {
	rows, err := r.db.Query(ctx, queryListMessages, roomID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]domain.MessageWithUser, 0)
	for rows.Next() {
		var (
			m          domain.MessageWithUser
			uID, uName *string
			uAvatar    *string
			uCreatedAt *time.Time
		)
		if err := rows.Scan(
			&m.ID, &m.RoomID, &m.UserID, &m.Content, &m.CreatedAt,
			&uID, &uName, &uAvatar, &uCreatedAt,
		); err != nil {
			return nil, err
		}
		if uID != nil {
			m.User = &domain.User{ID: *uID, Name: deref(uName), AvatarURL: uAvatar}
			if uCreatedAt != nil {
				m.User.CreatedAt = *uCreatedAt
			}
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/pagination"
)

type RoomRepository struct {
	db querier
}

func NewRoomRepository(db querier) *RoomRepository {
	return &RoomRepository{db: db}
}

func (r *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.QueryRow(ctx, queryCreateRoom, room.Name, room.HostID, room.CurrentVideoURL).
		Scan(&room.ID, &room.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func (r *RoomRepository) Get(ctx context.Context, id string) (*domain.Room, error) {
	var rm domain.Room
	err := r.db.QueryRow(ctx, queryGetRoom, id).Scan(
		&rm.ID, &rm.Name, &rm.HostID, &rm.CurrentVideoURL, &rm.IsPlaying, &rm.VideoTimestamp, &rm.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRoomNotFound
		}
		return nil, mapPgError(err)
	}
	return &rm, nil
}

func (r *RoomRepository) List(ctx context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := pagination.Decode(cursorStr)
	if err != nil {
		return nil, "", err
	}

	var createdAt, id any
	if cur != nil {
		createdAt = cur.CreatedAt
		id = cur.ID
	}

	rows, err := r.db.Query(ctx, queryListRooms, createdAt, id, limit)
	if err != nil {
		return nil, "", mapPgError(err)
	}
	defer rows.Close()

	rooms := make([]domain.Room, 0, limit)
	for rows.Next() {
		var rm domain.Room
		if err := rows.Scan(
			&rm.ID, &rm.Name, &rm.HostID, &rm.CurrentVideoURL, &rm.IsPlaying, &rm.VideoTimestamp, &rm.CreatedAt,
		); err != nil {
			return nil, "", err
		}
		rooms = append(rooms, rm)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}

	var next string
	if len(rooms) == limit {
		last := rooms[len(rooms)-1]
		next, _ = pagination.Encode(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return rooms, next, nil
}

func (r *RoomRepository) UpdateVideo(ctx context.Context, id string, st domain.VideoState) error {
	tag, err := r.db.Exec(ctx, queryUpdateRoomVideo, id, st.URL, st.IsPlaying, st.Timestamp)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrRoomNotFound
	}
	return nil
}

// Delete removes the messages and the room in one transaction. The foreign key cascades
// as well; the explicit delete keeps the operation correct on schemas without it.
func (r *RoomRepository) Delete(ctx context.Context, id string) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, queryDeleteRoomMessages, id); err != nil {
			return fmt.Errorf("delete messages: %w", err)
		}
		if _, err := tx.Exec(ctx, queryDeleteRoom, id); err != nil {
			return fmt.Errorf("delete room: %w", err)
		}
		return nil
	})
	return mapPgError(err)
}

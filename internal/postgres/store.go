package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store bundles the repositories of one pool.
type Store struct {
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store { return &Store{pool: pool} }

func (s *Store) Rooms() *RoomRepository       { return NewRoomRepository(s.pool) }
func (s *Store) Messages() *MessageRepository { return NewMessageRepository(s.pool) }
func (s *Store) Users() *UserRepository       { return NewUserRepository(s.pool) }

func (s *Store) Ping(ctx context.Context) error { return Ping(ctx, s.pool) }

func (s *Store) Close() { s.pool.Close() }

// Package memstore is the in-process storage driver used for development and tests.
// Data lives as long as the process.
package memstore

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/pagination"
)

type Store struct {
	mu       sync.RWMutex
	rooms    map[string]domain.Room
	messages map[string][]domain.Message // room id -> messages in insertion order
	users    map[string]domain.User
	now      func() time.Time
}

func New() *Store {
	return &Store{
		rooms:    make(map[string]domain.Room),
		messages: make(map[string][]domain.Message),
		users:    make(map[string]domain.User),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Rooms() *RoomRepository       { return &RoomRepository{s: s} }
func (s *Store) Messages() *MessageRepository { return &MessageRepository{s: s} }
func (s *Store) Users() *UserRepository       { return &UserRepository{s: s} }

// Ping always succeeds; it lets the health server treat both drivers alike.
func (s *Store) Ping(context.Context) error { return nil }

type RoomRepository struct{ s *Store }

func (r *RoomRepository) Create(_ context.Context, room *domain.Room) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	room.ID = uuid.NewString()
	room.CreatedAt = r.s.now()
	r.s.rooms[room.ID] = cloneRoom(*room)
	return nil
}

func (r *RoomRepository) Get(_ context.Context, id string) (*domain.Room, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	rm, ok := r.s.rooms[id]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	out := cloneRoom(rm)
	return &out, nil
}

func (r *RoomRepository) List(_ context.Context, limit int, cursorStr string) ([]domain.Room, string, error) {
	cur, err := pagination.Decode(cursorStr)
	if err != nil {
		return nil, "", err
	}

	r.s.mu.RLock()
	all := make([]domain.Room, 0, len(r.s.rooms))
	for _, rm := range r.s.rooms {
		if cur == nil || cur.After(rm.CreatedAt, rm.ID) {
			all = append(all, cloneRoom(rm))
		}
	}
	r.s.mu.RUnlock()

	slices.SortFunc(all, func(a, b domain.Room) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		switch {
		case a.ID > b.ID:
			return -1
		case a.ID < b.ID:
			return 1
		}
		return 0
	})

	if len(all) > limit {
		all = all[:limit]
	}
	var next string
	if len(all) == limit && limit > 0 {
		last := all[len(all)-1]
		next, _ = pagination.Encode(pagination.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}
	return all, next, nil
}

func (r *RoomRepository) UpdateVideo(_ context.Context, id string, st domain.VideoState) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	rm, ok := r.s.rooms[id]
	if !ok {
		return domain.ErrRoomNotFound
	}
	if st.URL != "" {
		u := st.URL
		rm.CurrentVideoURL = &u
	}
	rm.IsPlaying = st.IsPlaying
	rm.VideoTimestamp = st.Timestamp
	r.s.rooms[id] = rm
	return nil
}

func (r *RoomRepository) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	delete(r.s.messages, id)
	delete(r.s.rooms, id)
	return nil
}

type MessageRepository struct{ s *Store }

func (r *MessageRepository) Create(_ context.Context, msg *domain.Message) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.rooms[msg.RoomID]; !ok {
		return domain.ErrRoomNotFound
	}
	msg.ID = uuid.NewString()
	msg.CreatedAt = r.s.now()
	r.s.messages[msg.RoomID] = append(r.s.messages[msg.RoomID], *msg)
	return nil
}

func (r *MessageRepository) ListByRoom(_ context.Context, roomID string) ([]domain.MessageWithUser, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	msgs := r.s.messages[roomID]
	out := make([]domain.MessageWithUser, 0, len(msgs))
	for _, m := range msgs {
		mw := domain.MessageWithUser{Message: m}
		if u, ok := r.s.users[m.UserID]; ok {
			mw.User = &u
		}
		out = append(out, mw)
	}
	return out, nil
}

type UserRepository struct{ s *Store }

func (r *UserRepository) Get(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return &u, nil
}

func (r *UserRepository) Upsert(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if prev, ok := r.s.users[user.ID]; ok {
		user.CreatedAt = prev.CreatedAt
	} else {
		user.CreatedAt = r.s.now()
	}
	r.s.users[user.ID] = *user
	return nil
}

func cloneRoom(r domain.Room) domain.Room {
	if r.CurrentVideoURL != nil {
		u := *r.CurrentVideoURL
		r.CurrentVideoURL = &u
	}
	return r
}

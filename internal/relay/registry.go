// Package relay routes frames between the live connections of a room.
package relay

import (
	"log/slog"
	"slices"
	"sync"
	"time"
)

// Conn is one live client connection as seen by the relay.
type Conn interface {
	ID() string
	Send(data []byte) error
	Close() error
}

// Entry is the routing metadata of a joined connection. It is never persisted.
type Entry struct {
	Conn     Conn
	RoomID   string
	UserID   string
	UserName string
	JoinedAt time.Time
}

// Registry maps connection ids to their room membership.
// It is safe for concurrent use; broadcasts send outside the lock.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]Entry               // conn id -> entry
	rooms   map[string]map[string]struct{} // room id -> conn ids
}

func NewRegistry() *Registry {
	return &Registry{
		entries: make(map[string]Entry),
		rooms:   make(map[string]map[string]struct{}),
	}
}

// Join registers conn in roomID or replaces its previous entry.
// The previous entry is returned when there was one.
func (r *Registry) Join(conn Conn, roomID, userID, userName string) (prev Entry, replaced bool) {
	e := Entry{
		Conn:     conn,
		RoomID:   roomID,
		UserID:   userID,
		UserName: userName,
		JoinedAt: time.Now(),
	}

	r.mu.Lock()
	prev, replaced = r.entries[conn.ID()]
	if replaced {
		r.detachLocked(conn.ID(), prev.RoomID)
	}
	r.entries[conn.ID()] = e
	set, ok := r.rooms[roomID]
	if !ok {
		set = make(map[string]struct{})
		r.rooms[roomID] = set
	}
	set[conn.ID()] = struct{}{}
	count := len(set)
	r.mu.Unlock()

	slog.Debug("relay: joined", "room", roomID, "conn", conn.ID(), "user", userID, "members", count)
	return prev, replaced
}

// Leave removes the entry of connID. It is a no-op for unknown ids.
func (r *Registry) Leave(connID string) (Entry, bool) {
	r.mu.Lock()
	e, ok := r.entries[connID]
	if ok {
		delete(r.entries, connID)
		r.detachLocked(connID, e.RoomID)
	}
	r.mu.Unlock()

	if ok {
		slog.Debug("relay: left", "room", e.RoomID, "conn", connID, "user", e.UserID)
	}
	return e, ok
}

func (r *Registry) detachLocked(connID, roomID string) {
	set := r.rooms[roomID]
	delete(set, connID)
	if len(set) == 0 {
		delete(r.rooms, roomID)
	}
}

// Lookup returns the entry registered for connID.
func (r *Registry) Lookup(connID string) (Entry, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[connID]
	return e, ok
}

// MembersOf returns a point-in-time snapshot of the entries in roomID, oldest join first.
func (r *Registry) MembersOf(roomID string) []Entry {
	r.mu.RLock()
	set := r.rooms[roomID]
	out := make([]Entry, 0, len(set))
	for id := range set {
		out = append(out, r.entries[id])
	}
	r.mu.RUnlock()

	slices.SortStableFunc(out, func(a, b Entry) int { return a.JoinedAt.Compare(b.JoinedAt) })
	return out
}

// Broadcast sends data to every member of roomID except excludeID.
// Connections whose send fails are skipped. It returns the number of successful sends.
func (r *Registry) Broadcast(roomID string, data []byte, excludeID string) int {
	r.mu.RLock()
	set := r.rooms[roomID]
	targets := make([]Conn, 0, len(set))
	for id := range set {
		if id == excludeID {
			continue
		}
		targets = append(targets, r.entries[id].Conn)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range targets {
		if err := c.Send(data); err != nil {
			slog.Debug("relay: send skipped", "room", roomID, "conn", c.ID(), "err", err)
			continue
		}
		sent++
	}
	return sent
}

// Stats reports live rooms and connections.
func (r *Registry) Stats() (rooms, conns int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rooms), len(r.entries)
}

package domain

import "time"

type Message struct {
	ID        string    `db:"id"`
	RoomID    string    `db:"room_id"`
	UserID    string    `db:"user_id"`
	Content   string    `db:"content"`
	CreatedAt time.Time `db:"created_at"`
}

// MessageWithUser is a message joined with its author's public profile.
// User is nil when the author is unknown to storage.
type MessageWithUser struct {
	Message
	User *User
}

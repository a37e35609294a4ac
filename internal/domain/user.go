package domain

import "time"

// User is the public profile attached to chat messages.
type User struct {
	ID        string    `db:"id"`
	Name      string    `db:"name"`
	AvatarURL *string   `db:"avatar_url"`
	CreatedAt time.Time `db:"created_at"`
}

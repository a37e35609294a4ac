package domain

import "time"

type Room struct {
	ID              string    `db:"id"`
	Name            string    `db:"name"`
	HostID          string    `db:"host_id"`
	CurrentVideoURL *string   `db:"current_video_url"`
	IsPlaying       bool      `db:"is_playing"`
	VideoTimestamp  int64     `db:"video_timestamp"`
	CreatedAt       time.Time `db:"created_at"`
}

// VideoState is the last known playback state of a room. Advisory only.
type VideoState struct {
	URL       string
	IsPlaying bool
	Timestamp int64
}

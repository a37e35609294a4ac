package http

import (
	"time"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

type ErrorResponse struct {
	Error string `json:"error"`
}

type CreateRoomRequest struct {
	Name     string `json:"name"`
	VideoURL string `json:"videoUrl"`
}

type RoomItem struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	HostID          string    `json:"hostId"`
	CurrentVideoURL *string   `json:"currentVideoUrl"`
	IsPlaying       bool      `json:"isPlaying"`
	VideoTimestamp  int64     `json:"videoTimestamp"`
	CreatedAt       time.Time `json:"createdAt"`
	Members         int       `json:"members"`
}

type RoomsListResponse struct {
	Items      []RoomItem `json:"items"`
	NextCursor string     `json:"nextCursor,omitempty"`
}

type UserItem struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

type MessageItem struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	UserID    string    `json:"userId"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"createdAt"`
	User      *UserItem `json:"user"`
}

type MessagesResponse struct {
	Items []MessageItem `json:"items"`
}

type ClassifyResponse struct {
	Supported bool   `json:"supported"`
	Kind      string `json:"kind,omitempty"`
	ID        string `json:"id,omitempty"`
	URL       string `json:"url,omitempty"`
	EmbedURL  string `json:"embedUrl,omitempty"`
	Live      bool   `json:"live,omitempty"`
}

type StatsResponse struct {
	Rooms       int `json:"rooms"`
	Connections int `json:"connections"`
}

type UpsertProfileRequest struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

func toRoomItem(r *domain.Room, members int) RoomItem {
	return RoomItem{
		ID:              r.ID,
		Name:            r.Name,
		HostID:          r.HostID,
		CurrentVideoURL: r.CurrentVideoURL,
		IsPlaying:       r.IsPlaying,
		VideoTimestamp:  r.VideoTimestamp,
		CreatedAt:       r.CreatedAt,
		Members:         members,
	}
}

func toUserItem(u *domain.User) *UserItem {
	if u == nil {
		return nil
	}
	return &UserItem{ID: u.ID, Name: u.Name, AvatarURL: u.AvatarURL}
}

package protocol

import (
	"time"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

type JoinRoom struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId,omitempty"`
	UserName string `json:"userName,omitempty"`
}

func NewJoinRoom(roomID, userID, userName string) JoinRoom {
	return JoinRoom{Type: TypeJoinRoom, RoomID: roomID, UserID: userID, UserName: userName}
}

type VideoUpdate struct {
	Type      string  `json:"type"`
	RoomID    string  `json:"roomId"`
	UserID    string  `json:"userId,omitempty"`
	IsPlaying bool    `json:"isPlaying"`
	Timestamp float64 `json:"timestamp"`
	URL       string  `json:"url,omitempty"`
}

func NewVideoUpdate(roomID, url string, playing bool, ts float64) VideoUpdate {
	return VideoUpdate{Type: TypeVideoUpdate, RoomID: roomID, IsPlaying: playing, Timestamp: ts, URL: url}
}

// ChatSend is the client's chat request.
type ChatSend struct {
	Type    string `json:"type"`
	RoomID  string `json:"roomId"`
	Content string `json:"content"`
	UserID  string `json:"userId,omitempty"`
}

func NewChatSend(roomID, userID, content string) ChatSend {
	return ChatSend{Type: TypeChatMessage, RoomID: roomID, Content: content, UserID: userID}
}

type UserRef struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl,omitempty"`
}

// ChatMessage is the server confirmed chat row. User is null when the author is unknown.
type ChatMessage struct {
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	RoomID    string    `json:"roomId"`
	Content   string    `json:"content"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	User      *UserRef  `json:"user"`
}

func NewChatMessage(m domain.MessageWithUser) ChatMessage {
	out := ChatMessage{
		Type:      TypeChatMessage,
		ID:        m.ID,
		RoomID:    m.RoomID,
		Content:   m.Content,
		UserID:    m.UserID,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.User != nil {
		out.User = &UserRef{ID: m.User.ID, Name: m.User.Name, AvatarURL: m.User.AvatarURL}
	}
	return out
}

// PresenceEvent is user_joined or user_left.
type PresenceEvent struct {
	Type     string `json:"type"`
	RoomID   string `json:"roomId"`
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

func NewUserJoined(roomID, userID, userName string) PresenceEvent {
	return PresenceEvent{Type: TypeUserJoined, RoomID: roomID, UserID: userID, UserName: userName}
}

func NewUserLeft(roomID, userID, userName string) PresenceEvent {
	return PresenceEvent{Type: TypeUserLeft, RoomID: roomID, UserID: userID, UserName: userName}
}

type Member struct {
	UserID   string `json:"userId"`
	UserName string `json:"userName"`
}

// Presence is the member snapshot sent to a connection right after it joins.
type Presence struct {
	Type    string   `json:"type"`
	RoomID  string   `json:"roomId"`
	Members []Member `json:"members"`
}

func NewPresence(roomID string, members []Member) Presence {
	if members == nil {
		members = []Member{}
	}
	return Presence{Type: TypePresence, RoomID: roomID, Members: members}
}

type Error struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func NewError(msg string) Error {
	return Error{Type: TypeError, Message: msg}
}

type Ping struct {
	Type      string  `json:"type"`
	Timestamp float64 `json:"timestamp"`
}

func NewPing(ts float64) Ping { return Ping{Type: TypePing, Timestamp: ts} }

func NewPong(ts float64) Ping { return Ping{Type: TypePong, Timestamp: ts} }

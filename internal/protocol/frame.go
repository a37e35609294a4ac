// Package protocol defines the JSON frames exchanged over the relay connection.
package protocol

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

const (
	TypeJoinRoom    = "join_room"
	TypeVideoUpdate = "video_update"
	TypeChatMessage = "chat_message"
	TypeUserJoined  = "user_joined"
	TypeUserLeft    = "user_left"
	TypePresence    = "presence"
	TypeError       = "error"
	TypePing        = "ping"
	TypePong        = "pong"

	// older web clients send a dash
	legacyVideoUpdate = "video-update"
)

var (
	ErrMalformed   = errors.New("malformed frame")
	ErrUnknownType = errors.New("unknown frame type")
)

// ID is a room or user identifier. Legacy clients send numeric ids, which are kept as
// their decimal text.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id must be a string or a number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

func (id ID) String() string { return string(id) }

// Frame is the union of every frame shape. Inbound frames of both directions decode into it;
// optional scalars are pointers so that a missing field can be told apart from a zero value.
type Frame struct {
	Type string `json:"type"`

	RoomID   ID     `json:"roomId"`
	UserID   ID     `json:"userId"`
	UserName string `json:"userName"`

	IsPlaying *bool    `json:"isPlaying"`
	Timestamp *float64 `json:"timestamp"`
	URL       *string  `json:"url"`

	Content string `json:"content"`

	// server to client only
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	User      *UserRef  `json:"user"`
	Members   []Member  `json:"members"`
	Message   string    `json:"message"`
}

// Decode parses one frame and checks the fields its type requires.
func Decode(data []byte) (Frame, error) {
	var f Frame
	if err := json.Unmarshal(data, &f); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if f.Type == legacyVideoUpdate {
		f.Type = TypeVideoUpdate
	}
	if err := f.validate(); err != nil {
		return Frame{}, err
	}
	return f, nil
}

func (f Frame) validate() error {
	switch f.Type {
	case TypeJoinRoom:
		if f.RoomID == "" {
			return fmt.Errorf("%w: join_room requires roomId", ErrMalformed)
		}
	case TypeVideoUpdate:
		if f.RoomID == "" {
			return fmt.Errorf("%w: video_update requires roomId", ErrMalformed)
		}
		if f.IsPlaying == nil || f.Timestamp == nil {
			return fmt.Errorf("%w: video_update requires isPlaying and timestamp", ErrMalformed)
		}
		if *f.Timestamp < 0 {
			return fmt.Errorf("%w: negative timestamp", ErrMalformed)
		}
	case TypeChatMessage:
		if f.RoomID == "" {
			return fmt.Errorf("%w: chat_message requires roomId", ErrMalformed)
		}
	case TypeUserJoined, TypeUserLeft, TypePresence, TypeError, TypePing, TypePong:
	case "":
		return fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownType, f.Type)
	}
	return nil
}

// Playback returns the video state carried by a video_update frame.
func (f Frame) Playback() (url string, playing bool, ts float64) {
	if f.URL != nil {
		url = *f.URL
	}
	if f.IsPlaying != nil {
		playing = *f.IsPlaying
	}
	if f.Timestamp != nil {
		ts = *f.Timestamp
	}
	return url, playing, ts
}

// Encode marshals an outbound frame.
func Encode(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("protocol.Encode: %w", err)
	}
	return b, nil
}

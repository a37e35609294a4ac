package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

const DefaultMaxMessageLen = 4000

type ChatService struct {
	msgRepo  MessageRepository
	profiles *ProfileService
	maxLen   int
}

func NewChatService(msgRepo MessageRepository, profiles *ProfileService, maxLen int) *ChatService {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLen
	}
	return &ChatService{msgRepo: msgRepo, profiles: profiles, maxLen: maxLen}
}

// Post validates and stores a chat message, then attaches the author's profile.
// A profile lookup failure leaves User nil; it does not fail the post.
func (s *ChatService) Post(ctx context.Context, roomID, userID, content string) (domain.MessageWithUser, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.MessageWithUser{}, domain.ErrEmptyMessage
	}
	if utf8.RuneCountInString(content) > s.maxLen {
		return domain.MessageWithUser{}, domain.ErrMessageTooLong
	}
	if roomID == "" || userID == "" {
		return domain.MessageWithUser{}, fmt.Errorf("%w: roomId and userId are required", domain.ErrInvalidArgument)
	}

	msg := domain.Message{RoomID: roomID, UserID: userID, Content: content}
	if err := s.msgRepo.Create(ctx, &msg); err != nil {
		return domain.MessageWithUser{}, fmt.Errorf("msgRepo.Create: %w", err)
	}

	return domain.MessageWithUser{Message: msg, User: s.profiles.Resolve(ctx, userID)}, nil
}

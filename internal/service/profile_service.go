package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

// ProfileService resolves public user profiles, read-through a cache when one is configured.
type ProfileService struct {
	users UserRepository
	cache ProfileCache
}

// NewProfileService accepts a nil cache.
func NewProfileService(users UserRepository, cache ProfileCache) *ProfileService {
	return &ProfileService{users: users, cache: cache}
}

// Resolve returns the profile of id or nil when it is unknown or cannot be loaded.
func (s *ProfileService) Resolve(ctx context.Context, id string) *domain.User {
	if s.cache != nil {
		u, ok, err := s.cache.GetUser(ctx, id)
		if err != nil {
			slog.Warn("profile cache get", "user", id, "err", err)
		}
		if ok {
			return u
		}
	}

	u, err := s.users.Get(ctx, id)
	if err != nil {
		if !errors.Is(err, domain.ErrUserNotFound) {
			slog.Error("profile lookup", "user", id, "err", err)
		}
		return nil
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, u); err != nil {
			slog.Warn("profile cache set", "user", id, "err", err)
		}
	}
	return u
}

// Save creates or updates a profile and drops any cached copy.
func (s *ProfileService) Save(ctx context.Context, u *domain.User) error {
	u.Name = strings.TrimSpace(u.Name)
	if u.ID == "" || u.Name == "" {
		return fmt.Errorf("%w: user id and name are required", domain.ErrInvalidArgument)
	}
	if err := s.users.Upsert(ctx, u); err != nil {
		return fmt.Errorf("users.Upsert: %w", err)
	}
	if s.cache != nil {
		if err := s.cache.DeleteUser(ctx, u.ID); err != nil {
			slog.Warn("profile cache delete", "user", u.ID, "err", err)
		}
	}
	return nil
}

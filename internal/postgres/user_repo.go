package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

type UserRepository struct {
	db querier
}

func NewUserRepository(db querier) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id string) (*domain.User, error) {
	var u domain.User
	err := r.db.QueryRow(ctx, queryGetUser, id).Scan(&u.ID, &u.Name, &u.AvatarURL, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, mapPgError(err)
	}
	return &u, nil
}

func (r *UserRepository) Upsert(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRow(ctx, queryUpsertUser, u.ID, u.Name, toNullStringPtr(u.AvatarURL)).Scan(&u.CreatedAt)
	if err != nil {
		return mapPgError(err)
	}
	return nil
}

func toNullStringPtr(p *string) *string {
	if p == nil {
		return nil
	}
	s := strings.TrimSpace(*p)
	if s == "" {
		return nil
	}
	return &s
}

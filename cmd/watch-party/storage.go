package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cwrk-planet/watch-party/config"
	"github.com/cwrk-planet/watch-party/internal/cache"
	"github.com/cwrk-planet/watch-party/internal/memstore"
	"github.com/cwrk-planet/watch-party/internal/postgres"
	"github.com/cwrk-planet/watch-party/internal/service"
)

// storage is the selected driver seen through the service interfaces.
type storage struct {
	rooms    service.RoomRepository
	messages service.MessageRepository
	users    service.UserRepository
	ping     func(ctx context.Context) error
	close    func()
}

func (s *storage) Ping(ctx context.Context) error { return s.ping(ctx) }

func openStorage(ctx context.Context, cfg *config.Config) (*storage, error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pool, err := postgres.NewPool(ctx, postgres.Config{
			DSN:             cfg.Postgres.DSN,
			MaxConns:        cfg.Postgres.MaxConns,
			ApplicationName: cfg.Logging.Service,
		})
		if err != nil {
			return nil, fmt.Errorf("postgres: %w", err)
		}
		st := postgres.NewStore(pool)
		slog.Info("storage: postgres")
		return &storage{
			rooms:    st.Rooms(),
			messages: st.Messages(),
			users:    st.Users(),
			ping:     st.Ping,
			close:    st.Close,
		}, nil
	default:
		st := memstore.New()
		slog.Warn("storage: in-memory, data is lost on restart")
		return &storage{
			rooms:    st.Rooms(),
			messages: st.Messages(),
			users:    st.Users(),
			ping:     st.Ping,
			close:    func() {},
		}, nil
	}
}

// openProfileCache returns nil when redis is not configured or unreachable.
func openProfileCache(ctx context.Context, cfg *config.Config) (service.ProfileCache, func()) {
	if cfg.Redis.Addr == "" {
		return nil, func() {}
	}
	client, err := cache.NewClient(ctx, cache.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		slog.Warn("profile cache disabled", "addr", cfg.Redis.Addr, "err", err)
		return nil, func() {}
	}
	slog.Info("profile cache: redis", "addr", cfg.Redis.Addr)
	return cache.New(client, cfg.Redis.Prefix, cfg.Redis.TTL), func() { _ = client.Close() }
}

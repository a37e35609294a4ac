package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/cwrk-planet/watch-party/internal/domain"
	"github.com/cwrk-planet/watch-party/internal/postgres"
	"github.com/cwrk-planet/watch-party/internal/service"
)

const systemUserID = "system"

var seedRooms = []struct{ name, url string }{
	{"Movie night", "https://www.youtube.com/watch?v=aqz-KE-bpKQ"},
	{"Open lobby", ""},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Run migrations, then create the system user and demo rooms",
	RunE:  runSeed,
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if cfg.Storage.Driver == "postgres" {
		if err := postgres.MigrateUp(cfg.Postgres.DSN); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	} else {
		slog.Warn("seed: storage is in-memory, seeded rows will not outlive this command")
	}

	st, err := openStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	profiles := service.NewProfileService(st.users, nil)
	rooms := service.NewRoomService(st.rooms, st.messages)

	if err := profiles.Save(ctx, &domain.User{ID: systemUserID, Name: "Watch Party"}); err != nil {
		return fmt.Errorf("seed user: %w", err)
	}

	existing, _, err := rooms.ListRooms(ctx, 1, "")
	if err != nil {
		return fmt.Errorf("seed: list rooms: %w", err)
	}
	if len(existing) > 0 {
		slog.Info("seed: rooms already present, skipping")
		return nil
	}

	for _, r := range seedRooms {
		room, err := rooms.CreateRoom(ctx, r.name, systemUserID, r.url)
		if err != nil {
			return fmt.Errorf("seed room %q: %w", r.name, err)
		}
		slog.Info("seed: room created", "id", room.ID, "name", room.Name)
	}
	return nil
}

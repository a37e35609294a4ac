package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/cwrk-planet/watch-party/internal/domain"
)

const (
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
)

func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeForeignKeyViolation:
			// messages.room_id is the only foreign key
			return domain.ErrRoomNotFound
		case codeCheckViolation:
			return domain.ErrInvalidArgument
		}
	}
	return err
}

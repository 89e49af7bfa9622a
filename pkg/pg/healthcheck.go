package pg

import (
	"context"
	"errors"
)

// Pinger is satisfied by *pgxpool.Pool and *sql.DB wrappers.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthcheck returns a probe suitable for the HTTP health endpoint.
func Healthcheck(db Pinger) func(context.Context) error {
	return func(ctx context.Context) error {
		if err := db.Ping(ctx); err != nil {
			return errors.Join(ErrHealthcheckFailed, err)
		}
		return nil
	}
}

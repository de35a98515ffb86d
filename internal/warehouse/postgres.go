package warehouse

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/xxxsen/csassist/internal/config"
)

func postgresOpener(cfg config.PostgresConfig) Opener {
	return func(ctx context.Context) (*sqlx.DB, error) {
		return openAndPing(ctx, "postgres", cfg.DSN)
	}
}

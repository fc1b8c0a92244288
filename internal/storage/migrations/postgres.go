package migrations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"go.uber.org/zap"
)

// Execer runs a statement. *postgres.Pool and pgx.Tx satisfy it.
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// RunPostgresMigrations applies the embedded stations, station_availability
// and ingest_progress schema in file order. Every file is idempotent.
func RunPostgresMigrations(ctx context.Context, db Execer, log *zap.Logger) error {
	if log == nil {
		log = zap.NewNop()
	}

	migrations, err := Postgres()
	if err != nil {
		return err
	}

	for _, m := range migrations {
		if _, err := db.Exec(ctx, m.SQL); err != nil {
			return fmt.Errorf("apply migration %s: %w", m.Name, err)
		}
		log.Debug("migration_applied", zap.String("database", "postgres"), zap.String("file", m.Name))
	}
	log.Info("postgres_schema_ready", zap.Int("migrations", len(migrations)))
	return nil
}

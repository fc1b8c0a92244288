// Package migrations embeds and applies the schema of the station history
// (PostgreSQL) and the prediction log (ClickHouse).
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// PostgresFS embeds the PostgreSQL schema: stations, station_availability
// and ingest_progress.
//
//go:embed postgres/*.sql
var PostgresFS embed.FS

// ClickhouseFS embeds the ClickHouse prediction log schema.
//
//go:embed clickhouse/*.sql
var ClickhouseFS embed.FS

// Migration is one schema file. Files apply in Name order.
type Migration struct {
	Name string
	SQL  string
}

// Postgres returns the embedded PostgreSQL migrations.
func Postgres() ([]Migration, error) { return load(PostgresFS, "postgres") }

// Clickhouse returns the embedded ClickHouse migrations.
func Clickhouse() ([]Migration, error) { return load(ClickhouseFS, "clickhouse") }

// load reads the .sql files of dir sorted by name, skipping blank ones.
func load(fsys fs.FS, dir string) ([]Migration, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("list %s migrations: %w", dir, err)
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasSuffix(entry.Name(), ".sql") {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)

	migrations := make([]Migration, 0, len(names))
	for _, name := range names {
		data, err := fs.ReadFile(fsys, path.Join(dir, name))
		if err != nil {
			return nil, fmt.Errorf("read migration %s: %w", name, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}
		migrations = append(migrations, Migration{Name: name, SQL: string(data)})
	}
	return migrations, nil
}

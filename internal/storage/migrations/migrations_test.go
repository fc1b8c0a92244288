package migrations

import (
	"context"
	"errors"
	"strings"
	"testing"
	"testing/fstest"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestSplitStatements(t *testing.T) {
	sql := `
-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

CREATE TABLE b (
    y String
) ENGINE = Memory;
`
	stmts := splitStatements(sql)
	require.Len(t, stmts, 2)
	assert.True(t, strings.HasPrefix(stmts[0], "CREATE TABLE a"))
	assert.Contains(t, stmts[1], "y String")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'it''s fine';`))
	assert.ErrorIs(t, validateNoSemicolonInStrings(`SELECT 'a;b'`), ErrSemicolonInString)
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default@localhost:9000/forecast")
	require.NoError(t, err)
	assert.Equal(t, "forecast", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrations(t *testing.T) {
	pg, err := Postgres()
	require.NoError(t, err)
	var names []string
	for _, m := range pg {
		names = append(names, m.Name)
		assert.NotEmpty(t, strings.TrimSpace(m.SQL))
	}
	assert.Equal(t, []string{"001_stations.sql", "002_station_availability.sql", "003_ingest_progress.sql"}, names)

	ch, err := Clickhouse()
	require.NoError(t, err)
	require.Len(t, ch, 1)
	require.NoError(t, validateNoSemicolonInStrings(ch[0].SQL))
	assert.Len(t, splitStatements(ch[0].SQL), 1)
}

func TestLoad_SortsAndSkipsBlankFiles(t *testing.T) {
	fsys := fstest.MapFS{
		"pg/002_b.sql": {Data: []byte("CREATE TABLE b (x int);")},
		"pg/001_a.sql": {Data: []byte("CREATE TABLE a (x int);")},
		"pg/003_c.sql": {Data: []byte("  \n")},
		"pg/README.md": {Data: []byte("not sql")},
		"pg/sub/x.sql": {Data: []byte("CREATE TABLE x (x int);")},
	}

	got, err := load(fsys, "pg")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "001_a.sql", got[0].Name)
	assert.Equal(t, "002_b.sql", got[1].Name)

	_, err = load(fsys, "missing")
	assert.Error(t, err)
}

type recordingExecer struct {
	stmts []string
	fail  string
}

func (r *recordingExecer) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if r.fail != "" && strings.Contains(sql, r.fail) {
		return pgconn.CommandTag{}, errors.New("relation already broken")
	}
	r.stmts = append(r.stmts, sql)
	return pgconn.CommandTag{}, nil
}

func TestRunPostgresMigrations_AppliesInOrder(t *testing.T) {
	db := &recordingExecer{}
	require.NoError(t, RunPostgresMigrations(context.Background(), db, zaptest.NewLogger(t)))
	require.Len(t, db.stmts, 3)
	assert.Contains(t, db.stmts[0], "stations")
	assert.Contains(t, db.stmts[2], "ingest_progress")
}

func TestRunPostgresMigrations_NamesFailingFile(t *testing.T) {
	db := &recordingExecer{fail: "ingest_progress"}
	err := RunPostgresMigrations(context.Background(), db, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "003_ingest_progress.sql")
	assert.Len(t, db.stmts, 2)
}

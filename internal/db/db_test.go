package db

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTempSqlite(t *testing.T) *DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "usage.db")
	database, err := Open(context.Background(), EngineSqlite, path)
	require.NoError(t, err)
	t.Cleanup(func() { database.Close() })

	_, err = database.Exec(`CREATE TABLE users (id TEXT PRIMARY KEY, api_key TEXT UNIQUE)`)
	require.NoError(t, err)
	return database
}

func TestOpen_SingleConnection(t *testing.T) {
	database := openTempSqlite(t)

	assert.Equal(t, EngineSqlite, database.Engine())
	assert.Equal(t, 1, database.Stats().MaxOpenConnections)

	var fk int
	require.NoError(t, database.Get(&fk, "PRAGMA foreign_keys"))
	assert.Equal(t, 1, fk)
}

func TestOpen_UnknownEngine(t *testing.T) {
	_, err := Open(context.Background(), EngineAny, "whatever")
	assert.Error(t, err)
}

func TestEngineQuery(t *testing.T) {
	database := &DB{engine: EnginePgsql}
	queries := map[Engine]string{
		EngineAny:   "SELECT 1",
		EnginePgsql: "SELECT 2",
	}
	assert.Equal(t, "SELECT 2", database.EngineQuery(queries))

	database.engine = EngineSqlite
	assert.Equal(t, "SELECT 1", database.EngineQuery(queries))
}

func TestRunTx_CommitAndRollback(t *testing.T) {
	database := openTempSqlite(t)
	ctx := context.Background()

	err := database.RunTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`INSERT INTO users (id, api_key) VALUES ('a', 'k1')`)
		return err
	})
	require.NoError(t, err)

	boom := errors.New("boom")
	err = database.RunTx(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.Exec(`INSERT INTO users (id, api_key) VALUES ('b', 'k2')`); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, database.Get(&count, `SELECT COUNT(*) FROM users`))
	assert.Equal(t, 1, count)
}

func TestRunTx_UniqueViolationIsClassified(t *testing.T) {
	database := openTempSqlite(t)
	ctx := context.Background()

	_, err := database.Exec(`INSERT INTO users (id, api_key) VALUES ('a', 'k1'), ('b', 'k2')`)
	require.NoError(t, err)

	err = database.RunTx(ctx, func(tx *sqlx.Tx) error {
		_, err := tx.Exec(`UPDATE users SET api_key = 'k1' WHERE id = 'b'`)
		return err
	})
	require.Error(t, err)
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, ClassConstraint, Classify(err))
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://app:xxxxx@db:5432/usage", Redact("postgres://app:secret@db:5432/usage"))
	assert.Equal(t, "postgres://db:5432/usage", Redact("postgres://db:5432/usage"))
	assert.Equal(t, "/var/lib/usage.db", Redact("/var/lib/usage.db"))
}

func TestParseEngine(t *testing.T) {
	e, err := ParseEngine("pgsql")
	require.NoError(t, err)
	assert.Equal(t, EnginePgsql, e)

	e, err = ParseEngine("sqlite")
	require.NoError(t, err)
	assert.Equal(t, EngineSqlite, e)

	_, err = ParseEngine("oracle")
	assert.Error(t, err)
}

package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"

	"github.com/lherron/usageadm/internal/config"
)

// Engine identifies the SQL dialect behind a DB
type Engine int

const (
	EngineAny    Engine = 0
	EngineSqlite Engine = 1
	EnginePgsql  Engine = 2
)

func (e Engine) String() string {
	switch e {
	case EngineSqlite:
		return config.EngineSqlite
	case EnginePgsql:
		return config.EnginePgsql
	default:
		return "any"
	}
}

// ParseEngine maps a config engine name to an Engine
func ParseEngine(name string) (Engine, error) {
	switch name {
	case config.EnginePgsql:
		return EnginePgsql, nil
	case config.EngineSqlite:
		return EngineSqlite, nil
	default:
		return EngineAny, fmt.Errorf("unknown database engine: %s", name)
	}
}

// DB wraps a single persistent connection to the usage database
type DB struct {
	*sqlx.DB
	engine Engine
	target string
}

const pingTimeout = 15 * time.Second

// Open connects to the database and verifies the connection.
// The pool is pinned to one connection: every statement of a run shares it.
func Open(ctx context.Context, engine Engine, dsn string) (*DB, error) {
	var driver string
	switch engine {
	case EnginePgsql:
		driver = "pgx"
	case EngineSqlite:
		driver = "sqlite3"
	default:
		return nil, fmt.Errorf("unknown database engine: %d", engine)
	}

	conn, err := sqlx.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)
	conn.SetConnMaxLifetime(0)
	conn.SetConnMaxIdleTime(0)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := conn.PingContext(pingCtx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to reach %s: %w", Redact(dsn), err)
	}

	if engine == EngineSqlite {
		pragmas := []string{
			"PRAGMA foreign_keys = ON",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, err := conn.ExecContext(ctx, pragma); err != nil {
				conn.Close()
				return nil, fmt.Errorf("failed to apply pragma %q: %w", pragma, err)
			}
		}
	}

	return &DB{DB: conn, engine: engine, target: Redact(dsn)}, nil
}

// Wrap adapts an already-open *sql.DB. driverName selects the sqlx bind style.
func Wrap(conn *sql.DB, driverName string, engine Engine) *DB {
	return &DB{DB: sqlx.NewDb(conn, driverName), engine: engine, target: driverName}
}

// Engine returns the SQL dialect of the connection
func (db *DB) Engine() Engine {
	return db.engine
}

// Target returns the connection target with credentials removed
func (db *DB) Target() string {
	return db.target
}

// EngineQuery picks the statement for this engine, falling back to EngineAny
func (db *DB) EngineQuery(queryMap map[Engine]string) string {
	if q := queryMap[db.engine]; q != "" {
		return q
	}
	return queryMap[EngineAny]
}

// RunTx runs handler inside a transaction. The transaction commits when handler
// returns nil and rolls back otherwise.
func (db *DB) RunTx(ctx context.Context, handler func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting db transaction: %w", err)
	}
	defer tx.Rollback()

	if err := handler(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing db transaction: %w", err)
	}
	return nil
}

// Redact strips the password from URL-style connection strings
func Redact(dsn string) string {
	u, err := url.Parse(dsn)
	if err != nil || u.Scheme == "" || u.User == nil {
		return dsn
	}
	if _, ok := u.User.Password(); ok {
		u.User = url.UserPassword(u.User.Username(), "xxxxx")
	}
	return u.String()
}

// Package store holds every SQL statement the consolidation engine issues
// against the usage database.
package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/usageadm/internal/db"
)

// Store is the root store that provides access to domain-specific stores.
type Store struct {
	db *db.DB

	Accounts *AccountStore
	Events   *EventStore
}

// New creates a new Store wrapping the given database connection.
func New(database *db.DB) *Store {
	s := &Store{db: database}
	s.Accounts = &AccountStore{store: s}
	s.Events = &EventStore{store: s}
	return s
}

// DB returns the underlying database connection.
func (s *Store) DB() *db.DB {
	return s.db
}

// Tx is an open transaction. Mutations that must land together go through it.
type Tx struct {
	tx *sqlx.Tx
}

// WithTx executes fn within a transaction. If fn returns nil, the transaction
// is committed; otherwise it is rolled back.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	return s.db.RunTx(ctx, func(tx *sqlx.Tx) error {
		return fn(&Tx{tx: tx})
	})
}

// execIn runs a statement whose single "IN (?)" placeholder is expanded to ids,
// followed by any extra args, and returns the affected row count.
func execIn(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expand query: %w", err)
	}
	result, err := ext.ExecContext(ctx, ext.Rebind(expanded), expandedArgs...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// countIn runs a COUNT query whose "IN (?)" placeholder is expanded to args
func countIn(ctx context.Context, ext sqlx.ExtContext, query string, args ...any) (int64, error) {
	expanded, expandedArgs, err := sqlx.In(query, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to expand query: %w", err)
	}
	var n int64
	if err := sqlx.GetContext(ctx, ext, &n, ext.Rebind(expanded), expandedArgs...); err != nil {
		return 0, err
	}
	return n, nil
}

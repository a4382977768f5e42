package store

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/lherron/usageadm/internal/db"
)

// EventStore handles the heartbeats table, which can be far larger than every
// other table combined.
type EventStore struct {
	store *Store
}

// Count returns the number of events owned by any of the given accounts
func (es *EventStore) Count(ctx context.Context, accountIDs ...string) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	n, err := countIn(ctx, es.store.db, `SELECT COUNT(*) FROM heartbeats WHERE user_id IN (?)`, accountIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to count events: %w", err)
	}
	return n, nil
}

// DeleteBatch deletes up to limit events of one account in its own
// transaction and returns how many rows went away. A result below limit
// means no matching rows remain.
func (es *EventStore) DeleteBatch(ctx context.Context, accountID string, limit int) (int64, error) {
	database := es.store.db
	query := database.EngineQuery(map[db.Engine]string{
		db.EnginePgsql: `
			DELETE FROM heartbeats
			WHERE user_id = ?
			AND ctid IN (
				SELECT ctid FROM heartbeats
				WHERE user_id = ?
				LIMIT ?
			)`,
		db.EngineAny: `
			DELETE FROM heartbeats
			WHERE user_id = ?
			AND rowid IN (
				SELECT rowid FROM heartbeats
				WHERE user_id = ?
				LIMIT ?
			)`,
	})

	var deleted int64
	err := database.RunTx(ctx, func(tx *sqlx.Tx) error {
		result, err := tx.ExecContext(ctx, tx.Rebind(query), accountID, accountID, limit)
		if err != nil {
			return err
		}
		deleted, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("failed to delete event batch for %s: %w", accountID, err)
	}
	return deleted, nil
}

// ReassignEvents moves every event owned by fromIDs onto toID
func (t *Tx) ReassignEvents(ctx context.Context, toID string, fromIDs []string) (int64, error) {
	if len(fromIDs) == 0 {
		return 0, nil
	}
	n, err := execIn(ctx, t.tx, `UPDATE heartbeats SET user_id = ? WHERE user_id IN (?)`, toID, fromIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to reassign events to %s: %w", toID, err)
	}
	return n, nil
}

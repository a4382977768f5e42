package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lherron/usageadm/internal/domain"
)

// AccountStore reads and mutates rows of the users table and its dependents.
type AccountStore struct {
	store *Store
}

type accountRow struct {
	ID         string         `db:"id"`
	Name       string         `db:"name"`
	Email      sql.NullString `db:"email"`
	Credential string         `db:"api_key"`
	CreatedAt  time.Time      `db:"created_at"`
	EventCount int64          `db:"event_count"`
}

func (r accountRow) toDomain() domain.Account {
	return domain.Account{
		ID:         r.ID,
		Name:       r.Name,
		Email:      r.Email.String,
		Credential: r.Credential,
		CreatedAt:  r.CreatedAt,
		EventCount: r.EventCount,
	}
}

const accountColumns = `
	u.id, COALESCE(u.name, '') AS name, u.email, u.api_key, u.created_at,
	(SELECT COUNT(*) FROM heartbeats h WHERE h.user_id = u.id) AS event_count`

// List returns every account with its event count, oldest first.
// This order is the first-seen order used for grouping and tie-breaks.
func (as *AccountStore) List(ctx context.Context) ([]domain.Account, error) {
	var rows []accountRow
	err := as.store.db.SelectContext(ctx, &rows, `SELECT`+accountColumns+` FROM users u ORDER BY u.created_at, u.id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}

	accounts := make([]domain.Account, len(rows))
	for i, r := range rows {
		accounts[i] = r.toDomain()
	}
	return accounts, nil
}

// Get returns a single account, or domain.ErrAccountNotFound
func (as *AccountStore) Get(ctx context.Context, accountID string) (*domain.Account, error) {
	var row accountRow
	db := as.store.db
	err := db.GetContext(ctx, &row, db.Rebind(`SELECT`+accountColumns+` FROM users u WHERE u.id = ?`), accountID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load account %s: %w", accountID, err)
	}
	account := row.toDomain()
	return &account, nil
}

// CountDependents counts dependent rows per kind for the given accounts
func (as *AccountStore) CountDependents(ctx context.Context, accountIDs []string) (map[domain.DependentKind]int64, error) {
	counts := make(map[domain.DependentKind]int64, len(domain.DependentKinds))
	if len(accountIDs) == 0 {
		return counts, nil
	}
	for _, kind := range domain.DependentKinds {
		n, err := countIn(ctx, as.store.db, "SELECT COUNT(*) FROM "+string(kind)+" WHERE user_id IN (?)", accountIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", kind, err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// CredentialCollision is a credential value held by more than one account
type CredentialCollision struct {
	Credential string `db:"api_key"`
	Accounts   int64  `db:"accounts"`
}

// DuplicateCredentials lists credential values shared by several accounts
func (as *AccountStore) DuplicateCredentials(ctx context.Context) ([]CredentialCollision, error) {
	var collisions []CredentialCollision
	err := as.store.db.SelectContext(ctx, &collisions, `
		SELECT api_key, COUNT(*) AS accounts
		FROM users
		GROUP BY api_key
		HAVING COUNT(*) > 1
		ORDER BY api_key`)
	if err != nil {
		return nil, fmt.Errorf("failed to check credential uniqueness: %w", err)
	}
	return collisions, nil
}

// SetCredential overwrites the credential of one account
func (t *Tx) SetCredential(ctx context.Context, accountID, credential string) error {
	result, err := t.tx.ExecContext(ctx, t.tx.Rebind(`UPDATE users SET api_key = ? WHERE id = ?`), credential, accountID)
	if err != nil {
		return fmt.Errorf("failed to set credential of %s: %w", accountID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to set credential of %s: %w", accountID, err)
	}
	if n != 1 {
		return fmt.Errorf("failed to set credential of %s: %w", accountID, domain.ErrAccountNotFound)
	}
	return nil
}

// DeleteDependents removes every dependent row of the given accounts and
// returns the number removed per kind
func (t *Tx) DeleteDependents(ctx context.Context, accountIDs []string) (map[domain.DependentKind]int64, error) {
	counts := make(map[domain.DependentKind]int64, len(domain.DependentKinds))
	if len(accountIDs) == 0 {
		return counts, nil
	}
	for _, kind := range domain.DependentKinds {
		n, err := execIn(ctx, t.tx, "DELETE FROM "+string(kind)+" WHERE user_id IN (?)", accountIDs)
		if err != nil {
			return nil, fmt.Errorf("failed to delete %s: %w", kind, err)
		}
		counts[kind] = n
	}
	return counts, nil
}

// DeleteAccounts removes the account rows themselves
func (t *Tx) DeleteAccounts(ctx context.Context, accountIDs []string) (int64, error) {
	if len(accountIDs) == 0 {
		return 0, nil
	}
	n, err := execIn(ctx, t.tx, `DELETE FROM users WHERE id IN (?)`, accountIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to delete accounts: %w", err)
	}
	return n, nil
}

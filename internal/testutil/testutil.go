package testutil

import (
	"context"
	_ "embed"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/domain"
)

//go:embed schema.sql
var schema string

// TempDB creates a temporary SQLite usage database for testing
func TempDB(t *testing.T) (*db.DB, string) {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "usage.db")
	database, err := db.Open(context.Background(), db.EngineSqlite, dbPath)
	if err != nil {
		t.Fatalf("Failed to create test database: %v", err)
	}
	if _, err := database.Exec(schema); err != nil {
		database.Close()
		t.Fatalf("Failed to create schema: %v", err)
	}

	t.Cleanup(func() {
		database.Close()
	})

	return database, dbPath
}

// Schema returns the SQLite usage schema
func Schema() string {
	return schema
}

var baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// InsertAccount inserts a user row. seq orders accounts by created_at.
func InsertAccount(t *testing.T, database *db.DB, seq int, accountID, email, credential string) {
	t.Helper()
	var emailArg any = email
	if email == "" {
		emailArg = nil
	}
	_, err := database.Exec(
		`INSERT INTO users (id, name, email, api_key, created_at) VALUES (?, ?, ?, ?, ?)`,
		accountID, "user "+accountID, emailArg, credential, baseTime.Add(time.Duration(seq)*time.Hour),
	)
	if err != nil {
		t.Fatalf("Failed to insert account %s: %v", accountID, err)
	}
}

// InsertEvents inserts n heartbeats owned by accountID
func InsertEvents(t *testing.T, database *db.DB, accountID string, n int) {
	t.Helper()
	tx, err := database.Begin()
	if err != nil {
		t.Fatalf("Failed to begin: %v", err)
	}
	for i := 0; i < n; i++ {
		_, err := tx.Exec(
			`INSERT INTO heartbeats (user_id, time, entity, category, language, project) VALUES (?, ?, ?, 'coding', 'Go', 'usage')`,
			accountID, baseTime.Add(time.Duration(i)*time.Second), fmt.Sprintf("main_%d.go", i%7),
		)
		if err != nil {
			tx.Rollback()
			t.Fatalf("Failed to insert heartbeat: %v", err)
		}
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Failed to commit heartbeats: %v", err)
	}
}

// InsertDependents inserts one row of every dependent kind for accountID
func InsertDependents(t *testing.T, database *db.DB, accountID string) {
	t.Helper()
	statements := map[domain.DependentKind]string{
		domain.DependentAliases:          `INSERT INTO aliases (user_id, key, value) VALUES (?, 'proj', 'project')`,
		domain.DependentSummaries:        `INSERT INTO summaries (user_id, from_time, to_time) VALUES (?, '2024-01-01', '2024-01-02')`,
		domain.DependentLanguageMappings: `INSERT INTO language_mappings (user_id, extension, language) VALUES (?, '.tmpl', 'Go')`,
		domain.DependentProjectLabels:    `INSERT INTO project_labels (user_id, project_key, label) VALUES (?, 'usage', 'work')`,
		domain.DependentLeaderboardItems: `INSERT INTO leaderboard_items (user_id, total) VALUES (?, 3600)`,
	}
	for _, kind := range domain.DependentKinds {
		if _, err := database.Exec(statements[kind], accountID); err != nil {
			t.Fatalf("Failed to insert %s for %s: %v", kind, accountID, err)
		}
	}
}

// CountRows counts rows in table owned by accountID (user_id, or id for users)
func CountRows(t *testing.T, database *db.DB, table, accountID string) int {
	t.Helper()
	column := "user_id"
	if table == domain.TableAccounts {
		column = "id"
	}
	var n int
	if err := database.Get(&n, "SELECT COUNT(*) FROM "+table+" WHERE "+column+" = ?", accountID); err != nil {
		t.Fatalf("Failed to count %s: %v", table, err)
	}
	return n
}

// Credential returns the api_key of accountID
func Credential(t *testing.T, database *db.DB, accountID string) string {
	t.Helper()
	var credential string
	if err := database.Get(&credential, `SELECT api_key FROM users WHERE id = ?`, accountID); err != nil {
		t.Fatalf("Failed to load credential of %s: %v", accountID, err)
	}
	return credential
}

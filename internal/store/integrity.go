package store

import (
	"context"
	"fmt"

	"github.com/lherron/usageadm/internal/domain"
)

// OrphanCounts counts, per owned table, rows whose user_id matches no account
func (s *Store) OrphanCounts(ctx context.Context) (map[string]int64, error) {
	tables := []string{domain.TableEvents}
	for _, kind := range domain.DependentKinds {
		tables = append(tables, string(kind))
	}

	counts := make(map[string]int64, len(tables))
	for _, table := range tables {
		var n int64
		err := s.db.GetContext(ctx, &n, `
			SELECT COUNT(*) FROM `+table+` t
			WHERE NOT EXISTS (SELECT 1 FROM users u WHERE u.id = t.user_id)`)
		if err != nil {
			return nil, fmt.Errorf("failed to count orphaned %s: %w", table, err)
		}
		counts[table] = n
	}
	return counts, nil
}

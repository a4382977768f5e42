package consolidate

import (
	"context"

	"github.com/lherron/usageadm/internal/store"
)

// Verify runs read-only integrity checks: shared credentials, rows owned by
// missing accounts (including events of an unfinished purge) and duplicate
// groups still waiting to be merged.
func (e *Engine) Verify(ctx context.Context) (*VerifyReport, error) {
	report := &VerifyReport{}

	err := e.withReconnect(ctx, "verify", func(s *store.Store) error {
		collisions, err := s.Accounts.DuplicateCredentials(ctx)
		if err != nil {
			return err
		}
		report.DuplicateCredentials = len(collisions)

		if report.Orphans, err = s.OrphanCounts(ctx); err != nil {
			return err
		}

		accounts, err := s.Accounts.List(ctx)
		if err != nil {
			return err
		}
		groups, problems := GroupDuplicates(accounts)
		report.PendingGroups = len(groups)
		report.Problems = problems
		for _, g := range groups {
			if _, groupProblems := Resolve(g); len(groupProblems) > 0 {
				report.Problems = append(report.Problems, groupProblems...)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.WithField("ok", report.OK()).Info("Verification finished")
	return report, nil
}

package consolidate

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/store"
)

// Purge deletes one account outright: its dependent rows and account row in a
// single small transaction, then its events in bounded batches that each
// commit on their own.
//
// A purge interrupted during the event batches is finished by running Purge
// again: the account row is already gone, so only the remaining events are
// deleted and the report is marked Resumed. ErrAccountNotFound is returned
// only when there is neither an account row nor any event left.
func (e *Engine) Purge(ctx context.Context, accountID string) (*PurgeReport, error) {
	report := &PurgeReport{
		RunID:     e.runID,
		AccountID: accountID,
		State:     domain.PurgePending,
		Removed:   make(map[string]int64),
	}
	log := e.logger.WithField("account_id", accountID)

	var (
		account   *domain.Account
		remaining int64
	)
	err := e.withReconnect(ctx, "load account", func(s *store.Store) error {
		var err error
		account, err = s.Accounts.Get(ctx, accountID)
		if errors.Is(err, domain.ErrAccountNotFound) {
			account, err = nil, nil
		}
		if err != nil {
			return err
		}
		remaining, err = s.Events.Count(ctx, accountID)
		return err
	})
	if err != nil {
		return report, err
	}
	if account == nil && remaining == 0 {
		return report, fmt.Errorf("%s: %w", accountID, domain.ErrAccountNotFound)
	}
	report.Resumed = account == nil

	s, err := e.acquire(ctx)
	if err != nil {
		return report, err
	}
	err = s.WithTx(ctx, func(tx *store.Tx) error {
		counts, err := tx.DeleteDependents(ctx, []string{accountID})
		if err != nil {
			return err
		}
		removed, err := tx.DeleteAccounts(ctx, []string{accountID})
		if err != nil {
			return err
		}
		dependentCounts(counts, report.Removed)
		report.Removed[domain.TableAccounts] = removed
		report.AccountDeleted = removed == 1
		return nil
	})
	if err != nil {
		return report, err
	}
	report.State = domain.PurgeDependentRecordsDeleted
	log.WithFields(logrus.Fields{
		"resumed":          report.Resumed,
		"events_remaining": remaining,
	}).Info("Deleted account and dependent records")

	report.State = domain.PurgeEventsPurging
	batches, err := e.PurgeEvents(ctx, accountID)
	report.EventBatches = batches
	report.Removed[domain.TableEvents] = report.EventsRemoved()
	if err != nil {
		return report, err
	}

	report.State = domain.PurgeComplete
	log.WithFields(logrus.Fields{
		"events_removed": report.EventsRemoved(),
		"batches":        len(batches),
	}).Info("Purge complete")
	return report, nil
}

// PurgeEvents deletes every event of accountID, BatchSize rows at a time, and
// returns the row count of each batch. The loop ends on the first batch that
// removes fewer than BatchSize rows, which may be zero. Each batch commits on
// its own, so stopping between batches loses nothing: calling PurgeEvents
// again picks up the rows that are left.
func (e *Engine) PurgeEvents(ctx context.Context, accountID string) ([]int64, error) {
	limit := e.opts.BatchSize
	log := e.logger.WithField("account_id", accountID)

	var (
		batches []int64
		total   int64
	)
	for {
		if err := ctx.Err(); err != nil {
			return batches, err
		}

		var deleted int64
		err := e.withReconnect(ctx, "delete event batch", func(s *store.Store) error {
			var err error
			deleted, err = s.Events.DeleteBatch(ctx, accountID, limit)
			return err
		})
		if err != nil {
			return batches, err
		}

		batches = append(batches, deleted)
		total += deleted
		log.WithFields(logrus.Fields{
			"batch":   len(batches),
			"deleted": deleted,
			"total":   total,
		}).Debug("Deleted event batch")
		if e.opts.OnBatch != nil {
			e.opts.OnBatch(accountID, len(batches), deleted, total)
		}

		if deleted < int64(limit) {
			return batches, nil
		}
	}
}

// PlanPurge reports what Purge would remove for accountID
func (e *Engine) PlanPurge(ctx context.Context, accountID string) (*PurgePlan, error) {
	plan := &PurgePlan{AccountID: accountID, Rows: make(map[string]int64)}

	err := e.withReconnect(ctx, "plan purge", func(s *store.Store) error {
		account, err := s.Accounts.Get(ctx, accountID)
		if err != nil && !errors.Is(err, domain.ErrAccountNotFound) {
			return err
		}
		plan.Account = account

		counts, err := s.Accounts.CountDependents(ctx, []string{accountID})
		if err != nil {
			return err
		}
		dependentCounts(counts, plan.Rows)

		events, err := s.Events.Count(ctx, accountID)
		if err != nil {
			return err
		}
		plan.Rows[domain.TableEvents] = events
		if account != nil {
			plan.Rows[domain.TableAccounts] = 1
		} else {
			plan.Rows[domain.TableAccounts] = 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if plan.Account == nil && plan.Rows[domain.TableEvents] == 0 {
		return plan, fmt.Errorf("%s: %w", accountID, domain.ErrAccountNotFound)
	}
	return plan, nil
}

package consolidate

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/sirupsen/logrus"

	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/id"
	"github.com/lherron/usageadm/internal/store"
)

// Consolidate scans every account, groups duplicates by email and merges
// each resolvable group onto its identity account. A failed group is rolled
// back and reported; the run continues with the next group. The returned
// error is non-nil only when the account scan itself fails or ctx ends.
func (e *Engine) Consolidate(ctx context.Context) (*MergeReport, error) {
	report := &MergeReport{
		RunID:     e.runID,
		DryRun:    e.opts.DryRun,
		StartedAt: time.Now().UTC(),
	}
	defer func() { report.FinishedAt = time.Now().UTC() }()

	var accounts []domain.Account
	err := e.withReconnect(ctx, "list accounts", func(s *store.Store) error {
		var err error
		accounts, err = s.Accounts.List(ctx)
		return err
	})
	if err != nil {
		return report, err
	}
	report.AccountsScanned = len(accounts)

	groups, problems := GroupDuplicates(accounts)
	report.DuplicateGroups = len(groups)
	report.Problems = append(report.Problems, problems...)
	e.logger.WithFields(logrus.Fields{
		"accounts":         len(accounts),
		"duplicate_groups": len(groups),
	}).Info("Scanned accounts")

	for _, group := range groups {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		log := e.logger.WithFields(logrus.Fields{
			"email":   group.Email,
			"members": group.MemberIDs(),
		})

		resolution, groupProblems := Resolve(group)
		if len(groupProblems) > 0 {
			report.Skipped++
			report.Problems = append(report.Problems, groupProblems...)
			log.WithField("reason", groupProblems[0].Reason).Warn("Skipping group without a single identity account")
			continue
		}

		if e.opts.DryRun {
			report.Plans = append(report.Plans, e.plan(resolution))
			continue
		}

		result, err := e.mergeGroup(ctx, resolution)
		if err != nil {
			if isCancellation(err) {
				return report, err
			}
			class := db.Classify(err)
			if class == db.ClassConnectivity {
				e.conns.Invalidate()
			}
			report.Failures = append(report.Failures, GroupFailure{
				Email:      group.Email,
				AccountIDs: group.MemberIDs(),
				Class:      class,
				Error:      err.Error(),
			})
			log.WithError(err).WithField("class", class).Error("Group merge rolled back")
			continue
		}

		report.Merged++
		report.Groups = append(report.Groups, *result)
		log.WithFields(logrus.Fields{
			"identity":          result.IdentityID,
			"donor":             result.DonorID,
			"merged":            len(result.MergedIDs),
			"events_reassigned": result.EventsReassigned,
		}).Info("Merged group")
	}

	e.logger.WithFields(logrus.Fields{
		"merged":   report.Merged,
		"failed":   len(report.Failures),
		"skipped":  report.Skipped,
		"problems": len(report.Problems),
	}).Info("Consolidation finished")

	return report, nil
}

// mergeGroup rotates the credential, moves events and deletes the losing
// accounts in one transaction. Any error leaves the group as it was.
func (e *Engine) mergeGroup(ctx context.Context, res domain.Resolution) (*GroupResult, error) {
	s, err := e.acquire(ctx)
	if err != nil {
		return nil, err
	}

	loserIDs := res.LoserIDs()
	result := &GroupResult{
		Email:      res.Group.Email,
		IdentityID: res.Identity.ID,
		DonorID:    res.Donor.ID,
		MergedIDs:  loserIDs,
		Removed:    make(map[string]int64),
	}

	err = s.WithTx(ctx, func(tx *store.Tx) error {
		if res.NeedsRotation() {
			rotation := NewCredentialRotation(res.Donor, res.Identity, e.opts.CredentialSuffix)
			if err := rotation.Apply(ctx, tx); err != nil {
				return err
			}
			result.CredentialRotated = true
		}

		moved, err := tx.ReassignEvents(ctx, res.Identity.ID, loserIDs)
		if err != nil {
			return err
		}
		result.EventsReassigned = moved

		counts, err := tx.DeleteDependents(ctx, loserIDs)
		if err != nil {
			return err
		}
		dependentCounts(counts, result.Removed)

		removed, err := tx.DeleteAccounts(ctx, loserIDs)
		if err != nil {
			return err
		}
		if removed != int64(len(loserIDs)) {
			return fmt.Errorf("expected to delete %d accounts, deleted %d", len(loserIDs), removed)
		}
		result.Removed[domain.TableAccounts] = removed
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// plan renders the merge of res as a diff of the group's account rows
func (e *Engine) plan(res domain.Resolution) GroupPlan {
	var moved int64
	for _, l := range res.Losers {
		moved += l.EventCount
	}

	plan := GroupPlan{
		Email:             res.Group.Email,
		IdentityID:        res.Identity.ID,
		DonorID:           res.Donor.ID,
		MergedIDs:         res.LoserIDs(),
		CredentialRotated: res.NeedsRotation(),
		EventsReassigned:  moved,
	}

	var before, after []string
	for _, m := range res.Group.Members {
		before = append(before, accountLine(m.ID, m.Email, m.Credential, m.EventCount))
	}
	identity := res.Identity
	if res.NeedsRotation() {
		identity.Credential = res.Donor.Credential
	}
	after = append(after, accountLine(identity.ID, identity.Email, identity.Credential, identity.EventCount+moved))

	diff := difflib.UnifiedDiff{
		A:        before,
		B:        after,
		FromFile: "current",
		ToFile:   "merged",
		Context:  3,
	}
	if text, err := difflib.GetUnifiedDiffString(diff); err == nil {
		plan.Diff = text
	}
	return plan
}

func accountLine(accountID, email, credential string, events int64) string {
	return fmt.Sprintf("%s\t%s\t%s\tcredential=%s\tevents=%d\n",
		accountID, id.Classify(accountID), email, MaskCredential(credential), events)
}

// MaskCredential hides all but the last four characters of a credential
func MaskCredential(credential string) string {
	if len(credential) <= 4 {
		return strings.Repeat("*", len(credential))
	}
	return strings.Repeat("*", 4) + credential[len(credential)-4:]
}

package consolidate

import (
	"time"

	"github.com/lherron/usageadm/internal/db"
	"github.com/lherron/usageadm/internal/domain"
)

// MergeReport summarizes one full-scan consolidation run
type MergeReport struct {
	RunID           string           `json:"run_id" yaml:"run_id"`
	DryRun          bool             `json:"dry_run" yaml:"dry_run"`
	StartedAt       time.Time        `json:"started_at" yaml:"started_at"`
	FinishedAt      time.Time        `json:"finished_at" yaml:"finished_at"`
	AccountsScanned int              `json:"accounts_scanned" yaml:"accounts_scanned"`
	DuplicateGroups int              `json:"duplicate_groups" yaml:"duplicate_groups"`
	Merged          int              `json:"merged" yaml:"merged"`
	Skipped         int              `json:"skipped" yaml:"skipped"`
	Groups          []GroupResult    `json:"groups,omitempty" yaml:"groups,omitempty"`
	Plans           []GroupPlan      `json:"plans,omitempty" yaml:"plans,omitempty"`
	Failures        []GroupFailure   `json:"failures,omitempty" yaml:"failures,omitempty"`
	Problems        []domain.Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// GroupResult records what a successful merge changed
type GroupResult struct {
	Email             string           `json:"email" yaml:"email"`
	IdentityID        string           `json:"identity_id" yaml:"identity_id"`
	DonorID           string           `json:"donor_id" yaml:"donor_id"`
	MergedIDs         []string         `json:"merged_ids" yaml:"merged_ids"`
	CredentialRotated bool             `json:"credential_rotated" yaml:"credential_rotated"`
	EventsReassigned  int64            `json:"events_reassigned" yaml:"events_reassigned"`
	Removed           map[string]int64 `json:"removed" yaml:"removed"`
}

// GroupFailure is a group whose merge transaction was rolled back
type GroupFailure struct {
	Email      string        `json:"email" yaml:"email"`
	AccountIDs []string      `json:"account_ids" yaml:"account_ids"`
	Class      db.ErrorClass `json:"class" yaml:"class"`
	Error      string        `json:"error" yaml:"error"`
}

// GroupPlan describes what a merge would do without doing it
type GroupPlan struct {
	Email             string   `json:"email" yaml:"email"`
	IdentityID        string   `json:"identity_id" yaml:"identity_id"`
	DonorID           string   `json:"donor_id" yaml:"donor_id"`
	MergedIDs         []string `json:"merged_ids" yaml:"merged_ids"`
	CredentialRotated bool     `json:"credential_rotated" yaml:"credential_rotated"`
	EventsReassigned  int64    `json:"events_reassigned" yaml:"events_reassigned"`
	Diff              string   `json:"diff" yaml:"diff"`
}

// PurgeReport summarizes a single-account purge
type PurgeReport struct {
	RunID          string            `json:"run_id" yaml:"run_id"`
	AccountID      string            `json:"account_id" yaml:"account_id"`
	State          domain.PurgeState `json:"state" yaml:"state"`
	Resumed        bool              `json:"resumed" yaml:"resumed"`
	AccountDeleted bool              `json:"account_deleted" yaml:"account_deleted"`
	Removed        map[string]int64  `json:"removed" yaml:"removed"`
	EventBatches   []int64           `json:"event_batches" yaml:"event_batches"`
}

// EventsRemoved is the total of all event batches
func (r *PurgeReport) EventsRemoved() int64 {
	var total int64
	for _, n := range r.EventBatches {
		total += n
	}
	return total
}

// PurgePlan describes what a purge would remove
type PurgePlan struct {
	AccountID string           `json:"account_id" yaml:"account_id"`
	Account   *domain.Account  `json:"account,omitempty" yaml:"account,omitempty"`
	Rows      map[string]int64 `json:"rows" yaml:"rows"`
}

// VerifyReport lists integrity violations found by Verify
type VerifyReport struct {
	DuplicateCredentials int              `json:"duplicate_credentials" yaml:"duplicate_credentials"`
	Orphans              map[string]int64 `json:"orphans" yaml:"orphans"`
	PendingGroups        int              `json:"pending_groups" yaml:"pending_groups"`
	Problems             []domain.Problem `json:"problems,omitempty" yaml:"problems,omitempty"`
}

// OK is true when no credential is shared and no row is orphaned
func (r *VerifyReport) OK() bool {
	if r.DuplicateCredentials > 0 {
		return false
	}
	for _, n := range r.Orphans {
		if n > 0 {
			return false
		}
	}
	return true
}

func dependentCounts(counts map[domain.DependentKind]int64, into map[string]int64) map[string]int64 {
	if into == nil {
		into = make(map[string]int64, len(counts))
	}
	for kind, n := range counts {
		into[string(kind)] += n
	}
	return into
}

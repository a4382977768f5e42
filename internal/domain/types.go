package domain

import (
	"time"
)

// Account is a row in the users table. EventCount is derived from heartbeats and never stored.
type Account struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name,omitempty" yaml:"name,omitempty"`
	Email      string    `json:"email" yaml:"email"`
	Credential string    `json:"-" yaml:"-"`
	CreatedAt  time.Time `json:"created_at" yaml:"created_at"`
	EventCount int64     `json:"event_count" yaml:"event_count"`
}

// DependentKind names a table of small per-account records keyed by user_id
type DependentKind string

const (
	DependentAliases          DependentKind = "aliases"
	DependentSummaries        DependentKind = "summaries"
	DependentLanguageMappings DependentKind = "language_mappings"
	DependentProjectLabels    DependentKind = "project_labels"
	DependentLeaderboardItems DependentKind = "leaderboard_items"
)

// DependentKinds lists every dependent table in deletion order
var DependentKinds = []DependentKind{
	DependentAliases,
	DependentSummaries,
	DependentLanguageMappings,
	DependentProjectLabels,
	DependentLeaderboardItems,
}

// Table names that are not dependent kinds
const (
	TableAccounts = "users"
	TableEvents   = "heartbeats"
)

// DuplicateGroup is the set of accounts sharing a normalized email. Never persisted.
type DuplicateGroup struct {
	Email   string    `json:"email" yaml:"email"`
	Members []Account `json:"members" yaml:"members"`
}

// Actionable reports whether the group has anything to merge
func (g DuplicateGroup) Actionable() bool {
	return len(g.Members) >= 2
}

// MemberIDs returns member identifiers in first-seen order
func (g DuplicateGroup) MemberIDs() []string {
	ids := make([]string, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ID
	}
	return ids
}

// Resolution is the outcome of electing survivors within a group.
type Resolution struct {
	Group    DuplicateGroup
	Identity Account
	Donor    Account
	Losers   []Account
}

// NeedsRotation is false when the identity account already holds the most usage.
func (r Resolution) NeedsRotation() bool {
	return r.Identity.ID != r.Donor.ID
}

// LoserIDs returns the identifiers of every member except the identity account
func (r Resolution) LoserIDs() []string {
	ids := make([]string, len(r.Losers))
	for i, l := range r.Losers {
		ids[i] = l.ID
	}
	return ids
}

// ProblemReason explains why an account was left for manual review
type ProblemReason string

const (
	ProblemNoIdentityMatch   ProblemReason = "no_identity_match"
	ProblemAmbiguousIdentity ProblemReason = "ambiguous_identity"
	ProblemMissingEmail      ProblemReason = "missing_email"
)

// Problem is one entry of the manual review list
type Problem struct {
	AccountID string        `json:"account_id" yaml:"account_id"`
	Email     string        `json:"email,omitempty" yaml:"email,omitempty"`
	Reason    ProblemReason `json:"reason" yaml:"reason"`
}

// PurgeState tracks progress of a single-account purge
type PurgeState string

const (
	PurgePending                 PurgeState = "pending"
	PurgeDependentRecordsDeleted PurgeState = "dependent_records_deleted"
	PurgeEventsPurging           PurgeState = "events_purging"
	PurgeComplete                PurgeState = "complete"
)

package consolidate

import (
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/id"
)

// Resolve elects the identity account and the donor of a duplicate group.
//
// The identity account is the single member whose identifier has the platform
// issuer format. Groups with no such member, or with more than one, are not
// merged; every member is returned as a problem for manual review instead.
//
// The donor is the member with the most events. Ties go to the member seen
// first, so the choice is stable across runs over the same data.
func Resolve(group domain.DuplicateGroup) (domain.Resolution, []domain.Problem) {
	var identities []domain.Account
	for _, m := range group.Members {
		if id.IsPlatformIdentity(m.ID) {
			identities = append(identities, m)
		}
	}

	switch len(identities) {
	case 1:
	case 0:
		return domain.Resolution{}, groupProblems(group, domain.ProblemNoIdentityMatch)
	default:
		return domain.Resolution{}, groupProblems(group, domain.ProblemAmbiguousIdentity)
	}

	identity := identities[0]
	donor := group.Members[0]
	for _, m := range group.Members[1:] {
		if m.EventCount > donor.EventCount {
			donor = m
		}
	}

	losers := make([]domain.Account, 0, len(group.Members)-1)
	for _, m := range group.Members {
		if m.ID != identity.ID {
			losers = append(losers, m)
		}
	}

	return domain.Resolution{
		Group:    group,
		Identity: identity,
		Donor:    donor,
		Losers:   losers,
	}, nil
}

func groupProblems(group domain.DuplicateGroup, reason domain.ProblemReason) []domain.Problem {
	problems := make([]domain.Problem, len(group.Members))
	for i, m := range group.Members {
		problems[i] = domain.Problem{AccountID: m.ID, Email: m.Email, Reason: reason}
	}
	return problems
}

package consolidate

import (
	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/id"
)

// GroupDuplicates partitions accounts by lowercased email and returns the
// actionable groups (two or more members) in first-seen order. Members keep
// their input order. Accounts without an email are left out of grouping and
// reported as problems.
func GroupDuplicates(accounts []domain.Account) ([]domain.DuplicateGroup, []domain.Problem) {
	var (
		order    []string
		byEmail  = make(map[string][]domain.Account)
		problems []domain.Problem
	)

	for _, account := range accounts {
		if account.Email == "" {
			problems = append(problems, domain.Problem{
				AccountID: account.ID,
				Reason:    domain.ProblemMissingEmail,
			})
			continue
		}

		email := id.NormalizeEmail(account.Email)
		if _, seen := byEmail[email]; !seen {
			order = append(order, email)
		}
		byEmail[email] = append(byEmail[email], account)
	}

	var groups []domain.DuplicateGroup
	for _, email := range order {
		group := domain.DuplicateGroup{Email: email, Members: byEmail[email]}
		if group.Actionable() {
			groups = append(groups, group)
		}
	}
	return groups, problems
}

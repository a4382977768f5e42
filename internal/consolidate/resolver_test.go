package consolidate

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lherron/usageadm/internal/domain"
)

func group(members ...domain.Account) domain.DuplicateGroup {
	return domain.DuplicateGroup{Email: "x@example.com", Members: members}
}

func TestResolve_ProvisionalDonor(t *testing.T) {
	g := group(acct("prov-a", "x@example.com", 50), acct("U04ABCDEFAB", "X@example.com", 3))

	res, problems := Resolve(g)

	require.Empty(t, problems)
	assert.Equal(t, "U04ABCDEFAB", res.Identity.ID)
	assert.Equal(t, "prov-a", res.Donor.ID)
	assert.True(t, res.NeedsRotation())
	assert.Equal(t, []string{"prov-a"}, res.LoserIDs())
}

func TestResolve_IdentityIsMostActive(t *testing.T) {
	g := group(acct("prov-a", "x@example.com", 3), acct("U04ABCDEFAB", "x@example.com", 50))

	res, problems := Resolve(g)

	require.Empty(t, problems)
	assert.Equal(t, "U04ABCDEFAB", res.Identity.ID)
	assert.Equal(t, "U04ABCDEFAB", res.Donor.ID)
	assert.False(t, res.NeedsRotation())
	assert.Equal(t, []string{"prov-a"}, res.LoserIDs(), "losers are purged even without rotation")
}

func TestResolve_TieGoesToFirstSeen(t *testing.T) {
	g := group(
		acct("U0000000001", "x@example.com", 1),
		acct("prov-a", "x@example.com", 9),
		acct("prov-b", "x@example.com", 9),
	)

	for i := 0; i < 5; i++ {
		res, problems := Resolve(g)
		require.Empty(t, problems)
		assert.Equal(t, "prov-a", res.Donor.ID)
		assert.Equal(t, []string{"prov-a", "prov-b"}, res.LoserIDs())
	}
}

func TestResolve_NoIdentityMatch(t *testing.T) {
	g := group(acct("prov-a", "x@example.com", 3), acct("prov-b", "x@example.com", 5))

	res, problems := Resolve(g)

	assert.Empty(t, res.Identity.ID)
	require.Len(t, problems, 2)
	assert.Equal(t, "prov-a", problems[0].AccountID)
	assert.Equal(t, "prov-b", problems[1].AccountID)
	for _, p := range problems {
		assert.Equal(t, domain.ProblemNoIdentityMatch, p.Reason)
	}
}

func TestResolve_AmbiguousIdentity(t *testing.T) {
	g := group(acct("U0000000001", "x@example.com", 3), acct("U0000000002", "x@example.com", 5))

	_, problems := Resolve(g)

	require.Len(t, problems, 2)
	assert.Equal(t, domain.ProblemAmbiguousIdentity, problems[0].Reason)
}

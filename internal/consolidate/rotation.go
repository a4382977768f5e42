package consolidate

import (
	"context"
	"fmt"

	"github.com/lherron/usageadm/internal/domain"
	"github.com/lherron/usageadm/internal/store"
)

// CredentialRotation moves the donor's credential onto the identity account.
// The credential column is unique, so the value has to be freed on the donor
// before it can be assigned; the two steps only run through Apply, in order,
// on the same transaction.
type CredentialRotation struct {
	donor    domain.Account
	identity domain.Account
	suffix   string
}

// NewCredentialRotation prepares a rotation. suffix decorates the donor's
// credential while it waits to be deleted with the donor.
func NewCredentialRotation(donor, identity domain.Account, suffix string) *CredentialRotation {
	return &CredentialRotation{donor: donor, identity: identity, suffix: suffix}
}

// DecoratedCredential is the value the donor holds after the rotation
func (r *CredentialRotation) DecoratedCredential() string {
	return r.donor.Credential + r.suffix
}

// Apply frees the donor's credential, then assigns it to the identity account.
func (r *CredentialRotation) Apply(ctx context.Context, tx *store.Tx) error {
	if r.donor.ID == r.identity.ID {
		return nil
	}
	if err := r.free(ctx, tx); err != nil {
		return fmt.Errorf("credential rotation: free %s: %w", r.donor.ID, err)
	}
	if err := r.assign(ctx, tx); err != nil {
		return fmt.Errorf("credential rotation: assign to %s: %w", r.identity.ID, err)
	}
	return nil
}

func (r *CredentialRotation) free(ctx context.Context, tx *store.Tx) error {
	return tx.SetCredential(ctx, r.donor.ID, r.DecoratedCredential())
}

func (r *CredentialRotation) assign(ctx context.Context, tx *store.Tx) error {
	return tx.SetCredential(ctx, r.identity.ID, r.donor.Credential)
}

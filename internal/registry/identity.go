package registry

import (
	"context"
	"database/sql"
	"os/user"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/pkg/model"
)

// Identity yields the external identity of the caller, or false when none is
// known. It is the pluggable identity-provider collaborator.
type Identity func() (string, bool)

// OSIdentity resolves the operating-system user.
func OSIdentity() (string, bool) {
	u, err := user.Current()
	if err != nil || u.Username == "" {
		return "", false
	}
	return u.Username, true
}

// StaticIdentity always reports the given username.
func StaticIdentity(username string) Identity {
	return func() (string, bool) { return username, username != "" }
}

// IdentityRegistry maps external identities to contributors for attribution
// of new entries and runs.
type IdentityRegistry struct {
	current Identity
}

// NewIdentities builds the registry around an identity provider; nil falls
// back to the OS user.
func NewIdentities(current Identity) *IdentityRegistry {
	if current == nil {
		current = OSIdentity
	}
	return &IdentityRegistry{current: current}
}

// Add registers a contributor. Re-adding the same username is a no-op.
func (r *IdentityRegistry) Add(ctx context.Context, c *model.Contributor) error {
	if c.Username == "" {
		return errors.New("contributor username must not be empty")
	}
	if _, err := db.Bun().NewInsert().Model(c).
		On("CONFLICT DO NOTHING").
		Exec(ctx); err != nil {
		return errors.Wrapf(err, "adding contributor %q", c.Username)
	}
	return nil
}

// Get fetches a contributor by username.
func (r *IdentityRegistry) Get(ctx context.Context, username string) (*model.Contributor, error) {
	c := &model.Contributor{}
	err := db.Bun().NewSelect().Model(c).
		Where("username = ?", username).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.WithStack(db.ErrNotFound)
	} else if err != nil {
		return nil, errors.Wrapf(err, "fetching contributor %q", username)
	}
	return c, nil
}

// CurrentUser resolves the caller's identity to a contributor display name.
// It returns "" without error when the identity is unknown or has no
// contributor row; attribution is best effort.
func (r *IdentityRegistry) CurrentUser(ctx context.Context) (string, error) {
	username, ok := r.current()
	if !ok {
		return "", nil
	}
	c, err := r.Get(ctx, username)
	if errors.Is(err, db.ErrNotFound) {
		return "", nil
	} else if err != nil {
		return "", err
	}
	return c.DisplayName, nil
}

//go:build integration
// +build integration

package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sinzlab/fabrik/internal/db"
	_ "github.com/sinzlab/fabrik/pkg/builders" // Register built-in functions.
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

func TestSeedRegistryIsIdempotent(t *testing.T) {
	db.MustResolveTestPostgres(t)
	db.MustWipeTestTables(t)
	ctx := context.Background()
	seeds := NewSeeds()

	require.NoError(t, seeds.Add(ctx, 42))
	require.NoError(t, seeds.Add(ctx, 42))
	require.NoError(t, seeds.Add(ctx, 7))

	got, err := seeds.List(ctx)
	require.NoError(t, err)
	require.Equal(t, []int64{7, 42}, got)

	_, err = seeds.Get(ctx, 9999)
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestIdentityRegistryCurrentUser(t *testing.T) {
	db.MustResolveTestPostgres(t)
	db.MustWipeTestTables(t)
	ctx := context.Background()

	identity := NewIdentities(StaticIdentity("alice"))
	require.NoError(t, identity.Add(ctx, &model.Contributor{
		Username:    "alice",
		DisplayName: "Alice A.",
		Affiliation: "sinzlab",
	}))

	name, err := identity.CurrentUser(ctx)
	require.NoError(t, err)
	require.Equal(t, "Alice A.", name)

	// Unknown identities degrade to empty attribution, not an error.
	unknown := NewIdentities(StaticIdentity("bob"))
	name, err = unknown.CurrentUser(ctx)
	require.NoError(t, err)
	require.Empty(t, name)
}

func TestGetEntryNormalizesStoredConfig(t *testing.T) {
	db.MustResolveTestPostgres(t)
	db.MustWipeTestTables(t)
	ctx := context.Background()

	identity := NewIdentities(StaticIdentity(""))
	datasets := NewDatasets(identity)

	key, err := datasets.AddEntry(ctx, "toy", fabrik.Config{"n": 100, "noise": 0.5}, AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, key)

	_, cfg, err := datasets.GetEntry(ctx, *key)
	require.NoError(t, err)
	// JSONB hands every number back as float64; consumers must see the
	// normalized native forms instead.
	require.Equal(t, int64(100), cfg["n"])
	require.Equal(t, 0.5, cfg["noise"])
}

//go:build integration
// +build integration

package db

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sinzlab/fabrik/pkg/model"
)

// MustResolveTestPostgres connects the singleton to the database named by
// FABRIK_INTEGRATION_POSTGRES_URL and ensures the schema exists. Tests that
// call it run only under the integration build tag.
func MustResolveTestPostgres(t *testing.T) {
	url := os.Getenv("FABRIK_INTEGRATION_POSTGRES_URL")
	require.NotEmpty(t, url, "FABRIK_INTEGRATION_POSTGRES_URL must be set for integration tests")
	_, err := ConnectURL(url)
	require.NoError(t, err, "failed to connect to postgres")
	require.NoError(t, CreateSchema(context.Background()), "failed to create schema")
}

// MustWipeTestTables clears every fabrik table between test cases, children
// first so the foreign keys stay satisfied.
func MustWipeTestTables(t *testing.T) {
	ctx := context.Background()
	for _, table := range []interface{}{
		(*model.GitLog)(nil),
		(*model.ModelStorage)(nil),
		(*model.TrainedModel)(nil),
		(*model.ModelEntry)(nil),
		(*model.DatasetEntry)(nil),
		(*model.TrainerEntry)(nil),
		(*model.Seed)(nil),
		(*model.Contributor)(nil),
	} {
		_, err := Bun().NewDelete().Model(table).Where("TRUE").Exec(ctx)
		require.NoError(t, err)
	}
}

// PostTestTeardown drops the bun singleton, which we normally never allow but
// which is necessary between test binaries.
func PostTestTeardown() {
	theOneBunMu.Lock()
	defer theOneBunMu.Unlock()
	theOneBun = nil
}

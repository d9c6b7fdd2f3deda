//go:build integration
// +build integration

package trained

import (
	"context"
	"math"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/internal/provenance"
	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/internal/storage"
	_ "github.com/sinzlab/fabrik/pkg/builders" // Register built-in functions.
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

type testHarness struct {
	models   *registry.ModelRegistry
	datasets *registry.DatasetRegistry
	trainers *registry.TrainerRegistry
	seeds    *registry.SeedRegistry
	identity *registry.IdentityRegistry
	store    storage.Store
}

func setup(t *testing.T) *testHarness {
	db.MustResolveTestPostgres(t)
	db.MustWipeTestTables(t)

	store, err := storage.NewSharedFS(t.TempDir())
	require.NoError(t, err)

	identity := registry.NewIdentities(registry.StaticIdentity("testuser"))
	return &testHarness{
		models:   registry.NewModels(identity),
		datasets: registry.NewDatasets(identity),
		trainers: registry.NewTrainers(identity),
		seeds:    registry.NewSeeds(),
		identity: identity,
		store:    store,
	}
}

func (h *testHarness) orchestrator(repos ...string) *Orchestrator {
	return New(h.models, h.datasets, h.trainers, h.seeds, h.identity, h.store, repos)
}

// registerAll registers one entry per domain plus the seed and returns the
// composite key.
func registerAll(t *testing.T, h *testHarness, seed int64) RunKey {
	ctx := context.Background()
	modelKey, err := h.models.AddEntry(ctx, "linear", fabrik.Config{"hidden": 8}, registry.AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, modelKey)
	datasetKey, err := h.datasets.AddEntry(ctx, "toy", fabrik.Config{"n": 100}, registry.AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, datasetKey)
	trainerKey, err := h.trainers.AddEntry(ctx, "sgd", fabrik.Config{"epochs": 2, "lr": 0.05}, registry.AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, trainerKey)
	require.NoError(t, h.seeds.Add(ctx, seed))

	return RunKey{Model: *modelKey, Dataset: *datasetKey, Trainer: *trainerKey, Seed: seed}
}

func countRows(t *testing.T, m interface{}) int {
	count, err := db.Bun().NewSelect().Model(m).Count(context.Background())
	require.NoError(t, err)
	return count
}

func TestAddEntryDeduplicates(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	k1, err := h.models.AddEntry(ctx, "linear", fabrik.Config{"hidden": 32}, registry.AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, k1)
	// Same logical config, different numeric representation.
	k2, err := h.models.AddEntry(ctx, "linear", fabrik.Config{"hidden": float64(32)}, registry.AddOptions{})
	require.NoError(t, err)
	require.Equal(t, k1, k2)

	require.Equal(t, 1, countRows(t, (*model.ModelEntry)(nil)))
}

func TestAddEntryUnknownFunctionIsRejected(t *testing.T) {
	h := setup(t)
	ctx := context.Background()

	key, err := h.models.AddEntry(ctx, "no_such_model", fabrik.Config{"hidden": 8}, registry.AddOptions{})
	require.NoError(t, err)
	require.Nil(t, key)
	require.Equal(t, 0, countRows(t, (*model.ModelEntry)(nil)))

	_, _, err = h.models.GetEntry(ctx, registry.EntryKey{FunctionName: "no_such_model", ConfigHash: "x"})
	require.ErrorIs(t, err, db.ErrNotFound)
}

func TestAddEntryAttribution(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	require.NoError(t, h.identity.Add(ctx, &model.Contributor{
		Username:    "testuser",
		DisplayName: "Test User",
	}))

	key, err := h.trainers.AddEntry(ctx, "sgd", fabrik.Config{"epochs": 1}, registry.AddOptions{})
	require.NoError(t, err)
	require.NotNil(t, key)

	entries, err := h.trainers.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "Test User", entries[0].Author)

	// An explicit author wins over the identity lookup.
	key2, err := h.trainers.AddEntry(ctx, "sgd", fabrik.Config{"epochs": 2},
		registry.AddOptions{Author: "Someone Else", Comment: "variant"})
	require.NoError(t, err)
	require.NotNil(t, key2)
	_, cfg, err := h.trainers.GetEntry(ctx, *key2)
	require.NoError(t, err)
	require.Equal(t, int64(2), cfg["epochs"])
}

func TestComputeEndToEnd(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	key := registerAll(t, h, 42)
	o := h.orchestrator()

	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	require.Equal(t, []RunKey{key}, pending)

	run, err := o.Compute(ctx, key)
	require.NoError(t, err)
	require.False(t, math.IsNaN(run.Score) || math.IsInf(run.Score, 0))
	require.NotNil(t, run.Output)

	// The key left the pending set.
	pending, err = o.Pending(ctx)
	require.NoError(t, err)
	require.Empty(t, pending)

	// Recomputing the same key is a safe no-op.
	_, err = o.Compute(ctx, key)
	require.ErrorIs(t, err, ErrAlreadyComputed)
	require.Equal(t, 1, countRows(t, (*model.TrainedModel)(nil)))
	require.Equal(t, 1, countRows(t, (*model.ModelStorage)(nil)))

	// The stored state restores into a working model.
	restored, err := o.LoadModel(ctx, key)
	require.NoError(t, err)
	state := restored.StateDict()
	require.NotEmpty(t, state)
	require.NotEmpty(t, state["w1"])

	full, err := o.GetFullConfig(ctx, key)
	require.NoError(t, err)
	require.Equal(t, "linear", full.ModelFn)
	require.Equal(t, int64(100), full.DatasetConfig["n"])
}

func TestComputeConcurrentSameKey(t *testing.T) {
	h := setup(t)
	key := registerAll(t, h, 7)
	o := h.orchestrator()

	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = o.Compute(context.Background(), key)
		}(i)
	}
	wg.Wait()

	var committed, alreadyDone int
	for _, err := range errs {
		switch {
		case err == nil:
			committed++
		case errors.Is(err, ErrAlreadyComputed):
			alreadyDone++
		default:
			t.Fatalf("unexpected compute error: %v", err)
		}
	}
	require.Equal(t, 1, committed)
	require.Equal(t, 1, alreadyDone)
	require.Equal(t, 1, countRows(t, (*model.TrainedModel)(nil)))
}

func TestComputeUnresolvableEntryIsFatal(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	key := registerAll(t, h, 1)
	// Point the key at a dataset entry that was never inserted.
	key.Dataset.ConfigHash = "0000000000000000"

	_, err := h.orchestrator().Compute(ctx, key)
	require.ErrorIs(t, err, db.ErrNotFound)
	require.Equal(t, 0, countRows(t, (*model.TrainedModel)(nil)))
}

func TestDirtyRepositoryAbortsWithoutSideEffects(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	h := setup(t)
	ctx := context.Background()
	key := registerAll(t, h, 3)

	repo := initGitRepo(t)
	require.NoError(t, os.WriteFile(filepath.Join(repo, "file.txt"), []byte("dirty"), 0o644))

	_, err := h.orchestrator(repo).Compute(ctx, key)
	var dirtyErr *provenance.DirtyRepositoryError
	require.ErrorAs(t, err, &dirtyErr)

	require.Equal(t, 0, countRows(t, (*model.TrainedModel)(nil)))
	require.Equal(t, 0, countRows(t, (*model.ModelStorage)(nil)))
	require.Equal(t, 0, countRows(t, (*model.GitLog)(nil)))
}

func TestComputeRecordsGitLog(t *testing.T) {
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not available")
	}
	h := setup(t)
	ctx := context.Background()
	key := registerAll(t, h, 4)
	repo := initGitRepo(t)

	_, err := h.orchestrator(repo).Compute(ctx, key)
	require.NoError(t, err)
	require.Equal(t, 1, countRows(t, (*model.GitLog)(nil)))
}

func TestPopulateComputesCrossProduct(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	registerAll(t, h, 10)
	require.NoError(t, h.seeds.Add(ctx, 11))
	o := h.orchestrator()

	pending, err := o.Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)

	computed, err := o.Populate(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, computed)

	computed, err = o.Populate(ctx)
	require.NoError(t, err)
	require.Zero(t, computed)
}

func initGitRepo(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	run := func(args ...string) {
		cmd := exec.Command("git", append([]string{"-C", dir}, args...)...)
		cmd.Env = append(os.Environ(),
			"GIT_AUTHOR_NAME=test", "GIT_AUTHOR_EMAIL=test@example.com",
			"GIT_COMMITTER_NAME=test", "GIT_COMMITTER_EMAIL=test@example.com")
		out, err := cmd.CombinedOutput()
		require.NoError(t, err, "git %v: %s", args, out)
	}
	run("init")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file.txt"), []byte("v1"), 0o644))
	run("add", "file.txt")
	run("commit", "-m", "initial")
	return dir
}

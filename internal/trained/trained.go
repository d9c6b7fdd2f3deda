// Package trained implements the computed join at the center of fabrik: it
// resolves one model, dataset and trainer entry plus one seed into live
// builders, executes the training, and atomically persists the score, the
// training output, the model state blob and the provenance log under the
// composite run key.
package trained

import (
	"context"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/internal/storage"
	"github.com/sinzlab/fabrik/pkg/confighash"
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

// ErrAlreadyComputed reports that a run for the composite key is already
// committed. Recomputing is a safe no-op: callers that just want the key done
// may ignore this error.
var ErrAlreadyComputed = errors.New("run already computed")

// RunKey joins one entry from each registry with one seed.
type RunKey struct {
	Model   registry.EntryKey
	Dataset registry.EntryKey
	Trainer registry.EntryKey
	Seed    int64
}

func (k RunKey) columns() model.RunKeyColumns {
	return model.RunKeyColumns{
		ModelFn:     k.Model.FunctionName,
		ModelHash:   k.Model.ConfigHash,
		DatasetFn:   k.Dataset.FunctionName,
		DatasetHash: k.Dataset.ConfigHash,
		TrainerFn:   k.Trainer.FunctionName,
		TrainerHash: k.Trainer.ConfigHash,
		Seed:        k.Seed,
	}
}

func keyFromColumns(c model.RunKeyColumns) RunKey {
	return RunKey{
		Model:   registry.EntryKey{FunctionName: c.ModelFn, ConfigHash: c.ModelHash},
		Dataset: registry.EntryKey{FunctionName: c.DatasetFn, ConfigHash: c.DatasetHash},
		Trainer: registry.EntryKey{FunctionName: c.TrainerFn, ConfigHash: c.TrainerHash},
		Seed:    c.Seed,
	}
}

// Hash content-addresses the composite key; it names the model state blob.
func (k RunKey) Hash() (string, error) {
	return confighash.Hash(fabrik.Config{
		"model_fn":     k.Model.FunctionName,
		"model_hash":   k.Model.ConfigHash,
		"dataset_fn":   k.Dataset.FunctionName,
		"dataset_hash": k.Dataset.ConfigHash,
		"trainer_fn":   k.Trainer.FunctionName,
		"trainer_hash": k.Trainer.ConfigHash,
		"seed":         k.Seed,
	})
}

// Orchestrator computes trained-model runs against the shared registries.
type Orchestrator struct {
	models   *registry.ModelRegistry
	datasets *registry.DatasetRegistry
	trainers *registry.TrainerRegistry
	seeds    *registry.SeedRegistry
	identity *registry.IdentityRegistry
	store    storage.Store
	// repos are the provenance-tracked source repositories; empty disables
	// the provenance gate.
	repos []string
}

// New wires an orchestrator.
func New(
	models *registry.ModelRegistry,
	datasets *registry.DatasetRegistry,
	trainers *registry.TrainerRegistry,
	seeds *registry.SeedRegistry,
	identity *registry.IdentityRegistry,
	store storage.Store,
	repos []string,
) *Orchestrator {
	return &Orchestrator{
		models:   models,
		datasets: datasets,
		trainers: trainers,
		seeds:    seeds,
		identity: identity,
		store:    store,
		repos:    repos,
	}
}

// buildParts resolves all registry entries of the key into live products:
// the dataloaders, the model bound to them and the seed, and the trainer
// partial.
func (o *Orchestrator) buildParts(
	ctx context.Context, key RunKey,
) (fabrik.DataLoaders, fabrik.Model, fabrik.Trainer, error) {
	if _, err := o.seeds.Get(ctx, key.Seed); err != nil {
		return nil, nil, nil, errors.Wrapf(err, "seed %d is not registered", key.Seed)
	}
	loaders, err := o.datasets.Build(ctx, key.Dataset, &key.Seed)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "building dataloaders")
	}
	if err := loaders.Validate(); err != nil {
		return nil, nil, nil, err
	}
	mdl, err := o.models.Build(ctx, key.Model, loaders, key.Seed)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "building model")
	}
	trainer, err := o.trainers.Build(ctx, key.Trainer)
	if err != nil {
		return nil, nil, nil, errors.Wrap(err, "building trainer")
	}
	return loaders, mdl, trainer, nil
}

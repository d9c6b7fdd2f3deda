// Package registry implements the deduplicated configuration stores: one per
// builder domain (models, datasets, trainers), plus seeds and contributor
// identities. An entry is keyed by (function name, config hash), so inserting
// a semantically identical configuration twice can never create a second row.
package registry

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/pkg/confighash"
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

// EntryKey is the primary key of a configuration entry.
type EntryKey struct {
	FunctionName string
	ConfigHash   string
}

// AddOptions carries the optional attributes of a new entry.
type AddOptions struct {
	// Author overrides the attribution; empty defaults to the current
	// contributor.
	Author  string
	Comment string
}

// Registry is a deduplicated store of (function name, config) pairs for one
// builder domain.
type Registry struct {
	domain   fabrik.Domain
	identity *IdentityRegistry
	newRow   func() model.Row
}

// NewModels builds the model-domain registry.
func NewModels(identity *IdentityRegistry) *ModelRegistry {
	return &ModelRegistry{Registry{
		domain:   fabrik.ModelDomain,
		identity: identity,
		newRow:   func() model.Row { return &model.ModelEntry{} },
	}}
}

// NewDatasets builds the dataset-domain registry.
func NewDatasets(identity *IdentityRegistry) *DatasetRegistry {
	return &DatasetRegistry{Registry{
		domain:   fabrik.DatasetDomain,
		identity: identity,
		newRow:   func() model.Row { return &model.DatasetEntry{} },
	}}
}

// NewTrainers builds the trainer-domain registry.
func NewTrainers(identity *IdentityRegistry) *TrainerRegistry {
	return &TrainerRegistry{Registry{
		domain:   fabrik.TrainerDomain,
		identity: identity,
		newRow:   func() model.Row { return &model.TrainerEntry{} },
	}}
}

// AddEntry resolves the function name, content-hashes the config and inserts
// the entry. A name that does not resolve is reported and skipped (nil key,
// nil error): entry creation stays usable when a single registration is bad.
// Re-inserting an existing (name, hash) pair is a no-op returning its key.
func (r *Registry) AddEntry(
	ctx context.Context, functionName string, cfg fabrik.Config, opts AddOptions,
) (*EntryKey, error) {
	if _, err := fabrik.Resolve(r.domain, functionName); err != nil {
		log.WithError(err).Warnf("%s function does not exist, entry rejected", r.domain)
		return nil, nil
	}

	hash, err := confighash.Hash(cfg)
	if err != nil {
		return nil, errors.Wrapf(err, "hashing %s config", r.domain)
	}

	author := opts.Author
	if author == "" {
		if author, err = r.identity.CurrentUser(ctx); err != nil {
			return nil, errors.Wrap(err, "resolving current contributor")
		}
	}

	row := r.newRow()
	*row.Entry() = model.ConfigEntry{
		FunctionName: functionName,
		ConfigHash:   hash,
		Config:       model.JSONObj(cfg),
		Author:       author,
		Comment:      opts.Comment,
	}
	if _, err := db.Bun().NewInsert().Model(row).
		On("CONFLICT DO NOTHING").
		Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "inserting %s entry %q", r.domain, functionName)
	}
	return &EntryKey{FunctionName: functionName, ConfigHash: hash}, nil
}

// GetEntry fetches the function name and config stored under key. The config
// comes back normalized, so consumers never observe wrapped numeric scalars.
func (r *Registry) GetEntry(ctx context.Context, key EntryKey) (string, fabrik.Config, error) {
	row := r.newRow()
	err := db.Bun().NewSelect().Model(row).
		Where("function_name = ?", key.FunctionName).
		Where("config_hash = ?", key.ConfigHash).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, errors.WithStack(db.ErrNotFound)
	} else if err != nil {
		return "", nil, errors.Wrapf(err, "fetching %s entry %v", r.domain, key)
	}

	entry := row.Entry()
	cfg, _ := confighash.Normalize(map[string]interface{}(entry.Config)).(map[string]interface{})
	return entry.FunctionName, fabrik.Config(cfg), nil
}

// List returns all entries of the registry's domain.
func (r *Registry) List(ctx context.Context) ([]model.ConfigEntry, error) {
	var entries []model.ConfigEntry
	err := db.Bun().NewSelect().Model(r.newRow()).
		Order("created_at ASC").
		Scan(ctx, &entries)
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s entries", r.domain)
	}
	return entries, nil
}

// ModelRegistry is the Registry of model builders.
type ModelRegistry struct{ Registry }

// Build resolves the entry under key and invokes its builder with the runtime
// dataloaders and seed. Resolution failures are fatal here: a computed run
// cannot proceed without its model.
func (r *ModelRegistry) Build(
	ctx context.Context, key EntryKey, loaders fabrik.DataLoaders, seed int64,
) (fabrik.Model, error) {
	functionName, cfg, err := r.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	fn, err := fabrik.ResolveModelFn(functionName)
	if err != nil {
		return nil, err
	}
	log.Debugf("building model %q", functionName)
	return fn(cfg, loaders, seed)
}

// DatasetRegistry is the Registry of dataset builders.
type DatasetRegistry struct{ Registry }

// Build resolves the entry under key and builds its dataloaders. A non-nil
// seed overrides the "seed" key of the stored config; the stored entry itself
// is never mutated.
func (r *DatasetRegistry) Build(
	ctx context.Context, key EntryKey, seed *int64,
) (fabrik.DataLoaders, error) {
	functionName, cfg, err := r.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	fn, err := fabrik.ResolveDatasetFn(functionName)
	if err != nil {
		return nil, err
	}
	if seed != nil {
		cfg = cfg.Copy()
		if cfg == nil {
			cfg = fabrik.Config{}
		}
		cfg["seed"] = *seed
	}
	log.Debugf("building dataloaders %q", functionName)
	return fn(cfg)
}

// TrainerRegistry is the Registry of trainer builders.
type TrainerRegistry struct{ Registry }

// Build returns the trainer pre-bound with its stored config: a partial
// application that only needs the runtime model, seed and dataloaders.
func (r *TrainerRegistry) Build(ctx context.Context, key EntryKey) (fabrik.Trainer, error) {
	functionName, cfg, err := r.GetEntry(ctx, key)
	if err != nil {
		return nil, err
	}
	fn, err := fabrik.ResolveTrainerFn(functionName)
	if err != nil {
		return nil, err
	}
	return fn(cfg), nil
}

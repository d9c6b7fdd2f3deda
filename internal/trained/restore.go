package trained

import (
	"context"
	"database/sql"
	"encoding/gob"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

// Get fetches the committed run for the composite key, or db.ErrNotFound.
func (o *Orchestrator) Get(ctx context.Context, key RunKey) (*model.TrainedModel, error) {
	run := &model.TrainedModel{}
	err := scanByKey(ctx, run, key)
	if err != nil {
		return nil, err
	}
	return run, nil
}

// List returns all committed runs.
func (o *Orchestrator) List(ctx context.Context) ([]model.TrainedModel, error) {
	var runs []model.TrainedModel
	err := db.Bun().NewSelect().Model(&runs).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "listing trained models")
	}
	return runs, nil
}

// FullConfig is the complete configuration closure of one run.
type FullConfig struct {
	ModelFn       string
	ModelConfig   fabrik.Config
	DatasetFn     string
	DatasetConfig fabrik.Config
	TrainerFn     string
	TrainerConfig fabrik.Config
	Seed          int64
}

// GetFullConfig resolves the key's entries back into their function names and
// normalized configs.
func (o *Orchestrator) GetFullConfig(ctx context.Context, key RunKey) (*FullConfig, error) {
	modelFn, modelCfg, err := o.models.GetEntry(ctx, key.Model)
	if err != nil {
		return nil, err
	}
	datasetFn, datasetCfg, err := o.datasets.GetEntry(ctx, key.Dataset)
	if err != nil {
		return nil, err
	}
	trainerFn, trainerCfg, err := o.trainers.GetEntry(ctx, key.Trainer)
	if err != nil {
		return nil, err
	}
	return &FullConfig{
		ModelFn:       modelFn,
		ModelConfig:   modelCfg,
		DatasetFn:     datasetFn,
		DatasetConfig: datasetCfg,
		TrainerFn:     trainerFn,
		TrainerConfig: trainerCfg,
		Seed:          key.Seed,
	}, nil
}

// LoadModel rebuilds the architecture for a committed run and restores its
// trained parameter state from blob storage.
func (o *Orchestrator) LoadModel(ctx context.Context, key RunKey) (fabrik.Model, error) {
	part := &model.ModelStorage{}
	if err := scanByKey(ctx, part, key); err != nil {
		return nil, err
	}

	_, mdl, _, err := o.buildParts(ctx, key)
	if err != nil {
		return nil, err
	}

	blob, err := o.store.Get(ctx, part.ModelState)
	if err != nil {
		return nil, err
	}
	defer blob.Close()

	var state fabrik.StateDict
	if err := gob.NewDecoder(blob).Decode(&state); err != nil {
		return nil, errors.Wrapf(err, "decoding model state %q", part.ModelState)
	}
	if err := mdl.LoadStateDict(state); err != nil {
		return nil, errors.Wrap(err, "restoring model state")
	}
	return mdl, nil
}

// scanByKey fetches one row of any run table by the composite key.
func scanByKey(ctx context.Context, row interface{}, key RunKey) error {
	c := key.columns()
	err := db.Bun().NewSelect().Model(row).
		Where("model_fn = ?", c.ModelFn).
		Where("model_hash = ?", c.ModelHash).
		Where("dataset_fn = ?", c.DatasetFn).
		Where("dataset_hash = ?", c.DatasetHash).
		Where("trainer_fn = ?", c.TrainerFn).
		Where("trainer_hash = ?", c.TrainerHash).
		Where("seed = ?", c.Seed).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return errors.WithStack(db.ErrNotFound)
	} else if err != nil {
		return errors.Wrap(err, "fetching run row")
	}
	return nil
}

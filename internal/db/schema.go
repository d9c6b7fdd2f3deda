package db

import (
	"context"

	"github.com/pkg/errors"
	"github.com/uptrace/bun"

	"github.com/sinzlab/fabrik/pkg/model"
)

const runKeyCols = `("model_fn", "model_hash", "dataset_fn", "dataset_hash", ` +
	`"trainer_fn", "trainer_hash", "seed")`

// CreateSchema creates all fabrik tables if they do not exist yet. The
// foreign keys encode the join closure: a trained_models row can only exist
// while all four referenced entries do, and the part tables can only exist
// with their master row.
func CreateSchema(ctx context.Context) error {
	plain := []interface{}{
		(*model.Contributor)(nil),
		(*model.ModelEntry)(nil),
		(*model.DatasetEntry)(nil),
		(*model.TrainerEntry)(nil),
		(*model.Seed)(nil),
	}
	for _, table := range plain {
		if _, err := Bun().NewCreateTable().Model(table).IfNotExists().Exec(ctx); err != nil {
			return errors.Wrapf(err, "creating table for %T", table)
		}
	}

	if _, err := Bun().NewCreateTable().Model((*model.TrainedModel)(nil)).IfNotExists().
		ForeignKey(`("model_fn", "model_hash") REFERENCES models ("function_name", "config_hash")`).
		ForeignKey(`("dataset_fn", "dataset_hash") REFERENCES datasets ("function_name", "config_hash")`).
		ForeignKey(`("trainer_fn", "trainer_hash") REFERENCES trainers ("function_name", "config_hash")`).
		ForeignKey(`("seed") REFERENCES seeds ("seed")`).
		Exec(ctx); err != nil {
		return errors.Wrap(err, "creating trained_models")
	}

	parts := []interface{}{(*model.ModelStorage)(nil), (*model.GitLog)(nil)}
	for _, table := range parts {
		if _, err := Bun().NewCreateTable().Model(table).IfNotExists().
			ForeignKey(runKeyCols + ` REFERENCES trained_models ` + runKeyCols + ` ON DELETE CASCADE`).
			Exec(ctx); err != nil {
			return errors.Wrapf(err, "creating part table for %T", table)
		}
	}
	return nil
}

// RunInTx runs fn inside one database transaction on the singleton handle.
func RunInTx(ctx context.Context, fn func(ctx context.Context, tx bun.Tx) error) error {
	return Bun().RunInTx(ctx, nil, fn)
}

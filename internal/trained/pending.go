package trained

import (
	"context"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/pkg/model"
)

// pendingQuery enumerates the cross product of the four registries minus the
// runs that are already committed.
const pendingQuery = `
SELECT m.function_name AS model_fn, m.config_hash AS model_hash,
       d.function_name AS dataset_fn, d.config_hash AS dataset_hash,
       t.function_name AS trainer_fn, t.config_hash AS trainer_hash,
       s.seed AS seed
FROM models m
CROSS JOIN datasets d
CROSS JOIN trainers t
CROSS JOIN seeds s
WHERE NOT EXISTS (
    SELECT 1 FROM trained_models r
    WHERE r.model_fn = m.function_name AND r.model_hash = m.config_hash
      AND r.dataset_fn = d.function_name AND r.dataset_hash = d.config_hash
      AND r.trainer_fn = t.function_name AND r.trainer_hash = t.config_hash
      AND r.seed = s.seed
)
ORDER BY m.function_name, m.config_hash, d.function_name, d.config_hash,
         t.function_name, t.config_hash, s.seed
`

// Pending returns every composite key that has all four referenced entries
// but no committed run yet.
func (o *Orchestrator) Pending(ctx context.Context) ([]RunKey, error) {
	var cols []model.RunKeyColumns
	if err := db.Bun().NewRaw(pendingQuery).Scan(ctx, &cols); err != nil {
		return nil, errors.Wrap(err, "enumerating pending runs")
	}
	keys := make([]RunKey, len(cols))
	for i, c := range cols {
		keys[i] = keyFromColumns(c)
	}
	return keys, nil
}

// Populate computes every pending key in order. Keys that another process
// commits first are skipped silently; other failures are logged, leave their
// key pending, and are reported in the aggregated error after the sweep.
func (o *Orchestrator) Populate(ctx context.Context) (int, error) {
	keys, err := o.Pending(ctx)
	if err != nil {
		return 0, err
	}

	computed := 0
	var merr *multierror.Error
	for _, key := range keys {
		switch _, err := o.Compute(ctx, key); {
		case err == nil:
			computed++
		case errors.Is(err, ErrAlreadyComputed):
			log.Debugf("run for seed %d already computed elsewhere", key.Seed)
		default:
			log.WithError(err).WithFields(log.Fields{
				"model":   key.Model.FunctionName,
				"dataset": key.Dataset.FunctionName,
				"trainer": key.Trainer.FunctionName,
				"seed":    key.Seed,
			}).Error("compute failed, key stays pending")
			merr = multierror.Append(merr, err)
		}
	}
	return computed, merr.ErrorOrNil()
}

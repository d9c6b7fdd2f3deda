package registry

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/pkg/model"
)

// SeedRegistry stores the random seeds usable as a join dimension of
// computed runs.
type SeedRegistry struct{}

// NewSeeds builds the seed registry.
func NewSeeds() *SeedRegistry { return &SeedRegistry{} }

// Add registers a seed; re-adding is a no-op.
func (r *SeedRegistry) Add(ctx context.Context, seed int64) error {
	if _, err := db.Bun().NewInsert().Model(&model.Seed{Seed: seed}).
		On("CONFLICT DO NOTHING").
		Exec(ctx); err != nil {
		return errors.Wrapf(err, "adding seed %d", seed)
	}
	return nil
}

// Get checks that a seed exists.
func (r *SeedRegistry) Get(ctx context.Context, seed int64) (int64, error) {
	row := &model.Seed{}
	err := db.Bun().NewSelect().Model(row).
		Where("seed = ?", seed).
		Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, errors.WithStack(db.ErrNotFound)
	} else if err != nil {
		return 0, errors.Wrapf(err, "fetching seed %d", seed)
	}
	return row.Seed, nil
}

// List returns all registered seeds.
func (r *SeedRegistry) List(ctx context.Context) ([]int64, error) {
	var seeds []int64
	err := db.Bun().NewSelect().Model((*model.Seed)(nil)).
		Column("seed").
		Order("seed ASC").
		Scan(ctx, &seeds)
	if err != nil {
		return nil, errors.Wrap(err, "listing seeds")
	}
	return seeds, nil
}

package fabrik

// ModelFn builds a model from its stored configuration. The dataloaders are
// passed in so architectures can infer input/output shapes from the data, and
// the seed fixes parameter initialization.
type ModelFn func(cfg Config, loaders DataLoaders, seed int64) (Model, error)

// DatasetFn builds the dataloader collection from its stored configuration.
// A "seed" key in the config, when present, controls shuffling and any
// synthetic data generation.
type DatasetFn func(cfg Config) (DataLoaders, error)

// Trainer runs one full training of model under the given seed and returns
// the final score, an arbitrary structured training summary, and the trained
// parameter state.
type Trainer func(model Model, seed int64, loaders DataLoaders) (score float64, output Config, state StateDict, err error)

// TrainerFn binds a trainer configuration into a ready-to-call Trainer. It is
// the partial-application step: the returned Trainer carries its stored config
// and only needs the runtime arguments.
type TrainerFn func(cfg Config) Trainer

package fabrik

import "github.com/pkg/errors"

// StateDict is the serializable parameter state of a trained model: a mapping
// from parameter name to its flat values. It is what gets written to blob
// storage after training and loaded back to restore a model.
type StateDict map[string][]float64

// Model is the minimal surface the framework requires from a user-supplied
// model: trainable parameters that can be exported and restored, and a forward
// pass so trainers can evaluate it.
type Model interface {
	// Forward computes the model output for a single input vector.
	Forward(input []float64) []float64
	// StateDict exports the current parameter state.
	StateDict() StateDict
	// LoadStateDict restores a previously exported parameter state. The state
	// must come from a model of the same architecture.
	LoadStateDict(state StateDict) error
}

// Batch is one mini-batch yielded by a loader. Input and Target have the batch
// dimension leading.
type Batch struct {
	Input  [][]float64
	Target [][]float64
}

// Loader yields the batches of one dataset split.
type Loader interface {
	Batches() []Batch
}

// DataLoaders maps a split name to its loader. The "train" split is mandatory;
// builders typically also provide "val" and "test".
type DataLoaders map[string]Loader

// TrainSplit is the split every dataset builder must provide.
const TrainSplit = "train"

// SliceLoader is a Loader over an in-memory batch slice.
type SliceLoader []Batch

// Batches implements Loader.
func (l SliceLoader) Batches() []Batch { return l }

// Validate checks that the loader map satisfies the dataset-builder contract.
func (d DataLoaders) Validate() error {
	if _, ok := d[TrainSplit]; !ok {
		return errors.Errorf("dataloaders missing required %q split", TrainSplit)
	}
	return nil
}

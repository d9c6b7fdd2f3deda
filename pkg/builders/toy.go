package builders

import (
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/pkg/fabrik"
)

// BuildToy builds the "toy" dataset: a synthetic regression problem generated
// deterministically from its config. Config keys: "n" (sample count, default
// 100), "features" (default 4), "targets" (default 1), "batch_size" (default
// 16), "seed" (default 0; overridden by the run seed when computing).
// It returns "train" and "val" splits with an 80/20 cut.
func BuildToy(cfg fabrik.Config) (fabrik.DataLoaders, error) {
	n := cfgInt(cfg, "n", 100)
	features := cfgInt(cfg, "features", 4)
	targets := cfgInt(cfg, "targets", 1)
	batchSize := cfgInt(cfg, "batch_size", 16)
	seed := int64(cfgInt(cfg, "seed", 0))
	if n < 2 || features < 1 || targets < 1 || batchSize < 1 {
		return nil, errors.Errorf(
			"invalid toy dataset config: n=%d features=%d targets=%d batch_size=%d",
			n, features, targets, batchSize)
	}

	rng := rand.New(rand.NewSource(seed)) // #nosec G404

	// Ground-truth linear map plus mild noise.
	truth := make([]float64, targets*features)
	for i := range truth {
		truth[i] = rng.NormFloat64()
	}

	inputs := make([][]float64, n)
	outs := make([][]float64, n)
	for s := 0; s < n; s++ {
		x := make([]float64, features)
		for i := range x {
			x[i] = rng.NormFloat64()
		}
		y := make([]float64, targets)
		for o := 0; o < targets; o++ {
			for i := 0; i < features; i++ {
				y[o] += truth[o*features+i] * x[i]
			}
			y[o] += rng.NormFloat64() * 0.01
		}
		inputs[s] = x
		outs[s] = y
	}

	cut := n * 8 / 10
	if cut == 0 {
		cut = 1
	}
	return fabrik.DataLoaders{
		fabrik.TrainSplit: toBatches(inputs[:cut], outs[:cut], batchSize),
		"val":             toBatches(inputs[cut:], outs[cut:], batchSize),
	}, nil
}

func toBatches(inputs, targets [][]float64, batchSize int) fabrik.SliceLoader {
	var batches []fabrik.Batch
	for start := 0; start < len(inputs); start += batchSize {
		end := start + batchSize
		if end > len(inputs) {
			end = len(inputs)
		}
		batches = append(batches, fabrik.Batch{
			Input:  inputs[start:end],
			Target: targets[start:end],
		})
	}
	return fabrik.SliceLoader(batches)
}

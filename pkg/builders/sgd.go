package builders

import (
	"math"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/pkg/fabrik"
)

// BuildSGD binds the "sgd" trainer config into a Trainer. Config keys:
// "epochs" (default 10), "lr" (default 0.05). The returned trainer runs plain
// mini-batch gradient descent on mean-squared error and scores the model by
// its loss on the "val" split (train split when no val split exists).
func BuildSGD(cfg fabrik.Config) fabrik.Trainer {
	epochs := cfgInt(cfg, "epochs", 10)
	lr := cfgFloat(cfg, "lr", 0.05)

	return func(model fabrik.Model, seed int64, loaders fabrik.DataLoaders) (float64, fabrik.Config, fabrik.StateDict, error) {
		if err := loaders.Validate(); err != nil {
			return 0, nil, nil, err
		}
		grad, ok := model.(Gradable)
		if !ok {
			return 0, nil, nil, errors.Errorf(
				"sgd trainer requires a model with gradients, got %T", model)
		}
		if epochs < 1 || lr <= 0 {
			return 0, nil, nil, errors.Errorf("invalid sgd config: epochs=%d lr=%v", epochs, lr)
		}

		curve := make([]interface{}, 0, epochs)
		for epoch := 0; epoch < epochs; epoch++ {
			var epochLoss float64
			var batches int
			for _, batch := range loaders[fabrik.TrainSplit].Batches() {
				loss, grads := grad.Backward(batch)
				state := model.StateDict()
				for name, values := range state {
					g := grads[name]
					for i := range values {
						values[i] -= lr * g[i]
					}
				}
				if err := model.LoadStateDict(state); err != nil {
					return 0, nil, nil, errors.Wrap(err, "applying sgd update")
				}
				epochLoss += loss
				batches++
			}
			curve = append(curve, epochLoss/float64(batches))
		}

		score := evaluate(model, loaders)
		if math.IsNaN(score) || math.IsInf(score, 0) {
			return 0, nil, nil, errors.Errorf("training diverged, score=%v", score)
		}
		output := fabrik.Config{
			"loss_curve": curve,
			"epochs":     epochs,
			"lr":         lr,
			"seed":       seed,
		}
		return score, output, model.StateDict(), nil
	}
}

func evaluate(model fabrik.Model, loaders fabrik.DataLoaders) float64 {
	loader, ok := loaders["val"]
	if !ok {
		loader = loaders[fabrik.TrainSplit]
	}
	var loss float64
	var count int
	for _, batch := range loader.Batches() {
		for s, x := range batch.Input {
			y := model.Forward(x)
			for o, target := range batch.Target[s] {
				diff := y[o] - target
				loss += diff * diff
				count++
			}
		}
	}
	if count == 0 {
		return 0
	}
	return loss / float64(count)
}

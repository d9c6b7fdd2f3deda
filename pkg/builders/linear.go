package builders

import (
	"math"
	"math/rand"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/pkg/fabrik"
)

// Gradable is implemented by models that can compute parameter gradients for
// a batch under mean-squared-error loss. The built-in sgd trainer requires it.
type Gradable interface {
	fabrik.Model
	// Backward runs forward and backward passes over one batch and returns
	// the batch loss together with the loss gradients, keyed like StateDict.
	Backward(batch fabrik.Batch) (loss float64, grads fabrik.StateDict)
}

// mlp is a one-hidden-layer perceptron with tanh activation.
type mlp struct {
	in, hidden, out int
	w1              []float64 // hidden x in, row major
	b1              []float64
	w2              []float64 // out x hidden, row major
	b2              []float64
}

// BuildLinear builds the "linear" model: a single-hidden-layer network whose
// input and output widths are inferred from the train split of the provided
// dataloaders. Config keys: "hidden" (default 16).
func BuildLinear(cfg fabrik.Config, loaders fabrik.DataLoaders, seed int64) (fabrik.Model, error) {
	if err := loaders.Validate(); err != nil {
		return nil, err
	}
	batches := loaders[fabrik.TrainSplit].Batches()
	if len(batches) == 0 || len(batches[0].Input) == 0 {
		return nil, errors.New("train split is empty, cannot infer model shape")
	}
	in := len(batches[0].Input[0])
	out := len(batches[0].Target[0])
	hidden := cfgInt(cfg, "hidden", 16)
	if hidden < 1 {
		return nil, errors.Errorf("invalid hidden size %d", hidden)
	}

	m := &mlp{
		in:     in,
		hidden: hidden,
		out:    out,
		w1:     make([]float64, hidden*in),
		b1:     make([]float64, hidden),
		w2:     make([]float64, out*hidden),
		b2:     make([]float64, out),
	}
	rng := rand.New(rand.NewSource(seed)) // #nosec G404: init determinism, not crypto.
	scale1 := 1 / math.Sqrt(float64(in))
	for i := range m.w1 {
		m.w1[i] = rng.NormFloat64() * scale1
	}
	scale2 := 1 / math.Sqrt(float64(hidden))
	for i := range m.w2 {
		m.w2[i] = rng.NormFloat64() * scale2
	}
	return m, nil
}

func (m *mlp) Forward(input []float64) []float64 {
	h := m.hiddenActivations(input)
	y := make([]float64, m.out)
	for o := 0; o < m.out; o++ {
		sum := m.b2[o]
		for j := 0; j < m.hidden; j++ {
			sum += m.w2[o*m.hidden+j] * h[j]
		}
		y[o] = sum
	}
	return y
}

func (m *mlp) hiddenActivations(input []float64) []float64 {
	h := make([]float64, m.hidden)
	for j := 0; j < m.hidden; j++ {
		sum := m.b1[j]
		for i := 0; i < m.in; i++ {
			sum += m.w1[j*m.in+i] * input[i]
		}
		h[j] = math.Tanh(sum)
	}
	return h
}

// Backward computes mean-squared-error loss and its gradients over one batch.
func (m *mlp) Backward(batch fabrik.Batch) (float64, fabrik.StateDict) {
	grads := fabrik.StateDict{
		"w1": make([]float64, len(m.w1)),
		"b1": make([]float64, len(m.b1)),
		"w2": make([]float64, len(m.w2)),
		"b2": make([]float64, len(m.b2)),
	}
	n := len(batch.Input)
	if n == 0 {
		return 0, grads
	}

	var loss float64
	norm := 1 / float64(n*m.out)
	for s := 0; s < n; s++ {
		x := batch.Input[s]
		target := batch.Target[s]
		h := m.hiddenActivations(x)

		dy := make([]float64, m.out)
		for o := 0; o < m.out; o++ {
			sum := m.b2[o]
			for j := 0; j < m.hidden; j++ {
				sum += m.w2[o*m.hidden+j] * h[j]
			}
			diff := sum - target[o]
			loss += diff * diff * norm
			dy[o] = 2 * diff * norm
		}

		dh := make([]float64, m.hidden)
		for o := 0; o < m.out; o++ {
			for j := 0; j < m.hidden; j++ {
				grads["w2"][o*m.hidden+j] += dy[o] * h[j]
				dh[j] += m.w2[o*m.hidden+j] * dy[o]
			}
			grads["b2"][o] += dy[o]
		}
		for j := 0; j < m.hidden; j++ {
			dz := dh[j] * (1 - h[j]*h[j])
			for i := 0; i < m.in; i++ {
				grads["w1"][j*m.in+i] += dz * x[i]
			}
			grads["b1"][j] += dz
		}
	}
	return loss, grads
}

func (m *mlp) StateDict() fabrik.StateDict {
	out := fabrik.StateDict{}
	for name, src := range map[string][]float64{"w1": m.w1, "b1": m.b1, "w2": m.w2, "b2": m.b2} {
		cp := make([]float64, len(src))
		copy(cp, src)
		out[name] = cp
	}
	return out
}

func (m *mlp) LoadStateDict(state fabrik.StateDict) error {
	for name, dst := range map[string][]float64{"w1": m.w1, "b1": m.b1, "w2": m.w2, "b2": m.b2} {
		src, ok := state[name]
		if !ok {
			return errors.Errorf("state dict missing parameter %q", name)
		}
		if len(src) != len(dst) {
			return errors.Errorf("parameter %q has %d values, model expects %d",
				name, len(src), len(dst))
		}
		copy(dst, src)
	}
	return nil
}

package trained

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/pkg/model"
)

func testKey() RunKey {
	return RunKey{
		Model:   registry.EntryKey{FunctionName: "linear", ConfigHash: "aaaa"},
		Dataset: registry.EntryKey{FunctionName: "toy", ConfigHash: "bbbb"},
		Trainer: registry.EntryKey{FunctionName: "sgd", ConfigHash: "cccc"},
		Seed:    42,
	}
}

func TestRunKeyColumnsRoundTrip(t *testing.T) {
	key := testKey()
	require.Equal(t, key, keyFromColumns(key.columns()))
}

func TestRunKeyHashIsDeterministic(t *testing.T) {
	h1, err := testKey().Hash()
	require.NoError(t, err)
	h2, err := testKey().Hash()
	require.NoError(t, err)
	require.Equal(t, h1, h2)
}

func TestRunKeyHashDependsOnEveryComponent(t *testing.T) {
	base, err := testKey().Hash()
	require.NoError(t, err)

	mutations := []func(*RunKey){
		func(k *RunKey) { k.Model.ConfigHash = "zzzz" },
		func(k *RunKey) { k.Dataset.FunctionName = "other" },
		func(k *RunKey) { k.Trainer.ConfigHash = "zzzz" },
		func(k *RunKey) { k.Seed = 43 },
	}
	for _, mutate := range mutations {
		key := testKey()
		mutate(&key)
		h, err := key.Hash()
		require.NoError(t, err)
		require.NotEqual(t, base, h)
	}
}

func TestKeyFromColumns(t *testing.T) {
	cols := model.RunKeyColumns{
		ModelFn: "m", ModelHash: "mh",
		DatasetFn: "d", DatasetHash: "dh",
		TrainerFn: "t", TrainerHash: "th",
		Seed: 7,
	}
	key := keyFromColumns(cols)
	require.Equal(t, "m", key.Model.FunctionName)
	require.Equal(t, "dh", key.Dataset.ConfigHash)
	require.Equal(t, int64(7), key.Seed)
}

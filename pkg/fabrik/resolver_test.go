package fabrik

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSplitQualifiedName(t *testing.T) {
	tests := []struct {
		in, ns, sym string
	}{
		{"linear", "", "linear"},
		{"mylab/models.Conv", "mylab/models", "Conv"},
		{"a.b.C", "a.b", "C"},
	}
	for _, tc := range tests {
		ns, sym := SplitQualifiedName(tc.in)
		require.Equal(t, tc.ns, ns)
		require.Equal(t, tc.sym, sym)
	}
}

func TestResolveBareName(t *testing.T) {
	RegisterModel("resolver_test_model", func(cfg Config, loaders DataLoaders, seed int64) (Model, error) {
		return nil, nil
	})
	fn, err := ResolveModelFn("resolver_test_model")
	require.NoError(t, err)
	require.NotNil(t, fn)
}

func TestResolveUnknownBareName(t *testing.T) {
	_, err := ResolveModelFn("no_such_model")
	require.Error(t, err)
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)
	require.Equal(t, ModelDomain, resErr.Domain)
}

func TestResolveQualifiedName(t *testing.T) {
	RegisterNamespace("resolver_test/plugins", map[string]interface{}{
		"MakeToy": DatasetFn(func(cfg Config) (DataLoaders, error) { return nil, nil }),
		"NotAFn":  42,
	})

	fn, err := ResolveDatasetFn("resolver_test/plugins.MakeToy")
	require.NoError(t, err)
	require.NotNil(t, fn)

	_, err = ResolveDatasetFn("resolver_test/plugins.Missing")
	var resErr *ResolutionError
	require.ErrorAs(t, err, &resErr)

	_, err = ResolveDatasetFn("resolver_test/plugins.NotAFn")
	require.ErrorAs(t, err, &resErr)

	_, err = ResolveDatasetFn("unregistered/ns.Symbol")
	require.ErrorAs(t, err, &resErr)
}

func TestNamesSorted(t *testing.T) {
	RegisterDataset("resolver_test_ds_b", func(cfg Config) (DataLoaders, error) { return nil, nil })
	RegisterDataset("resolver_test_ds_a", func(cfg Config) (DataLoaders, error) { return nil, nil })

	names := Names(DatasetDomain)
	require.Contains(t, names, "resolver_test_ds_a")
	require.Contains(t, names, "resolver_test_ds_b")
	require.IsIncreasing(t, names)
}

func TestResolveWrongDomain(t *testing.T) {
	RegisterTrainer("resolver_test_trainer", func(cfg Config) Trainer { return nil })
	_, err := ResolveModelFn("resolver_test_trainer")
	require.Error(t, err)
}

func TestConfigCopyIsDeep(t *testing.T) {
	cfg := Config{"nested": map[string]interface{}{"a": 1}, "list": []interface{}{1, 2}}
	cp := cfg.Copy()
	cp["nested"].(map[string]interface{})["a"] = 99
	cp["list"].([]interface{})[0] = 99
	require.Equal(t, 1, cfg["nested"].(map[string]interface{})["a"])
	require.Equal(t, 1, cfg["list"].([]interface{})[0])
}

// Package builders ships the built-in model, dataset and trainer functions
// that the fabrik registries resolve by bare name. They are deliberately small
// pure-Go implementations: enough to exercise the full register/compute cycle
// and to serve as templates for real builders registered from user code.
package builders

import (
	"github.com/sinzlab/fabrik/pkg/fabrik"
)

func init() {
	fabrik.RegisterModel("linear", BuildLinear)
	fabrik.RegisterDataset("toy", BuildToy)
	fabrik.RegisterTrainer("sgd", BuildSGD)
}

// cfgInt reads an integer config value, tolerating the numeric types a JSONB
// round trip produces.
func cfgInt(cfg fabrik.Config, key string, def int) int {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	}
	return def
}

func cfgFloat(cfg fabrik.Config, key string, def float64) float64 {
	v, ok := cfg[key]
	if !ok {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	}
	return def
}

// Package fabrik defines the public contracts of the fabrik framework: the
// configuration value type, the builder function signatures for models,
// datasets and trainers, and the registry through which builder functions are
// resolved by name.
package fabrik

// Config is an arbitrarily nested configuration object. It is the unit that
// gets content-hashed and persisted as JSONB, so every value stored in it must
// be JSON-serializable (nil, bool, number, string, slice, map).
type Config map[string]interface{}

// Copy returns a deep copy of the config. Builders that inject runtime values
// (e.g. a seed override) work on a copy so the stored configuration is never
// mutated.
func (c Config) Copy() Config {
	if c == nil {
		return nil
	}
	out := make(Config, len(c))
	for k, v := range c {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v interface{}) interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make(map[string]interface{}, len(t))
		for k, e := range t {
			out[k] = copyValue(e)
		}
		return out
	case Config:
		return map[string]interface{}(t.Copy())
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}

// Package confighash turns a configuration object into a stable content
// address. Two configs that are structurally equal after numeric
// normalization always hash identically, independent of map insertion order
// or of which numeric representation the values arrived in.
package confighash

import (
	"crypto/md5" // #nosec G501: content address, not a security boundary.
	"encoding/hex"
	"encoding/json"
	"math"
	"reflect"

	"github.com/pkg/errors"

	"github.com/sinzlab/fabrik/pkg/fabrik"
)

// Hash returns the hex digest of the canonical JSON serialization of the
// normalized config. encoding/json emits object keys in sorted order, which
// makes the serialization canonical for mapping types.
func Hash(cfg fabrik.Config) (string, error) {
	normalized := Normalize(map[string]interface{}(cfg))
	bs, err := json.Marshal(normalized)
	if err != nil {
		return "", errors.Wrap(err, "serializing config for hashing")
	}
	sum := md5.Sum(bs) // #nosec G401
	return hex.EncodeToString(sum[:]), nil
}

// Normalize recursively converts numeric values to their native canonical
// form: every integer-valued number becomes int64, every other number becomes
// float64. This is what makes a config built from a numeric library's scalar
// wrappers (which surface here as json.Number or wide float types) hash the
// same as the equivalent config built from plain Go numbers.
func Normalize(v interface{}) interface{} {
	switch t := v.(type) {
	case nil, bool, string:
		return t
	case json.Number:
		if i, err := t.Int64(); err == nil {
			return i
		}
		if f, err := t.Float64(); err == nil {
			return normalizeFloat(f)
		}
		return t.String()
	case int:
		return int64(t)
	case int8:
		return int64(t)
	case int16:
		return int64(t)
	case int32:
		return int64(t)
	case int64:
		return t
	case uint:
		return int64(t)
	case uint8:
		return int64(t)
	case uint16:
		return int64(t)
	case uint32:
		return int64(t)
	case uint64:
		if t <= math.MaxInt64 {
			return int64(t)
		}
		return float64(t)
	case float32:
		return normalizeFloat(float64(t))
	case float64:
		return normalizeFloat(t)
	case fabrik.Config:
		return normalizeMap(map[string]interface{}(t))
	case map[string]interface{}:
		return normalizeMap(t)
	case []interface{}:
		out := make([]interface{}, len(t))
		for i, e := range t {
			out[i] = Normalize(e)
		}
		return out
	}
	return normalizeReflect(v)
}

func normalizeFloat(f float64) interface{} {
	if f == math.Trunc(f) && !math.IsInf(f, 0) && math.Abs(f) < math.MaxInt64 {
		return int64(f)
	}
	return f
}

func normalizeMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, e := range m {
		out[k] = Normalize(e)
	}
	return out
}

// normalizeReflect handles the long tail of typed slices and maps ([]int,
// []string, map[string]float64, ...) that never come out of a JSON decode but
// do show up in configs assembled in Go code.
func normalizeReflect(v interface{}) interface{} {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		out := make([]interface{}, rv.Len())
		for i := 0; i < rv.Len(); i++ {
			out[i] = Normalize(rv.Index(i).Interface())
		}
		return out
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			out := make(map[string]interface{}, rv.Len())
			iter := rv.MapRange()
			for iter.Next() {
				out[iter.Key().String()] = Normalize(iter.Value().Interface())
			}
			return out
		}
	case reflect.Ptr, reflect.Interface:
		if !rv.IsNil() {
			return Normalize(rv.Elem().Interface())
		}
		return nil
	}
	return v
}

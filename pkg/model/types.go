// Package model holds the row types persisted by fabrik: the per-domain
// configuration entries, seeds, contributors, and the computed trained-model
// rows with their storage and provenance parts.
package model

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// JSONObj is an arbitrary JSON object stored in a jsonb column.
type JSONObj map[string]interface{}

// Value marshals to []byte for the driver.
func (j JSONObj) Value() (driver.Value, error) {
	bs, err := json.Marshal(j)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling JSONObj")
	}
	return bs, nil
}

// Scan unmarshals a jsonb column back into the map.
func (j *JSONObj) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}
	var bs []byte
	switch t := src.(type) {
	case []byte:
		bs = t
	case string:
		bs = []byte(t)
	default:
		return errors.Errorf("unable to scan %T into JSONObj", src)
	}
	obj := make(map[string]interface{})
	if err := json.Unmarshal(bs, &obj); err != nil {
		return errors.Wrapf(err, "unmarshaling JSONObj %q", bs)
	}
	*j = obj
	return nil
}

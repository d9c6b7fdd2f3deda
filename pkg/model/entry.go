package model

import (
	"time"

	"github.com/uptrace/bun"
)

// ConfigEntry is the column set shared by the three configuration tables. The
// primary key (function_name, config_hash) is the content address of one
// (builder function, configuration) pair; equal configs collide on it by
// construction, which is what makes insertion deduplicating.
type ConfigEntry struct {
	FunctionName string    `bun:"function_name,pk" json:"function_name"`
	ConfigHash   string    `bun:"config_hash,pk" json:"config_hash"`
	Config       JSONObj   `bun:"config,type:jsonb" json:"config"`
	Author       string    `bun:"author" json:"author"`
	Comment      string    `bun:"comment" json:"comment"`
	CreatedAt    time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// Row is implemented by the table-specific entry types so registry code can
// work on any of them.
type Row interface {
	Entry() *ConfigEntry
}

// ModelEntry is a row of the "models" table.
type ModelEntry struct {
	bun.BaseModel `bun:"table:models"`
	ConfigEntry
}

// Entry implements Row.
func (e *ModelEntry) Entry() *ConfigEntry { return &e.ConfigEntry }

// DatasetEntry is a row of the "datasets" table.
type DatasetEntry struct {
	bun.BaseModel `bun:"table:datasets"`
	ConfigEntry
}

// Entry implements Row.
func (e *DatasetEntry) Entry() *ConfigEntry { return &e.ConfigEntry }

// TrainerEntry is a row of the "trainers" table.
type TrainerEntry struct {
	bun.BaseModel `bun:"table:trainers"`
	ConfigEntry
}

// Entry implements Row.
func (e *TrainerEntry) Entry() *ConfigEntry { return &e.ConfigEntry }

// Seed is a row of the "seeds" table. Seeds are a join dimension of their
// own so that the same three configs can be trained under several seeds.
type Seed struct {
	bun.BaseModel `bun:"table:seeds"`

	Seed int64 `bun:"seed,pk" json:"seed"`
}

// Contributor is a row of the "contributors" table, mapping an external
// identity (login name) to a display name used for attribution.
type Contributor struct {
	bun.BaseModel `bun:"table:contributors"`

	Username    string `bun:"username,pk" json:"username"`
	DisplayName string `bun:"display_name" json:"display_name"`
	Affiliation string `bun:"affiliation" json:"affiliation"`
	Email       string `bun:"email" json:"email"`
}

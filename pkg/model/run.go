package model

import (
	"time"

	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"
)

// RunKeyColumns is the composite key joining one model, dataset and trainer
// entry with one seed. It is the primary key of trained_models and of its two
// part tables.
type RunKeyColumns struct {
	ModelFn     string `bun:"model_fn,pk" json:"model_fn"`
	ModelHash   string `bun:"model_hash,pk" json:"model_hash"`
	DatasetFn   string `bun:"dataset_fn,pk" json:"dataset_fn"`
	DatasetHash string `bun:"dataset_hash,pk" json:"dataset_hash"`
	TrainerFn   string `bun:"trainer_fn,pk" json:"trainer_fn"`
	TrainerHash string `bun:"trainer_hash,pk" json:"trainer_hash"`
	Seed        int64  `bun:"seed,pk" json:"seed"`
}

// TrainedModel is a row of the "trained_models" table: the result of one
// computed run. Rows are immutable once inserted.
type TrainedModel struct {
	bun.BaseModel `bun:"table:trained_models"`
	RunKeyColumns

	Score     float64     `bun:"score" json:"score"`
	Output    JSONObj     `bun:"output,type:jsonb" json:"output"`
	Author    null.String `bun:"author" json:"author"`
	CreatedAt time.Time   `bun:"created_at,nullzero,notnull,default:current_timestamp" json:"created_at"`
}

// ModelStorage is the 1:1 part of TrainedModel referencing the durable blob
// with the trained parameter state.
type ModelStorage struct {
	bun.BaseModel `bun:"table:model_storage"`
	RunKeyColumns

	ModelState string `bun:"model_state" json:"model_state"`
}

// GitLog is the optional 1:1 part of TrainedModel recording the commit state
// of the configured source repositories at compute time.
type GitLog struct {
	bun.BaseModel `bun:"table:git_log"`
	RunKeyColumns

	Info JSONObj `bun:"info,type:jsonb" json:"info"`
}

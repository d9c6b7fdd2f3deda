package trained

import (
	"context"
	"encoding/gob"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"gopkg.in/guregu/null.v3"

	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/internal/provenance"
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

// Compute runs training for one composite key and commits the result. The
// sequence is: provenance gate, resolve and build all parts, train, stage the
// state blob, then insert the run row, the storage part and the provenance
// part in one transaction. Any failure before the transaction leaves no
// trace; losing an insert race to another process surfaces as
// ErrAlreadyComputed.
func (o *Orchestrator) Compute(ctx context.Context, key RunKey) (*model.TrainedModel, error) {
	if _, err := o.Get(ctx, key); err == nil {
		return nil, errors.WithStack(ErrAlreadyComputed)
	} else if !errors.Is(err, db.ErrNotFound) {
		return nil, err
	}

	var commits map[string]provenance.CommitInfo
	if len(o.repos) > 0 {
		var err error
		if commits, err = provenance.Check(ctx, o.repos); err != nil {
			return nil, err
		}
	}

	loaders, mdl, trainer, err := o.buildParts(ctx, key)
	if err != nil {
		return nil, err
	}

	logger := log.WithFields(log.Fields{
		"model":   key.Model.FunctionName,
		"dataset": key.Dataset.FunctionName,
		"trainer": key.Trainer.FunctionName,
		"seed":    key.Seed,
	})
	logger.Info("training started")
	score, output, state, err := trainer(mdl, key.Seed, loaders)
	if err != nil {
		return nil, errors.Wrap(err, "training failed")
	}
	logger.Infof("training finished, score=%v", score)

	ref, err := o.stageAndStoreState(ctx, key, state)
	if err != nil {
		return nil, err
	}

	author, err := o.identity.CurrentUser(ctx)
	if err != nil {
		return nil, err
	}

	run := &model.TrainedModel{
		RunKeyColumns: key.columns(),
		Score:         score,
		Output:        model.JSONObj(output),
		Author:        null.NewString(author, author != ""),
	}
	err = db.RunInTx(ctx, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(run).Exec(ctx); err != nil {
			return err
		}
		part := &model.ModelStorage{RunKeyColumns: key.columns(), ModelState: ref}
		if _, err := tx.NewInsert().Model(part).Exec(ctx); err != nil {
			return err
		}
		if len(commits) > 0 {
			info := make(model.JSONObj, len(commits))
			for name, ci := range commits {
				info[name] = map[string]interface{}{
					"commit":       ci.Commit,
					"branch":       ci.Branch,
					"committed_at": ci.CommittedAt,
				}
			}
			gitLog := &model.GitLog{RunKeyColumns: key.columns(), Info: info}
			if _, err := tx.NewInsert().Model(gitLog).Exec(ctx); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		if db.MatchesUniqueViolation(err) {
			// Another process committed this key first; the work is done.
			return nil, errors.WithStack(ErrAlreadyComputed)
		}
		return nil, errors.Wrap(err, "committing trained model")
	}
	return run, nil
}

// stageAndStoreState serializes the state dict into a scoped temporary
// directory and hands the file to blob storage. The staging directory is
// removed on every exit path.
func (o *Orchestrator) stageAndStoreState(
	ctx context.Context, key RunKey, state fabrik.StateDict,
) (string, error) {
	keyHash, err := key.Hash()
	if err != nil {
		return "", err
	}

	dir, err := os.MkdirTemp("", "fabrik-trained-*")
	if err != nil {
		return "", errors.Wrap(err, "creating staging directory")
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.WithError(err).Warnf("failed to remove staging directory %s", dir)
		}
	}()

	filename := keyHash + ".state.gob"
	staged := filepath.Join(dir, filename)
	f, err := os.Create(staged) // #nosec G304: path is under our own temp dir.
	if err != nil {
		return "", errors.Wrap(err, "creating staged state file")
	}
	err = gob.NewEncoder(f).Encode(state)
	if cErr := f.Close(); cErr != nil && err == nil {
		err = cErr
	}
	if err != nil {
		return "", errors.Wrap(err, "serializing model state")
	}

	blob, err := os.Open(staged) // #nosec G304
	if err != nil {
		return "", errors.Wrap(err, "reopening staged state file")
	}
	defer blob.Close()
	ref, err := o.store.Put(ctx, blob, filename)
	if err != nil {
		return "", errors.Wrap(err, "storing model state")
	}
	return ref, nil
}

package main

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/internal/trained"
	"github.com/sinzlab/fabrik/pkg/fabrik"
)

func computeCmd() *cobra.Command {
	var modelHash, datasetHash, trainerHash string
	cmd := &cobra.Command{
		Use:   "compute MODEL_FN DATASET_FN TRAINER_FN SEED",
		Short: "train one composite key and persist the result",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := strconv.ParseInt(args[3], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parsing seed %q", args[3])
			}
			e, err := setupEnv(cmd.Context())
			if err != nil {
				return err
			}

			key := trained.RunKey{
				Model:   registry.EntryKey{FunctionName: args[0], ConfigHash: modelHash},
				Dataset: registry.EntryKey{FunctionName: args[1], ConfigHash: datasetHash},
				Trainer: registry.EntryKey{FunctionName: args[2], ConfigHash: trainerHash},
				Seed:    seed,
			}
			run, err := e.orchestrator.Compute(cmd.Context(), key)
			if errors.Is(err, trained.ErrAlreadyComputed) {
				log.Info("run is already computed, nothing to do")
				return nil
			} else if err != nil {
				return err
			}
			log.Infof("run committed with score %v", run.Score)
			return nil
		},
	}
	cmd.Flags().StringVar(&modelHash, "model-hash", "", "config hash of the model entry")
	cmd.Flags().StringVar(&datasetHash, "dataset-hash", "", "config hash of the dataset entry")
	cmd.Flags().StringVar(&trainerHash, "trainer-hash", "", "config hash of the trainer entry")
	for _, flag := range []string{"model-hash", "dataset-hash", "trainer-hash"} {
		_ = cmd.MarkFlagRequired(flag)
	}
	return cmd
}

func populateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "populate",
		Short: "compute every pending composite key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd.Context())
			if err != nil {
				return err
			}
			computed, err := e.orchestrator.Populate(cmd.Context())
			log.Infof("computed %d runs", computed)
			return err
		},
	}
}

func showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "inspect pending keys and committed runs",
	}
	cmd.AddCommand(
		&cobra.Command{
			Use:   "functions",
			Short: "list the registered built-in functions per domain",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				for _, domain := range []fabrik.Domain{
					fabrik.ModelDomain, fabrik.DatasetDomain, fabrik.TrainerDomain,
				} {
					for _, name := range fabrik.Names(domain) {
						fmt.Printf("%s\t%s\n", domain, name)
					}
				}
				return nil
			},
		},
		&cobra.Command{
			Use:   "pending",
			Short: "list composite keys without a committed run",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := setupEnv(cmd.Context())
				if err != nil {
					return err
				}
				keys, err := e.orchestrator.Pending(cmd.Context())
				if err != nil {
					return err
				}
				for _, key := range keys {
					fmt.Printf("%s/%s  %s/%s  %s/%s  seed=%d\n",
						key.Model.FunctionName, key.Model.ConfigHash,
						key.Dataset.FunctionName, key.Dataset.ConfigHash,
						key.Trainer.FunctionName, key.Trainer.ConfigHash,
						key.Seed)
				}
				log.Infof("%d pending keys", len(keys))
				return nil
			},
		},
		&cobra.Command{
			Use:   "runs",
			Short: "list committed runs",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				e, err := setupEnv(cmd.Context())
				if err != nil {
					return err
				}
				runs, err := e.orchestrator.List(cmd.Context())
				if err != nil {
					return err
				}
				for _, run := range runs {
					fmt.Printf("%s  %s  %s  seed=%d  score=%v  author=%s  %s\n",
						run.ModelFn, run.DatasetFn, run.TrainerFn, run.Seed,
						run.Score, run.Author.ValueOrZero(),
						run.CreatedAt.Format("2006-01-02 15:04:05"))
				}
				return nil
			},
		},
	)
	return cmd
}

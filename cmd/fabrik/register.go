package main

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/pkg/fabrik"
	"github.com/sinzlab/fabrik/pkg/model"
)

func registerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "register",
		Short: "register a model, dataset or trainer configuration entry",
	}
	cmd.AddCommand(
		registerDomainCmd("model", "register a model function with its config",
			func(e *env) *registry.Registry { return &e.models.Registry }),
		registerDomainCmd("dataset", "register a dataset function with its config",
			func(e *env) *registry.Registry { return &e.datasets.Registry }),
		registerDomainCmd("trainer", "register a trainer function with its config",
			func(e *env) *registry.Registry { return &e.trainers.Registry }),
	)
	return cmd
}

func registerDomainCmd(
	domain, short string, pick func(*env) *registry.Registry,
) *cobra.Command {
	var configJSON, author, comment string
	cmd := &cobra.Command{
		Use:   domain + " FUNCTION_NAME",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			e, err := setupEnv(ctx)
			if err != nil {
				return err
			}

			var cfg fabrik.Config
			if err := json.Unmarshal([]byte(configJSON), &cfg); err != nil {
				return errors.Wrapf(err, "parsing --config %q", configJSON)
			}

			key, err := pick(e).AddEntry(ctx, args[0], cfg,
				registry.AddOptions{Author: author, Comment: comment})
			if err != nil {
				return err
			}
			if key == nil {
				log.Warnf("%s entry was rejected, nothing registered", domain)
				return nil
			}
			log.Infof("registered %s entry %s/%s", domain, key.FunctionName, key.ConfigHash)
			return nil
		},
	}
	cmd.Flags().StringVar(&configJSON, "config", "{}", "configuration object as JSON")
	cmd.Flags().StringVar(&author, "author", "", "override the attributed author")
	cmd.Flags().StringVar(&comment, "comment", "", "short description of the entry")
	return cmd
}

func addSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-seed SEED",
		Short: "register a random seed as a join dimension",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errors.Wrapf(err, "parsing seed %q", args[0])
			}
			e, err := setupEnv(cmd.Context())
			if err != nil {
				return err
			}
			if err := e.seeds.Add(cmd.Context(), seed); err != nil {
				return err
			}
			log.Infof("registered seed %d", seed)
			return nil
		},
	}
}

func addContributorCmd() *cobra.Command {
	var displayName, affiliation, email string
	cmd := &cobra.Command{
		Use:   "add-contributor USERNAME",
		Short: "register a contributor for entry attribution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := setupEnv(cmd.Context())
			if err != nil {
				return err
			}
			return e.identity.Add(cmd.Context(), &model.Contributor{
				Username:    args[0],
				DisplayName: displayName,
				Affiliation: affiliation,
				Email:       email,
			})
		},
	}
	cmd.Flags().StringVar(&displayName, "name", "", "display name used for attribution")
	cmd.Flags().StringVar(&affiliation, "affiliation", "", "contributor affiliation")
	cmd.Flags().StringVar(&email, "email", "", "contact e-mail")
	return cmd
}

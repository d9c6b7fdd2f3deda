package main

import (
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/ghodss/yaml"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sinzlab/fabrik/internal/config"
	"github.com/sinzlab/fabrik/internal/db"
	"github.com/sinzlab/fabrik/internal/registry"
	"github.com/sinzlab/fabrik/internal/storage"
	"github.com/sinzlab/fabrik/internal/trained"
	_ "github.com/sinzlab/fabrik/pkg/builders" // Register built-in functions.
)

const defaultConfigPath = "/etc/fabrik/fabrik.yaml"

var v *viper.Viper

var rootCmd = &cobra.Command{
	Use:   "fabrik",
	Short: "reproducibly build, train and archive models against a shared experiment database",
}

func init() {
	v = viper.New()
	v.SetEnvPrefix("fabrik")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	rootCmd.PersistentFlags().String("config-file", "", "path to the fabrik config file")
	_ = v.BindPFlag("config_file", rootCmd.PersistentFlags().Lookup("config-file"))

	rootCmd.AddCommand(registerCmd())
	rootCmd.AddCommand(addSeedCmd())
	rootCmd.AddCommand(addContributorCmd())
	rootCmd.AddCommand(computeCmd())
	rootCmd.AddCommand(populateCmd())
	rootCmd.AddCommand(showCmd())
}

// initializeConfig returns the validated configuration populated from the
// config file, environment variables and command line flags.
func initializeConfig() (*config.Config, error) {
	initial, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}

	bs, err := readConfigFile(initial.ConfigFile)
	if err != nil {
		return nil, err
	}
	if len(bs) > 0 {
		var configMap map[string]interface{}
		if err := yaml.Unmarshal(bs, &configMap); err != nil {
			return nil, errors.Wrap(err, "unmarshaling yaml configuration file")
		}
		if err := v.MergeConfigMap(configMap); err != nil {
			return nil, errors.Wrap(err, "merging configuration into viper")
		}
	}

	cfg, err := getConfig(v.AllSettings())
	if err != nil {
		return nil, err
	}
	if err := cfg.Resolve(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func readConfigFile(configPath string) ([]byte, error) {
	isDefault := configPath == ""
	if isDefault {
		configPath = defaultConfigPath
	}
	if _, err := os.Stat(configPath); err != nil {
		if isDefault && os.IsNotExist(err) {
			log.Debugf("no configuration file at %s, skipping", configPath)
			return nil, nil
		}
		return nil, errors.Wrap(err, "finding configuration file")
	}
	bs, err := os.ReadFile(configPath) // #nosec G304
	if err != nil {
		return nil, errors.Wrap(err, "reading configuration file")
	}
	return bs, nil
}

func getConfig(configMap map[string]interface{}) (*config.Config, error) {
	cfg := config.DefaultConfig()
	bs, err := json.Marshal(configMap)
	if err != nil {
		return nil, errors.Wrap(err, "marshaling configuration map")
	}
	if err := yaml.Unmarshal(bs, cfg); err != nil {
		return nil, errors.Wrap(err, "unmarshaling configuration")
	}
	return cfg, nil
}

// env bundles everything a subcommand needs once the database is up.
type env struct {
	cfg          *config.Config
	models       *registry.ModelRegistry
	datasets     *registry.DatasetRegistry
	trainers     *registry.TrainerRegistry
	seeds        *registry.SeedRegistry
	identity     *registry.IdentityRegistry
	orchestrator *trained.Orchestrator
}

func setupEnv(ctx context.Context) (*env, error) {
	cfg, err := initializeConfig()
	if err != nil {
		return nil, err
	}
	printable, err := cfg.Printable()
	if err != nil {
		return nil, err
	}
	log.Debugf("fabrik configuration: %s", printable)

	if _, err := db.Connect(cfg.DB); err != nil {
		return nil, err
	}
	if err := db.CreateSchema(ctx); err != nil {
		return nil, err
	}

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, err
	}

	var current registry.Identity
	if cfg.Identity.Username != "" {
		current = registry.StaticIdentity(cfg.Identity.Username)
	}
	identity := registry.NewIdentities(current)
	models := registry.NewModels(identity)
	datasets := registry.NewDatasets(identity)
	trainers := registry.NewTrainers(identity)
	seeds := registry.NewSeeds()

	return &env{
		cfg:          cfg,
		models:       models,
		datasets:     datasets,
		trainers:     trainers,
		seeds:        seeds,
		identity:     identity,
		orchestrator: trained.New(models, datasets, trainers, seeds, identity, store, cfg.Repos),
	}, nil
}

// Package db owns the Postgres connection shared by the fabrik registries and
// the trained-model orchestrator, and the schema they persist into.
package db

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v4/stdlib" // Import the Postgres driver.
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/extra/bundebug"
)

const (
	cnxTpl = "postgres://%s:%s@%s:%s/%s?application_name=fabrik"
	sslTpl = "&sslmode=%s&sslrootcert=%s"

	maxOpenConns = 16
)

var (
	theOneBun   *bun.DB
	theOneBunMu sync.Mutex
)

func initTheOneBun(sqlDB *sql.DB) *bun.DB {
	theOneBunMu.Lock()
	defer theOneBunMu.Unlock()
	if theOneBun != nil {
		log.Warn("detected re-initialization of the database singleton")
	}
	theOneBun = bun.NewDB(sqlDB, pgdialect.New())
	if os.Getenv("FABRIK_DEBUG_SQL") != "" {
		theOneBun.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true)))
	}
	return theOneBun
}

// Bun returns the singleton database handle. Connect must have been called
// first.
func Bun() *bun.DB {
	theOneBunMu.Lock()
	defer theOneBunMu.Unlock()
	if theOneBun == nil {
		panic("database is not connected, call db.Connect first")
	}
	return theOneBun
}

// Connect connects to the configured Postgres database, retrying while it
// comes up, and initializes the package singleton.
func Connect(cfg *Config) (*bun.DB, error) {
	dbURL := fmt.Sprintf(cnxTpl, cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
	dbURL += fmt.Sprintf(sslTpl, cfg.SSLMode, cfg.SSLRootCert)
	return ConnectURL(dbURL)
}

// ConnectURL connects to the Postgres database at the given URL.
func ConnectURL(dbURL string) (*bun.DB, error) {
	numTries := 0
	for {
		sqlDB, err := sql.Open("pgx", dbURL)
		if err == nil {
			err = sqlDB.Ping()
		}
		if err == nil {
			sqlDB.SetMaxOpenConns(maxOpenConns)
			return initTheOneBun(sqlDB), nil
		}

		numTries++
		if numTries >= 15 {
			return nil, errors.Wrapf(err, "could not connect to database after %v tries", numTries)
		}
		toWait := 4 * time.Second
		log.WithError(err).Warnf("failed to connect to postgres, trying again in %s", toWait)
		time.Sleep(toWait)
	}
}

// Close closes the singleton connection.
func Close() error {
	theOneBunMu.Lock()
	defer theOneBunMu.Unlock()
	if theOneBun == nil {
		return nil
	}
	err := theOneBun.Close()
	theOneBun = nil
	return err
}

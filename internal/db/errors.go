package db

import (
	"github.com/jackc/pgconn"
	"github.com/jackc/pgerrcode"
	"github.com/pkg/errors"
)

// ErrNotFound is returned if nothing is found.
var ErrNotFound = errors.New("not found")

// MatchesUniqueViolation reports whether err is a Postgres unique-constraint
// violation. The primary-key constraint is the only concurrency control for
// computed runs: the loser of a race to insert the same key sees this error
// and treats the work as already done.
func MatchesUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

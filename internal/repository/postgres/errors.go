package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// SQLSTATE codes the repositories translate into domain errors
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError reports a unique constraint violation
func IsPgDuplicateError(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsPgForeignKeyError reports a foreign key violation, e.g. a parent folder
// removed by a concurrent reset
func IsPgForeignKeyError(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// IsPgNoRowsError reports an empty single-row result
func IsPgNoRowsError(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// Package repository implements Postgres persistence for the appraisal
// aggregate and the background job queue.
//
// The aggregate is the unit of consistency: Store and Update write the
// appraisal row and its photo/deduction/checklist sub-collections atomically
// inside one transaction, and concurrent writers are serialized by an
// optimistic lock on the aggregate row.
package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX is the subset of database/sql used by Queries, satisfied by both
// *sql.DB and *sql.Tx.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries bundles all persistence operations over one DBTX.
type Queries struct {
	db DBTX
}

// New creates a Queries bound to the given connection or transaction.
func New(db DBTX) *Queries {
	return &Queries{db: db}
}

// WithTx returns a Queries bound to the given transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx}
}

// Sentinel errors surfaced to the service layer.
var (
	// ErrVersionConflict means another writer updated the aggregate since
	// it was loaded; the caller should reload and retry.
	ErrVersionConflict = errors.New("appraisal was modified concurrently")

	// ErrActivePlateExists means the one-active-appraisal-per-plate index
	// rejected an insert or update.
	ErrActivePlateExists = errors.New("an active appraisal already exists for this plate")
)

// pg unique_violation
const uniqueViolationCode = "23505"

// isUniqueViolation reports whether err is a Postgres unique-constraint
// violation on the given index.
func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == uniqueViolationCode && pgErr.ConstraintName == constraint
}

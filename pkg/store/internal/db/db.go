package db

import (
	"context"
	"database/sql"
)

// DBTX is the minimal surface Queries needs, satisfied by both *sql.DB and
// *sql.Tx, matching the teacher's sqlstore/impl/system dbWithTx seam.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...interface{}) *sql.Row
}

// Queries wraps a DBTX with the store's hand-written query methods.
type Queries struct {
	db      DBTX
	dialect Dialect
}

// New builds a Queries bound to db, detecting the dialect from driverName.
func New(db DBTX, driverName string) *Queries {
	return &Queries{db: db, dialect: DialectFor(driverName)}
}

// WithTx returns a Queries bound to tx instead of the original DBTX,
// preserving the same dialect — the idiom the store uses to scope a batch
// of mutations to one transaction.
func (q *Queries) WithTx(tx *sql.Tx) *Queries {
	return &Queries{db: tx, dialect: q.dialect}
}

// exec, queryRow and query rebind a `?`-placeholder query for the bound
// dialect before delegating to the underlying DBTX. Every hand-written
// query in this package is written with `?` placeholders and goes through
// one of these three instead of calling q.db directly, so Postgres's
// numbered placeholders stay a property of the dialect, not of each query.
func (q *Queries) exec(ctx context.Context, query string, args ...interface{}) (sql.Result, error) {
	return q.db.ExecContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) queryRow(ctx context.Context, query string, args ...interface{}) *sql.Row {
	return q.db.QueryRowContext(ctx, q.dialect.Rebind(query), args...)
}

func (q *Queries) query(ctx context.Context, query string, args ...interface{}) (*sql.Rows, error) {
	return q.db.QueryContext(ctx, q.dialect.Rebind(query), args...)
}

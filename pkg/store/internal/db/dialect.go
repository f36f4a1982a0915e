package db

import (
	"strconv"
	"strings"
)

// Dialect isolates the handful of SQL fragments that genuinely differ by
// database engine: how a newly inserted row's id comes back, whether score
// recomputation can be pushed into the UPDATE itself, and how a query
// written with `?` placeholders reaches the driver. Per the design note to
// prefer application-side computation uniformly, only Postgres and MySQL
// get a raw-SQL score expression; every other engine (including SQLite, the
// default store) computes the score in Go.
type Dialect interface {
	Name() string
	// ReturningClause is appended to an INSERT to retrieve the new row's id
	// in one round trip. Empty when the driver instead reports it through
	// sql.Result.LastInsertId.
	ReturningClause() string
	// ScoreExpr returns a raw SQL expression computing an existing group's
	// new score from its current row, and whether the caller should use it
	// (false means: compute application-side instead).
	ScoreExpr() (expr string, ok bool)
	// Rebind rewrites a query written with `?` positional placeholders into
	// whatever form the underlying driver accepts. SQLite and MySQL accept
	// `?` natively; Postgres requires `$1, $2, ...`.
	Rebind(query string) string
}

// DialectFor resolves the Dialect for a database/sql driver name.
func DialectFor(driverName string) Dialect {
	switch driverName {
	case "postgres", "pgx":
		return postgresDialect{}
	case "mysql":
		return mysqlDialect{}
	default:
		return defaultDialect{}
	}
}

type postgresDialect struct{}

func (postgresDialect) Name() string             { return "postgres" }
func (postgresDialect) ReturningClause() string   { return " RETURNING id" }
func (postgresDialect) ScoreExpr() (string, bool) {
	return "floor(ln(count) * 600 + extract(epoch from last_seen))", true
}

// Rebind rewrites each `?` into `$1`, `$2`, ... in order, the numbered form
// lib/pq and pgx require. database/sql never does this translation itself.
func (postgresDialect) Rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

type mysqlDialect struct{}

func (mysqlDialect) Name() string           { return "mysql" }
func (mysqlDialect) ReturningClause() string { return "" }
func (mysqlDialect) ScoreExpr() (string, bool) {
	return "floor(ln(count) * 600 + unix_timestamp(last_seen))", true
}
func (mysqlDialect) Rebind(query string) string { return query }

type defaultDialect struct{}

func (defaultDialect) Name() string             { return "default" }
func (defaultDialect) ReturningClause() string   { return "" }
func (defaultDialect) ScoreExpr() (string, bool) { return "", false }
func (defaultDialect) Rebind(query string) string { return query }

package db

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPostgresDialectRebindsPlaceholders(t *testing.T) {
	d := DialectFor("pgx")
	got := d.Rebind(`SELECT id, name FROM event_type WHERE name = ? AND value = ?`)
	require.Equal(t, `SELECT id, name FROM event_type WHERE name = $1 AND value = $2`, got)
}

func TestPostgresDialectRebindNoPlaceholders(t *testing.T) {
	d := DialectFor("postgres")
	got := d.Rebind(`SELECT 1`)
	require.Equal(t, `SELECT 1`, got)
}

func TestSqliteAndMysqlDialectsPassThroughPlaceholders(t *testing.T) {
	query := `UPDATE event_groups SET count = ? WHERE id = ?`
	require.Equal(t, query, DialectFor("sqlite3").Rebind(query))
	require.Equal(t, query, DialectFor("mysql").Rebind(query))
	require.Equal(t, query, DialectFor("").Rebind(query))
}

func TestDialectForResolvesByDriverName(t *testing.T) {
	require.Equal(t, "postgres", DialectFor("postgres").Name())
	require.Equal(t, "postgres", DialectFor("pgx").Name())
	require.Equal(t, "mysql", DialectFor("mysql").Name())
	require.Equal(t, "default", DialectFor("sqlite3").Name())
}

func TestDialectScoreExprIsFlooredSQL(t *testing.T) {
	pgExpr, ok := DialectFor("postgres").ScoreExpr()
	require.True(t, ok)
	require.Contains(t, pgExpr, "floor(")

	myExpr, ok := DialectFor("mysql").ScoreExpr()
	require.True(t, ok)
	require.Contains(t, myExpr, "floor(")

	_, ok = DialectFor("sqlite3").ScoreExpr()
	require.False(t, ok)
}

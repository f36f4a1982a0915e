// Package store implements the aggregation engine: it decodes envelopes,
// upserts the tag and event-type dictionaries, folds occurrences into
// Groups by fingerprint, and persists Events, batching mutations into one
// transaction per flush cycle.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/XSAM/otelsql"
	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres" //nolint:revive // migration driver
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"  //nolint:revive // migration driver
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/jackc/pgx/v4/stdlib" //nolint:revive // registers the "pgx" database/sql driver
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bbangert/zilch/pkg/envelope"
	"github.com/bbangert/zilch/pkg/store/internal/db"
	"github.com/bbangert/zilch/pkg/store/migrations"
)

// sqlDriverFor maps the engine name accepted by Open (the scheme a caller
// passes on the CLI: "sqlite3" or "postgres") to the database/sql driver
// actually registered for it. Postgres uses pgx's stdlib adapter rather
// than registering under the name "postgres" directly, so the two need
// distinguishing from the migration engine name, which golang-migrate
// still addresses as "postgres".
func sqlDriverFor(engine string) string {
	if engine == "postgres" {
		return "pgx"
	}
	return engine
}

// Handler folds one envelope into the store, inside the current batch
// transaction.
type Handler func(ctx context.Context, q *db.Queries, e envelope.Envelope) error

// Store is the aggregation engine over a single *sql.DB. It owns the
// in-progress batch transaction: no locks are needed internally because the
// ingest loop is the only caller and it serializes all mutations.
type Store struct {
	log        zerolog.Logger
	sqlDB      *sql.DB
	driverName string
	queries    *db.Queries
	handlers   map[string]Handler
	stats      *BatchStats

	tx     *sql.Tx
	batchQ *db.Queries
}

// Open connects to dbURI using engine ("sqlite3" or "postgres"), runs
// pending migrations, and returns a ready-to-use Store with the standard
// Exception handler registered. Open derives the database/sql driver name
// from engine; dbURI may carry its own scheme (a postgres:// URL), and when
// it has none the migration URI is formed by prefixing it with engine.
func Open(ctx context.Context, engine, dbURI string) (*Store, error) {
	driverName := sqlDriverFor(engine)
	sqlDB, err := otelsql.Open(driverName, dbURI, otelsql.WithAttributes(
		attribute.String("name", "store"),
	))
	if err != nil {
		return nil, fmt.Errorf("connecting to db: %w", err)
	}
	if err := otelsql.RegisterDBStatsMetrics(sqlDB, otelsql.WithAttributes(
		attribute.String("name", "store"),
	)); err != nil {
		return nil, fmt.Errorf("registering dbstats: %w", err)
	}

	log := logger.With().Str("component", "store").Logger()

	s := &Store{
		log:        log,
		sqlDB:      sqlDB,
		driverName: driverName,
		queries:    db.New(sqlDB, driverName),
		handlers:   map[string]Handler{},
		stats:      &BatchStats{},
	}
	s.RegisterHandler("Exception", exceptionHandler)
	s.RegisterHandler("HTTPException", exceptionHandler)

	// Open a pooled connection before migrating: an in-memory SQLite
	// database lives only while some connection to it is open, and the
	// migration closes its own connection when done.
	if err := sqlDB.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("pinging db: %w", err)
	}

	if err := s.migrate(engine, dbURI); err != nil {
		return nil, fmt.Errorf("migrating store schema: %w", err)
	}

	return s, nil
}

// RegisterHandler adds (or replaces) the handler for eventType. New event
// kinds register without modifying the engine itself.
func (s *Store) RegisterHandler(eventType string, h Handler) {
	s.handlers[eventType] = h
}

// MessageReceived dispatches e to its registered handler inside the current
// batch transaction, starting one if none is open. Unknown event types are
// silently ignored. A handler failure rolls back only this envelope (via a
// savepoint) and is logged; it never aborts the batch.
func (s *Store) MessageReceived(ctx context.Context, e envelope.Envelope) error {
	s.stats.Received.Inc()

	handler, ok := s.handlers[e.EventType]
	if !ok {
		s.stats.Skipped.Inc()
		s.log.Debug().Str("event_type", e.EventType).Msg("no handler registered, ignoring")
		return nil
	}

	tx, q, err := s.currentBatch(ctx)
	if err != nil {
		return fmt.Errorf("starting batch transaction: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "SAVEPOINT msg"); err != nil {
		return fmt.Errorf("creating savepoint: %w", err)
	}

	ctx = withStats(ctx, s.stats)
	if err := handler(ctx, q, e); err != nil {
		if _, rerr := tx.ExecContext(ctx, "ROLLBACK TO SAVEPOINT msg"); rerr != nil {
			return fmt.Errorf("rolling back savepoint after %q: %w", err, rerr)
		}
		if Classify(err) == KindDuplicate {
			s.stats.Duplicate.Inc()
			s.log.Debug().Str("event_id", e.EventID).Msg("duplicate event id, rolled back")
			return nil
		}
		s.log.Error().Err(err).Str("event_id", e.EventID).Str("event_type", e.EventType).
			Msg("message handling failed, rolled back and continuing")
		return nil
	}

	if _, err := tx.ExecContext(ctx, "RELEASE SAVEPOINT msg"); err != nil {
		return fmt.Errorf("releasing savepoint: %w", err)
	}
	s.stats.Decoded.Inc()
	return nil
}

// Flush commits the in-progress batch transaction, if any, and resets the
// session. A failed commit rolls back the entire batch.
func (s *Store) Flush(ctx context.Context) error {
	if s.tx == nil {
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.batchQ = nil

	if err := tx.Commit(); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			return fmt.Errorf("commit failed (%s) and rollback failed: %w", err, rerr)
		}
		return fmt.Errorf("commit batch: %w", err)
	}
	return nil
}

// RecentGroups returns up to limit Groups most recently seen, the store's
// one supported query beyond ingest.
func (s *Store) RecentGroups(ctx context.Context, limit int) ([]db.Group, error) {
	return s.queries.RecentGroups(ctx, limit)
}

// Close rolls back any open (unflushed) batch and closes the underlying
// connection.
func (s *Store) Close() error {
	if s.tx != nil {
		if err := s.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			s.log.Error().Err(err).Msg("rolling back open batch on close")
		}
	}
	return s.sqlDB.Close()
}

func (s *Store) currentBatch(ctx context.Context) (*sql.Tx, *db.Queries, error) {
	if s.tx != nil {
		return s.tx, s.batchQ, nil
	}
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, err
	}
	s.tx = tx
	s.batchQ = s.queries.WithTx(tx)
	return s.tx, s.batchQ, nil
}

func (s *Store) migrate(engine, dbURI string) error {
	d, err := iofs.New(migrations.FS, engine)
	if err != nil {
		return fmt.Errorf("creating migration source: %w", err)
	}

	migrationURI := dbURI
	if !strings.Contains(dbURI, "://") {
		migrationURI = engine + "://" + dbURI
	}

	m, err := migrate.NewWithSourceInstance("iofs", d, migrationURI)
	if err != nil {
		return fmt.Errorf("creating migration: %w", err)
	}
	defer func() {
		if _, cerr := m.Close(); cerr != nil {
			s.log.Error().Err(cerr).Msg("closing db migration")
		}
	}()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("running migration up: %w", err)
	}
	return nil
}

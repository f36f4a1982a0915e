package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const timeLayout = "2006-01-02T15:04:05.000000"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

// GetEventTypeByName looks up an EventType by name, returning sql.ErrNoRows
// on a miss.
func (q *Queries) GetEventTypeByName(ctx context.Context, name string) (EventType, error) {
	row := q.queryRow(ctx, `SELECT id, name FROM event_type WHERE name = ?`, name)
	var et EventType
	if err := row.Scan(&et.ID, &et.Name); err != nil {
		return EventType{}, err
	}
	return et, nil
}

// UpsertEventType selects an EventType by name, inserting on miss. The
// unique constraint on name protects against concurrent creators under
// multi-writer deployments; the recorder itself is single-threaded.
func (q *Queries) UpsertEventType(ctx context.Context, name string) (EventType, error) {
	et, err := q.GetEventTypeByName(ctx, name)
	if err == nil {
		return et, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return EventType{}, err
	}

	id, err := q.insertReturningID(ctx, `INSERT INTO event_type (name) VALUES (?)`, name)
	if err != nil {
		return EventType{}, fmt.Errorf("insert event_type: %w", err)
	}
	return EventType{ID: id, Name: name}, nil
}

// GetTagByNameValue looks up a Tag by (name, value).
func (q *Queries) GetTagByNameValue(ctx context.Context, name, value string) (Tag, error) {
	row := q.queryRow(ctx,
		`SELECT id, name, value FROM tag WHERE name = ? AND value = ?`, name, value)
	var t Tag
	if err := row.Scan(&t.ID, &t.Name, &t.Value); err != nil {
		return Tag{}, err
	}
	return t, nil
}

// UpsertTag selects a Tag by (name, value), inserting on miss. Tag rows are
// shared dictionary entries: multiple events with the same (name, value)
// reference the same Tag id.
func (q *Queries) UpsertTag(ctx context.Context, name, value string) (Tag, error) {
	t, err := q.GetTagByNameValue(ctx, name, value)
	if err == nil {
		return t, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Tag{}, err
	}

	id, err := q.insertReturningID(ctx, `INSERT INTO tag (name, value) VALUES (?, ?)`, name, value)
	if err != nil {
		return Tag{}, fmt.Errorf("insert tag: %w", err)
	}
	return Tag{ID: id, Name: name, Value: value}, nil
}

// GetGroupByTypeHash looks up a Group by its logical grouping key.
func (q *Queries) GetGroupByTypeHash(ctx context.Context, typeID int64, hash string) (Group, error) {
	row := q.queryRow(ctx,
		`SELECT id, type_id, hash, message, count, state, first_seen, last_seen, score
		 FROM event_groups WHERE type_id = ? AND hash = ?`, typeID, hash)
	return scanGroup(row)
}

func scanGroup(row *sql.Row) (Group, error) {
	var g Group
	var firstSeen, lastSeen string
	var state sql.NullInt64
	if err := row.Scan(&g.ID, &g.TypeID, &g.Hash, &g.Message, &g.Count, &state, &firstSeen, &lastSeen, &g.Score); err != nil {
		return Group{}, err
	}
	if state.Valid {
		g.State = &state.Int64
	}
	var err error
	if g.FirstSeen, err = parseTime(firstSeen); err != nil {
		return Group{}, fmt.Errorf("parsing first_seen: %w", err)
	}
	if g.LastSeen, err = parseTime(lastSeen); err != nil {
		return Group{}, fmt.Errorf("parsing last_seen: %w", err)
	}
	return g, nil
}

// CreateGroup inserts a new Group row with count=0, score=0, first_seen =
// last_seen = date, as required when a (type_id, hash) is sighted for the
// first time. Group.state is left NULL: it is preserved but never mutated
// by ingest.
func (q *Queries) CreateGroup(ctx context.Context, typeID int64, hash, message string, date time.Time) (Group, error) {
	id, err := q.insertReturningID(ctx,
		`INSERT INTO event_groups (type_id, hash, message, count, state, first_seen, last_seen, score)
		 VALUES (?, ?, ?, 0, NULL, ?, ?, 0)`,
		typeID, hash, message, formatTime(date), formatTime(date))
	if err != nil {
		return Group{}, fmt.Errorf("insert event_groups: %w", err)
	}
	return Group{
		ID: id, TypeID: typeID, Hash: hash, Message: message,
		Count: 0, FirstSeen: date, LastSeen: date, Score: 0,
	}, nil
}

// SetGroupFirstHit initializes a brand-new group's count/last_seen/score
// for its first (and only) sighting so far: count=1, computed application
// side regardless of dialect, since there's no prior row to recompute from.
func (q *Queries) SetGroupFirstHit(ctx context.Context, groupID int64, date time.Time, score float64) error {
	_, err := q.exec(ctx,
		`UPDATE event_groups SET count = 1, last_seen = ?, score = ? WHERE id = ?`,
		formatTime(date), score, groupID)
	if err != nil {
		return fmt.Errorf("update event_groups first hit: %w", err)
	}
	return nil
}

// IncrementGroupAppSide bumps an existing group's count by exactly one and
// sets last_seen/score to application-computed values.
func (q *Queries) IncrementGroupAppSide(ctx context.Context, groupID int64, date time.Time, newCount int64, score float64) error {
	_, err := q.exec(ctx,
		`UPDATE event_groups SET count = ?, last_seen = ?, score = ? WHERE id = ?`,
		newCount, formatTime(date), score, groupID)
	if err != nil {
		return fmt.Errorf("update event_groups app-side: %w", err)
	}
	return nil
}

// IncrementGroupDialectSQL bumps an existing group's count by exactly one,
// delegating score recomputation to the dialect's raw SQL expression.
func (q *Queries) IncrementGroupDialectSQL(ctx context.Context, groupID int64, date time.Time) error {
	expr, ok := q.dialect.ScoreExpr()
	if !ok {
		return fmt.Errorf("dialect %s has no raw-SQL score expression", q.dialect.Name())
	}
	query := fmt.Sprintf(
		`UPDATE event_groups SET count = count + 1, last_seen = ?, score = (%s) WHERE id = ?`, expr)
	if _, err := q.exec(ctx, query, formatTime(date), groupID); err != nil {
		return fmt.Errorf("update event_groups dialect-side: %w", err)
	}
	return nil
}

// Dialect exposes the bound dialect so callers can choose between
// IncrementGroupAppSide and IncrementGroupDialectSQL.
func (q *Queries) Dialect() Dialect { return q.dialect }

// CreateEvent inserts a new Event row. A primary-key conflict on event_id
// surfaces as a plain error for the caller to classify as a duplicate.
func (q *Queries) CreateEvent(ctx context.Context, eventID string, typeID int64, hash string, date time.Time, timeSpent *int64, data string) error {
	_, err := q.exec(ctx,
		`INSERT INTO event (event_id, type_id, hash, datetime, time_spent, data) VALUES (?, ?, ?, ?, ?, ?)`,
		eventID, typeID, hash, formatTime(date), timeSpent, data)
	if err != nil {
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

// LinkEventGroup records an Event's membership in a Group.
func (q *Queries) LinkEventGroup(ctx context.Context, groupID int64, eventID string) error {
	_, err := q.exec(ctx,
		`INSERT INTO group_events (group_id, event_id) VALUES (?, ?)`, groupID, eventID)
	if err != nil {
		return fmt.Errorf("insert group_events: %w", err)
	}
	return nil
}

// LinkEventTag records an Event's association with a Tag.
func (q *Queries) LinkEventTag(ctx context.Context, eventID string, tagID int64) error {
	_, err := q.exec(ctx,
		`INSERT INTO event_tags (event_id, tag_id) VALUES (?, ?)`, eventID, tagID)
	if err != nil {
		return fmt.Errorf("insert event_tags: %w", err)
	}
	return nil
}

// RecentGroups returns up to limit Groups ordered by last_seen descending,
// the store's one supported query-beyond-ingest.
func (q *Queries) RecentGroups(ctx context.Context, limit int) ([]Group, error) {
	rows, err := q.query(ctx,
		`SELECT id, type_id, hash, message, count, state, first_seen, last_seen, score
		 FROM event_groups ORDER BY last_seen DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query event_groups: %w", err)
	}
	defer rows.Close() //nolint:errcheck

	var out []Group
	for rows.Next() {
		var g Group
		var firstSeen, lastSeen string
		var state sql.NullInt64
		if err := rows.Scan(&g.ID, &g.TypeID, &g.Hash, &g.Message, &g.Count, &state, &firstSeen, &lastSeen, &g.Score); err != nil {
			return nil, fmt.Errorf("scan event_groups: %w", err)
		}
		if state.Valid {
			g.State = &state.Int64
		}
		if g.FirstSeen, err = parseTime(firstSeen); err != nil {
			return nil, err
		}
		if g.LastSeen, err = parseTime(lastSeen); err != nil {
			return nil, err
		}
		out = append(out, g)
	}
	return out, rows.Err()
}

func (q *Queries) insertReturningID(ctx context.Context, baseQuery string, args ...interface{}) (int64, error) {
	query := baseQuery + q.dialect.ReturningClause()
	if q.dialect.ReturningClause() != "" {
		var id int64
		if err := q.queryRow(ctx, query, args...).Scan(&id); err != nil {
			return 0, err
		}
		return id, nil
	}
	res, err := q.exec(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

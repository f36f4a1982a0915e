package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/bbangert/zilch/pkg/envelope"
	"github.com/bbangert/zilch/pkg/store/internal/db"
)

// exceptionHandler folds one "Exception"/"HTTPException" envelope into the
// store: it resolves the event type and tags, finds or creates the owning
// Group, advances that Group's count/last_seen/score by exactly one, and
// persists the Event with its detail blob and tag links.
func exceptionHandler(ctx context.Context, q *db.Queries, e envelope.Envelope) error {
	var payload envelope.ExceptionPayload
	if err := envelope.DecodeData(e.Data, &payload); err != nil {
		return fmt.Errorf("%w: %s", ErrDecode, err)
	}

	eventType, err := q.UpsertEventType(ctx, e.EventType)
	if err != nil {
		return fmt.Errorf("upserting event type %q: %w", e.EventType, err)
	}

	tagIDs := make([]int64, 0, len(e.Tags))
	for _, kv := range e.Tags {
		tag, err := q.UpsertTag(ctx, kv[0], kv[1])
		if err != nil {
			return fmt.Errorf("upserting tag %q=%q: %w", kv[0], kv[1], err)
		}
		tagIDs = append(tagIDs, tag.ID)
	}

	group, created, err := findOrCreateGroup(ctx, q, eventType.ID, e.Hash, payload.Message, e.Date)
	if err != nil {
		return fmt.Errorf("finding or creating group: %w", err)
	}

	if stats := statsFrom(ctx); stats != nil {
		if created {
			stats.GroupsCreated.Inc()
		} else {
			stats.GroupsUpdated.Inc()
		}
	}

	if created {
		if err := q.SetGroupFirstHit(ctx, group.ID, e.Date, computeScore(1, e.Date)); err != nil {
			return fmt.Errorf("setting group first hit: %w", err)
		}
	} else if _, ok := q.Dialect().ScoreExpr(); ok {
		if err := q.IncrementGroupDialectSQL(ctx, group.ID, e.Date); err != nil {
			return fmt.Errorf("incrementing group (dialect sql): %w", err)
		}
	} else {
		newCount := group.Count + 1
		if err := q.IncrementGroupAppSide(ctx, group.ID, e.Date, newCount, computeScore(newCount, e.Date)); err != nil {
			return fmt.Errorf("incrementing group (app side): %w", err)
		}
	}

	stored := envelope.StoredExceptionData{
		Frames:    payload.Frames,
		Versions:  payload.Versions,
		Type:      payload.Type,
		Value:     payload.Value,
		Extra:     e.Extra,
		Traceback: payload.Traceback,
	}
	blob, err := envelope.EncodeBlob(stored)
	if err != nil {
		return fmt.Errorf("encoding stored exception data: %w", err)
	}

	if err := q.CreateEvent(ctx, e.EventID, eventType.ID, e.Hash, e.Date, e.TimeSpent, blob); err != nil {
		return fmt.Errorf("creating event: %w", err)
	}
	if err := q.LinkEventGroup(ctx, group.ID, e.EventID); err != nil {
		return fmt.Errorf("linking event to group: %w", err)
	}
	for _, tagID := range tagIDs {
		if err := q.LinkEventTag(ctx, e.EventID, tagID); err != nil {
			return fmt.Errorf("linking event to tag: %w", err)
		}
	}

	return nil
}

// findOrCreateGroup looks up the Group for (typeID, hash), creating it with
// message as its initial summary on a miss. created reports which path was
// taken so the caller knows whether to seed count=1 or increment.
func findOrCreateGroup(ctx context.Context, q *db.Queries, typeID int64, hash, message string, date time.Time) (db.Group, bool, error) {
	group, err := q.GetGroupByTypeHash(ctx, typeID, hash)
	if err == nil {
		return group, false, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return db.Group{}, false, err
	}

	group, err = q.CreateGroup(ctx, typeID, hash, message, date)
	if err != nil {
		return db.Group{}, false, err
	}
	return group, true, nil
}

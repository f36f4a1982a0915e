package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/bbangert/zilch/pkg/telemetry"
)

func sqliteTestURI() string {
	return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", uuid.New().String())
}

func TestCollectSqliteStore(t *testing.T) {
	t.Run("ingest batch", func(t *testing.T) {
		dbURI := sqliteTestURI()
		s, err := New(dbURI)
		require.NoError(t, err)
		defer s.Close() //nolint:errcheck
		telemetry.SetMetricStore(s)

		err = telemetry.Collect(context.Background(), telemetry.IngestBatchMetric{
			Received: 3,
			Decoded:  2,
			Skipped:  1,
		})
		require.NoError(t, err)

		var rowid, version, timestamp, published int
		var payload string
		var typ telemetry.MetricType
		row := s.sqlDB.QueryRowContext(context.Background(),
			"SELECT rowid, version, timestamp, type, payload, published FROM system_metrics LIMIT 1")
		require.NoError(t, row.Scan(&rowid, &version, &timestamp, &typ, &payload, &published))

		require.Equal(t, 0, published)
		require.Equal(t, telemetry.IngestBatchType, typ)

		var m telemetry.IngestBatchMetric
		require.NoError(t, json.Unmarshal([]byte(payload), &m))
		require.Equal(t, int64(3), m.Received)
		require.Equal(t, int64(2), m.Decoded)
		require.Equal(t, int64(1), m.Skipped)
	})
}

func TestFetchAndMarkPublished(t *testing.T) {
	dbURI := sqliteTestURI()
	s, err := New(dbURI)
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	ctx := context.Background()
	require.NoError(t, s.StoreMetric(ctx, telemetry.Metric{
		Version:   1,
		Timestamp: time.Now().UTC(),
		Type:      telemetry.FlushLatencyType,
		Payload:   telemetry.FlushLatencyMetric{TookMilli: 17},
	}))

	unpublished, err := s.FetchUnpublishedMetrics(ctx, 10)
	require.NoError(t, err)
	require.Len(t, unpublished, 1)

	flm, ok := unpublished[0].Payload.(*telemetry.FlushLatencyMetric)
	require.True(t, ok)
	require.Equal(t, int64(17), flm.TookMilli)

	require.NoError(t, s.MarkAsPublished(ctx, []int64{unpublished[0].RowID}))

	remaining, err := s.FetchUnpublishedMetrics(ctx, 10)
	require.NoError(t, err)
	require.Empty(t, remaining)
}

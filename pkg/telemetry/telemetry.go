// Package telemetry collects operational self-metrics about the recorder
// process — ingest throughput, group churn, flush latency — separate from
// the event/exception telemetry the rest of this module ingests on behalf
// of producer applications.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	logger "github.com/rs/zerolog/log"
)

var (
	metricStore MetricStore
	log         zerolog.Logger

	mu   = &sync.Mutex{}
	once sync.Once
)

func init() {
	log = logger.With().
		Str("component", "telemetry").
		Logger()
}

// MetricStore specifies the methods for persisting a metric.
type MetricStore interface {
	StoreMetric(context.Context, Metric) error
	Close() error
}

// SetMetricStore sets the store implementation.
// Only the first call will have an effect. If Collect is called without setting a MetricStore, it will be a noop.
func SetMetricStore(s MetricStore) {
	once.Do(func() {
		metricStore = s
	})
}

// Collect collects the metric by persisting locally for later publication.
// If Collect is called before setting the metric store, it logs a warning and returns nil without persisting the metric.
func Collect(ctx context.Context, metric interface{}) error {
	mu.Lock()
	defer mu.Unlock()
	if metricStore == nil {
		log.Warn().Msg("no metric store was set")
		return nil
	}

	switch v := metric.(type) {
	case IngestBatchMetric:
		v.Version = IngestBatchMetricV1
		if err := persist(ctx, IngestBatchType, v); err != nil {
			return errors.Errorf("store ingest batch metric: %s", err)
		}
		return nil
	case GroupChurnMetric:
		v.Version = GroupChurnMetricV1
		if err := persist(ctx, GroupChurnType, v); err != nil {
			return errors.Errorf("store group churn metric: %s", err)
		}
		return nil
	case FlushLatencyMetric:
		v.Version = FlushLatencyMetricV1
		if err := persist(ctx, FlushLatencyType, v); err != nil {
			return errors.Errorf("store flush latency metric: %s", err)
		}
		return nil
	case GitSummaryMetric:
		v.Version = GitSummaryMetricV1
		if err := persist(ctx, GitSummaryType, v); err != nil {
			return errors.Errorf("store git summary metric: %s", err)
		}
		return nil
	default:
		return fmt.Errorf("unknown metric type %T", v)
	}
}

func persist(ctx context.Context, t MetricType, payload interface{}) error {
	return metricStore.StoreMetric(ctx, Metric{
		Version:   1,
		Timestamp: time.Now().UTC(),
		Type:      t,
		Payload:   payload,
	})
}

package telemetry

import (
	"time"

	"github.com/pkg/errors"
	jsoniter "github.com/json-iterator/go"
)

var jsonc = jsoniter.ConfigCompatibleWithStandardLibrary

// MetricType defines the metric type.
type MetricType int

const (
	// IngestBatchType is the type for IngestBatchMetric.
	IngestBatchType MetricType = iota
	// GroupChurnType is the type for GroupChurnMetric.
	GroupChurnType
	// FlushLatencyType is the type for FlushLatencyMetric.
	FlushLatencyType
	// GitSummaryType is the type for GitSummaryMetric.
	GitSummaryType
)

// Metric defines a self-reported operational metric about the recorder.
type Metric struct {
	RowID     int64       `json:"-"`
	Version   int         `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Type      MetricType  `json:"type"`
	Payload   interface{} `json:"payload"`
}

// Serialize serializes the metric payload.
func (m Metric) Serialize() ([]byte, error) {
	b, err := jsonc.Marshal(m.Payload)
	if err != nil {
		return nil, errors.Errorf("marshal: %s", err)
	}
	return b, nil
}

// IngestBatchMetricVersion versions IngestBatchMetric.
type IngestBatchMetricVersion int64

// IngestBatchMetricV1 is the V1 version of IngestBatchMetric.
const IngestBatchMetricV1 IngestBatchMetricVersion = iota

// IngestBatchMetric reports how many envelopes a single recv/flush cycle handled.
type IngestBatchMetric struct {
	Version IngestBatchMetricVersion `json:"version"`

	Received  int64 `json:"received"`
	Decoded   int64 `json:"decoded"`
	Skipped   int64 `json:"skipped"`
	Duplicate int64 `json:"duplicate"`
}

// GroupChurnMetricVersion versions GroupChurnMetric.
type GroupChurnMetricVersion int64

// GroupChurnMetricV1 is the V1 version of GroupChurnMetric.
const GroupChurnMetricV1 GroupChurnMetricVersion = iota

// GroupChurnMetric reports group creation vs. update counts for a flush.
type GroupChurnMetric struct {
	Version GroupChurnMetricVersion `json:"version"`

	GroupsCreated int64 `json:"groups_created"`
	GroupsUpdated int64 `json:"groups_updated"`
}

// FlushLatencyMetricVersion versions FlushLatencyMetric.
type FlushLatencyMetricVersion int64

// FlushLatencyMetricV1 is the V1 version of FlushLatencyMetric.
const FlushLatencyMetricV1 FlushLatencyMetricVersion = iota

// FlushLatencyMetric reports how long a store flush (commit) took.
type FlushLatencyMetric struct {
	Version FlushLatencyMetricVersion `json:"version"`

	TookMilli int64 `json:"took_milli"`
}

// GitSummaryMetricVersion versions GitSummaryMetric.
type GitSummaryMetricVersion int64

// GitSummaryMetricV1 is the V1 version of GitSummaryMetric.
const GitSummaryMetricV1 GitSummaryMetricVersion = iota

// GitSummaryMetric contains git information of the running binary.
type GitSummaryMetric struct {
	Version GitSummaryMetricVersion `json:"version"`

	GitCommit     string `json:"git_commit"`
	GitBranch     string `json:"git_branch"`
	GitState      string `json:"git_state"`
	GitSummary    string `json:"git_summary"`
	BuildDate     string `json:"build_date"`
	BinaryVersion string `json:"binary_version"`
}

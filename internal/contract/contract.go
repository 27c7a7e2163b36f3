// Package contract provides interfaces and shared utilities for internal architecture.
package contract

import (
	"context"
	"time"

	"github.com/huangsam/rewatch/schema"
)

// EventSource defines the necessary operations for loading raw watch-event
// tables. This allows the pipeline logic to be tested without real files.
type EventSource interface {
	// FetchEvents returns the raw event table for the configured input.
	FetchEvents(ctx context.Context, cfg *Config) (*schema.RawTable, error)

	// FetchVideoMetadata returns entries from the video sidecar, or an
	// empty slice when no sidecar is configured.
	FetchVideoMetadata(ctx context.Context, cfg *Config) ([]schema.VideoMetadata, error)

	// Digest returns a stable fingerprint of the input contents, used for
	// cache keys and run records.
	Digest(ctx context.Context, cfg *Config) (string, error)
}

// CacheManager defines the interface for managing storage backends.
// This allows the storage layer to be mocked for testing.
type CacheManager interface {
	GetSessionStore() CacheStore
	GetRunStore() RunStore
}

// CacheStore defines the interface for session-cache storage.
// This allows mocking the store for testing.
type CacheStore interface {
	Get(key string) ([]byte, int, int64, error)
	Set(key string, value []byte, version int, timestamp int64) error
	GetStatus() (schema.CacheStatus, error)
	Close() error
}

// RunStore defines the interface for tracking pipeline runs and persisting
// their outputs.
type RunStore interface {
	// BeginRun creates a new pipeline run and returns its unique ID
	BeginRun(startTime time.Time, inputDigest string, configParams map[string]any) (int64, error)

	// EndRun updates the pipeline run with completion data
	EndRun(runID int64, endTime time.Time, eventsIn, eventsKept int, status schema.RunStatus) error

	// RecordKPIRows stores aggregated KPI rows for a run
	RecordKPIRows(runID int64, rows []schema.KPIRow) error

	// RecordChurnScores stores per-viewer churn scores for a run
	RecordChurnScores(runID int64, scores []schema.ChurnScore) error

	// GetRecentRuns returns the most recent run records, newest first
	GetRecentRuns(limit int) ([]schema.PipelineRunRecord, error)

	// GetStatus returns status information about the run store
	GetStatus() (schema.RunStoreStatus, error)

	// Close closes the underlying connection
	Close() error
}

package contract

import (
	"context"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/huangsam/rewatch/internal/parquet"
	"github.com/huangsam/rewatch/schema"
)

// LocalFileSource implements the EventSource interface by reading watch
// event logs from local CSV or Parquet files.
type LocalFileSource struct{}

var _ EventSource = &LocalFileSource{} // Compile-time check

// NewLocalFileSource creates a new instance of the local file source.
func NewLocalFileSource() *LocalFileSource {
	return &LocalFileSource{}
}

// FetchEvents reads the configured events file into a raw table. The file
// format is chosen by extension; both formats feed the same normalization
// path so drop accounting stays consistent.
func (s *LocalFileSource) FetchEvents(_ context.Context, cfg *Config) (*schema.RawTable, error) {
	if cfg.EventsPath == "" {
		return nil, errors.New("no events file configured")
	}

	switch strings.ToLower(filepath.Ext(cfg.EventsPath)) {
	case ".parquet":
		return readParquetEvents(cfg.EventsPath)
	default:
		return readCSVEvents(cfg.EventsPath)
	}
}

// FetchVideoMetadata reads the optional video sidecar file. A missing
// sidecar is not an error; creator attribution simply stays limited to
// what the event rows carry.
func (s *LocalFileSource) FetchVideoMetadata(_ context.Context, cfg *Config) ([]schema.VideoMetadata, error) {
	if cfg.VideosPath == "" {
		return nil, nil
	}

	file, err := os.Open(cfg.VideosPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open videos file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read videos header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.TrimSpace(col)] = i
	}

	cell := func(record []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var entries []schema.VideoMetadata
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read videos row: %w", err)
		}

		entry := schema.VideoMetadata{
			VideoID:   cell(record, "video_id"),
			CreatorID: cell(record, "creator_id"),
			Category:  cell(record, "category"),
		}
		if entry.VideoID == "" {
			continue // sidecar rows without a video key are useless
		}
		if raw := cell(record, "publish_time"); raw != "" {
			if t, err := time.Parse(time.RFC3339, raw); err == nil {
				entry.PublishTime = t.UTC()
			}
		}
		if raw := cell(record, "views"); raw != "" {
			if v, err := strconv.ParseInt(raw, 10, 64); err == nil && v >= 0 {
				entry.Views = v
			}
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// Digest returns a hex-encoded SHA-256 fingerprint of the input file
// contents. The videos sidecar is folded in when configured, so a changed
// sidecar invalidates cached sessions too.
func (s *LocalFileSource) Digest(_ context.Context, cfg *Config) (string, error) {
	hasher := sha256.New()

	for _, path := range []string{cfg.EventsPath, cfg.VideosPath} {
		if path == "" {
			continue
		}
		file, err := os.Open(path)
		if err != nil {
			return "", fmt.Errorf("failed to open %s for digest: %w", path, err)
		}
		_, err = io.Copy(hasher, file)
		_ = file.Close()
		if err != nil {
			return "", fmt.Errorf("failed to hash %s: %w", path, err)
		}
	}

	return hex.EncodeToString(hasher.Sum(nil)), nil
}

// readCSVEvents loads a CSV events file into a raw table. Ragged rows are
// tolerated here; the normalizer counts their missing fields as drops.
func readCSVEvents(path string) (*schema.RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open events file: %w", err)
	}
	defer func() { _ = file.Close() }()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		// No header at all. Hand back an empty table so the normalizer
		// reports the missing columns as a structural error.
		return &schema.RawTable{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to read events header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(col)
	}

	table := &schema.RawTable{Columns: columns}
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		} else if err != nil {
			return nil, fmt.Errorf("failed to read events row: %w", err)
		}

		fields := make(map[string]string, len(columns))
		for i, col := range columns {
			if i < len(record) {
				fields[col] = record[i]
			}
		}
		table.Rows = append(table.Rows, schema.RawRecord{Fields: fields, Line: line})
	}

	return table, nil
}

// readParquetEvents loads a Parquet events file and renders it as a raw
// string table, so typed Parquet input passes through the exact same
// validation the CSV path gets.
func readParquetEvents(path string) (*schema.RawTable, error) {
	rows, err := parquet.ReadWatchEventsParquet(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read events parquet: %w", err)
	}

	table := &schema.RawTable{
		Columns: []string{
			schema.ColViewerID,
			schema.ColVideoID,
			schema.ColCreatorID,
			schema.ColEventTime,
			schema.ColWatchSeconds,
			schema.ColVideoDuration,
			schema.ColCompleted,
		},
	}

	for i, row := range rows {
		fields := map[string]string{
			schema.ColViewerID:      row.ViewerID,
			schema.ColVideoID:       row.VideoID,
			schema.ColEventTime:     row.EventTime.UTC().Format(time.RFC3339Nano),
			schema.ColWatchSeconds:  strconv.FormatFloat(row.WatchSeconds, 'f', -1, 64),
			schema.ColVideoDuration: strconv.FormatFloat(row.VideoDuration, 'f', -1, 64),
			schema.ColCompleted:     strconv.FormatBool(row.Completed),
		}
		if row.CreatorID != nil {
			fields[schema.ColCreatorID] = *row.CreatorID
		}
		table.Rows = append(table.Rows, schema.RawRecord{Fields: fields, Line: i + 1})
	}

	return table, nil
}

package iocache

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/huangsam/rewatch/schema"
)

// Table names for run tracking.
const (
	pipelineRunsTable = "rewatch_pipeline_runs"
	kpiRowsTable      = "rewatch_kpi_rows"
	churnScoresTable  = "rewatch_churn_scores"
)

// runTables lists every table owned by the run store, parent first.
var runTables = []string{pipelineRunsTable, kpiRowsTable, churnScoresTable}

// RunStoreImpl implements the RunStore interface.
type RunStoreImpl struct {
	db         *sql.DB
	backend    schema.DatabaseBackend
	driverName string
}

var _ contract.RunStore = &RunStoreImpl{} // Compile-time check

// NewRunStore creates a new RunStore with the specified backend.
func NewRunStore(backend schema.DatabaseBackend, connStr string) (contract.RunStore, error) {
	var db *sql.DB
	var err error
	var driverName string

	switch backend {
	case schema.SQLiteBackend:
		driverName = "sqlite"
		dbPath := connStr
		if dbPath == "" {
			dbPath = GetRunsDBFilePath()
		}
		db, err = sql.Open(driverName, dbPath)
		if err != nil {
			return nil, fmt.Errorf("failed to open SQLite database at %q: %w. Check that the directory is writable", dbPath, err)
		}
		// Limit SQLite to a single open connection to avoid "database is locked" errors
		db.SetMaxOpenConns(1)

	case schema.MySQLBackend:
		driverName = "mysql"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open MySQL database: %w. Check connection string format: user:password@tcp(host:port)/dbname", err)
		}

	case schema.PostgreSQLBackend:
		driverName = "pgx"
		db, err = sql.Open(driverName, connStr)
		if err != nil {
			return nil, fmt.Errorf("failed to open PostgreSQL database: %w. Check connection string format: host=localhost port=5432 user=postgres dbname=mydb", err)
		}

	case schema.NoneBackend:
		// Return a no-op store for disabled tracking
		return &RunStoreImpl{
			db:         nil,
			backend:    backend,
			driverName: "",
		}, nil

	default:
		return nil, fmt.Errorf("unsupported backend: %s", backend)
	}

	// Ping to verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		var connDetail string
		switch backend {
		case schema.MySQLBackend:
			connDetail = "Check that MySQL is running and the connection string is correct. Ensure user/password are valid."
		case schema.PostgreSQLBackend:
			connDetail = "Check that PostgreSQL is running and the connection string is correct. Ensure user/password are valid."
		default:
			connDetail = "Verify the database server is running and accessible."
		}
		return nil, fmt.Errorf("failed to connect to %s database: %w. %s", backend, err, connDetail)
	}

	// Create the table schemas
	if err := createRunTables(db, backend); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create run tables: %w", err)
	}

	return &RunStoreImpl{
		db:         db,
		backend:    backend,
		driverName: driverName,
	}, nil
}

// createRunTables creates the run tracking tables.
func createRunTables(db *sql.DB, backend schema.DatabaseBackend) error {
	tables := []struct {
		name  string
		query string
	}{
		{pipelineRunsTable, getCreatePipelineRunsQuery(backend)},
		{kpiRowsTable, getCreateKPIRowsQuery(backend)},
		{churnScoresTable, getCreateChurnScoresQuery(backend)},
	}

	for _, table := range tables {
		if _, err := db.Exec(table.query); err != nil {
			return fmt.Errorf("failed to create table %s: %w", table.name, err)
		}
	}

	return nil
}

// getCreatePipelineRunsQuery returns the CREATE TABLE query for rewatch_pipeline_runs.
func getCreatePipelineRunsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(pipelineRunsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT AUTO_INCREMENT PRIMARY KEY,
				start_time DATETIME(6) NOT NULL,
				end_time DATETIME(6),
				run_duration_ms INT,
				events_in INT,
				events_kept INT,
				status VARCHAR(20) NOT NULL DEFAULT 'running',
				input_digest VARCHAR(64),
				config_params TEXT
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGSERIAL PRIMARY KEY,
				start_time TIMESTAMPTZ NOT NULL,
				end_time TIMESTAMPTZ,
				run_duration_ms INT,
				events_in INT,
				events_kept INT,
				status TEXT NOT NULL DEFAULT 'running',
				input_digest TEXT,
				config_params TEXT
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER PRIMARY KEY AUTOINCREMENT,
				start_time TEXT NOT NULL,
				end_time TEXT,
				run_duration_ms INTEGER,
				events_in INTEGER,
				events_kept INTEGER,
				status TEXT NOT NULL DEFAULT 'running',
				input_digest TEXT,
				config_params TEXT
			);
		`, quotedTableName)
	}
}

// getCreateKPIRowsQuery returns the CREATE TABLE query for rewatch_kpi_rows.
// Cohort dates are stored as YYYY-MM-DD strings on every backend so rows
// round-trip identically regardless of driver timezone handling.
func getCreateKPIRowsQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(kpiRowsTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				cohort_date VARCHAR(10) NOT NULL,
				day_offset INT NOT NULL,
				cohort_size INT NOT NULL,
				retained INT NOT NULL,
				retention_ratio DOUBLE,
				avg_session_seconds DOUBLE,
				completion_rate DOUBLE,
				dau INT NOT NULL,
				wau INT NOT NULL,
				creator_share DOUBLE,
				PRIMARY KEY (run_id, cohort_date, day_offset)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				cohort_date TEXT NOT NULL,
				day_offset INT NOT NULL,
				cohort_size INT NOT NULL,
				retained INT NOT NULL,
				retention_ratio DOUBLE PRECISION,
				avg_session_seconds DOUBLE PRECISION,
				completion_rate DOUBLE PRECISION,
				dau INT NOT NULL,
				wau INT NOT NULL,
				creator_share DOUBLE PRECISION,
				PRIMARY KEY (run_id, cohort_date, day_offset)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				cohort_date TEXT NOT NULL,
				day_offset INTEGER NOT NULL,
				cohort_size INTEGER NOT NULL,
				retained INTEGER NOT NULL,
				retention_ratio REAL,
				avg_session_seconds REAL,
				completion_rate REAL,
				dau INTEGER NOT NULL,
				wau INTEGER NOT NULL,
				creator_share REAL,
				PRIMARY KEY (run_id, cohort_date, day_offset)
			);
		`, quotedTableName)
	}
}

// getCreateChurnScoresQuery returns the CREATE TABLE query for rewatch_churn_scores.
func getCreateChurnScoresQuery(backend schema.DatabaseBackend) string {
	quotedTableName := quoteTableName(churnScoresTable, backend)

	switch backend {
	case schema.MySQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				viewer_id VARCHAR(255) NOT NULL,
				horizon INT NOT NULL,
				cohort_date VARCHAR(10) NOT NULL,
				return_probability DOUBLE NOT NULL,
				churn_risk DOUBLE NOT NULL,
				PRIMARY KEY (run_id, viewer_id, horizon)
			);
		`, quotedTableName)

	case schema.PostgreSQLBackend:
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id BIGINT NOT NULL,
				viewer_id TEXT NOT NULL,
				horizon INT NOT NULL,
				cohort_date TEXT NOT NULL,
				return_probability DOUBLE PRECISION NOT NULL,
				churn_risk DOUBLE PRECISION NOT NULL,
				PRIMARY KEY (run_id, viewer_id, horizon)
			);
		`, quotedTableName)

	default: // SQLite
		return fmt.Sprintf(`
			CREATE TABLE IF NOT EXISTS %s (
				run_id INTEGER NOT NULL,
				viewer_id TEXT NOT NULL,
				horizon INTEGER NOT NULL,
				cohort_date TEXT NOT NULL,
				return_probability REAL NOT NULL,
				churn_risk REAL NOT NULL,
				PRIMARY KEY (run_id, viewer_id, horizon)
			);
		`, quotedTableName)
	}
}

// BeginRun creates a new pipeline run and returns its unique ID.
func (rs *RunStoreImpl) BeginRun(startTime time.Time, inputDigest string, configParams map[string]any) (int64, error) {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return 0, nil
	}

	// Serialize config params to JSON
	configJSON, err := json.Marshal(configParams)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal config params: %w", err)
	}

	quotedTableName := quoteTableName(pipelineRunsTable, rs.backend)

	var runID int64
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query := fmt.Sprintf(`INSERT INTO %s (start_time, status, input_digest, config_params) VALUES ($1, $2, $3, $4) RETURNING run_id`, quotedTableName)
		err = rs.db.QueryRow(query, startTime, string(schema.RunRunning), inputDigest, string(configJSON)).Scan(&runID)
	default: // SQLite and MySQL
		query := fmt.Sprintf(`INSERT INTO %s (start_time, status, input_digest, config_params) VALUES (?, ?, ?, ?)`, quotedTableName)
		var result sql.Result
		result, err = rs.db.Exec(query, formatTime(startTime, rs.backend), string(schema.RunRunning), inputDigest, string(configJSON))
		if err != nil {
			return 0, err
		}
		runID, err = result.LastInsertId()
	}

	if err != nil {
		return 0, fmt.Errorf("failed to insert pipeline run: %w", err)
	}

	return runID, nil
}

// EndRun updates the pipeline run with completion data.
func (rs *RunStoreImpl) EndRun(runID int64, endTime time.Time, eventsIn, eventsKept int, status schema.RunStatus) error {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil
	}

	// First, get the start_time to calculate duration
	quotedTableName := quoteTableName(pipelineRunsTable, rs.backend)
	var startTime time.Time

	var query string
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = $1`, quotedTableName)
	default: // SQLite and MySQL
		query = fmt.Sprintf(`SELECT start_time FROM %s WHERE run_id = ?`, quotedTableName)
	}

	row := rs.db.QueryRow(query, runID)

	// Handle different time storage formats per backend
	switch rs.backend {
	case schema.SQLiteBackend:
		var startTimeStr string
		if err := row.Scan(&startTimeStr); err != nil {
			return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
		}
		var err error
		startTime, err = time.Parse(time.RFC3339Nano, startTimeStr)
		if err != nil {
			return fmt.Errorf("failed to parse start_time: %w", err)
		}
	default: // MySQL and PostgreSQL store as native datetime
		if err := row.Scan(&startTime); err != nil {
			return fmt.Errorf("failed to get start_time for run %d: %w", runID, err)
		}
	}

	// Calculate duration in milliseconds
	durationMs := endTime.Sub(startTime).Milliseconds()

	// Update the pipeline run with completion data
	var updateQuery string
	var args []any

	switch rs.backend {
	case schema.PostgreSQLBackend:
		updateQuery = fmt.Sprintf(`UPDATE %s SET end_time = $1, run_duration_ms = $2, events_in = $3, events_kept = $4, status = $5 WHERE run_id = $6`, quotedTableName)
		args = []any{endTime, durationMs, eventsIn, eventsKept, string(status), runID}
	default: // SQLite and MySQL
		updateQuery = fmt.Sprintf(`UPDATE %s SET end_time = ?, run_duration_ms = ?, events_in = ?, events_kept = ?, status = ? WHERE run_id = ?`, quotedTableName)
		args = []any{formatTime(endTime, rs.backend), durationMs, eventsIn, eventsKept, string(status), runID}
	}

	_, err := rs.db.Exec(updateQuery, args...)
	if err != nil {
		return fmt.Errorf("failed to update pipeline run: %w", err)
	}

	return nil
}

// RecordKPIRows stores the aggregated KPI rows for a run in one transaction.
func (rs *RunStoreImpl) RecordKPIRows(runID int64, rows []schema.KPIRow) error {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil || len(rows) == 0 {
		return nil
	}

	quotedTableName := quoteTableName(kpiRowsTable, rs.backend)

	var query string
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, cohort_date, day_offset, cohort_size, retained,
			                retention_ratio, avg_session_seconds, completion_rate,
			                dau, wau, creator_share)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`, quotedTableName)
	default: // SQLite and MySQL
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, cohort_date, day_offset, cohort_size, retained,
			                retention_ratio, avg_session_seconds, completion_rate,
			                dau, wau, creator_share)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, quotedTableName)
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin KPI transaction: %w", err)
	}

	for _, r := range rows {
		args := []any{
			runID, schema.DayKey(r.CohortDate), r.DayOffset, r.CohortSize, r.Retained,
			metricValue(r.RetentionRatio), metricValue(r.AvgSessionSeconds), metricValue(r.CompletionRate),
			r.DAU, r.WAU, metricValue(r.CreatorShare),
		}
		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert KPI row for cohort %s day %d: %w", schema.DayKey(r.CohortDate), r.DayOffset, err)
		}
	}

	return tx.Commit()
}

// RecordChurnScores stores the per-viewer churn scores for a run in one transaction.
func (rs *RunStoreImpl) RecordChurnScores(runID int64, scores []schema.ChurnScore) error {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil || len(scores) == 0 {
		return nil
	}

	quotedTableName := quoteTableName(churnScoresTable, rs.backend)

	var query string
	switch rs.backend {
	case schema.PostgreSQLBackend:
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, viewer_id, horizon, cohort_date, return_probability, churn_risk)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, quotedTableName)
	default: // SQLite and MySQL
		query = fmt.Sprintf(`
			INSERT INTO %s (run_id, viewer_id, horizon, cohort_date, return_probability, churn_risk)
			VALUES (?, ?, ?, ?, ?, ?)
		`, quotedTableName)
	}

	tx, err := rs.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin churn transaction: %w", err)
	}

	for _, s := range scores {
		args := []any{runID, s.ViewerID, s.Horizon, schema.DayKey(s.CohortDate), s.ReturnProbability, s.ChurnRisk}
		if _, err := tx.Exec(query, args...); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to insert churn score for viewer %s horizon %d: %w", s.ViewerID, s.Horizon, err)
		}
	}

	return tx.Commit()
}

// GetRecentRuns returns the most recent run records, newest first.
// A limit of zero or less returns every stored run.
func (rs *RunStoreImpl) GetRecentRuns(limit int) ([]schema.PipelineRunRecord, error) {
	// Skip for NoneBackend
	if rs.backend == schema.NoneBackend || rs.db == nil {
		return nil, nil
	}

	quotedTableName := quoteTableName(pipelineRunsTable, rs.backend)
	query := fmt.Sprintf("SELECT run_id, start_time, end_time, run_duration_ms, events_in, events_kept, status, input_digest, config_params FROM %s ORDER BY run_id DESC", quotedTableName)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}

	rows, err := rs.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("failed to query pipeline runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []schema.PipelineRunRecord

	for rows.Next() {
		var record schema.PipelineRunRecord
		var eventsIn, eventsKept sql.NullInt32
		var digest sql.NullString
		var status string

		switch rs.backend {
		case schema.SQLiteBackend:
			var startTimeStr string
			var endTimeStr *string
			if err := rows.Scan(&record.RunID, &startTimeStr, &endTimeStr, &record.RunDurationMs, &eventsIn, &eventsKept, &status, &digest, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
			}
			// Parse start time
			startTime, err := time.Parse(time.RFC3339Nano, startTimeStr)
			if err != nil {
				return nil, fmt.Errorf("failed to parse start_time: %w", err)
			}
			record.StartTime = startTime
			// Parse end time if present
			if endTimeStr != nil {
				endTime, err := time.Parse(time.RFC3339Nano, *endTimeStr)
				if err != nil {
					return nil, fmt.Errorf("failed to parse end_time: %w", err)
				}
				record.EndTime = &endTime
			}
		default: // MySQL and PostgreSQL
			if err := rows.Scan(&record.RunID, &record.StartTime, &record.EndTime, &record.RunDurationMs, &eventsIn, &eventsKept, &status, &digest, &record.ConfigParams); err != nil {
				return nil, fmt.Errorf("failed to scan pipeline run: %w", err)
			}
		}

		record.EventsIn = eventsIn.Int32
		record.EventsKept = eventsKept.Int32
		record.Status = schema.RunStatus(status)
		record.InputDigest = digest.String

		results = append(results, record)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating pipeline runs: %w", err)
	}

	return results, nil
}

// GetStatus returns status information about the run store.
func (rs *RunStoreImpl) GetStatus() (schema.RunStoreStatus, error) {
	status := schema.RunStoreStatus{
		Backend:    string(rs.backend),
		Connected:  rs.db != nil,
		TableSizes: make(map[string]int64),
	}

	if rs.backend == schema.NoneBackend || rs.db == nil {
		return status, nil
	}

	// Get total runs
	runsQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quoteTableName(pipelineRunsTable, rs.backend))
	row := rs.db.QueryRow(runsQuery)
	if err := row.Scan(&status.TotalRuns); err != nil {
		return status, fmt.Errorf("failed to get total runs: %w", err)
	}

	if status.TotalRuns > 0 {
		// Get last run info
		lastRunQuery := fmt.Sprintf("SELECT run_id, start_time FROM %s ORDER BY run_id DESC LIMIT 1", quoteTableName(pipelineRunsTable, rs.backend))
		row = rs.db.QueryRow(lastRunQuery)

		switch rs.backend {
		case schema.SQLiteBackend:
			var lastRunID int64
			var lastRunTimeStr string
			if err := row.Scan(&lastRunID, &lastRunTimeStr); err != nil {
				return status, fmt.Errorf("failed to get last run info: %w", err)
			}
			status.LastRunID = lastRunID
			lastRunTime, err := time.Parse(time.RFC3339Nano, lastRunTimeStr)
			if err != nil {
				return status, fmt.Errorf("failed to parse last run time: %w", err)
			}
			status.LastRunTime = lastRunTime
		default: // MySQL and PostgreSQL store as native datetime
			if err := row.Scan(&status.LastRunID, &status.LastRunTime); err != nil {
				return status, fmt.Errorf("failed to get last run info: %w", err)
			}
		}

		// Get oldest run time
		oldestRunQuery := fmt.Sprintf("SELECT start_time FROM %s ORDER BY run_id ASC LIMIT 1", quoteTableName(pipelineRunsTable, rs.backend))
		row = rs.db.QueryRow(oldestRunQuery)

		switch rs.backend {
		case schema.SQLiteBackend:
			var oldestRunTimeStr string
			if err := row.Scan(&oldestRunTimeStr); err != nil {
				return status, fmt.Errorf("failed to get oldest run time: %w", err)
			}
			oldestRunTime, err := time.Parse(time.RFC3339Nano, oldestRunTimeStr)
			if err != nil {
				return status, fmt.Errorf("failed to parse oldest run time: %w", err)
			}
			status.OldestRunTime = oldestRunTime
		default: // MySQL and PostgreSQL store as native datetime
			if err := row.Scan(&status.OldestRunTime); err != nil {
				return status, fmt.Errorf("failed to get oldest run time: %w", err)
			}
		}

		// Get total events kept across all runs
		eventsQuery := fmt.Sprintf("SELECT COALESCE(SUM(events_kept), 0) FROM %s", quoteTableName(pipelineRunsTable, rs.backend))
		row = rs.db.QueryRow(eventsQuery)
		if err := row.Scan(&status.TotalEventsKept); err != nil {
			return status, fmt.Errorf("failed to get total events kept: %w", err)
		}
	}

	// Get table sizes
	for _, table := range runTables {
		quotedTable := quoteTableName(table, rs.backend)
		countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s", quotedTable)
		row = rs.db.QueryRow(countQuery)
		var count int64
		if err := row.Scan(&count); err != nil {
			return status, fmt.Errorf("failed to get count for table %s: %w", table, err)
		}
		status.TableSizes[table] = count
	}

	return status, nil
}

// Close closes the underlying connection.
func (rs *RunStoreImpl) Close() error {
	if rs.db != nil {
		return rs.db.Close()
	}
	return nil
}

// metricValue unwraps a Metric into a nullable SQL value. Undefined metrics
// persist as NULL so a zero-denominator KPI never reads back as 0.0.
func metricValue(m schema.Metric) any {
	if !m.Defined {
		return nil
	}
	return m.Value
}

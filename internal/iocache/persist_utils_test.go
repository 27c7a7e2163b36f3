package iocache

import (
	"testing"
	"time"

	"github.com/huangsam/rewatch/schema"
	"github.com/stretchr/testify/assert"
)

// TestValidateTableName tests the validateTableName function with various inputs.
func TestValidateTableName(t *testing.T) {
	tests := []struct {
		name      string
		tableName string
		wantErr   bool
	}{
		{
			name:      "valid simple name",
			tableName: "test_table",
			wantErr:   false,
		},
		{
			name:      "valid name with numbers",
			tableName: "test_table_123",
			wantErr:   false,
		},
		{
			name:      "valid name starting with underscore",
			tableName: "_private_table",
			wantErr:   false,
		},
		{
			name:      "empty name",
			tableName: "",
			wantErr:   true,
		},
		{
			name:      "name with semicolon",
			tableName: "table;drop",
			wantErr:   true,
		},
		{
			name:      "name with spaces",
			tableName: "my table",
			wantErr:   true,
		},
		{
			name:      "name starting with number",
			tableName: "1table",
			wantErr:   true,
		},
		{
			name:      "name with quotes",
			tableName: `table"name`,
			wantErr:   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateTableName(tt.tableName)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestQuoteTableName(t *testing.T) {
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.SQLiteBackend))
	assert.Equal(t, `"runs"`, quoteTableName("runs", schema.PostgreSQLBackend))
	assert.Equal(t, "`runs`", quoteTableName("runs", schema.MySQLBackend))
}

func TestFormatTime(t *testing.T) {
	ts := time.Date(2025, 3, 1, 12, 30, 45, 123456789, time.UTC)

	// SQLite stores strings
	got := formatTime(ts, schema.SQLiteBackend)
	str, ok := got.(string)
	assert.True(t, ok, "SQLite times should format to strings")
	parsed, err := time.Parse(time.RFC3339Nano, str)
	assert.NoError(t, err)
	assert.True(t, parsed.Equal(ts), "Round trip should preserve the instant")

	// Other backends pass through native time.Time
	got = formatTime(ts, schema.PostgreSQLBackend)
	assert.Equal(t, ts, got)
	got = formatTime(ts, schema.MySQLBackend)
	assert.Equal(t, ts, got)
}

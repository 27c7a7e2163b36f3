package outwriter

import (
	"testing"
	"time"

	"github.com/huangsam/rewatch/internal/contract"
	"github.com/stretchr/testify/assert"
)

func TestGetMaxTableIDWidth(t *testing.T) {
	tests := []struct {
		name     string
		width    int
		expected int
	}{
		{name: "narrow terminal clamps to minimum", width: 60, expected: 12},
		{name: "default terminal", width: 80, expected: 25},
		{name: "wide terminal clamps to maximum", width: 200, expected: 36},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &contract.Config{Width: tt.width}
			assert.Equal(t, tt.expected, GetMaxTableIDWidth(cfg))
		})
	}
}

func TestEventSourceName(t *testing.T) {
	cfg := &contract.Config{EventsPath: "/data/exports/watch_log.csv"}
	assert.Equal(t, "watch_log.csv", eventSourceName(cfg))

	cfg = &contract.Config{EventsPath: "events.csv"}
	assert.Equal(t, "events.csv", eventSourceName(cfg))
}

func TestFormatCompareWindow(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	end := time.Date(2025, 3, 31, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "2025-01-01..2025-03-31", formatCompareWindow(start, end))
}

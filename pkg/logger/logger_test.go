package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	return &buf
}

func lines(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var m map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &m), line)
		out = append(out, m)
	}
	return out
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zerolog.WarnLevel, parseLevel("warning"))
	assert.Equal(t, zerolog.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zerolog.InfoLevel, parseLevel("verbose"))
}

func TestWithContext_RequestID(t *testing.T) {
	buf := capture(t)

	ctx := ContextWithRequestID(context.Background(), "req-1")
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	WithContext(ctx).Info().Msg("hello")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0]["request_id"])
	assert.Equal(t, "hello", entries[0]["message"])
}

func TestRotaLogger(t *testing.T) {
	buf := capture(t)
	l := NewRotaLogger("solver")

	day := time.Date(2025, 1, 6, 0, 0, 0, 0, time.UTC)
	l.StartRun("run-1", day, 3, 5)
	l.DayComplete("run-1", day, 4)
	l.RunComplete("run-1", time.Second, 4, errors.New("boom"))

	entries := lines(t, buf)
	require.Len(t, entries, 3)
	for _, e := range entries {
		assert.Equal(t, "solver", e["component"])
		assert.Equal(t, "run-1", e["run_id"])
	}
	assert.Equal(t, "2025-01-06", entries[0]["start_date"])
	assert.EqualValues(t, 4, entries[1]["created"])
	assert.Equal(t, "error", entries[2]["level"])
	assert.Equal(t, "boom", entries[2]["error"])
}

func TestWithFields(t *testing.T) {
	buf := capture(t)
	WithFields(map[string]interface{}{"employee_id": "E1"}).Warn().Msg("x")

	entries := lines(t, buf)
	require.Len(t, entries, 1)
	assert.Equal(t, "E1", entries[0]["employee_id"])
	assert.Equal(t, "warn", entries[0]["level"])
}

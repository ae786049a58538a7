package webui

import (
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogBufferCapturesZerolog(t *testing.T) {
	lb := NewLogBuffer(10)
	logger := zerolog.New(lb).With().Timestamp().Logger()

	logger.Warn().Str("component", "store").Msg("Refresh failed, keeping previous snapshot")
	logger.Info().Msg("Console started")

	entries := lb.GetEntries()
	require.Len(t, entries, 2)
	assert.Equal(t, "warn", entries[0].Level)
	assert.Equal(t, "store", entries[0].Component)
	assert.Equal(t, "Refresh failed, keeping previous snapshot", entries[0].Message)
	assert.Equal(t, "info", entries[1].Level)
	assert.Equal(t, "Console started", entries[1].Message)
}

func TestLogBufferKeepsNonJSONLines(t *testing.T) {
	lb := NewLogBuffer(2)
	_, err := lb.Write([]byte("plain text\n"))
	require.NoError(t, err)

	entries := lb.GetEntries()
	require.Len(t, entries, 1)
	assert.Equal(t, "info", entries[0].Level)
	assert.Equal(t, "plain text", entries[0].Message)
}

func TestLogBufferWrapsAround(t *testing.T) {
	lb := NewLogBuffer(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(lb, `{"level":"debug","message":"line %d"}`, i)
	}

	entries := lb.GetEntries()
	require.Len(t, entries, 3)
	assert.Equal(t, "line 2", entries[0].Message)
	assert.Equal(t, "line 4", entries[2].Message)

	recent := lb.GetRecentEntries(2)
	require.Len(t, recent, 2)
	assert.Equal(t, "line 3", recent[0].Message)

	lb.Clear()
	assert.Empty(t, lb.GetEntries())
}

func TestParseEntryTimestamps(t *testing.T) {
	received := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	unix := parseEntry(`{"level":"info","time":1700000000,"message":"x"}`, received)
	assert.Equal(t, int64(1700000000), unix.Timestamp.Unix())

	rfc := parseEntry(`{"level":"info","time":"2024-05-01T10:00:00Z","message":"x"}`, received)
	assert.Equal(t, time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC), rfc.Timestamp.UTC())

	missing := parseEntry(`{"level":"info","message":"x"}`, received)
	assert.Equal(t, received, missing.Timestamp)
}

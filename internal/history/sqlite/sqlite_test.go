package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-labs/vigilctl/internal/history"
)

func TestSQLiteSink_SendAndRecent(t *testing.T) {
	sink, err := New(":memory:")
	require.NoError(t, err)
	defer func() { _ = sink.Close() }()

	ctx := context.Background()
	events := []history.Event{
		{Type: history.EventStart, OccurredAt: time.Now().UTC(), PID: 100, TelegramEnabled: false},
		{Type: history.EventToggle, OccurredAt: time.Now().UTC(), PID: 101, TelegramEnabled: true, Detail: "applied"},
		{Type: history.EventCrash, OccurredAt: time.Now().UTC(), PID: 101, TelegramEnabled: true, Detail: "signal: killed"},
	}
	for _, e := range events {
		require.NoError(t, sink.Send(ctx, e))
	}

	got, err := sink.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 3)
	// newest first
	assert.Equal(t, history.EventCrash, got[0].Type)
	assert.Equal(t, "signal: killed", got[0].Detail)
	assert.Equal(t, 101, got[0].PID)
	assert.True(t, got[0].TelegramEnabled)
	assert.Equal(t, history.EventStart, got[2].Type)
	assert.Empty(t, got[2].Detail)
}

func TestSQLiteSink_EmptyPath(t *testing.T) {
	_, err := New("  ")
	require.Error(t, err)
}

func TestSQLiteSink_FileBacked(t *testing.T) {
	path := t.TempDir() + "/history.db"
	sink, err := New(path)
	require.NoError(t, err)
	require.NoError(t, sink.Send(context.Background(), history.Event{
		Type: history.EventStop, OccurredAt: time.Now().UTC(), PID: 7,
	}))
	require.NoError(t, sink.Close())

	// reopen and read back
	sink2, err := New(path)
	require.NoError(t, err)
	defer func() { _ = sink2.Close() }()
	got, err := sink2.Recent(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, history.EventStop, got[0].Type)
}

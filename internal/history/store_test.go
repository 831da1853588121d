package history

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")

	s1, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s1.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s2.Close())
}

func TestOpen_BadPath(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing", "dir", "history.db"))
	assert.Error(t, err)
}

func TestRecordAndList(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	id, err := s.Record(ctx, Entry{
		SessionID: "s1",
		Request:   "load",
		Path:      "in.xlsx",
		Status:    "success",
		Message:   "File loaded successfully",
		Stage:     "loaded",
		Duration:  1500 * time.Millisecond,
		CreatedAt: created,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), id)

	_, err = s.Record(ctx, Entry{
		SessionID: "s2",
		Request:   "process",
		Status:    "warning",
		Message:   "Please load a file first",
		Stage:     "idle",
	})
	require.NoError(t, err)

	entries, err := s.List(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "s2", entries[0].SessionID, "newest first")
	assert.False(t, entries[0].CreatedAt.IsZero())

	first := entries[1]
	assert.Equal(t, int64(1), first.ID)
	assert.Equal(t, "in.xlsx", first.Path)
	assert.Equal(t, "File loaded successfully", first.Message)
	assert.Equal(t, 1500*time.Millisecond, first.Duration)
	assert.True(t, created.Equal(first.CreatedAt))
}

func TestListLimitAndSession(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		session := "a"
		if i%2 == 1 {
			session = "b"
		}
		_, err := s.Record(ctx, Entry{
			SessionID: session,
			Request:   fmt.Sprintf("req-%d", i),
			Status:    "success",
			Message:   "ok",
			Stage:     "loaded",
		})
		require.NoError(t, err)
	}

	entries, err := s.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "req-4", entries[0].Request)
	assert.Equal(t, "req-3", entries[1].Request)

	all, err := s.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)

	b, err := s.ListSession(ctx, "b", 10)
	require.NoError(t, err)
	require.Len(t, b, 2)
	assert.Equal(t, "req-3", b[0].Request)
	assert.Equal(t, "req-1", b[1].Request)

	none, err := s.ListSession(ctx, "zzz", 10)
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestPing(t *testing.T) {
	s := openTestStore(t)
	assert.NoError(t, s.Ping(context.Background()))
}

package history

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func entryAt(id string, finished time.Time) Entry {
	return Entry{
		ID:          id,
		Keywords:    []string{"transformer", "大模型"},
		WindowDays:  1,
		MaxResults:  5,
		Language:    "chinese",
		Kind:        "completed",
		Message:     "search completed, 3 papers found",
		ResultCount: 3,
		StartedAt:   finished.Add(-2 * time.Second),
		FinishedAt:  finished,
	}
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)

	require.NoError(t, s.Record(ctx, entryAt("a", base)))
	require.NoError(t, s.Record(ctx, entryAt("b", base.Add(time.Hour))))
	require.NoError(t, s.Record(ctx, entryAt("c", base.Add(30*time.Minute))))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"b", "c", "a"}, []string{entries[0].ID, entries[1].ID, entries[2].ID})

	got := entries[2]
	assert.Equal(t, []string{"transformer", "大模型"}, got.Keywords)
	assert.Equal(t, 1, got.WindowDays)
	assert.Equal(t, 5, got.MaxResults)
	assert.Equal(t, "chinese", got.Language)
	assert.Equal(t, "completed", got.Kind)
	assert.Equal(t, 3, got.ResultCount)
	assert.True(t, got.FinishedAt.Equal(base))
	assert.Equal(t, 2*time.Second, got.Duration())
}

func TestRecentLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"a", "b", "c", "d"} {
		require.NoError(t, s.Record(ctx, entryAt(id, base.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "d", entries[0].ID)
	assert.Equal(t, "c", entries[1].ID)
}

func TestRecentEmpty(t *testing.T) {
	entries, err := openTestStore(t).Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestRecordReplacesSameID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	e := entryAt("a", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC))
	require.NoError(t, s.Record(ctx, e))

	e.Kind = "stopped"
	e.Message = "search stopped"
	require.NoError(t, s.Record(ctx, e))

	entries, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "stopped", entries[0].Kind)
}

func TestTimesNormalizedToUTC(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	tokyo := time.FixedZone("JST", 9*60*60)
	e := entryAt("a", time.Date(2025, 1, 15, 18, 0, 0, 0, tokyo))
	require.NoError(t, s.Record(ctx, e))

	entries, err := s.Recent(ctx, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, entries[0].FinishedAt.Equal(e.FinishedAt))
	assert.Equal(t, time.UTC, entries[0].FinishedAt.Location())
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Record(context.Background(), entryAt("a", time.Now())))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
	entries, err := s.Recent(context.Background(), 5)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestClosedStore(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "history.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Record(context.Background(), entryAt("a", time.Now())), ErrClosed)
	_, err = s.Recent(context.Background(), 1)
	assert.ErrorIs(t, err, ErrClosed)
}

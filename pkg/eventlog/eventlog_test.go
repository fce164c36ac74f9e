package eventlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStore(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "logs", "events.jsonl")
	store, err := Open(path)
	require.NoError(t, err, "failed to open store")
	return store, path
}

func TestOpen_Empty(t *testing.T) {
	store, _ := testStore(t)
	assert.Zero(t, store.Count())
}

func TestRecord(t *testing.T) {
	store, _ := testStore(t)
	fixed := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return fixed }

	require.NoError(t, store.Record("dances", true))

	events := store.List(0)
	require.Len(t, events, 1)
	ev := events[0]
	assert.NotEmpty(t, ev.ID, "expected ID to be generated")
	assert.True(t, ev.Time.Equal(fixed), "Time = %v, want %v", ev.Time, fixed)
	assert.Equal(t, "dances", ev.Library)
	assert.True(t, ev.Open)
}

func TestList_NewestFirst(t *testing.T) {
	store, _ := testStore(t)
	for _, lib := range []string{"a", "b", "c"} {
		require.NoError(t, store.Record(lib, false))
	}

	tests := []struct {
		limit int
		want  []string
	}{
		{0, []string{"c", "b", "a"}},
		{2, []string{"c", "b"}},
		{10, []string{"c", "b", "a"}},
	}
	for _, tt := range tests {
		var got []string
		for _, ev := range store.List(tt.limit) {
			got = append(got, ev.Library)
		}
		assert.Equal(t, tt.want, got, "List(%d)", tt.limit)
	}
}

func TestPersistence(t *testing.T) {
	store, path := testStore(t)
	first, err := store.Append(Event{Library: "dances_closed"})
	require.NoError(t, err)
	require.NoError(t, store.Record("dances", true))

	// a torn final line is skipped on reload
	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.WriteString(`{"id":"broken`)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	reopened, err := Open(path)
	require.NoError(t, err, "failed to reopen")
	require.Equal(t, 2, reopened.Count())
	oldest := reopened.List(0)[1]
	assert.Equal(t, first.ID, oldest.ID)
	assert.Equal(t, "dances_closed", oldest.Library)
}

func TestInMemory(t *testing.T) {
	store, err := Open("")
	require.NoError(t, err)
	require.NoError(t, store.Record("dances", true))
	assert.Equal(t, 1, store.Count())
	assert.Empty(t, store.Path())
}

package ledger_test

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pipecopy/internal/ledger"
)

func openStore(t *testing.T) *ledger.Store {
	t.Helper()
	store, err := ledger.Open(filepath.Join(t.TempDir(), "state", "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestRecordAndRecent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	require.NoError(t, store.Record(ctx, ledger.Entry{
		RunID: "run-a", Source: "/in/a.txt", Destination: "/out/a.txt",
		Outcome: ledger.OutcomeCopied, Bytes: 12, Duration: 30 * time.Millisecond,
	}))
	require.NoError(t, store.Record(ctx, ledger.Entry{
		RunID: "run-a", Source: "/in/missing.txt", Destination: "/out/missing.txt",
		Outcome: ledger.OutcomeFailed, Error: "no such file", ErrorKind: "copy",
	}))
	require.NoError(t, store.Record(ctx, ledger.Entry{
		RunID: "run-b", Source: "/in/b.txt", Destination: "/out/b.txt",
		Outcome: ledger.OutcomeCopied, Bytes: 8,
	}))

	all, err := store.Recent(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "/in/b.txt", all[0].Source, "newest first")
	assert.Equal(t, "no such file", all[1].Error)
	assert.Equal(t, "copy", all[1].ErrorKind)
	assert.Equal(t, 30*time.Millisecond, all[2].Duration)
	assert.False(t, all[2].RecordedAt.IsZero())

	failed, err := store.Recent(ctx, ledger.Filter{RunID: "run-a", Outcome: ledger.OutcomeFailed})
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, "/in/missing.txt", failed[0].Source)

	limited, err := store.Recent(ctx, ledger.Filter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestRecordRejectsUnknownOutcome(t *testing.T) {
	store := openStore(t)
	err := store.Record(context.Background(), ledger.Entry{RunID: "r", Source: "/x", Outcome: "skipped"})
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	for _, e := range []ledger.Entry{
		{RunID: "r1", Source: "/a", Outcome: ledger.OutcomeCopied, Bytes: 100},
		{RunID: "r1", Source: "/b", Outcome: ledger.OutcomeCopied, Bytes: 50},
		{RunID: "r1", Source: "/c", Outcome: ledger.OutcomeFailed},
		{RunID: "r2", Source: "/d", Outcome: ledger.OutcomeCopied, Bytes: 1},
	} {
		require.NoError(t, store.Record(ctx, e))
	}

	run, err := store.Summarize(ctx, "r1")
	require.NoError(t, err)
	assert.Equal(t, ledger.Summary{Copied: 2, Failed: 1, Bytes: 150}, run)

	total, err := store.Summarize(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, ledger.Summary{Copied: 3, Failed: 1, Bytes: 151}, total)

	empty, err := store.Summarize(ctx, "nope")
	require.NoError(t, err)
	assert.Equal(t, ledger.Summary{}, empty)
}

func TestPrune(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, store.Record(ctx, ledger.Entry{RunID: "r", Source: "/old", Outcome: ledger.OutcomeCopied, RecordedAt: old}))
	require.NoError(t, store.Record(ctx, ledger.Entry{RunID: "r", Source: "/new", Outcome: ledger.OutcomeCopied}))

	removed, err := store.Prune(ctx, time.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	left, err := store.Recent(ctx, ledger.Filter{})
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, "/new", left[0].Source)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Record(context.Background(), ledger.Entry{RunID: "r", Source: "/a", Outcome: ledger.OutcomeCopied}))
	require.NoError(t, store.Close())

	reopened, err := ledger.Open(path)
	require.NoError(t, err)
	defer reopened.Close()
	entries, err := reopened.Recent(context.Background(), ledger.Filter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestOpenDetectsSchemaMismatch(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := ledger.Open(path)
	require.NoError(t, err)
	require.NoError(t, store.Close())

	db, err := sql.Open("sqlite", path)
	require.NoError(t, err)
	_, err = db.Exec("PRAGMA user_version = 99")
	require.NoError(t, err)
	require.NoError(t, db.Close())

	_, err = ledger.Open(path)
	assert.True(t, errors.Is(err, ledger.ErrSchemaMismatch), "unexpected error %v", err)
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := ledger.Open("  ")
	assert.Error(t, err)
}

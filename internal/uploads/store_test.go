package uploads

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	store, err := OpenSQLite(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func pending(location string, at time.Time, metadata map[string]string) *types.PendingUpload {
	return &types.PendingUpload{FileLocation: location, Metadata: metadata, EnqueuedAt: at}
}

func TestSQLiteStore_PutGetList(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 123456789, time.UTC)

	require.NoError(t, store.Put(ctx, pending("file:///docs/b.pdf", base.Add(time.Second), map[string]string{"title": "B"})))
	require.NoError(t, store.Put(ctx, pending("file:///docs/a.pdf", base, map[string]string{"title": "A", "category": "tax"})))

	got, err := store.Get(ctx, "file:///docs/a.pdf")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, base, got.EnqueuedAt)
	if diff := cmp.Diff(map[string]string{"title": "A", "category": "tax"}, got.Metadata); diff != "" {
		t.Errorf("metadata mismatch (-want +got):\n%s", diff)
	}

	all, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "file:///docs/a.pdf", all[0].FileLocation, "oldest first")
	assert.Equal(t, "file:///docs/b.pdf", all[1].FileLocation)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestSQLiteStore_GetMissing(t *testing.T) {
	store := openTestStore(t)

	got, err := store.Get(context.Background(), "file:///nowhere.pdf")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSQLiteStore_PutReplacesExistingLocation(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, pending("file:///docs/a.pdf", base, map[string]string{"title": "old"})))
	require.NoError(t, store.Put(ctx, pending("file:///docs/a.pdf", base.Add(time.Minute), map[string]string{"title": "new"})))

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := store.Get(ctx, "file:///docs/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, "new", got.Metadata["title"])
	assert.Equal(t, base.Add(time.Minute), got.EnqueuedAt)
}

func TestSQLiteStore_DeleteOnlyMatchingEntry(t *testing.T) {
	store := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.Put(ctx, pending("file:///docs/a.pdf", base.Add(time.Minute), nil)))

	deleted, err := store.Delete(ctx, "file:///docs/a.pdf", base)
	require.NoError(t, err)
	assert.False(t, deleted, "entry was replaced after the stale timestamp")

	deleted, err = store.Delete(ctx, "file:///docs/a.pdf", base.Add(time.Minute))
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "queue.db")
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	store, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, store.Put(ctx, pending("file:///docs/a.pdf", at, map[string]string{"title": "Passport"})))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer reopened.Close()

	all, err := reopened.List(ctx)
	require.NoError(t, err)

	want := []*types.PendingUpload{pending("file:///docs/a.pdf", at, map[string]string{"title": "Passport"})}
	if diff := cmp.Diff(want, all); diff != "" {
		t.Errorf("queue mismatch after reopen (-want +got):\n%s", diff)
	}
}

func TestOpenSQLite_MigrationsWriteNothingToStdout(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	stdout := os.Stdout
	os.Stdout = w
	defer func() { os.Stdout = stdout }()

	store, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "queue.db"))
	os.Stdout = stdout
	require.NoError(t, w.Close())
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	out, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, string(out))
}

func newStoreWithMock(t *testing.T) (*SQLiteStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewSQLiteStore(db), mock
}

func TestSQLiteStore_PutDBError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+pending_uploads`).
		WithArgs("file:///docs/a.pdf", `{"title":"A"}`, sqlmock.AnyArg()).
		WillReturnError(errors.New("disk I/O error"))

	err := store.Put(context.Background(), pending("file:///docs/a.pdf", time.Now(), map[string]string{"title": "A"}))

	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrStorage))
	assert.Regexp(t, regexp.MustCompile(`failed to enqueue .*disk I/O error`), err.Error())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_CountDBError(t *testing.T) {
	store, mock := newStoreWithMock(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM pending_uploads`).WillReturnError(errors.New("database is locked"))

	_, err := store.Count(context.Background())

	assert.True(t, errors.Is(err, types.ErrStorage))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSQLiteStore_ListCorruptMetadata(t *testing.T) {
	store, mock := newStoreWithMock(t)

	rows := sqlmock.NewRows([]string{"location", "metadata", "enqueued_at"}).
		AddRow("file:///docs/a.pdf", "{not json", int64(1))
	mock.ExpectQuery(`SELECT location, metadata, enqueued_at FROM pending_uploads`).WillReturnRows(rows)

	_, err := store.List(context.Background())

	assert.True(t, errors.Is(err, types.ErrStorage))
}

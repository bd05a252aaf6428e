package uploads

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/eshaffer321/docvault-go/internal/types"
	"github.com/eshaffer321/docvault-go/internal/uploads/migrations"
	"github.com/pressly/goose/v3"

	_ "modernc.org/sqlite"
)

// Store persists uploads waiting for connectivity, keyed by file location
type Store interface {
	// Put inserts or replaces the entry for u.FileLocation
	Put(ctx context.Context, u *types.PendingUpload) error

	// Get returns the entry for location, or nil without error when absent
	Get(ctx context.Context, location string) (*types.PendingUpload, error)

	// List returns every entry, oldest first
	List(ctx context.Context) ([]*types.PendingUpload, error)

	// Delete removes the entry only if it is still the one enqueued at enqueuedAt
	Delete(ctx context.Context, location string, enqueuedAt time.Time) (bool, error)

	Count(ctx context.Context) (int, error)
	Close() error
}

// SQLiteStore keeps the queue in the pending_uploads table
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore wraps an open database whose schema is already migrated
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// OpenSQLite opens dsn with the pure-Go sqlite driver and migrates it
func OpenSQLite(ctx context.Context, dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, types.WrapStorage(err, "opening upload queue")
	}

	// every connection to :memory: is a separate database
	if strings.Contains(dsn, ":memory:") {
		db.SetMaxOpenConns(1)
	}

	if err := RunMigrations(ctx, db); err != nil {
		_ = db.Close()
		return nil, types.WrapStorage(err, "migrating upload queue")
	}

	return NewSQLiteStore(db), nil
}

// RunMigrations applies the embedded schema
func RunMigrations(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(goose.NopLogger())

	if err := goose.SetDialect("sqlite3"); err != nil {
		return err
	}

	return goose.UpContext(ctx, db, ".")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Put(ctx context.Context, u *types.PendingUpload) error {
	metadata, err := encodeMetadata(u.Metadata)
	if err != nil {
		return types.WrapStorage(err, "encoding metadata for %s", u.FileLocation)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO pending_uploads (location, metadata, enqueued_at) VALUES (?, ?, ?)
		ON CONFLICT(location) DO UPDATE SET metadata = excluded.metadata, enqueued_at = excluded.enqueued_at
	`, u.FileLocation, metadata, u.EnqueuedAt.UnixNano())
	if err != nil {
		return types.WrapStorage(err, "failed to enqueue %s", u.FileLocation)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, location string) (*types.PendingUpload, error) {
	var metadata string
	var enqueuedAt int64
	err := s.db.QueryRowContext(ctx, `SELECT metadata, enqueued_at FROM pending_uploads WHERE location = ?`, location).
		Scan(&metadata, &enqueuedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, types.WrapStorage(err, "failed to get %s", location)
	}
	return decodeRow(location, metadata, enqueuedAt)
}

func (s *SQLiteStore) List(ctx context.Context) ([]*types.PendingUpload, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT location, metadata, enqueued_at FROM pending_uploads ORDER BY enqueued_at, location`)
	if err != nil {
		return nil, types.WrapStorage(err, "failed to list pending uploads")
	}
	defer rows.Close()

	var result []*types.PendingUpload
	for rows.Next() {
		var location, metadata string
		var enqueuedAt int64
		if err := rows.Scan(&location, &metadata, &enqueuedAt); err != nil {
			return nil, types.WrapStorage(err, "failed to scan pending upload")
		}
		u, err := decodeRow(location, metadata, enqueuedAt)
		if err != nil {
			return nil, err
		}
		result = append(result, u)
	}

	if err := rows.Err(); err != nil {
		return nil, types.WrapStorage(err, "failed to iterate pending uploads")
	}

	return result, nil
}

func (s *SQLiteStore) Delete(ctx context.Context, location string, enqueuedAt time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM pending_uploads WHERE location = ? AND enqueued_at = ?`, location, enqueuedAt.UnixNano())
	if err != nil {
		return false, types.WrapStorage(err, "failed to delete %s", location)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, types.WrapStorage(err, "failed to delete %s", location)
	}
	return n > 0, nil
}

func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM pending_uploads`).Scan(&n); err != nil {
		return 0, types.WrapStorage(err, "failed to count pending uploads")
	}
	return n, nil
}

func encodeMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		metadata = map[string]string{}
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeRow(location, metadata string, enqueuedAt int64) (*types.PendingUpload, error) {
	u := &types.PendingUpload{
		FileLocation: location,
		Metadata:     map[string]string{},
		EnqueuedAt:   time.Unix(0, enqueuedAt).UTC(),
	}
	if metadata != "" {
		if err := json.Unmarshal([]byte(metadata), &u.Metadata); err != nil {
			return nil, types.WrapStorage(err, "failed to decode metadata for %s", location)
		}
	}
	return u, nil
}

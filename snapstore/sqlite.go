package snapstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/entitlemate/dbopen"
	"github.com/hazyhaar/entitlemate/snapshot"

	_ "modernc.org/sqlite"
)

// Schema holds the single snapshot row. id is pinned to 1.
const Schema = `
CREATE TABLE IF NOT EXISTS snapshot (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	body       TEXT    NOT NULL,
	records    INTEGER NOT NULL,
	updated_at INTEGER NOT NULL
);
`

// SQLiteStore keeps the snapshot in a one-row SQLite table.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// OpenSQLite opens (creating if needed) the database at cfg.Path.
func OpenSQLite(_ context.Context, cfg SQLiteConfig, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := dbopen.Open(cfg.Path,
		dbopen.WithMkdirAll(),
		dbopen.WithSynchronous("FULL"),
		dbopen.WithSchema(Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("snapstore: sqlite: %w", err)
	}
	return NewSQLite(db, logger), nil
}

// NewSQLite wraps an already opened database. Schema must have been applied.
func NewSQLite(db *sql.DB, logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteStore{db: db, logger: logger, now: time.Now}
}

func (s *SQLiteStore) Load(ctx context.Context) (snapshot.Snapshot, error) {
	return loadRaw(ctx, s.Raw)
}

func (s *SQLiteStore) Raw(ctx context.Context) ([]byte, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM snapshot WHERE id = 1`).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("snapstore: sqlite read: %w", err)
	}
	return []byte(body), nil
}

func (s *SQLiteStore) Save(ctx context.Context, snap snapshot.Snapshot) error {
	data, err := snapshot.Encode(snap)
	if err != nil {
		return err
	}
	err = dbopen.RunTx(ctx, s.db, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO snapshot (id, body, records, updated_at) VALUES (1, ?, ?, ?)
			ON CONFLICT(id) DO UPDATE SET
				body = excluded.body,
				records = excluded.records,
				updated_at = excluded.updated_at`,
			string(data), len(snap), s.now().UnixMilli())
		return err
	})
	if err != nil {
		return fmt.Errorf("snapstore: sqlite save: %w", err)
	}
	return nil
}

// UpdatedAt returns the time of the last save, or the zero time if none.
func (s *SQLiteStore) UpdatedAt(ctx context.Context) (time.Time, error) {
	var ms int64
	err := s.db.QueryRowContext(ctx, `SELECT updated_at FROM snapshot WHERE id = 1`).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("snapstore: sqlite updated_at: %w", err)
	}
	return time.UnixMilli(ms), nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

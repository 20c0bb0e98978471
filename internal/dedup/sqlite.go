package dedup

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS seen_fingerprints (
	fingerprint TEXT PRIMARY KEY,
	first_seen  TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS seen_urls (
	url        TEXT PRIMARY KEY,
	first_seen TIMESTAMP NOT NULL
);`

// SQLiteStore persists the seen-set in a local SQLite database. Inserts are
// idempotent, so saving the union of prior and current runs is a plain
// INSERT OR IGNORE.
type SQLiteStore struct {
	db     *sql.DB
	logger *zap.Logger
}

// NewSQLiteStore opens (and if needed creates) the database at path.
func NewSQLiteStore(path string, logger *zap.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open dedup store %s: %w", path, err)
	}
	// The store is touched once at run start and once at run end; a single
	// connection avoids SQLITE_BUSY on concurrent writes.
	db.SetMaxOpenConns(1)
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init dedup schema: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

// Load reads every persisted fingerprint and canonical URL.
func (s *SQLiteStore) Load(ctx context.Context) (SeenSet, error) {
	var set SeenSet

	fingerprints, err := s.loadColumn(ctx, "SELECT fingerprint FROM seen_fingerprints")
	if err != nil {
		return SeenSet{}, fmt.Errorf("load fingerprints: %w", err)
	}
	urls, err := s.loadColumn(ctx, "SELECT url FROM seen_urls")
	if err != nil {
		return SeenSet{}, fmt.Errorf("load urls: %w", err)
	}

	set.Fingerprints = fingerprints
	set.URLs = urls
	s.logger.Debug("dedup store loaded",
		zap.Int("fingerprints", len(fingerprints)),
		zap.Int("urls", len(urls)),
	)
	return set, nil
}

func (s *SQLiteStore) loadColumn(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

// Save upserts the set; entries already present keep their original
// first-seen timestamp.
func (s *SQLiteStore) Save(ctx context.Context, set SeenSet) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin dedup save: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().UTC()
	for _, fp := range set.Fingerprints {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO seen_fingerprints (fingerprint, first_seen) VALUES (?, ?)", fp, now); err != nil {
			return fmt.Errorf("save fingerprint: %w", err)
		}
	}
	for _, u := range set.URLs {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO seen_urls (url, first_seen) VALUES (?, ?)", u, now); err != nil {
			return fmt.Errorf("save url: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit dedup save: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

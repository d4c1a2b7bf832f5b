package cache

import (
	"context"
	"database/sql"

	_ "github.com/glebarez/go-sqlite"
	"github.com/pkg/errors"
)

// SQLiteStore persists the registry in a SQLite database, grounded on
// the teacher's own SQLiteCache, using the same pure-Go driver.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and migrates) a SQLite-backed registry at
// filename. An empty filename opens a shared-cache in-memory database;
// every store opened with an empty filename in the same process sees
// the same data.
func NewSQLiteStore(filename string) (*SQLiteStore, error) {
	if filename == "" {
		filename = "file::memory:?cache=shared"
	}
	db, err := sql.Open("sqlite", filename)
	if err != nil {
		return nil, errors.Wrap(err, "cache: open sqlite")
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS entries (
		cache_name TEXT NOT NULL,
		url        TEXT NOT NULL,
		body       BLOB,
		PRIMARY KEY (cache_name, url)
	)`); err != nil {
		return nil, errors.Wrap(err, "cache: migrate sqlite")
	}
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return nil, errors.Wrap(err, "cache: set journal mode")
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Load(ctx context.Context, cacheName, url string) ([]byte, bool, error) {
	var body []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT body FROM entries WHERE cache_name = ? AND url = ?`, cacheName, url,
	).Scan(&body)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "cache: load")
	}
	out, err := decompress(body)
	if err != nil {
		return nil, false, err
	}
	return out, true, nil
}

func (s *SQLiteStore) Store(ctx context.Context, cacheName, url string, body []byte) error {
	compressed, err := compress(body)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO entries (cache_name, url, body) VALUES (?, ?, ?)
		 ON CONFLICT(cache_name, url) DO UPDATE SET body = excluded.body`,
		cacheName, url, compressed)
	return errors.Wrap(err, "cache: store")
}

func (s *SQLiteStore) Keys(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT cache_name FROM entries`)
	if err != nil {
		return nil, errors.Wrap(err, "cache: keys")
	}
	defer rows.Close()
	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

func (s *SQLiteStore) URLs(ctx context.Context, cacheName string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT url FROM entries WHERE cache_name = ?`, cacheName)
	if err != nil {
		return nil, errors.Wrap(err, "cache: urls")
	}
	defer rows.Close()
	var urls []string
	for rows.Next() {
		var u string
		if err := rows.Scan(&u); err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}
	return urls, rows.Err()
}

func (s *SQLiteStore) Remove(ctx context.Context, cacheName string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM entries WHERE cache_name = ?`, cacheName)
	return errors.Wrap(err, "cache: remove")
}

package cache

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// SQLiteCache implements Cache using modernc.org/sqlite.
type SQLiteCache struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path, configures WAL
// mode, and creates the cache table.
func NewSQLite(dsn string) (*SQLiteCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "cache: sqlite open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "cache: sqlite exec %s", pragma)
		}
	}
	if _, err := db.Exec(sqliteMigration); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "cache: sqlite migrate")
	}
	return &SQLiteCache{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS trend_cache (
	id         TEXT PRIMARY KEY,
	cache_key  TEXT NOT NULL,
	payload    BLOB NOT NULL,
	cached_at  DATETIME NOT NULL,
	expires_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trend_cache_key ON trend_cache(cache_key);
CREATE INDEX IF NOT EXISTS idx_trend_cache_expires_at ON trend_cache(expires_at);
`

func (c *SQLiteCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM trend_cache WHERE cache_key = ? AND expires_at > ? ORDER BY cached_at DESC LIMIT 1`,
		key, time.Now().UTC(),
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: sqlite get")
	}
	return payload, true, nil
}

func (c *SQLiteCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO trend_cache (id, cache_key, payload, cached_at, expires_at) VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), key, payload, now, now.Add(ttl),
	)
	return eris.Wrap(err, "cache: sqlite set")
}

func (c *SQLiteCache) Purge(ctx context.Context) (int, error) {
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM trend_cache WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite purge")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "cache: sqlite purge rows affected")
	}
	return int(n), nil
}

func (c *SQLiteCache) Close() error {
	return c.db.Close()
}

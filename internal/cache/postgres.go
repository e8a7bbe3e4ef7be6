package cache

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
)

// PostgresCache implements Cache using pgxpool.
type PostgresCache struct {
	pool *pgxpool.Pool
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS trend_cache (
	id         UUID PRIMARY KEY,
	cache_key  TEXT NOT NULL,
	payload    BYTEA NOT NULL,
	cached_at  TIMESTAMPTZ NOT NULL,
	expires_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_trend_cache_key ON trend_cache(cache_key);
CREATE INDEX IF NOT EXISTS idx_trend_cache_expires_at ON trend_cache(expires_at);
`

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_entry":     `SELECT payload FROM trend_cache WHERE cache_key = $1 AND expires_at > now() ORDER BY cached_at DESC LIMIT 1`,
	"set_entry":     `INSERT INTO trend_cache (id, cache_key, payload, cached_at, expires_at) VALUES ($1, $2, $3, $4, $5)`,
	"purge_expired": `DELETE FROM trend_cache WHERE expires_at <= now()`,
}

// NewPostgres creates a PostgresCache with a connection pool and runs the
// migration.
func NewPostgres(ctx context.Context, connString string) (*PostgresCache, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres parse config")
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute
	cfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "cache: postgres prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, eris.Wrap(err, "cache: postgres create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: postgres ping")
	}
	if _, err := pool.Exec(ctx, postgresMigration); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "cache: postgres migrate")
	}
	return &PostgresCache{pool: pool}, nil
}

func (c *PostgresCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var payload []byte
	err := c.pool.QueryRow(ctx, "get_entry", key).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrap(err, "cache: postgres get")
	}
	return payload, true, nil
}

func (c *PostgresCache) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error {
	now := time.Now().UTC()
	_, err := c.pool.Exec(ctx, "set_entry",
		uuid.New().String(), key, payload, now, now.Add(ttl))
	return eris.Wrap(err, "cache: postgres set")
}

func (c *PostgresCache) Purge(ctx context.Context) (int, error) {
	tag, err := c.pool.Exec(ctx, "purge_expired")
	if err != nil {
		return 0, eris.Wrap(err, "cache: postgres purge")
	}
	return int(tag.RowsAffected()), nil
}

func (c *PostgresCache) Close() error {
	c.pool.Close()
	return nil
}

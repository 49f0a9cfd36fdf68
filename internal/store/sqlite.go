// Package store persists geocoding lookups in a local SQLite file.
package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/liability-cli/pkg/geocode"
)

// GeocodeCache implements geocode.Cache on SQLite using modernc.org/sqlite.
type GeocodeCache struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewGeocodeCache opens the SQLite database at dsn and configures WAL mode.
// A zero ttl keeps entries forever.
func NewGeocodeCache(dsn string, ttl time.Duration) (*GeocodeCache, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &GeocodeCache{db: db, ttl: ttl, now: time.Now}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS geocode_cache (
	query        TEXT PRIMARY KEY,
	latitude     REAL NOT NULL,
	longitude    REAL NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	cached_at    DATETIME NOT NULL
);
`

// Migrate creates the cache table.
func (c *GeocodeCache) Migrate(ctx context.Context) error {
	_, err := c.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the underlying database.
func (c *GeocodeCache) Close() error {
	return c.db.Close()
}

// Get implements geocode.Cache. Expired entries are reported as misses.
func (c *GeocodeCache) Get(ctx context.Context, key string) (*geocode.Result, bool, error) {
	var r geocode.Result
	var cachedAt time.Time
	err := c.db.QueryRowContext(ctx,
		`SELECT latitude, longitude, display_name, cached_at FROM geocode_cache WHERE query = ?`,
		key,
	).Scan(&r.Latitude, &r.Longitude, &r.DisplayName, &cachedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, eris.Wrapf(err, "sqlite: get geocode %q", key)
	}
	if c.ttl > 0 && c.now().Sub(cachedAt) > c.ttl {
		return nil, false, nil
	}
	r.Source = "cache"
	return &r, true, nil
}

// Put implements geocode.Cache.
func (c *GeocodeCache) Put(ctx context.Context, key string, r *geocode.Result) error {
	_, err := c.db.ExecContext(ctx, `
		INSERT INTO geocode_cache (query, latitude, longitude, display_name, cached_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (query) DO UPDATE SET
			latitude = excluded.latitude,
			longitude = excluded.longitude,
			display_name = excluded.display_name,
			cached_at = excluded.cached_at`,
		key, r.Latitude, r.Longitude, r.DisplayName, c.now().UTC(),
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: put geocode %q", key)
	}
	return nil
}

// Purge deletes entries older than the TTL and returns how many were removed.
func (c *GeocodeCache) Purge(ctx context.Context) (int, error) {
	if c.ttl <= 0 {
		return 0, nil
	}
	res, err := c.db.ExecContext(ctx,
		`DELETE FROM geocode_cache WHERE cached_at < ?`,
		c.now().UTC().Add(-c.ttl),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge geocode cache")
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: purge rows affected")
	}
	return int(n), nil
}

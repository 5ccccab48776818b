// Package calculations provides a TTL cache for expensive computed
// artifacts, backed by the cache database. Entries are keyed by
// (kind, hash) where the hash is derived from the inputs, so a change in
// the underlying panel data naturally misses the cache instead of
// serving a stale result.
package calculations

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"
)

// DefaultResultTTL is how long computed results stay fresh when the
// caller does not configure a TTL.
const DefaultResultTTL = 24 * time.Hour

// Cache is a SQLite-backed key/value store with per-entry expiry.
// Payloads are opaque msgpack blobs; callers own the schema of what
// they store.
type Cache struct {
	db        *sql.DB
	resultTTL time.Duration
	log       zerolog.Logger
}

// NewCache creates a new calculation cache. resultTTL controls how long
// entries stored without an explicit TTL stay fresh; zero or negative
// falls back to DefaultResultTTL.
func NewCache(db *sql.DB, resultTTL time.Duration, log zerolog.Logger) *Cache {
	if resultTTL <= 0 {
		resultTTL = DefaultResultTTL
	}
	return &Cache{
		db:        db,
		resultTTL: resultTTL,
		log:       log.With().Str("component", "calc_cache").Logger(),
	}
}

// Get returns the raw blob stored under (kind, hash), if present and
// not expired. Expired rows are treated as misses and left for the
// cleanup job to remove.
func (c *Cache) Get(kind, hash string) ([]byte, bool) {
	var value []byte
	err := c.db.QueryRow(`
		SELECT value FROM calc_cache
		WHERE kind = ? AND hash = ? AND expires_at > ?
	`, kind, hash, time.Now().Unix()).Scan(&value)
	if err != nil {
		if err != sql.ErrNoRows {
			c.log.Warn().Err(err).Str("kind", kind).Msg("Cache read failed")
		}
		return nil, false
	}
	return value, true
}

// Set stores data under (kind, hash) with the given TTL, replacing any
// previous entry. A non-positive TTL falls back to the configured
// result TTL.
func (c *Cache) Set(kind, hash string, data []byte, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = c.resultTTL
	}
	now := time.Now().Unix()

	_, err := c.db.Exec(`
		INSERT OR REPLACE INTO calc_cache (kind, hash, value, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?)
	`, kind, hash, data, now, now+int64(ttl.Seconds()))
	if err != nil {
		return fmt.Errorf("failed to cache %s entry: %w", kind, err)
	}
	return nil
}

// GetValue is Get plus msgpack decoding into out. A corrupt blob counts
// as a miss; the caller recomputes and overwrites it.
func (c *Cache) GetValue(kind, hash string, out interface{}) bool {
	data, ok := c.Get(kind, hash)
	if !ok {
		return false
	}
	if err := msgpack.Unmarshal(data, out); err != nil {
		c.log.Warn().Err(err).Str("kind", kind).Msg("Failed to decode cached entry, treating as miss")
		return false
	}
	return true
}

// SetValue is Set plus msgpack encoding.
func (c *Cache) SetValue(kind, hash string, value interface{}, ttl time.Duration) error {
	data, err := msgpack.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s entry: %w", kind, err)
	}
	return c.Set(kind, hash, data, ttl)
}

// Invalidate removes every entry of one kind.
func (c *Cache) Invalidate(kind string) error {
	result, err := c.db.Exec(`DELETE FROM calc_cache WHERE kind = ?`, kind)
	if err != nil {
		return fmt.Errorf("failed to invalidate %s entries: %w", kind, err)
	}
	if removed, err := result.RowsAffected(); err == nil && removed > 0 {
		c.log.Debug().Str("kind", kind).Int64("removed", removed).Msg("Invalidated cache entries")
	}
	return nil
}

// Cleanup deletes expired entries and returns how many were removed.
func (c *Cache) Cleanup() (int64, error) {
	result, err := c.db.Exec(`DELETE FROM calc_cache WHERE expires_at <= ?`, time.Now().Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to clean cache: %w", err)
	}

	removed, err := result.RowsAffected()
	if err != nil {
		return 0, nil
	}
	if removed > 0 {
		c.log.Info().Int64("removed", removed).Msg("Removed expired cache entries")
	}
	return removed, nil
}

// Count returns how many entries the cache currently holds, expired
// ones included.
func (c *Cache) Count() (int64, error) {
	var count int64
	if err := c.db.QueryRow(`SELECT COUNT(*) FROM calc_cache`).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count cache entries: %w", err)
	}
	return count, nil
}

// HashParts builds a deterministic cache hash from ordered key parts.
func HashParts(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "|")))
	return hex.EncodeToString(h[:16])
}

// HashSymbols builds an order-independent hash from a symbol list.
func HashSymbols(symbols []string) string {
	sorted := make([]string, len(symbols))
	copy(sorted, symbols)
	sort.Strings(sorted)
	return HashParts(strings.Join(sorted, ","))
}

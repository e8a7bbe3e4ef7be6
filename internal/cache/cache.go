// Package cache persists trend run results so repeated dashboard queries
// over the same range skip the upstream APIs.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/echelon-media/centerboard/internal/bucket"
)

// Cache stores opaque payloads under content-derived keys with a TTL.
type Cache interface {
	// Get returns the freshest unexpired payload for the key, with ok
	// false when nothing usable is stored.
	Get(ctx context.Context, key string) (payload []byte, ok bool, err error)
	// Set stores a payload under the key, expiring after ttl.
	Set(ctx context.Context, key string, payload []byte, ttl time.Duration) error
	// Purge deletes expired entries and reports how many were removed.
	Purge(ctx context.Context) (int, error)
	Close() error
}

// Key derives the cache key of one trend query. The scope keeps payloads of
// different query kinds apart; center names are folded and sorted so
// selection order and casing do not fragment the cache.
func Key(scope string, start, end time.Time, policy bucket.Policy, centerNames []string) string {
	names := make([]string, len(centerNames))
	for i, n := range centerNames {
		names[i] = strings.ToLower(strings.TrimSpace(n))
	}
	sort.Strings(names)

	canonical := scope + "|" + start.Format("2006-01-02") + "|" + end.Format("2006-01-02") +
		"|" + policy.String() + "|" + strings.Join(names, ",")
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

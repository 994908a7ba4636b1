package bookmark

import (
	"context"
	"time"
)

// ExportKey is the bookmark key used by the analytics event exporter.
const ExportKey = "piwik_export:bookmark"

// Store is a durable single-value checkpoint per pipeline. Implementations
// must treat a missing key as a valid state, not an error.
type Store interface {
	// Get returns the bookmark for key. The boolean reports whether a
	// bookmark exists.
	Get(ctx context.Context, key string) (time.Time, bool, error)

	// Set unconditionally writes the bookmark for key, with no expiry.
	Set(ctx context.Context, key string, ts time.Time) error

	// SetIfLater advances the bookmark for key only if ts is strictly later
	// than the stored value (or no value is stored). It reports whether the
	// bookmark was advanced.
	SetIfLater(ctx context.Context, key string, ts time.Time) (bool, error)
}

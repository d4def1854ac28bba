package vocabulary

import (
	"context"

	"github.com/turtacn/metabo-search/internal/infrastructure/monitoring/logging"
)

// UnknownType is the name reported for identifier type keys the cache does
// not know.
const UnknownType = "unknown"

// TypeEntry describes an identifier type.  Accession may be empty.
type TypeEntry struct {
	Name      string `json:"name"`
	Accession string `json:"accession,omitempty"`
}

// TypeCache maps identifier type keys to human-readable names.  It is safe
// for concurrent use and is populated at most once.
type TypeCache struct {
	store   Store
	markers Markers
	logger  logging.Logger

	init    lazyInit
	entries map[int64]TypeEntry
}

// NewTypeCache creates an unpopulated TypeCache.
func NewTypeCache(store Store, markers Markers, logger logging.Logger) *TypeCache {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	return &TypeCache{store: store, markers: markers, logger: logger.Named("type_cache")}
}

// Initialize populates the cache on first successful call; later calls
// return immediately.  Concurrent callers trigger a single population.
func (c *TypeCache) Initialize(ctx context.Context) error {
	return c.init.do(ctx, func(ctx context.Context) error {
		terms, err := loadTerms(ctx, c.store, c.markers, c.logger)
		if err != nil {
			return err
		}
		entries := make(map[int64]TypeEntry, len(terms))
		for id, t := range terms {
			if t.name == "" {
				continue
			}
			entries[id] = TypeEntry{Name: t.name, Accession: t.accession}
		}
		c.entries = entries
		c.logger.Info("type cache initialized", logging.Int("entries", len(entries)))
		return nil
	})
}

// Initialized reports whether population has completed.
func (c *TypeCache) Initialized() bool { return c.init.initialized() }

// Lookup returns the entry for key.  Before initialization every key is
// absent.
func (c *TypeCache) Lookup(key int64) (TypeEntry, bool) {
	if !c.init.initialized() {
		return TypeEntry{}, false
	}
	e, ok := c.entries[key]
	return e, ok
}

// Resolve returns the type name for key, or UnknownType.
func (c *TypeCache) Resolve(key int64) string {
	if e, ok := c.Lookup(key); ok {
		return e.Name
	}
	return UnknownType
}

// Len returns the number of cached types.
func (c *TypeCache) Len() int {
	if !c.init.initialized() {
		return 0
	}
	return len(c.entries)
}

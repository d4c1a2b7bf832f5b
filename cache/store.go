// Package cache implements the named-cache registry: a thin
// abstraction over the host's content store that the dispatch engine
// and lifecycle controller use to load, store, list, and delete
// per-group caches plus the two reserved manifest-text caches.
//
// Implementations must be safe for concurrent use.
package cache

import "context"

// Reserved cache names. Group cache names are derived by
// manifest.Group.CacheName and always begin with "ngsw.cache.".
const (
	Active     = "ngsw.active"
	Installing = "ngsw.installing"
)

// ManifestURL is the key under which the serialized manifest text is
// stored in Active and Installing.
const ManifestURL = "/manifest.appcache"

// Store is the named-cache registry contract. Load never returns an
// error for a missing cache or a missing key within an existing cache
// — both cases are plain misses (ok == false).
type Store interface {
	// Load returns the stored response bytes for url within cacheName.
	// A missing cache is treated identically to a cache miss.
	Load(ctx context.Context, cacheName, url string) ([]byte, bool, error)
	// Store creates cacheName on demand and overwrites any prior value
	// for url.
	Store(ctx context.Context, cacheName, url string, body []byte) error
	// Keys lists every cache name this registry has created.
	Keys(ctx context.Context) ([]string, error)
	// URLs lists every URL stored within cacheName.
	URLs(ctx context.Context, cacheName string) ([]string, error)
	// Remove deletes cacheName and everything stored within it. It is a
	// no-op if cacheName does not exist.
	Remove(ctx context.Context, cacheName string) error
}

package cacheaside

import "context"

//go:generate mockgen -source ports.go -destination=ports_mock_test.go -package=cacheaside

// Cache is the key/value backend. Get returns cache.ErrMiss for absent keys;
// SetMany and DeleteMany must apply all keys in one call.
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	SetMany(ctx context.Context, entries map[string][]byte) error
	DeleteMany(ctx context.Context, keys ...string) (int64, error)
}

type Metrics interface {
	IncCacheHit()
	IncCacheMiss()
}

// Package cache holds the key/value backends used by the cache-aside
// repositories. Values are opaque byte strings; multi-key calls are atomic
// within one backend call.
package cache

import "errors"

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

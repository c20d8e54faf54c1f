package cache

import (
	"context"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// LRU is an in-process backend. The mutex makes SetMany and DeleteMany
// atomic with respect to each other, not only per key.
type LRU struct {
	mu  sync.Mutex
	lru *lru.Cache[string, []byte]
}

func NewLRU(size int) (*LRU, error) {
	if size < 1 {
		size = 1
	}
	c, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &LRU{lru: c}, nil
}

func (c *LRU) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	v, ok := c.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, nil
}

func (c *LRU) SetMany(_ context.Context, entries map[string][]byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for k, v := range entries {
		stored := make([]byte, len(v))
		copy(stored, v)
		c.lru.Add(k, stored)
	}
	return nil
}

func (c *LRU) DeleteMany(_ context.Context, keys ...string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var n int64
	for _, k := range keys {
		if c.lru.Remove(k) {
			n++
		}
	}
	return n, nil
}

func (c *LRU) Len() int {
	return c.lru.Len()
}

// Package cacheaside decorates an authoritative store of entities that are
// addressable both by id and by one immutable alias. Two cache entries are
// kept per entity: the id key holds the serialized entity, the alias key
// holds only the id. Both are always written and evicted in one cache call.
package cacheaside

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/TemirB/coursemarket/internal/cache"
)

type Entity interface {
	EntityID() uuid.UUID
	EntityAlias() string
}

// Store is the capability shared by the authoritative store and the cached
// repository. Absence is reported as a nil entity with a nil error.
type Store[T Entity] interface {
	Create(ctx context.Context, entity T) (*T, error)
	GetByID(ctx context.Context, id uuid.UUID) (*T, error)
	GetByAlias(ctx context.Context, alias string) (*T, error)
	GetAll(ctx context.Context, filter string, page, pageSize int) ([]T, error)
	Update(ctx context.Context, entity T) (*T, error)
	Delete(ctx context.Context, id uuid.UUID) (bool, error)
}

type Repository[T Entity] struct {
	store   Store[T]
	cache   Cache
	keys    Keys
	logger  *zap.Logger
	metrics Metrics
}

func New[T Entity](store Store[T], c Cache, keys Keys, logger *zap.Logger, metrics Metrics) *Repository[T] {
	return &Repository[T]{
		store:   store,
		cache:   c,
		keys:    keys,
		logger:  logger,
		metrics: metrics,
	}
}

func (r *Repository[T]) Create(ctx context.Context, entity T) (*T, error) {
	created, err := r.store.Create(ctx, entity)
	if err != nil || created == nil {
		return created, err
	}
	r.populate(ctx, *created)
	return created, nil
}

func (r *Repository[T]) GetByID(ctx context.Context, id uuid.UUID) (*T, error) {
	key := r.keys.ID(id)
	if raw, ok := r.lookup(ctx, key); ok {
		var entity T
		err := json.Unmarshal(raw, &entity)
		if err == nil {
			r.metrics.IncCacheHit()
			return &entity, nil
		}
		r.logger.Warn("Corrupt cache entry, falling back to store",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	r.metrics.IncCacheMiss()

	entity, err := r.store.GetByID(ctx, id)
	if err != nil || entity == nil {
		return entity, err
	}
	r.populate(ctx, *entity)
	return entity, nil
}

func (r *Repository[T]) GetByAlias(ctx context.Context, alias string) (*T, error) {
	key := r.keys.Alias(alias)
	if raw, ok := r.lookup(ctx, key); ok {
		id, err := uuid.ParseBytes(raw)
		if err == nil {
			entity, err := r.GetByID(ctx, id)
			if err == nil && entity == nil {
				r.evict(ctx, key)
			}
			return entity, err
		}
		r.logger.Warn("Corrupt alias entry, falling back to store",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	r.metrics.IncCacheMiss()

	entity, err := r.store.GetByAlias(ctx, alias)
	if err != nil || entity == nil {
		return entity, err
	}
	r.populate(ctx, *entity)
	return entity, nil
}

// GetAll is never cached: list queries are not addressable by a single key.
func (r *Repository[T]) GetAll(ctx context.Context, filter string, page, pageSize int) ([]T, error) {
	return r.store.GetAll(ctx, filter, page, pageSize)
}

func (r *Repository[T]) Update(ctx context.Context, entity T) (*T, error) {
	updated, err := r.store.Update(ctx, entity)
	if err != nil || updated == nil {
		return updated, err
	}
	r.populate(ctx, *updated)
	return updated, nil
}

// Delete reports the store outcome. Once the store confirms the row is gone
// the result is true whatever happens to the cache afterwards.
func (r *Repository[T]) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	deleted, err := r.store.Delete(ctx, id)
	if err != nil || !deleted {
		return deleted, err
	}

	idKey := r.keys.ID(id)
	raw, ok := r.lookup(ctx, idKey)
	if !ok {
		return true, nil
	}

	keys := []string{idKey}
	var entity T
	// Without a readable primary entry the alias is unknown here. A stale
	// alias key then points at a missing id; GetByAlias evicts it on the
	// next read when the store reports the entity absent.
	if err := json.Unmarshal(raw, &entity); err != nil {
		r.logger.Warn("Corrupt cache entry on delete, alias key left in place",
			zap.String("key", idKey),
			zap.Error(err),
		)
	} else {
		keys = append(keys, r.keys.Alias(entity.EntityAlias()))
	}

	n, err := r.cache.DeleteMany(ctx, keys...)
	if err != nil {
		r.logger.Warn("Error while evicting deleted entity from cache",
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return true, nil
	}
	if n == 0 {
		r.logger.Debug("Cache entries already gone on delete",
			zap.String("id", id.String()),
		)
	}
	return true, nil
}

func (r *Repository[T]) lookup(ctx context.Context, key string) ([]byte, bool) {
	raw, err := r.cache.Get(ctx, key)
	if err == nil {
		return raw, true
	}
	if !errors.Is(err, cache.ErrMiss) {
		r.logger.Warn("Error while reading cache, treating as miss",
			zap.String("key", key),
			zap.Error(err),
		)
	}
	return nil, false
}

func (r *Repository[T]) populate(ctx context.Context, entity T) {
	id := entity.EntityID()
	serialized, err := json.Marshal(entity)
	if err != nil {
		r.logger.Warn("Error while serializing entity for cache",
			zap.String("id", id.String()),
			zap.Error(err),
		)
		return
	}

	if err := r.cache.SetMany(ctx, map[string][]byte{
		r.keys.ID(id):                      serialized,
		r.keys.Alias(entity.EntityAlias()): []byte(id.String()),
	}); err != nil {
		r.logger.Warn("Error while set entity in cache",
			zap.String("id", id.String()),
			zap.Error(err),
		)
	}
}

func (r *Repository[T]) evict(ctx context.Context, keys ...string) {
	if _, err := r.cache.DeleteMany(ctx, keys...); err != nil {
		r.logger.Warn("Error while evicting cache keys",
			zap.Strings("keys", keys),
			zap.Error(err),
		)
	}
}

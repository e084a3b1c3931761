package adapters

import (
	"context"
	"errors"
	"time"

	"github.com/otcheredev/dicomweb-bridge/internal/cache"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/rs/zerolog/log"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// CachedAdapter caches retrieved instances as Part 10 bytes in front of
// another store. Searches pass through.
type CachedAdapter struct {
	DataStore
	cache   cache.Cache
	ttl     time.Duration
	metrics *metrics.Metrics
}

// NewCachedAdapter wraps inner. m may be nil.
func NewCachedAdapter(inner DataStore, c cache.Cache, ttl time.Duration, m *metrics.Metrics) *CachedAdapter {
	return &CachedAdapter{
		DataStore: inner,
		cache:     c,
		ttl:       ttl,
		metrics:   m,
	}
}

// RetrieveInstance serves from cache, falling back to the inner store. Cache
// failures are logged and never fail the request.
func (c *CachedAdapter) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	key := cache.InstanceKey(studyUID, seriesUID, sopInstanceUID)

	data, err := c.cache.Get(ctx, key)
	switch {
	case err == nil:
		ds, perr := part10.Read(data)
		if perr == nil {
			c.metrics.CacheResult("hit")
			return ds, nil
		}
		log.Warn().Err(perr).Str("key", key).Msg("Dropping unreadable cache entry")
		c.cache.Delete(ctx, key)
		c.metrics.CacheResult("error")
	case errors.Is(err, cache.ErrCacheMiss):
		c.metrics.CacheResult("miss")
	default:
		log.Warn().Err(err).Str("key", key).Msg("Cache lookup failed")
		c.metrics.CacheResult("error")
	}

	ds, err := c.DataStore.RetrieveInstance(ctx, studyUID, seriesUID, sopInstanceUID)
	if err != nil {
		return dicom.Dataset{}, err
	}

	if b, err := part10.Bytes(ds); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Instance not cacheable")
	} else if err := c.cache.Set(ctx, key, b, c.ttl); err != nil {
		log.Warn().Err(err).Str("key", key).Msg("Cache write failed")
	}
	return ds, nil
}

// StoreInstance forwards to the inner store when it is a Writer and drops
// every cached instance of the stored study. Study level attributes are
// repeated in each instance, so a corrected upload invalidates its siblings.
func (c *CachedAdapter) StoreInstance(ctx context.Context, ds dicom.Dataset) error {
	w, ok := c.DataStore.(Writer)
	if !ok {
		return ErrReadOnly
	}
	if err := w.StoreInstance(ctx, ds); err != nil {
		return err
	}

	pattern := cache.StudyPattern(part10.StringValue(ds, tag.StudyInstanceUID))
	if err := c.cache.Clear(ctx, pattern); err != nil {
		log.Warn().Err(err).Str("pattern", pattern).Msg("Cache invalidation failed")
	}
	return nil
}

// ReadOnly reports whether the inner store refuses uploads
func (c *CachedAdapter) ReadOnly() bool {
	w, ok := c.DataStore.(Writer)
	return !ok || w.ReadOnly()
}

// Ping probes the cache backend when it supports it
func (c *CachedAdapter) Ping(ctx context.Context) error {
	if p, ok := c.cache.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Close closes the inner store, then the cache
func (c *CachedAdapter) Close() error {
	err := c.DataStore.Close()
	if cerr := c.cache.Close(); err == nil {
		err = cerr
	}
	return err
}

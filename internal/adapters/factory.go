package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/otcheredev/dicomweb-bridge/internal/cache"
	"github.com/otcheredev/dicomweb-bridge/internal/config"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/internal/repository"
	"github.com/otcheredev/dicomweb-bridge/pkg/client"
	"github.com/rs/zerolog/log"
)

// NewDataStore builds the store selected by cfg.Store.Type and wraps it in a
// cache when caching is enabled. The database store expects
// database.Connect to have succeeded.
func NewDataStore(ctx context.Context, cfg *config.Config, m *metrics.Metrics) (DataStore, error) {
	var store DataStore

	switch cfg.Store.Type {
	case models.StoreTypeMemory:
		mem := NewMemoryAdapter(cfg.Store.ReadOnly)
		if _, err := os.Stat(cfg.Store.Dir); err == nil {
			if _, err := mem.LoadDir(cfg.Store.Dir); err != nil {
				return nil, err
			}
		} else {
			log.Warn().Str("dir", cfg.Store.Dir).Msg("Store directory missing, starting empty")
		}
		store = mem
	case models.StoreTypeDatabase:
		db, err := NewDatabaseAdapter(repository.NewInstanceRepository(), cfg.Store.Dir, cfg.Store.ReadOnly)
		if err != nil {
			return nil, err
		}
		if _, err := db.Reindex(ctx); err != nil {
			return nil, err
		}
		store = db
	case models.StoreTypeDICOMWeb:
		c, err := newRemoteClient(cfg.Remote)
		if err != nil {
			return nil, err
		}
		store = NewDICOMWebAdapter(c)
	default:
		return nil, fmt.Errorf("unsupported store type: %s", cfg.Store.Type)
	}

	if !cfg.Cache.Enabled {
		return store, nil
	}

	c, err := newCache(cfg)
	if err != nil {
		store.Close()
		return nil, err
	}
	log.Info().Str("type", cfg.Cache.Type).Dur("ttl", cfg.Cache.TTL).Msg("Instance cache enabled")
	return NewCachedAdapter(store, c, cfg.Cache.TTL, m), nil
}

func newRemoteClient(cfg config.RemoteConfig) (*client.Client, error) {
	opts := []client.Option{
		client.WithQIDOPrefix(cfg.QIDOPrefix),
		client.WithWADOPrefix(cfg.WADOPrefix),
		client.WithSTOWPrefix(cfg.STOWPrefix),
		client.WithTransport(client.NewHTTPTransport(cfg.Timeout)),
	}
	if cfg.BearerToken != "" {
		opts = append(opts, client.WithBearerToken(cfg.BearerToken))
	} else if cfg.Username != "" {
		opts = append(opts, client.WithBasicAuth(cfg.Username, cfg.Password))
	}

	c, err := client.New(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create remote client: %w", err)
	}
	return c, nil
}

func newCache(cfg *config.Config) (cache.Cache, error) {
	switch cfg.Cache.Type {
	case "redis":
		c, err := cache.NewRedisCache(cache.RedisConfig{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, err
		}
		return c, nil
	case "memory", "":
		return cache.NewMemoryCache(cfg.Cache.MaxEntries, 0), nil
	default:
		return nil, fmt.Errorf("unsupported cache type: %s", cfg.Cache.Type)
	}
}

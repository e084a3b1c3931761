package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrCacheMiss is returned when a key is not found in cache
var ErrCacheMiss = errors.New("cache miss")

// Cache defines the cache interface
type Cache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context, pattern string) error
	Close() error
}

const keyPrefix = "dicomweb"

// InstanceKey is the key of a retrieved instance's Part 10 bytes
func InstanceKey(studyUID, seriesUID, sopUID string) string {
	return strings.Join([]string{keyPrefix, "instance", studyUID, seriesUID, sopUID}, ":")
}

// StudyPattern matches every instance key of a study
func StudyPattern(studyUID string) string {
	return strings.Join([]string{keyPrefix, "instance", studyUID, "*"}, ":")
}

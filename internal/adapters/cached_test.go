package adapters

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/otcheredev/dicomweb-bridge/internal/cache"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
	"github.com/otcheredev/dicomweb-bridge/internal/models"
	"github.com/otcheredev/dicomweb-bridge/pkg/part10"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/suyashkumar/dicom"
	"github.com/suyashkumar/dicom/pkg/tag"
)

// countingStore counts retrievals reaching the wrapped store
type countingStore struct {
	*MemoryAdapter
	retrievals int
}

func (c *countingStore) RetrieveInstance(ctx context.Context, studyUID, seriesUID, sopInstanceUID string) (dicom.Dataset, error) {
	c.retrievals++
	return c.MemoryAdapter.RetrieveInstance(ctx, studyUID, seriesUID, sopInstanceUID)
}

// searchOnly hides the Writer implementation of the memory store
type searchOnly struct {
	DataStore
}

func TestCachedAdapterRetrieve(t *testing.T) {
	ctx := context.Background()
	inner := &countingStore{MemoryAdapter: loadedMemory(t)}
	m := metrics.New()
	c := NewCachedAdapter(inner, cache.NewMemoryCache(0, time.Minute), time.Hour, m)
	defer c.Close()

	for i := 0; i < 3; i++ {
		ds, err := c.RetrieveInstance(ctx, "1", "1.1", "1.1.2")
		if err != nil {
			t.Fatalf("RetrieveInstance() error = %v", err)
		}
		if part10.StringValue(ds, tag.SOPInstanceUID) != "1.1.2" {
			t.Fatalf("retrieved wrong instance")
		}
	}

	if inner.retrievals != 1 {
		t.Errorf("inner store hit %d times, want 1", inner.retrievals)
	}
	if hits := testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")); hits != 2 {
		t.Errorf("cache hits = %v, want 2", hits)
	}
	if misses := testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")); misses != 1 {
		t.Errorf("cache misses = %v, want 1", misses)
	}

	if _, err := c.RetrieveInstance(ctx, "1", "1.1", "9.9"); !errors.Is(err, ErrNotFound) {
		t.Errorf("RetrieveInstance(unknown) error = %v, want ErrNotFound", err)
	}
}

func TestCachedAdapterStoreInvalidatesStudy(t *testing.T) {
	ctx := context.Background()
	mc := cache.NewMemoryCache(0, time.Minute)
	c := NewCachedAdapter(loadedMemory(t), mc, time.Hour, nil)
	defer c.Close()

	for _, uids := range [][3]string{{"1", "1.1", "1.1.1"}, {"1", "1.2", "1.2.1"}, {"2", "2.1", "2.1.1"}} {
		if _, err := c.RetrieveInstance(ctx, uids[0], uids[1], uids[2]); err != nil {
			t.Fatal(err)
		}
	}
	if mc.Len() != 3 {
		t.Fatalf("cached %d instances, want 3", mc.Len())
	}

	updated := newInstance(instanceSpec{"1", "1.1", "1.1.1", "Doe^John", "CR", "20240101"})
	if err := c.StoreInstance(ctx, updated); err != nil {
		t.Fatalf("StoreInstance() error = %v", err)
	}

	tests := []struct {
		key    string
		cached bool
	}{
		{cache.InstanceKey("1", "1.1", "1.1.1"), false},
		{cache.InstanceKey("1", "1.2", "1.2.1"), false},
		{cache.InstanceKey("2", "2.1", "2.1.1"), true},
	}
	for _, tt := range tests {
		_, err := mc.Get(ctx, tt.key)
		if got := err == nil; got != tt.cached {
			t.Errorf("%s cached = %v, want %v", tt.key, got, tt.cached)
		}
	}

	ds, _ := c.RetrieveInstance(ctx, "1", "1.1", "1.1.1")
	if part10.StringValue(ds, tag.Modality) != "CR" {
		t.Error("stale instance served after store")
	}
	if c.ReadOnly() {
		t.Error("ReadOnly() = true over a writable store")
	}
}

type pingCache struct {
	cache.Cache
	err error
}

func (p pingCache) Ping(ctx context.Context) error { return p.err }

func TestCachedAdapterPing(t *testing.T) {
	down := errors.New("connection refused")

	withPing := NewCachedAdapter(loadedMemory(t), pingCache{cache.NewMemoryCache(0, time.Minute), down}, time.Hour, nil)
	defer withPing.Close()
	if err := withPing.Ping(context.Background()); !errors.Is(err, down) {
		t.Errorf("Ping() error = %v, want %v", err, down)
	}

	plain := NewCachedAdapter(loadedMemory(t), cache.NewMemoryCache(0, time.Minute), time.Hour, nil)
	defer plain.Close()
	if err := plain.Ping(context.Background()); err != nil {
		t.Errorf("Ping() without a pingable cache = %v", err)
	}
}

func TestCachedAdapterReadOnlyInner(t *testing.T) {
	c := NewCachedAdapter(searchOnly{loadedMemory(t)}, cache.NewMemoryCache(0, time.Minute), time.Hour, nil)
	defer c.Close()

	if !c.ReadOnly() {
		t.Error("ReadOnly() = false over a store without writes")
	}
	if err := c.StoreInstance(context.Background(), fixture()[0]); !errors.Is(err, ErrReadOnly) {
		t.Errorf("StoreInstance() error = %v, want ErrReadOnly", err)
	}

	studies, err := c.SearchStudies(context.Background(), models.QueryParams{})
	if err != nil || len(studies) != 2 {
		t.Errorf("SearchStudies() through cache = %d, %v", len(studies), err)
	}
}

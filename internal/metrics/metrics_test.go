package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCounters(t *testing.T) {
	m := New()

	m.ObserveRequest("/studies", "GET", 200, 10*time.Millisecond)
	m.ObserveRequest("/studies", "GET", 200, 20*time.Millisecond)
	m.CacheResult("hit")
	m.CacheResult("miss")
	m.CacheResult("miss")
	m.Stored(true)
	m.Stored(false)

	tests := []struct {
		name string
		got  float64
		want float64
	}{
		{"requests", testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/studies", "GET", "200")), 2},
		{"hits", testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")), 1},
		{"misses", testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")), 2},
		{"stored", testutil.ToFloat64(m.InstancesStored.WithLabelValues("stored")), 1},
		{"failed", testutil.ToFloat64(m.InstancesStored.WithLabelValues("failed")), 1},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveRequest("/", "GET", 200, time.Millisecond)
	m.CacheResult("hit")
	m.Stored(true)
	m.ObserveStore("memory", "search", time.Now())
}

func TestHandler(t *testing.T) {
	m := New()
	m.CacheResult("hit")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "dicomweb_cache_lookups_total") {
		t.Errorf("exposition does not contain cache counter")
	}
}

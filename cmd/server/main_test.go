package main

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/otcheredev/dicomweb-bridge/internal/adapters"
	"github.com/otcheredev/dicomweb-bridge/internal/config"
	"github.com/otcheredev/dicomweb-bridge/internal/handlers"
	"github.com/otcheredev/dicomweb-bridge/internal/metrics"
)

func TestRouter(t *testing.T) {
	cfg := &config.Config{
		DICOMWeb: config.DICOMWebConfig{QIDOPrefix: "/qido", WADOPrefix: "/wado", STOWPrefix: "/stow"},
		CORS:     config.CORSConfig{AllowedOrigins: []string{"*"}, AllowedMethods: []string{"GET", "POST"}},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
	m := metrics.New()
	r := newRouter(cfg, m, handlers.NewHealthHandler(),
		handlers.NewDICOMWebHandler(adapters.NewMemoryAdapter(false), handlers.WithMetrics(m)))

	tests := []struct {
		target string
		status int
	}{
		{"/health", http.StatusOK},
		{"/ready", http.StatusOK},
		{"/qido/studies", http.StatusOK},
		{"/studies", http.StatusNotFound},
		{"/wado/studies/1/series/2/instances/3", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))
		if rec.Code != tt.status {
			t.Errorf("GET %s = %d, want %d", tt.target, rec.Code, tt.status)
		}
	}

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), `dicomweb_http_requests_total{method="GET",route="/qido/studies",status="200"} 1`) {
		t.Errorf("metrics output missing request counter:\n%s", rec.Body)
	}
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/otcheredev/dicomweb-bridge/internal/models"
)

func missingFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "absent.env")
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Store.Type != models.StoreTypeMemory {
		t.Errorf("Store.Type = %q", cfg.Store.Type)
	}
	if cfg.DICOMWeb.QIDOPrefix != "" || cfg.DICOMWeb.WADOPrefix != "" || cfg.DICOMWeb.STOWPrefix != "" {
		t.Errorf("prefixes should default to empty: %+v", cfg.DICOMWeb)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() on defaults = %v", err)
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("SERVER_PORT", "9090")
	t.Setenv("STORE_TYPE", "DICOMWEB")
	t.Setenv("REMOTE_URL", "https://pacs.example.com/dicom-web")
	t.Setenv("REMOTE_TIMEOUT", "5s")
	t.Setenv("DICOMWEB_QIDO_PREFIX", "/qido-rs")
	t.Setenv("CACHE_ENABLED", "true")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example")

	cfg, err := Load(missingFile(t))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d", cfg.Server.Port)
	}
	if cfg.Store.Type != models.StoreTypeDICOMWeb {
		t.Errorf("Store.Type = %q", cfg.Store.Type)
	}
	if cfg.Remote.Timeout != 5*time.Second {
		t.Errorf("Remote.Timeout = %v", cfg.Remote.Timeout)
	}
	if cfg.DICOMWeb.QIDOPrefix != "/qido-rs" {
		t.Errorf("QIDOPrefix = %q", cfg.DICOMWeb.QIDOPrefix)
	}
	if !cfg.Cache.Enabled {
		t.Error("Cache.Enabled = false")
	}
	if len(cfg.CORS.AllowedOrigins) != 2 || cfg.CORS.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v", cfg.CORS.AllowedOrigins)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("LOG_LEVEL=debug\nSTORE_DIR=/srv/dicom\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	os.Unsetenv("LOG_LEVEL")
	os.Unsetenv("STORE_DIR")
	t.Cleanup(func() {
		os.Unsetenv("LOG_LEVEL")
		os.Unsetenv("STORE_DIR")
	})

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Log.Level != "debug" || cfg.Store.Dir != "/srv/dicom" {
		t.Errorf("values from .env not applied: level=%q dir=%q", cfg.Log.Level, cfg.Store.Dir)
	}
}

func TestLoadInvalidValues(t *testing.T) {
	t.Setenv("SERVER_PORT", "eighty")
	t.Setenv("CACHE_ENABLED", "maybe")

	if _, err := Load(missingFile(t)); err == nil {
		t.Error("Load() with invalid values succeeded")
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		cfg, err := Load(missingFile(t))
		if err != nil {
			t.Fatalf("Load() error = %v", err)
		}
		return cfg
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"unknown store", func(c *Config) { c.Store.Type = "dimse" }},
		{"remote without url", func(c *Config) { c.Store.Type = models.StoreTypeDICOMWeb }},
		{"unknown cache", func(c *Config) { c.Cache.Enabled = true; c.Cache.Type = "memcached" }},
		{"audit without database", func(c *Config) { c.Audit.Enabled = true }},
		{"relative prefix", func(c *Config) { c.DICOMWeb.WADOPrefix = "wado" }},
		{"no upload size", func(c *Config) { c.Store.MaxUploadBytes = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() succeeded, want error")
			}
		})
	}
}

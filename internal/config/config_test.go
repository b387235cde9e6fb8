package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/paginate"
)

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"FOLIO_CONFIG", "PORT", "API_KEY", "MEASURE_BACKEND", "FONT_SIZE", "LINE_HEIGHT", "CLOSE_TOLERANCE", "LAYOUT_QUEUE", "SESSION_TTL", "DEFAULT_VIEWPORT_HEIGHT"} {
		t.Setenv(k, "")
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)
	t.Setenv("LAYOUT_WORKERS", "-2")
	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "8090" {
		t.Errorf("expected port 8090, got %q", cfg.Port)
	}
	if cfg.LayoutWorkers != 4 {
		t.Errorf("expected non-positive workers clamped to 4, got %d", cfg.LayoutWorkers)
	}
	if cfg.FontSize != 16 || cfg.LineHeight != 1.5 {
		t.Errorf("unexpected canvas font defaults %v/%v", cfg.FontSize, cfg.LineHeight)
	}
	if cfg.Geometry() != paginate.DefaultConfig() {
		t.Errorf("expected default geometry, got %+v", cfg.Geometry())
	}
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "folio.yaml")
	file := strings.Join([]string{
		"port: \"9000\"",
		"api_key: from-file",
		"measure_backend: cells",
		"session_ttl: 30m",
		"close_tolerance: 0",
		"layout_queue: 7",
	}, "\n")
	if err := os.WriteFile(path, []byte(file), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	clearEnv(t)
	t.Setenv("FOLIO_CONFIG", path)
	t.Setenv("PORT", "9100")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Port != "9100" {
		t.Errorf("env should override file, got port %q", cfg.Port)
	}
	if cfg.APIKey != "from-file" || cfg.LayoutQueue != 7 {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.SessionTTL != 30*time.Minute {
		t.Errorf("expected 30m ttl, got %v", cfg.SessionTTL)
	}
	if cfg.FontSize != 1 || cfg.LineHeight != 1 {
		t.Errorf("expected cell font defaults, got %v/%v", cfg.FontSize, cfg.LineHeight)
	}
	g := cfg.Geometry()
	if g.MinUsableHeight != paginate.CellsConfig().MinUsableHeight || g.CloseTolerance != 0 {
		t.Errorf("expected cell geometry without tolerance, got %+v", g)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("FOLIO_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))
	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	base := defaults()
	base.APIKey = "k"
	tests := []struct {
		name   string
		mutate func(*Config)
		ok     bool
	}{
		{"valid", func(*Config) {}, true},
		{"missing api key", func(c *Config) { c.APIKey = "" }, false},
		{"bad backend", func(c *Config) { c.MeasureBackend = "gpu" }, false},
		{"bad alignment", func(c *Config) { c.DefaultAlignment = "diagonal" }, false},
		{"store without key", func(c *Config) { c.PositionStoreURL = "http://kv" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); (err == nil) != tt.ok {
				t.Errorf("Validate() = %v, want ok=%v", err, tt.ok)
			}
		})
	}
}

func TestFont(t *testing.T) {
	c := defaults()
	c.DefaultAlignment = "Justify"
	c.clamp()
	f := c.Font()
	if f.Align != measure.AlignJustify || f.Family != measure.DefaultFamily || f.Size != 16 {
		t.Errorf("unexpected font %+v", f)
	}
}

func TestSlogLevel(t *testing.T) {
	c := Config{LogLevel: "debug"}
	if c.SlogLevel().String() != "DEBUG" {
		t.Errorf("expected DEBUG, got %v", c.SlogLevel())
	}
	c.LogLevel = "nonsense"
	if c.SlogLevel().String() != "INFO" {
		t.Errorf("expected INFO fallback, got %v", c.SlogLevel())
	}
}

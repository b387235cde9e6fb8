package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/dgallion1/folio/internal/measure"
	"github.com/dgallion1/folio/internal/paginate"
)

// Measurement backends.
const (
	BackendCanvas = "canvas"
	BackendCells  = "cells"
)

type Config struct {
	Port     string `yaml:"port"`
	LogLevel string `yaml:"log_level"`

	// Auth
	APIKey string `yaml:"api_key"`

	// Upload limits
	MaxUploadBytes int64 `yaml:"max_upload_bytes"`

	// Sessions
	SessionTTL time.Duration `yaml:"session_ttl"`

	// Layout worker pool
	LayoutWorkers      int     `yaml:"layout_workers"`
	LayoutQueue        int     `yaml:"layout_queue"`
	PreloadConcurrency int     `yaml:"preload_concurrency"`
	LayoutRate         float64 `yaml:"layout_rate"` // Layout requests per second per session.
	LayoutBurst        int     `yaml:"layout_burst"`

	// Measurement and page geometry
	MeasureBackend        string  `yaml:"measure_backend"`
	FontFamily            string  `yaml:"font_family"`
	FontSize              float64 `yaml:"font_size"`   // Points, or ignored by the cells backend.
	LineHeight            float64 `yaml:"line_height"` // Multiplier; rows per line for cells.
	DefaultAlignment      string  `yaml:"default_alignment"`
	DefaultViewportHeight float64 `yaml:"default_viewport_height"` // 0 keeps the backend default.
	CloseTolerance        float64 `yaml:"close_tolerance"`
	MaxParseDepth         int     `yaml:"max_parse_depth"`
	EastAsianWidth        bool    `yaml:"east_asian_width"`

	// Position store; empty URL keeps positions in memory.
	PositionStoreURL string `yaml:"position_store_url"`
	PositionStoreKey string `yaml:"position_store_key"`
}

func defaults() Config {
	return Config{
		Port:               "8090",
		LogLevel:           "info",
		MaxUploadBytes:     52428800, // 50MB
		SessionTTL:         2 * time.Hour,
		LayoutWorkers:      4,
		LayoutQueue:        100,
		PreloadConcurrency: 4,
		LayoutRate:         5,
		LayoutBurst:        10,
		MeasureBackend:     BackendCanvas,
		FontFamily:         measure.DefaultFamily,
		DefaultAlignment:   "left",
		CloseTolerance:     0.02,
		MaxParseDepth:      64,
	}
}

// Load builds the configuration from defaults, then the YAML file named by
// FOLIO_CONFIG if set, then environment variables.
func Load() (Config, error) {
	cfg := defaults()
	if path := os.Getenv("FOLIO_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config file %s: %w", path, err)
		}
	}

	cfg.Port = envOr("PORT", cfg.Port)
	cfg.LogLevel = envOr("LOG_LEVEL", cfg.LogLevel)
	cfg.APIKey = envOr("API_KEY", cfg.APIKey)
	cfg.MaxUploadBytes = envInt64("MAX_UPLOAD_BYTES", cfg.MaxUploadBytes)
	cfg.SessionTTL = envDuration("SESSION_TTL", cfg.SessionTTL)
	cfg.LayoutWorkers = envInt("LAYOUT_WORKERS", cfg.LayoutWorkers)
	cfg.LayoutQueue = envInt("LAYOUT_QUEUE", cfg.LayoutQueue)
	cfg.PreloadConcurrency = envInt("PRELOAD_CONCURRENCY", cfg.PreloadConcurrency)
	cfg.LayoutRate = envFloat("LAYOUT_RATE", cfg.LayoutRate)
	cfg.LayoutBurst = envInt("LAYOUT_BURST", cfg.LayoutBurst)
	cfg.MeasureBackend = strings.ToLower(envOr("MEASURE_BACKEND", cfg.MeasureBackend))
	cfg.FontFamily = envOr("FONT_FAMILY", cfg.FontFamily)
	cfg.FontSize = envFloat("FONT_SIZE", cfg.FontSize)
	cfg.LineHeight = envFloat("LINE_HEIGHT", cfg.LineHeight)
	cfg.DefaultAlignment = envOr("DEFAULT_ALIGNMENT", cfg.DefaultAlignment)
	cfg.DefaultViewportHeight = envFloat("DEFAULT_VIEWPORT_HEIGHT", cfg.DefaultViewportHeight)
	cfg.CloseTolerance = envFloat("CLOSE_TOLERANCE", cfg.CloseTolerance)
	cfg.MaxParseDepth = envInt("MAX_PARSE_DEPTH", cfg.MaxParseDepth)
	cfg.EastAsianWidth = envBool("EAST_ASIAN_WIDTH", cfg.EastAsianWidth)
	cfg.PositionStoreURL = envOr("POSITION_STORE_URL", cfg.PositionStoreURL)
	cfg.PositionStoreKey = envOr("POSITION_STORE_KEY", cfg.PositionStoreKey)

	cfg.clamp()
	return cfg, nil
}

func (c *Config) clamp() {
	d := defaults()
	if c.MaxUploadBytes <= 0 {
		c.MaxUploadBytes = d.MaxUploadBytes
	}
	if c.SessionTTL <= 0 {
		c.SessionTTL = d.SessionTTL
	}
	if c.LayoutWorkers <= 0 {
		c.LayoutWorkers = d.LayoutWorkers
	}
	if c.LayoutQueue <= 0 {
		c.LayoutQueue = d.LayoutQueue
	}
	if c.PreloadConcurrency <= 0 {
		c.PreloadConcurrency = d.PreloadConcurrency
	}
	if c.LayoutRate <= 0 {
		c.LayoutRate = d.LayoutRate
	}
	if c.LayoutBurst <= 0 {
		c.LayoutBurst = d.LayoutBurst
	}
	if c.FontSize <= 0 {
		c.FontSize = 16
		if c.MeasureBackend == BackendCells {
			c.FontSize = 1
		}
	}
	if c.LineHeight <= 0 {
		c.LineHeight = 1.5
		if c.MeasureBackend == BackendCells {
			c.LineHeight = 1
		}
	}
	if c.CloseTolerance < 0 {
		c.CloseTolerance = d.CloseTolerance
	}
	if c.MaxParseDepth <= 0 {
		c.MaxParseDepth = d.MaxParseDepth
	}
}

func (c Config) Validate() error {
	if c.APIKey == "" {
		return fmt.Errorf("API_KEY is required")
	}
	switch c.MeasureBackend {
	case BackendCanvas, BackendCells:
	default:
		return fmt.Errorf("MEASURE_BACKEND must be %q or %q, got %q", BackendCanvas, BackendCells, c.MeasureBackend)
	}
	if _, err := measure.ParseAlignment(c.DefaultAlignment); err != nil {
		return fmt.Errorf("DEFAULT_ALIGNMENT: %w", err)
	}
	if c.PositionStoreURL != "" && c.PositionStoreKey == "" {
		return fmt.Errorf("POSITION_STORE_KEY is required with POSITION_STORE_URL")
	}
	return nil
}

// Font returns the default font for layout requests that do not name one.
func (c Config) Font() measure.Font {
	align, _ := measure.ParseAlignment(c.DefaultAlignment)
	return measure.Font{
		Family:     c.FontFamily,
		Size:       c.FontSize,
		LineHeight: c.LineHeight,
		Align:      align,
	}
}

// Geometry returns the page geometry for the configured backend.
func (c Config) Geometry() paginate.Config {
	g := paginate.DefaultConfig()
	if c.MeasureBackend == BackendCells {
		g = paginate.CellsConfig()
	}
	if c.DefaultViewportHeight > 0 {
		g.DefaultViewportHeight = c.DefaultViewportHeight
	}
	g.CloseTolerance = c.CloseTolerance
	return g
}

// SlogLevel maps LogLevel to a slog level, defaulting to info.
func (c Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

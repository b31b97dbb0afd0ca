package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"pdf-page-viewer/internal/domain"

	"gopkg.in/yaml.v3"
)

// AppConfig implements the domain.Config interface
type AppConfig struct {
	ServerPort          string
	LogLevel            string
	SupabaseURL         string
	SupabaseKey         string
	DocumentSourceToken string
	FetchTimeout        time.Duration
	PrefetchRate        float64
	DocumentCacheSize   int
	Viewer              domain.ViewerSettings
}

// NewConfig creates a new configuration instance with default values
func NewConfig() domain.Config {
	cfg := &AppConfig{
		// Cloud Run (and many PaaS) provide the listening port via PORT.
		// Keep SERVER_PORT for local/dev compatibility.
		ServerPort:          getEnvOrDefault("PORT", getEnvOrDefault("SERVER_PORT", "8080")),
		LogLevel:            getEnvOrDefault("LOG_LEVEL", "info"),
		SupabaseURL:         getEnvOrDefault("SUPABASE_URL", ""),
		SupabaseKey:         getEnvOrDefault("SUPABASE_ANON_KEY", ""),
		DocumentSourceToken: getEnvOrDefault("DOCUMENT_SOURCE_TOKEN", ""),
		FetchTimeout:        time.Duration(getEnvInt64OrDefault("FETCH_TIMEOUT_SEC", 30)) * time.Second,
		PrefetchRate:        getEnvFloatOrDefault("PREFETCH_RATE", 32),
		DocumentCacheSize:   int(getEnvInt64OrDefault("DOCUMENT_CACHE_SIZE", 64)),
		Viewer:              DefaultViewerSettings(),
	}

	cfg.Viewer.ViewportHeight = getEnvFloatOrDefault("VIEWPORT_HEIGHT", cfg.Viewer.ViewportHeight)
	cfg.Viewer.InitialScale = getEnvFloatOrDefault("INITIAL_SCALE", cfg.Viewer.InitialScale)
	cfg.Viewer.Lookahead = getEnvFloatOrDefault("LOOKAHEAD_PX", cfg.Viewer.Lookahead)
	cfg.Viewer.PageGap = getEnvFloatOrDefault("PAGE_GAP_PX", cfg.Viewer.PageGap)
	cfg.Viewer.Debounce = time.Duration(getEnvInt64OrDefault("DEBOUNCE_MS", int64(cfg.Viewer.Debounce/time.Millisecond))) * time.Millisecond

	// The YAML file, when present, wins over the environment for viewer tuning.
	if path := os.Getenv("VIEWER_CONFIG_FILE"); path != "" {
		if settings, err := LoadViewerSettings(path, cfg.Viewer); err == nil {
			cfg.Viewer = settings
		} else {
			fmt.Fprintf(os.Stderr, "Warning: viewer config %s ignored: %v\n", path, err)
		}
	}
	return cfg
}

// DefaultViewerSettings returns the layout and scheduling defaults
func DefaultViewerSettings() domain.ViewerSettings {
	return domain.ViewerSettings{
		ViewportHeight: 900,
		InitialScale:   domain.DefaultScale,
		Lookahead:      400,
		PageGap:        10,
		Debounce:       50 * time.Millisecond,
	}
}

// LoadViewerSettings overlays the YAML file at path onto base
func LoadViewerSettings(path string, base domain.ViewerSettings) (domain.ViewerSettings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return base, fmt.Errorf("read viewer config: %w", err)
	}
	settings := base
	if err := yaml.Unmarshal(data, &settings); err != nil {
		return base, fmt.Errorf("parse viewer config: %w", err)
	}
	if settings.ViewportHeight <= 0 || settings.Debounce < 0 || settings.Lookahead < 0 || settings.PageGap < 0 {
		return base, &domain.ValidationError{Field: "viewer", Message: "viewer settings must not be negative"}
	}
	settings.InitialScale = domain.ClampScale(settings.InitialScale)
	return settings, nil
}

// GetServerPort returns the server port
func (c *AppConfig) GetServerPort() string {
	return c.ServerPort
}

// GetLogLevel returns the logging level
func (c *AppConfig) GetLogLevel() string {
	return c.LogLevel
}

// GetSupabaseURL returns the Supabase URL
func (c *AppConfig) GetSupabaseURL() string {
	return c.SupabaseURL
}

// GetSupabaseKey returns the Supabase anon key
func (c *AppConfig) GetSupabaseKey() string {
	return c.SupabaseKey
}

// GetDocumentSourceToken returns the bearer token sent with document range requests
func (c *AppConfig) GetDocumentSourceToken() string {
	return c.DocumentSourceToken
}

// GetFetchTimeout returns the per-request timeout for document range requests
func (c *AppConfig) GetFetchTimeout() time.Duration {
	return c.FetchTimeout
}

// GetPrefetchRate returns the background prefetch rate in chunks per second
func (c *AppConfig) GetPrefetchRate() float64 {
	return c.PrefetchRate
}

// GetDocumentCacheSize returns the document cache capacity
func (c *AppConfig) GetDocumentCacheSize() int {
	return c.DocumentCacheSize
}

// GetViewerSettings returns the viewer tuning
func (c *AppConfig) GetViewerSettings() domain.ViewerSettings {
	return c.Viewer
}

// Helper functions for environment variable handling
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt64OrDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvFloatOrDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
	}
	return defaultValue
}

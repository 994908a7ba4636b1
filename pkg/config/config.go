package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/openarchive/statspipe/pkg/observability"
)

// Config holds all application configuration
type Config struct {
	// Ops server configuration
	Ops OpsConfig

	// Export pipeline configuration
	Export ExportConfig

	// Reconciliation configuration
	Reconcile ReconcileConfig

	// Backing services
	Redis   RedisConfig
	Search  SearchConfig
	Records RecordsConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// OpsConfig holds the ops HTTP server configuration
type OpsConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// ExportConfig holds the analytics export settings
type ExportConfig struct {
	// Enabled gates the export task. Disabled deployments still accept
	// on-demand triggers but the scheduled task does nothing.
	Enabled bool

	// URL is the analytics sink endpoint, Token authenticates against it.
	URL   string
	Token string

	// SiteID is the sink-side site identifier.
	SiteID int

	// ChunkSize is the number of events posted per batch.
	ChunkSize int

	// EventIndex is the event index scanned for exportable events.
	EventIndex string

	// Timeout bounds each POST to the sink.
	Timeout time.Duration

	// RetryCount and RetryDelay shape the task-level retry on sink
	// failures.
	RetryCount int
	RetryDelay time.Duration

	// Schedule is the cron spec of the periodic export run.
	Schedule string
}

// ReconcileConfig holds the statistics reconciliation settings
type ReconcileConfig struct {
	// IndexPrefix namespaces the statistics indices.
	IndexPrefix string

	// Schedule is the cron spec of the periodic reconciliation run.
	Schedule string
}

// RedisConfig holds the bookmark store connection settings
type RedisConfig struct {
	// URL is a redis:// connection URL (database and credentials
	// included).
	URL string
}

// SearchConfig holds the search engine connection settings
type SearchConfig struct {
	// URL is the search engine base URL.
	URL string

	// IndexerURL is the bulk re-index submission endpoint.
	IndexerURL string

	// Timeout bounds each search request.
	Timeout time.Duration
}

// RecordsConfig holds the record API settings
type RecordsConfig struct {
	// APIBaseURL is the record REST API root.
	APIBaseURL string

	// SiteBaseURL is the public site root used to build record links.
	SiteBaseURL string

	// HostSuffix anchors record-URL parsing during imports.
	HostSuffix string

	// Index is the searchable records index holding stored statistics.
	Index string

	// CacheSize bounds the record resolver cache.
	CacheSize int
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel observability.LogLevel

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Ops:           loadOpsConfig(),
		Export:        loadExportConfig(),
		Reconcile:     loadReconcileConfig(),
		Redis:         RedisConfig{URL: getEnv("STATSPIPE_REDIS_URL", "redis://localhost:6379/0")},
		Search:        loadSearchConfig(),
		Records:       loadRecordsConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadOpsConfig() OpsConfig {
	return OpsConfig{
		Host:            getEnv("STATSPIPE_HOST", "0.0.0.0"),
		Port:            getEnv("STATSPIPE_PORT", "9090"),
		ReadTimeout:     getEnvDuration("STATSPIPE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STATSPIPE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STATSPIPE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STATSPIPE_SHUTDOWN_TIMEOUT", 30*time.Second),
	}
}

func loadExportConfig() ExportConfig {
	return ExportConfig{
		Enabled:    getEnvBool("STATSPIPE_EXPORT_ENABLED", false),
		URL:        getEnv("STATSPIPE_EXPORT_URL", ""),
		Token:      getEnv("STATSPIPE_EXPORT_TOKEN", ""),
		SiteID:     getEnvInt("STATSPIPE_EXPORT_SITE_ID", 1),
		ChunkSize:  getEnvInt("STATSPIPE_EXPORT_CHUNK_SIZE", 50),
		EventIndex: getEnv("STATSPIPE_EXPORT_EVENT_INDEX", "events-stats-record-view"),
		Timeout:    getEnvDuration("STATSPIPE_EXPORT_TIMEOUT", 60*time.Second),
		RetryCount: getEnvInt("STATSPIPE_EXPORT_RETRY_COUNT", 3),
		RetryDelay: getEnvDuration("STATSPIPE_EXPORT_RETRY_DELAY", 10*time.Minute),
		Schedule:   getEnv("STATSPIPE_EXPORT_SCHEDULE", "@hourly"),
	}
}

func loadReconcileConfig() ReconcileConfig {
	return ReconcileConfig{
		IndexPrefix: getEnv("STATSPIPE_INDEX_PREFIX", ""),
		Schedule:    getEnv("STATSPIPE_RECONCILE_SCHEDULE", "@daily"),
	}
}

func loadSearchConfig() SearchConfig {
	return SearchConfig{
		URL:        getEnv("STATSPIPE_SEARCH_URL", "http://localhost:9200"),
		IndexerURL: getEnv("STATSPIPE_INDEXER_URL", ""),
		Timeout:    getEnvDuration("STATSPIPE_SEARCH_TIMEOUT", 30*time.Second),
	}
}

func loadRecordsConfig() RecordsConfig {
	return RecordsConfig{
		APIBaseURL:  getEnv("STATSPIPE_RECORDS_API_URL", "http://localhost:5000"),
		SiteBaseURL: getEnv("STATSPIPE_SITE_URL", "http://localhost:5000"),
		HostSuffix:  getEnv("STATSPIPE_HOST_SUFFIX", ""),
		Index:       getEnv("STATSPIPE_RECORDS_INDEX", "records"),
		CacheSize:   getEnvInt("STATSPIPE_RECORD_CACHE_SIZE", 1024),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("STATSPIPE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STATSPIPE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STATSPIPE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STATSPIPE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STATSPIPE_OTEL_SERVICE_NAME", "statspipe"),
		OTelServiceVersion: getEnv("STATSPIPE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STATSPIPE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Ops.Port == "" {
		return fmt.Errorf("ops server port is required")
	}

	if c.Export.Enabled {
		if c.Export.URL == "" {
			return fmt.Errorf("export URL is required when export is enabled")
		}
		if _, err := url.Parse(c.Export.URL); err != nil {
			return fmt.Errorf("invalid export URL: %w", err)
		}
		if c.Export.Token == "" {
			return fmt.Errorf("export token is required when export is enabled")
		}
	}
	if c.Export.ChunkSize <= 0 {
		return fmt.Errorf("export chunk size must be positive")
	}
	if c.Export.RetryCount < 0 {
		return fmt.Errorf("export retry count must not be negative")
	}

	if c.Redis.URL == "" {
		return fmt.Errorf("redis URL is required")
	}
	if c.Search.URL == "" {
		return fmt.Errorf("search engine URL is required")
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

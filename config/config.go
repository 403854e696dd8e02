package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"delyzer.dev/delyzer"
	"delyzer.dev/delyzer/feed"
)

const (
	BackendMemory   = "memory"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"

	FeedEFA    = "efa"
	FeedGTFSRT = "gtfsrt"
)

type DatabaseConfig struct {
	Backend   string `yaml:"backend" validate:"oneof=memory sqlite postgres"`
	Directory string `yaml:"directory"`
	Postgres  string `yaml:"postgres" validate:"required_if=Backend postgres"`
}

type FeedConfig struct {
	Type           string            `yaml:"type" validate:"oneof=efa gtfsrt"`
	URL            string            `yaml:"url" validate:"required,url"`
	Headers        map[string]string `yaml:"headers"`
	TimeoutSeconds int               `yaml:"timeoutSeconds" validate:"gte=0"`
	CacheSeconds   int               `yaml:"cacheSeconds" validate:"gte=0"`

	// Records every response to this file. With Offline, responses
	// are only replayed from it.
	Record  string `yaml:"record"`
	Offline bool   `yaml:"offline" validate:"excluded_without=Record"`
}

type CollectorConfig struct {
	Station         int    `yaml:"station" validate:"gte=0"`
	Line            string `yaml:"line" validate:"max=5"`
	IntervalSeconds int    `yaml:"intervalSeconds" validate:"gt=0"`
	Limit           int    `yaml:"limit" validate:"gt=0"`
}

type ServerConfig struct {
	Addr           string   `yaml:"addr" validate:"required"`
	AllowedOrigins []string `yaml:"allowedOrigins"`
	LogRequests    bool     `yaml:"logRequests"`
}

type CatalogConfig struct {
	Stations string `yaml:"stations" validate:"required"`
	Lines    string `yaml:"lines"`
}

type ViewerConfig struct {
	URL string `yaml:"url" validate:"required,url"`
}

// Root configuration structure.
type AppConfig struct {
	Database  DatabaseConfig  `yaml:"database"`
	Feed      FeedConfig      `yaml:"feed"`
	Collector CollectorConfig `yaml:"collector"`
	Server    ServerConfig    `yaml:"server"`
	Catalog   CatalogConfig   `yaml:"catalog"`
	Viewer    ViewerConfig    `yaml:"viewer"`
}

func Default() *AppConfig {
	return &AppConfig{
		Database: DatabaseConfig{
			Backend:   BackendSQLite,
			Directory: ".",
		},
		Feed: FeedConfig{
			Type:           FeedEFA,
			URL:            feed.DefaultEFAURL,
			TimeoutSeconds: int(delyzer.DefaultFetchTimeout / time.Second),
		},
		Collector: CollectorConfig{
			IntervalSeconds: int(delyzer.DefaultInterval / time.Second),
			Limit:           delyzer.DefaultLimit,
		},
		Server: ServerConfig{
			Addr: ":8000",
		},
		Catalog: CatalogConfig{
			Stations: "vvs_data.csv",
			Lines:    "vvs_haltestellen.csv",
		},
		Viewer: ViewerConfig{
			URL: "http://127.0.0.1:8000",
		},
	}
}

// Loads configuration. Values from the YAML file at path (optional)
// override the defaults, and DELYZER_* environment variables
// override both. A .env file in the working directory is read
// first, with .env.local taking precedence over it.
func Load(path string) (*AppConfig, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &delyzer.ConfigurationError{Reason: "reading " + path, Err: err}
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, &delyzer.ConfigurationError{Reason: "parsing " + path, Err: err}
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return &delyzer.ConfigurationError{Reason: "invalid configuration", Err: err}
	}
	return nil
}

func applyEnv(cfg *AppConfig) {
	cfg.Database.Backend = getEnv("DELYZER_DATABASE_BACKEND", cfg.Database.Backend)
	cfg.Database.Directory = getEnv("DELYZER_DATABASE_DIR", cfg.Database.Directory)
	cfg.Database.Postgres = getEnv("DELYZER_POSTGRES", cfg.Database.Postgres)

	cfg.Feed.Type = getEnv("DELYZER_FEED_TYPE", cfg.Feed.Type)
	cfg.Feed.URL = getEnv("DELYZER_FEED_URL", cfg.Feed.URL)
	cfg.Feed.TimeoutSeconds = getEnvInt("DELYZER_FEED_TIMEOUT", cfg.Feed.TimeoutSeconds)
	cfg.Feed.CacheSeconds = getEnvInt("DELYZER_FEED_CACHE", cfg.Feed.CacheSeconds)
	cfg.Feed.Record = getEnv("DELYZER_FEED_RECORD", cfg.Feed.Record)

	// e.g. DELYZER_FEED_HEADERS="Authorization=abc,X-Client=delyzer"
	if headers := os.Getenv("DELYZER_FEED_HEADERS"); headers != "" {
		if cfg.Feed.Headers == nil {
			cfg.Feed.Headers = map[string]string{}
		}
		for _, pair := range strings.Split(headers, ",") {
			key, value, found := strings.Cut(pair, "=")
			if found && strings.TrimSpace(key) != "" {
				cfg.Feed.Headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
			}
		}
	}

	cfg.Collector.Station = getEnvInt("DELYZER_STATION", cfg.Collector.Station)
	cfg.Collector.Line = getEnv("DELYZER_LINE", cfg.Collector.Line)
	cfg.Collector.IntervalSeconds = getEnvInt("DELYZER_INTERVAL", cfg.Collector.IntervalSeconds)
	cfg.Collector.Limit = getEnvInt("DELYZER_LIMIT", cfg.Collector.Limit)

	cfg.Server.Addr = getEnv("DELYZER_ADDR", cfg.Server.Addr)
	if origins := os.Getenv("DELYZER_ALLOWED_ORIGINS"); origins != "" {
		cfg.Server.AllowedOrigins = strings.Split(origins, ",")
	}

	cfg.Catalog.Stations = getEnv("DELYZER_STATIONS_CSV", cfg.Catalog.Stations)
	cfg.Catalog.Lines = getEnv("DELYZER_LINES_CSV", cfg.Catalog.Lines)

	cfg.Viewer.URL = getEnv("DELYZER_API_URL", cfg.Viewer.URL)
}

func (c *AppConfig) Interval() time.Duration {
	return time.Duration(c.Collector.IntervalSeconds) * time.Second
}

// Per-request timeout of the feed. Zero leaves the client default.
func (c FeedConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// How long GTFS-Realtime snapshots are reused. Zero disables caching.
func (c FeedConfig) CacheTTL() time.Duration {
	return time.Duration(c.CacheSeconds) * time.Second
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

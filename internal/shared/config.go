package shared

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/rs/zerolog/log"

	"review_action/internal/analysis/priority"
)

const maxConfigFileSize = 1 << 20

// Config is read from an optional YAML file (CONFIG_FILE) and then from the
// environment. Keys are the lower-cased variable names, e.g. HTTP_ADDR is
// http_addr in YAML.
type Config struct {
	AppEnv      string `koanf:"app_env"`
	LogLevel    string `koanf:"log_level"` // zerolog level name, default info
	HTTPAddr    string `koanf:"http_addr"`
	MetricsAddr string `koanf:"metrics_addr"`

	DBDriver string `koanf:"db_driver"` // sqlite|mysql
	DBDSN    string `koanf:"db_dsn"`

	RedisAddr     string `koanf:"redis_addr"`
	RedisPassword string `koanf:"redis_password"`
	RedisDB       int    `koanf:"redis_db"`

	CacheTTLSeconds   int `koanf:"cache_ttl_seconds"`
	SessionTTLSeconds int `koanf:"session_ttl_seconds"`

	SerpAPIBaseURL string `koanf:"serpapi_base_url"`
	SerpAPIKey     string `koanf:"serpapi_key"`
	SerpAPIRPS     int    `koanf:"serpapi_rps"`
	IngestWorkers  int    `koanf:"ingest_workers"`

	Clusters    int              `koanf:"clusters"`
	ClusterSeed int64            `koanf:"cluster_seed"`
	MaxFeatures int              `koanf:"max_features"`
	Weights     priority.Weights `koanf:"weights"`
	ActionsFile string           `koanf:"actions_file"`

	LoginRPS float64 `koanf:"login_rps"`
	// TrustProxy takes client IPs from X-Forwarded-For; only behind a proxy
	// that sets it.
	TrustProxy bool `koanf:"trust_proxy"`
}

func Defaults() Config {
	return Config{
		AppEnv:            "prod",
		LogLevel:          "info",
		HTTPAddr:          ":8080",
		MetricsAddr:       "",
		DBDriver:          "sqlite",
		DBDSN:             "reviews.db",
		RedisAddr:         "localhost:6379",
		CacheTTLSeconds:   900,
		SessionTTLSeconds: 12 * 3600,
		SerpAPIBaseURL:    "https://serpapi.com",
		SerpAPIRPS:        5,
		IngestWorkers:     4,
		Clusters:          6,
		ClusterSeed:       42,
		MaxFeatures:       4000,
		Weights:           priority.DefaultWeights(),
		LoginRPS:          1,
	}
}

func (c Config) CacheTTL() time.Duration   { return time.Duration(c.CacheTTLSeconds) * time.Second }
func (c Config) SessionTTL() time.Duration { return time.Duration(c.SessionTTLSeconds) * time.Second }

// Load reads path (or CONFIG_FILE when path is empty), then the environment.
func Load(path string) (Config, error) {
	k := koanf.New(".")

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path != "" {
		content, err := readSmallFile(path)
		if err != nil {
			return Config{}, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return Config{}, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	known := map[string]bool{}
	for _, key := range envKeys {
		known[key] = true
	}
	if err := k.Load(env.Provider("", ".", func(s string) string {
		key := strings.ToLower(s)
		if !known[key] {
			return ""
		}
		return key
	}), nil); err != nil {
		return Config{}, fmt.Errorf("load environment: %w", err)
	}

	cfg := Defaults()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	if cfg.SerpAPIKey == "" {
		log.Warn().Msg("SERPAPI_KEY is empty; place import disabled")
	}
	return cfg, nil
}

var envKeys = []string{
	"app_env", "log_level", "http_addr", "metrics_addr", "db_driver", "db_dsn",
	"redis_addr", "redis_password", "redis_db", "cache_ttl_seconds", "session_ttl_seconds",
	"serpapi_base_url", "serpapi_key", "serpapi_rps", "ingest_workers",
	"clusters", "cluster_seed", "max_features", "login_rps", "actions_file", "trust_proxy",
}

func (c Config) Validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("db_driver must be sqlite or mysql, got %q", c.DBDriver)
	}
	if c.DBDSN == "" {
		return fmt.Errorf("db_dsn is required")
	}
	if c.Clusters < 1 || c.Clusters > 12 {
		return fmt.Errorf("clusters must be 1..12, got %d", c.Clusters)
	}
	if c.IngestWorkers < 1 {
		return fmt.Errorf("ingest_workers must be positive, got %d", c.IngestWorkers)
	}
	if c.CacheTTLSeconds < 0 || c.SessionTTLSeconds <= 0 {
		return fmt.Errorf("cache_ttl_seconds must be >= 0 and session_ttl_seconds > 0")
	}
	return c.Weights.Validate()
}

// LoadActions reads a keyword→action table from YAML:
//
//	fallback: "Look into it."
//	rules:
//	  - triggers: [wait, queue]
//	    action: "Reduce queue time."
//
// An empty path returns the built-in table.
func LoadActions(path string) (priority.ActionTable, error) {
	if path == "" {
		return priority.DefaultActionTable(), nil
	}
	content, err := readSmallFile(path)
	if err != nil {
		return priority.ActionTable{}, err
	}
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
		return priority.ActionTable{}, fmt.Errorf("load actions file %s: %w", path, err)
	}
	var t priority.ActionTable
	if err := k.Unmarshal("", &t); err != nil {
		return priority.ActionTable{}, fmt.Errorf("unmarshal actions: %w", err)
	}
	if len(t.Rules) == 0 {
		return priority.ActionTable{}, fmt.Errorf("actions file %s has no rules", path)
	}
	for i, r := range t.Rules {
		if r.Action == "" || len(r.Triggers) == 0 {
			return priority.ActionTable{}, fmt.Errorf("actions rule %d needs triggers and an action", i)
		}
	}
	if t.Fallback == "" {
		t.Fallback = priority.DefaultFallback
	}
	return t, nil
}

func readSmallFile(path string) ([]byte, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat %s: %w", path, err)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("%s exceeds %d bytes", path, maxConfigFileSize)
	}
	return os.ReadFile(path)
}

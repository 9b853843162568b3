package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the indexsync configuration.
type Config struct {
	HTTP     HTTPConfig                    `yaml:"http"`
	Database DatabaseConfig                `yaml:"database"`
	Postgres PostgresConfig                `yaml:"postgres"`
	Kafka    KafkaConfig                   `yaml:"kafka"`
	Auth     AuthConfig                    `yaml:"auth"`
	Logging  LoggingConfig                 `yaml:"logging"`
	Search   SearchConfig                  `yaml:"search"`
	Models   []ModelConfig                 `yaml:"models"`
	Indices  map[string][]DescriptorConfig `yaml:"indices"`
	Aliases  map[string]AliasConfig        `yaml:"aliases"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys []string `yaml:"api_keys"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds search engine connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// PostgresConfig holds record storage settings.
type PostgresConfig struct {
	DSN              string `yaml:"dsn"`
	MaxConns         int32  `yaml:"max_conns"`
	ReadinessTimeout int    `yaml:"readiness_timeout_sec"`
}

// KafkaConfig holds change feed settings. No brokers disables the feed.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
	GroupID string   `yaml:"group_id"`
	// FlushIntervalSec bounds how long handled events wait in the signal
	// buffer, uncommitted, when the topic goes quiet.
	FlushIntervalSec int `yaml:"flush_interval_sec"`
}

// Enabled reports whether the change feed is configured.
func (k KafkaConfig) Enabled() bool { return len(k.Brokers) > 0 }

// SearchConfig holds indexing behaviour.
type SearchConfig struct {
	KeyPrefix       string `yaml:"key_prefix"`
	BufferSize      int    `yaml:"buffer_size"`
	BulkSize        int    `yaml:"bulk_size"`
	SignalProcessor string `yaml:"signal_processor"` // buffered (default), sync, none
	AliasPrefix     string `yaml:"alias_prefix"`
	Introspect      bool   `yaml:"introspect"`
}

// ModelConfig declares a record type backed by a table.
type ModelConfig struct {
	Name     string         `yaml:"name"`
	Table    string         `yaml:"table"`
	IDColumn string         `yaml:"id_column"`
	Columns  []ColumnConfig `yaml:"columns"`
}

// ColumnConfig declares one column. Without columns the model is introspected.
type ColumnConfig struct {
	Name     string `yaml:"name"`
	Type     string `yaml:"type"`
	Relation bool   `yaml:"relation"`
	Default  any    `yaml:"default"`
}

// DescriptorConfig declares how one record type is indexed.
type DescriptorConfig struct {
	Model            string                    `yaml:"model"`
	Fields           []string                  `yaml:"fields"`
	Exclude          []string                  `yaml:"exclude"`
	Hotfixes         map[string]map[string]any `yaml:"hotfixes"`
	AdditionalFields []string                  `yaml:"additional_fields"`
	IDField          string                    `yaml:"id_field"`
	UpdatedField     string                    `yaml:"updated_field"`
	Default          bool                      `yaml:"default"`
	OptimizeQueries  bool                      `yaml:"optimize_queries"`
	Explicit         map[string]FieldConfig    `yaml:"explicit"`
	Condition        string                    `yaml:"condition"`
}

// FieldConfig declares an explicit field. Attrs carries model_attr, eval_as
// or template and the field attributes.
type FieldConfig struct {
	Type     string          `yaml:"type"` // string, integer, long, short, float, double, date, boolean
	Attrs    map[string]any  `yaml:"attrs"`
	Analyzer *AnalyzerConfig `yaml:"analyzer"`
}

// AnalyzerConfig declares a custom analyzer.
type AnalyzerConfig struct {
	Name        string                    `yaml:"name"`
	Type        string                    `yaml:"type"`
	Tokenizer   string                    `yaml:"tokenizer"`
	Filters     []string                  `yaml:"filters"`
	CharFilters []string                  `yaml:"char_filters"`
	FilterDefs  map[string]map[string]any `yaml:"filter_defs"`
}

// AliasConfig declares a filter alias.
type AliasConfig struct {
	Models []string               `yaml:"models"`
	Match  map[string]string      `yaml:"match"`
	Ranges map[string]RangeConfig `yaml:"ranges"`
	Param  string                 `yaml:"param"`
}

// RangeConfig is an alias range bound set.
type RangeConfig struct {
	GT  *float64 `yaml:"gt"`
	GTE *float64 `yaml:"gte"`
	LT  *float64 `yaml:"lt"`
	LTE *float64 `yaml:"lte"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 60
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "valkey"
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Postgres.ReadinessTimeout <= 0 {
		c.Postgres.ReadinessTimeout = 10
	}
	if c.Kafka.GroupID == "" {
		c.Kafka.GroupID = "indexsync"
	}
	if c.Kafka.FlushIntervalSec <= 0 {
		c.Kafka.FlushIntervalSec = 1
	}
	if c.Search.KeyPrefix == "" {
		c.Search.KeyPrefix = "indexsync:"
	}
	if c.Search.BufferSize <= 0 {
		c.Search.BufferSize = 100
	}
	if c.Search.BulkSize <= 0 {
		c.Search.BulkSize = 100
	}
	if c.Search.SignalProcessor == "" {
		c.Search.SignalProcessor = "buffered"
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	switch c.Database.Driver {
	case "valkey", "redis":
	default:
		return fmt.Errorf("database.driver must be \"valkey\" or \"redis\", got %q", c.Database.Driver)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	if c.Postgres.DSN == "" {
		return fmt.Errorf("postgres.dsn is required")
	}
	if c.Kafka.Enabled() && c.Kafka.Topic == "" {
		return fmt.Errorf("kafka.topic is required when kafka.brokers is set")
	}
	switch c.Search.SignalProcessor {
	case "buffered", "sync", "none":
	default:
		return fmt.Errorf("search.signal_processor must be buffered, sync or none, got %q", c.Search.SignalProcessor)
	}

	models := make(map[string]bool, len(c.Models))
	for i, m := range c.Models {
		if m.Name == "" || m.Table == "" {
			return fmt.Errorf("models[%d]: name and table are required", i)
		}
		if models[m.Name] {
			return fmt.Errorf("models[%d]: duplicate model %q", i, m.Name)
		}
		models[m.Name] = true
	}
	for index, descs := range c.Indices {
		for i, d := range descs {
			if !models[d.Model] {
				return fmt.Errorf("indices.%s[%d]: unknown model %q", index, i, d.Model)
			}
		}
	}
	for name, a := range c.Aliases {
		for _, m := range a.Models {
			if !models[m] {
				return fmt.Errorf("aliases.%s: unknown model %q", name, m)
			}
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

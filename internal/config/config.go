package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/AlejoJamC/airweave/internal/domain/search/mode"
)

// Config holds the airweave search API configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Postgres      PostgresConfig      `yaml:"postgres"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	LLM           LLMConfig           `yaml:"llm"`
	Search        SearchConfig        `yaml:"search"`
	Collections   []CollectionConfig  `yaml:"collections"`
	Auth          AuthConfig          `yaml:"auth"`
	Authorization AuthorizationConfig `yaml:"authorization"`
	Analytics     AnalyticsConfig     `yaml:"analytics"`
	Tracing       TracingConfig       `yaml:"tracing"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string        `yaml:"level"` // debug, info, warn, error (default: determined by env)
	File  LogFileConfig `yaml:"file"`
}

// LogFileConfig enables a rotated log file next to stdout. Empty path disables it.
type LogFileConfig struct {
	Path       string `yaml:"path"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
}

// AuthConfig holds API authentication settings.
type AuthConfig struct {
	APIKeys []APIKeyConfig `yaml:"api_keys"`
	JWT     JWTConfig      `yaml:"jwt"`
}

// APIKeyConfig binds a static bearer token to a principal.
type APIKeyConfig struct {
	Key       string `yaml:"key"`
	Principal string `yaml:"principal"`
	Tenant    string `yaml:"tenant"`
}

// JWTConfig holds HS256 token verification settings. Empty secret disables JWT auth.
type JWTConfig struct {
	Secret      string `yaml:"secret"`
	Issuer      string `yaml:"issuer"`
	TenantClaim string `yaml:"tenant_claim"`
}

// AuthorizationConfig holds read policies consumed by the user filter.
type AuthorizationConfig struct {
	TenantIsolation bool           `yaml:"tenant_isolation"`
	Policies        []PolicyConfig `yaml:"policies"`
}

// PolicyConfig grants a principal read access to collections ("*" for all).
type PolicyConfig struct {
	Principal   string   `yaml:"principal"`
	Collections []string `yaml:"collections"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
}

// DatabaseConfig holds redis/valkey connection settings.
type DatabaseConfig struct {
	Driver           string   `yaml:"driver"` // valkey, redis (default: valkey)
	Addrs            []string `yaml:"addrs"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
	KeyPrefix        string   `yaml:"key_prefix"`
}

// PostgresConfig holds pgvector connection settings. Empty DSN disables the backend.
type PostgresConfig struct {
	DSN      string `yaml:"dsn"`
	MaxConns int32  `yaml:"max_conns"`
}

// EmbeddingConfig holds embedding settings.
type EmbeddingConfig struct {
	Providers map[string]ProviderConfig `yaml:"providers"`
	Models    map[string]ModelConfig    `yaml:"models"`
	Cache     EmbeddingCacheConfig      `yaml:"cache"`
}

// ProviderConfig holds OpenAI-compatible endpoint settings.
type ProviderConfig struct {
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 disables throttling
	Burst             int     `yaml:"burst"`
}

// ModelConfig maps a logical embedding model name to a provider model.
type ModelConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	Dimensions       int    `yaml:"dimensions"`
	QueryInstruction string `yaml:"query_instruction"`
}

// EmbeddingCacheConfig holds the two-level query embedding cache settings.
type EmbeddingCacheConfig struct {
	TTLSec      int `yaml:"ttl_sec"`       // shared KV tier
	LocalTTLSec int `yaml:"local_ttl_sec"` // in-process tier
}

// LLMConfig holds the ordered chat provider chain.
type LLMConfig struct {
	Providers []LLMProviderConfig `yaml:"providers"`
	Retry     RetryConfig         `yaml:"retry"`
	Breaker   BreakerConfig       `yaml:"breaker"`
}

// LLMProviderConfig is one OpenAI-compatible chat endpoint.
type LLMProviderConfig struct {
	Name              string  `yaml:"name"`
	APIKey            string  `yaml:"api_key"`
	BaseURL           string  `yaml:"base_url"`
	Model             string  `yaml:"model"`
	TimeoutSec        int     `yaml:"timeout_sec"`
	RequestsPerSecond float64 `yaml:"requests_per_second"` // 0 = unlimited
	Burst             int     `yaml:"burst"`
}

// RetryConfig holds exponential backoff settings.
type RetryConfig struct {
	MaxAttempts    int `yaml:"max_attempts"`
	InitialDelayMs int `yaml:"initial_delay_ms"`
	MaxDelayMs     int `yaml:"max_delay_ms"`
}

// BreakerConfig holds circuit breaker settings.
type BreakerConfig struct {
	MaxRequests  uint32  `yaml:"max_requests"`
	IntervalSec  int     `yaml:"interval_sec"`
	TimeoutSec   int     `yaml:"timeout_sec"`
	MinRequests  uint32  `yaml:"min_requests"`
	FailureRatio float64 `yaml:"failure_ratio"`
}

// SearchConfig holds pipeline defaults. Requests may override the Pipeline block.
type SearchConfig struct {
	Pipeline            PipelineConfig `yaml:"pipeline"`
	RequestTimeoutMs    int            `yaml:"request_timeout_ms"`
	RerankTopN          int            `yaml:"rerank_top_n"`
	MaxContextItems     int            `yaml:"max_context_items"`
	PrefetchMultiplier  float64        `yaml:"prefetch_multiplier"`
	Fusion              string         `yaml:"fusion"` // minmax, rrf
	EmptyResultFallback bool           `yaml:"empty_result_fallback"`
	ConfidenceThreshold float64        `yaml:"confidence_threshold"`
	MaxLimit            int            `yaml:"max_limit"`
}

// PipelineConfig mirrors the per-request pipeline options.
type PipelineConfig struct {
	ExpandQueries           bool   `yaml:"expand_queries"`
	MaxExpansions           int    `yaml:"max_expansions"`
	FiltersEnabled          bool   `yaml:"filters_enabled"`
	Rerank                  bool   `yaml:"rerank"`
	GenerateAnswer          bool   `yaml:"generate_answer"`
	TemporalDecayHalflifeHr int    `yaml:"temporal_decay_halflife_hours"` // 0 disables decay
	TopK                    int    `yaml:"top_k"`
	FederationTimeoutMs     int    `yaml:"federation_timeout_ms"`
	RetrievalStrategy       string `yaml:"retrieval_strategy"` // hybrid, neural, keyword
}

// CollectionConfig is a provisioned collection as seen by the query side.
type CollectionConfig struct {
	ID             string   `yaml:"id"`
	Backend        string   `yaml:"backend"` // redis, pgvector
	Index          string   `yaml:"index"`   // FT index name or postgres table
	Dimensions     int      `yaml:"dimensions"`
	EmbeddingModel string   `yaml:"embedding_model"`
	Sources        []string `yaml:"sources"`
}

// AnalyticsConfig holds the NATS event publisher settings. Empty URL disables it.
type AnalyticsConfig struct {
	NATSURL string `yaml:"nats_url"`
	Stream  string `yaml:"stream"`
}

// TracingConfig holds OpenTelemetry exporter settings.
type TracingConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"`
	ServiceName string `yaml:"service_name"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("failed to load .env: %w", err)
	}

	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	return Parse(data)
}

// Parse expands env variables in raw YAML, applies defaults and validates.
func Parse(data []byte) (Config, error) {
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

// GetEnv returns the current environment from the AIRWEAVE_ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("AIRWEAVE_ENV"); env != "" {
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
	if c.Database.KeyPrefix == "" {
		c.Database.KeyPrefix = "airweave:"
	}
	if c.Postgres.MaxConns <= 0 {
		c.Postgres.MaxConns = 10
	}
	if c.Embedding.Cache.TTLSec <= 0 {
		c.Embedding.Cache.TTLSec = 86400
	}
	if c.Embedding.Cache.LocalTTLSec <= 0 {
		c.Embedding.Cache.LocalTTLSec = 300
	}
	c.LLM.applyDefaults()
	c.Search.applyDefaults()
	if c.Tracing.ServiceName == "" {
		c.Tracing.ServiceName = "airweave-search"
	}
	if c.Tracing.Endpoint == "" {
		c.Tracing.Endpoint = "localhost:4318"
	}
	if c.Analytics.Stream == "" {
		c.Analytics.Stream = "SEARCH_EVENTS"
	}
	if c.Auth.JWT.TenantClaim == "" {
		c.Auth.JWT.TenantClaim = "tenant"
	}
}

func (l *LLMConfig) applyDefaults() {
	for i := range l.Providers {
		p := &l.Providers[i]
		if p.TimeoutSec <= 0 {
			p.TimeoutSec = 30
		}
		if p.Burst <= 0 {
			p.Burst = 1
		}
	}
	if l.Retry.MaxAttempts <= 0 {
		l.Retry.MaxAttempts = 3
	}
	if l.Retry.InitialDelayMs <= 0 {
		l.Retry.InitialDelayMs = 200
	}
	if l.Retry.MaxDelayMs <= 0 {
		l.Retry.MaxDelayMs = 5000
	}
	if l.Breaker.MaxRequests == 0 {
		l.Breaker.MaxRequests = 1
	}
	if l.Breaker.IntervalSec <= 0 {
		l.Breaker.IntervalSec = 60
	}
	if l.Breaker.TimeoutSec <= 0 {
		l.Breaker.TimeoutSec = 30
	}
	if l.Breaker.MinRequests == 0 {
		l.Breaker.MinRequests = 5
	}
	if l.Breaker.FailureRatio <= 0 {
		l.Breaker.FailureRatio = 0.6
	}
}

func (s *SearchConfig) applyDefaults() {
	if s.Pipeline.MaxExpansions <= 0 {
		s.Pipeline.MaxExpansions = 4
	}
	if s.Pipeline.TopK <= 0 {
		s.Pipeline.TopK = 20
	}
	if s.Pipeline.FederationTimeoutMs <= 0 {
		s.Pipeline.FederationTimeoutMs = 3000
	}
	if s.Pipeline.RetrievalStrategy == "" {
		s.Pipeline.RetrievalStrategy = string(mode.Hybrid)
	}
	if s.RequestTimeoutMs <= 0 {
		s.RequestTimeoutMs = 30000
	}
	if s.RerankTopN <= 0 {
		s.RerankTopN = 20
	}
	if s.MaxContextItems <= 0 {
		s.MaxContextItems = 10
	}
	if s.PrefetchMultiplier < 1 {
		s.PrefetchMultiplier = 2.0
	}
	if s.Fusion == "" {
		s.Fusion = "minmax"
	}
	if s.ConfidenceThreshold <= 0 {
		s.ConfidenceThreshold = 0.75
	}
	if s.MaxLimit <= 0 {
		s.MaxLimit = 1000
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Search.Fusion {
	case "minmax", "rrf":
	default:
		return fmt.Errorf("search.fusion must be \"minmax\" or \"rrf\", got %q", c.Search.Fusion)
	}
	if !mode.Mode(c.Search.Pipeline.RetrievalStrategy).IsValid() {
		return fmt.Errorf("search.pipeline.retrieval_strategy must be hybrid, neural or keyword, got %q",
			c.Search.Pipeline.RetrievalStrategy)
	}
	for name, m := range c.Embedding.Models {
		if _, ok := c.Embedding.Providers[m.Provider]; !ok {
			return fmt.Errorf("embedding.models.%s.provider %q is not configured", name, m.Provider)
		}
		if m.Model == "" {
			return fmt.Errorf("embedding.models.%s.model is required", name)
		}
	}
	for i, p := range c.LLM.Providers {
		if p.Name == "" || p.Model == "" {
			return fmt.Errorf("llm.providers[%d]: name and model are required", i)
		}
	}
	seen := make(map[string]struct{}, len(c.Collections))
	for i, col := range c.Collections {
		if col.ID == "" {
			return fmt.Errorf("collections[%d].id is required", i)
		}
		if _, dup := seen[col.ID]; dup {
			return fmt.Errorf("collections[%d]: duplicate id %q", i, col.ID)
		}
		seen[col.ID] = struct{}{}
		switch col.Backend {
		case "redis":
		case "pgvector":
			if c.Postgres.DSN == "" {
				return fmt.Errorf("collections.%s uses pgvector but postgres.dsn is empty", col.ID)
			}
		default:
			return fmt.Errorf("collections.%s.backend must be \"redis\" or \"pgvector\", got %q", col.ID, col.Backend)
		}
		if _, ok := c.Embedding.Models[col.EmbeddingModel]; !ok {
			return fmt.Errorf("collections.%s.embedding_model %q is not configured", col.ID, col.EmbeddingModel)
		}
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

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
		expr := string(match[2 : len(match)-1])
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}

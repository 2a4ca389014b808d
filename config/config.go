package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"

	"github.com/upb/secure-rag/models"
)

// Config represents the complete application configuration
type Config struct {
	Server        ServerConfig
	Principal     PrincipalConfig
	Cache         CacheConfig
	Retrieval     RetrievalConfig
	Ollama        OllamaConfig
	Policy        PolicyConfig
	AuditDatabase AuditDatabaseConfig
	Observability ObservabilityConfig
	Environment   string
}

// ServerConfig holds HTTP gateway configuration
type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// JWTSecret signs gateway-mode tokens carrying tenant/role claims.
	// Required only when the HTTP gateway is run.
	JWTSecret string
}

// PrincipalConfig identifies the session principal in CLI mode.
// Gateway mode derives the principal from request claims instead.
type PrincipalConfig struct {
	Tenant  string         `validate:"required"`
	Role    models.Role    `validate:"required,oneof=employee manager"`
	Profile models.Profile `validate:"required,oneof=base guardrails demo"`
}

// CacheConfig holds semantic cache configuration
type CacheConfig struct {
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	TTL           time.Duration
	MaxRetries    int
	CallTimeout   time.Duration
}

// RetrievalConfig holds hybrid retrieval configuration
type RetrievalConfig struct {
	QdrantURL        string
	QdrantAPIKey     string
	QdrantCollection string
	BM25CorpusPath   string
	// TopK is the per-retriever candidate count before fusion.
	TopK int
	// FusionK is the RRF constant; larger values flatten rank influence.
	FusionK int
	// ContextDocs bounds how many fused candidates feed context assembly.
	ContextDocs int
	CallTimeout time.Duration
}

// OllamaConfig holds model-serving configuration
type OllamaConfig struct {
	BaseURL     string
	EmbedModel  string
	LLMModel    string
	GuardModel  string
	Timeout     time.Duration
	MaxRetries  int
}

// PolicyConfig holds policy engine (authorization postfilter) configuration
type PolicyConfig struct {
	CerbosURL   string
	CallTimeout time.Duration
	MaxRetries  int
}

// AuditDatabaseConfig holds the optional postgres audit trail configuration.
// Auditing is disabled when ConnectionString is empty.
type AuditDatabaseConfig struct {
	ConnectionString string
	MaxOpenConns     int
	MaxIdleConns     int
	ConnMaxLifetime  time.Duration
}

// ObservabilityConfig holds logging configuration
type ObservabilityConfig struct {
	LogLevel  string
	LogFormat string // json or console
}

// New creates a new Config instance by loading environment variables
func New() (*Config, error) {
	// Load .env if present (repo root or current dir)
	_ = godotenv.Load(".env")

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			JWTSecret:       getEnv("JWT_SECRET", ""),
		},
		Principal: PrincipalConfig{
			Tenant:  getEnv("TENANT", "demo"),
			Role:    models.Role(getEnv("APP_ROLE", "employee")),
			Profile: models.Profile(getEnv("APP_PROFILE", "base")),
		},
		Cache: CacheConfig{
			RedisAddr:     getEnv("REDIS_ADDR", "127.0.0.1:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
			TTL:           getEnvAsDuration("CACHE_TTL", 360*time.Second),
			MaxRetries:    getEnvAsInt("CACHE_MAX_RETRIES", 3),
			CallTimeout:   getEnvAsDuration("CACHE_CALL_TIMEOUT", 2*time.Second),
		},
		Retrieval: RetrievalConfig{
			QdrantURL:        getEnv("QDRANT_URL", "http://localhost:6333"),
			QdrantAPIKey:     getEnv("QDRANT_API_KEY", ""),
			QdrantCollection: getEnv("QDRANT_COLLECTION", "legal_docs"),
			BM25CorpusPath:   getEnv("BM25_CORPUS_PATH", "bm25_corpus.json"),
			TopK:             getEnvAsInt("RETRIEVAL_TOP_K", 10),
			FusionK:          getEnvAsInt("FUSION_K", 60),
			ContextDocs:      getEnvAsInt("CONTEXT_DOCS", 5),
			CallTimeout:      getEnvAsDuration("RETRIEVAL_CALL_TIMEOUT", 15*time.Second),
		},
		Ollama: OllamaConfig{
			BaseURL:    getEnv("OLLAMA_URL", "http://localhost:11434"),
			EmbedModel: getEnv("EMBED_MODEL", "nomic-embed-text"),
			LLMModel:   getEnv("LLM_MODEL", "llama3.2"),
			GuardModel: getEnv("GUARD_MODEL", "llama-guard3"),
			Timeout:    getEnvAsDuration("OLLAMA_TIMEOUT", 120*time.Second),
			MaxRetries: getEnvAsInt("OLLAMA_MAX_RETRIES", 3),
		},
		Policy: PolicyConfig{
			CerbosURL:   getEnv("CERBOS_URL", "http://localhost:3592"),
			CallTimeout: getEnvAsDuration("POLICY_CALL_TIMEOUT", 3*time.Second),
			MaxRetries:  getEnvAsInt("POLICY_MAX_RETRIES", 3),
		},
		AuditDatabase: AuditDatabaseConfig{
			ConnectionString: getEnv("DATABASE_URL", ""),
			MaxOpenConns:     getEnvAsInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:     getEnvAsInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime:  getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Observability: ObservabilityConfig{
			LogLevel:  getEnv("LOG_LEVEL", "info"),
			LogFormat: getEnv("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

var validate = validator.New()

// Validate checks if all required configuration fields are set.
// Unknown roles and profiles are configuration errors, never a permissive
// default: an undefined role must not silently receive the widest filter.
func (c *Config) Validate() error {
	if err := validate.Struct(c.Principal); err != nil {
		return fmt.Errorf("invalid principal (tenant=%q role=%q profile=%q): %w",
			c.Principal.Tenant, c.Principal.Role, c.Principal.Profile, err)
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("RETRIEVAL_TOP_K must be positive")
	}
	if c.Retrieval.FusionK <= 0 {
		return fmt.Errorf("FUSION_K must be positive")
	}
	if c.Retrieval.ContextDocs <= 0 || c.Retrieval.ContextDocs > c.Retrieval.TopK {
		return fmt.Errorf("CONTEXT_DOCS must be in [1, RETRIEVAL_TOP_K]")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("CACHE_TTL must be positive")
	}
	if c.Observability.LogLevel == "" {
		return fmt.Errorf("log level is required")
	}
	return nil
}

// QueryContext builds the session principal from configuration.
func (c *Config) QueryContext() models.QueryContext {
	return models.QueryContext{
		Tenant:  c.Principal.Tenant,
		Role:    c.Principal.Role,
		Profile: c.Principal.Profile,
	}
}

// GuardEnabled reports whether the safety-guard wrapper should be attempted
func (c *Config) GuardEnabled() bool {
	return c.Principal.Profile == models.ProfileGuardrails
}

// AuditEnabled reports whether the postgres query trail is configured
func (c *Config) AuditEnabled() bool {
	return c.AuditDatabase.ConnectionString != ""
}

// IsDevelopment returns true if running in development environment
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development" || c.Environment == "dev"
}

// Address returns the HTTP gateway address
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// Package config provides application configuration.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration.
type Config struct {
	Port               string
	CORSAllowedOrigins []string
	MaxRequestBodySize int64
	MetricsEnabled     bool
	FetchTimeout       time.Duration
	RateLimit          RateLimitConfig
	LLM                LLMConfig
	Backend            BackendConfig
	Store              StoreConfig
	ExchangeLog        ExchangeLogConfig
}

// LLMConfig selects and tunes the text-generation provider.
type LLMConfig struct {
	Provider     string // "openai", "gemini" or "mock"
	OpenAIAPIKey string
	BaseURL      string
	GeminiAPIKey string
	AdviceModel  string // task-assignment endpoints
	AgentModel   string // weekly analysis, weekly goal and chat
	Temperature  float64
	MaxTokens    int
	Timeout      time.Duration
}

// BackendConfig points at the primary application backend.
type BackendConfig struct {
	URL       string
	AuthToken string
}

// StoreConfig selects the conversation persistence backend.
type StoreConfig struct {
	Backend     string // "file", "sqlite" or "postgres"
	Dir         string
	DBPath      string
	DatabaseURL string
	DB          DBConfig
}

// DBConfig holds discrete database connection parameters. They are only used
// to build a postgres DSN when DATABASE_URL is not set.
type DBConfig struct {
	Host     string
	Port     string
	Name     string
	User     string
	Password string
}

// RateLimitConfig limits requests per client on model-backed routes.
// Limiting is off unless Requests is positive.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// Enabled reports whether model-backed routes are rate limited.
func (r RateLimitConfig) Enabled() bool {
	return r.Requests > 0
}

// ExchangeLogConfig controls NDJSON logging of LLM exchanges.
type ExchangeLogConfig struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	queueSize := getEnvInt("EXCHANGE_LOG_QUEUE_SIZE", 1000)
	if queueSize <= 0 {
		queueSize = 1000
	}

	provider := strings.ToLower(getEnv("LLM_PROVIDER", "openai"))
	adviceModel, agentModel := defaultModels(provider)

	cfg := &Config{
		Port:               getEnv("PORT", "8000"),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		MaxRequestBodySize: int64(getEnvInt("MAX_REQUEST_BODY_BYTES", 1<<20)),
		MetricsEnabled:     getEnvBool("METRICS_ENABLED", true),
		FetchTimeout:       getEnvDuration("FETCH_TIMEOUT", 30*time.Second),
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 0),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW", time.Minute),
		},
		LLM: LLMConfig{
			Provider:     provider,
			OpenAIAPIKey: getEnv("OPENAI_API_KEY", ""),
			BaseURL:      getEnv("LLM_BASE_URL", "https://api.openai.com/v1"),
			GeminiAPIKey: getEnv("GEMINI_API_KEY", ""),
			AdviceModel:  getEnv("LLM_ADVICE_MODEL", adviceModel),
			AgentModel:   getEnv("LLM_AGENT_MODEL", agentModel),
			Temperature:  getEnvFloat("LLM_TEMPERATURE", 0.7),
			MaxTokens:    getEnvInt("LLM_MAX_TOKENS", 2000),
			Timeout:      getEnvDuration("LLM_TIMEOUT", 2*time.Minute),
		},
		Backend: BackendConfig{
			URL:       strings.TrimRight(getEnv("BACKEND_URL", getEnv("JAVA_BACKEND_URL", "")), "/"),
			AuthToken: getEnv("BACKEND_AUTH_TOKEN", ""),
		},
		Store: storeFromEnv(),
		ExchangeLog: ExchangeLogConfig{
			Enabled:   getEnvBool("EXCHANGE_LOG_ENABLED", true),
			Dir:       getEnv("EXCHANGE_LOG_DIR", "./data/logs/exchanges"),
			QueueSize: queueSize,
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.MaxRequestBodySize <= 0 {
		return fmt.Errorf("MAX_REQUEST_BODY_BYTES must be > 0")
	}
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.OpenAIAPIKey == "" {
			return fmt.Errorf("OPENAI_API_KEY must be set when LLM_PROVIDER=openai")
		}
	case "gemini":
		if c.LLM.GeminiAPIKey == "" {
			return fmt.Errorf("GEMINI_API_KEY must be set when LLM_PROVIDER=gemini")
		}
	case "mock":
	default:
		return fmt.Errorf("unknown LLM_PROVIDER %q", c.LLM.Provider)
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("LLM_MAX_TOKENS must be > 0")
	}
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if c.RateLimit.Requests < 0 {
		return fmt.Errorf("RATE_LIMIT_REQUESTS must be >= 0")
	}
	if c.ExchangeLog.Enabled && c.ExchangeLog.Dir == "" {
		return fmt.Errorf("EXCHANGE_LOG_DIR cannot be empty")
	}
	return nil
}

// LoadStore reads only the conversation store settings. Administrative
// commands use it so they run without model credentials.
func LoadStore() (StoreConfig, error) {
	s := storeFromEnv()
	if err := s.Validate(); err != nil {
		return StoreConfig{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return s, nil
}

func storeFromEnv() StoreConfig {
	return StoreConfig{
		Backend:     strings.ToLower(getEnv("CONVERSATION_STORE", "file")),
		Dir:         getEnv("CONVERSATION_DIR", "./conversations"),
		DBPath:      getEnv("CONVERSATION_DB_PATH", "./data/conversations.db"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		DB: DBConfig{
			Host:     getEnv("DB_HOST", ""),
			Port:     getEnv("DB_PORT", "5432"),
			Name:     getEnv("DB_NAME", ""),
			User:     getEnv("DB_USER", ""),
			Password: getEnv("DB_PASS", ""),
		},
	}
}

// Validate checks the settings required by the selected backend.
func (s StoreConfig) Validate() error {
	switch s.Backend {
	case "file":
		if s.Dir == "" {
			return fmt.Errorf("CONVERSATION_DIR cannot be empty")
		}
	case "sqlite":
		if s.DBPath == "" {
			return fmt.Errorf("CONVERSATION_DB_PATH cannot be empty")
		}
	case "postgres":
		if s.PostgresDSN() == "" {
			return fmt.Errorf("DATABASE_URL or DB_HOST/DB_NAME/DB_USER/DB_PASS must be set for postgres")
		}
	default:
		return fmt.Errorf("unknown CONVERSATION_STORE %q", s.Backend)
	}
	return nil
}

// defaultModels returns the advice and agent model defaults for provider.
func defaultModels(provider string) (advice, agent string) {
	if provider == "gemini" {
		return "gemini-2.5-pro", "gemini-2.5-flash"
	}
	return "gpt-4.1", "gpt-4o-mini"
}

// PostgresDSN returns DATABASE_URL, or a DSN assembled from the DB_* settings.
// It returns "" when neither is complete.
func (s StoreConfig) PostgresDSN() string {
	if s.DatabaseURL != "" {
		return s.DatabaseURL
	}
	db := s.DB
	if db.Host == "" || db.Name == "" || db.User == "" || db.Password == "" {
		return ""
	}
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(db.User, db.Password),
		Host:   db.Host + ":" + db.Port,
		Path:   "/" + db.Name,
	}
	return u.String()
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	d, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func getEnvList(key string, fallback []string) []string {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}

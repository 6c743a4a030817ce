// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App           AppConfig           `mapstructure:"app"`
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	Registry      RegistryConfig      `mapstructure:"registry"`
	Dispatch      DispatchConfig      `mapstructure:"dispatch"`
	Analyzer      AnalyzerConfig      `mapstructure:"analyzer"`
	Output        OutputConfig        `mapstructure:"output"`
	Observability ObservabilityConfig `mapstructure:"observability"`
	Logging       LoggingConfig       `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Address        string `mapstructure:"address"`
	RateLimit      int    `mapstructure:"rate_limit"`       // requests per minute per client
	MaxInputLength int    `mapstructure:"max_input_length"` // characters
	ReadTimeout    int    `mapstructure:"read_timeout"`     // milliseconds
	WriteTimeout   int    `mapstructure:"write_timeout"`    // milliseconds
}

type DatabaseConfig struct {
	Postgres      PostgresConfig      `mapstructure:"postgres"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Redis         RedisConfig         `mapstructure:"redis"`
}

type PostgresConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Database       string `mapstructure:"database"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	MaxConnections int    `mapstructure:"max_connections"`
	MaxIdle        int    `mapstructure:"max_idle"`
	SSLMode        string `mapstructure:"sslmode"`
}

// Enabled reports whether a Postgres registry store is configured.
func (p PostgresConfig) Enabled() bool {
	return p.Host != ""
}

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses  []string `mapstructure:"addresses"`
	Username   string   `mapstructure:"username"`
	Password   string   `mapstructure:"password"`
	URL        string   `mapstructure:"url"` // single node shorthand for addresses
	AuditIndex string   `mapstructure:"audit_index"`
	MaxRetries int      `mapstructure:"max_retries"`
}

// Hosts returns the node addresses, falling back to URL.
func (e ElasticsearchConfig) Hosts() []string {
	if len(e.Addresses) > 0 {
		return e.Addresses
	}
	if e.URL != "" {
		return []string{e.URL}
	}
	return nil
}

// Enabled reports whether the dispatch audit sink should be started.
func (e ElasticsearchConfig) Enabled() bool {
	return len(e.Hosts()) > 0
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

func (r RedisConfig) Enabled() bool {
	return r.Address != ""
}

// --- Routing core ---

type RegistryConfig struct {
	CacheTTL    int    `mapstructure:"cache_ttl"` // milliseconds
	CachePrefix string `mapstructure:"cache_prefix"`
}

type DispatchConfig struct {
	Timeout int `mapstructure:"timeout"` // milliseconds, per adapter call
}

type AnalyzerConfig struct {
	IntentURL string `mapstructure:"intent_url"`
	APIKey    string `mapstructure:"api_key"`
	Timeout   int    `mapstructure:"timeout"` // milliseconds
}

type OutputConfig struct {
	TTSURL      string `mapstructure:"tts_url"`
	TTSLanguage string `mapstructure:"tts_language"`
	Timeout     int    `mapstructure:"timeout"` // milliseconds
}

type ObservabilityConfig struct {
	ServiceName    string `mapstructure:"service_name"`
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Output string `mapstructure:"output"`
}

// internal/common/config/config.go
package config

import "fmt"

// Config is the main application configuration struct.
type Config struct {
	App         AppConfig         `mapstructure:"app"`
	Server      ServerConfig      `mapstructure:"server"`
	Telegram    TelegramConfig    `mapstructure:"telegram"`
	Permissions PermissionsConfig `mapstructure:"permissions"`
	Branches    []BranchConfig    `mapstructure:"branches"`
	Dataset     DatasetConfig     `mapstructure:"dataset"`
	Sources     SourcesConfig     `mapstructure:"sources"`
	Tokens      TokensConfig      `mapstructure:"tokens"`
	Database    DatabaseConfig    `mapstructure:"database"`
	Alerts      AlertsConfig      `mapstructure:"alerts"`
	Tracing     TracingConfig     `mapstructure:"tracing"`
	KeepAlive   KeepAliveConfig   `mapstructure:"keepalive"`
	Logging     LoggingConfig     `mapstructure:"logging"`
}

// --- Core App/Infrastructure Config ---
type AppConfig struct {
	Name        string `mapstructure:"name"`
	Version     string `mapstructure:"version"`
	Environment string `mapstructure:"environment"`
}

type ServerConfig struct {
	Port        int    `mapstructure:"port"`
	WebhookPath string `mapstructure:"webhook_path"`
}

// Addr returns the listen address for the HTTP server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

type TelegramConfig struct {
	Token      string `mapstructure:"token"`
	APIBaseURL string `mapstructure:"api_base_url"`
	Timeout    int    `mapstructure:"timeout"` // milliseconds
}

// PermissionsConfig describes where the operator directory is read from.
type PermissionsConfig struct {
	Kind         string `mapstructure:"kind"` // sheet | postgres
	URL          string `mapstructure:"url"`
	Table        string `mapstructure:"table"`
	Unrestricted string `mapstructure:"unrestricted"`
	CacheTTL     int    `mapstructure:"cache_ttl"` // milliseconds, 0 = fetch every turn

	OperatorColumn string `mapstructure:"operator_column"`
	BranchColumn   string `mapstructure:"branch_column"`
	RegionColumn   string `mapstructure:"region_column"`
	NameColumn     string `mapstructure:"name_column"`
}

// BranchConfig maps one branch to its dataset source. Exactly one of URL or Index is set.
type BranchConfig struct {
	Name  string `mapstructure:"name"`
	URL   string `mapstructure:"url"`
	Index string `mapstructure:"index"`
}

type DatasetConfig struct {
	AssetColumn  string `mapstructure:"asset_column"`
	RegionColumn string `mapstructure:"region_column"`
	QueryPrefix  string `mapstructure:"query_prefix"`
	MaxRows      int    `mapstructure:"max_rows"`  // 0 = unlimited; larger datasets are rejected, not truncated
	CacheTTL     int    `mapstructure:"cache_ttl"` // milliseconds, 0 disables the redis cache
}

type SourcesConfig struct {
	Timeout      int    `mapstructure:"timeout"` // milliseconds
	RegistryPath string `mapstructure:"registry_path"`
}

// TokensConfig holds the literal inputs that drive menu navigation.
type TokensConfig struct {
	Start      string `mapstructure:"start"`
	BranchMenu string `mapstructure:"branch_menu"`
	Search     string `mapstructure:"search"`
	Back       string `mapstructure:"back"`
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

// GetDSN returns the PostgreSQL connection string
func (p PostgresConfig) GetDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

type ElasticsearchConfig struct {
	Addresses []string `mapstructure:"addresses"`
	Username  string   `mapstructure:"username"`
	Password  string   `mapstructure:"password"`
}

type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AlertsConfig selects where unauthorized-access reports go.
type AlertsConfig struct {
	Channel   string `mapstructure:"channel"` // none | sns | ses
	Region    string `mapstructure:"region"`
	TopicARN  string `mapstructure:"topic_arn"`
	FromEmail string `mapstructure:"from_email"`
	ToEmail   string `mapstructure:"to_email"`
}

type TracingConfig struct {
	JaegerEndpoint string `mapstructure:"jaeger_endpoint"`
}

type KeepAliveConfig struct {
	URL      string `mapstructure:"url"`
	Interval int    `mapstructure:"interval"` // milliseconds
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// NeedsPostgres reports whether any configured component reads from postgres.
func (c *Config) NeedsPostgres() bool {
	return c.Permissions.Kind == PermissionsKindPostgres
}

// NeedsElasticsearch reports whether any branch is backed by a search index.
func (c *Config) NeedsElasticsearch() bool {
	for _, b := range c.Branches {
		if b.Index != "" {
			return true
		}
	}
	return false
}

// BranchNames returns configured branch names in menu order.
func (c *Config) BranchNames() []string {
	names := make([]string, 0, len(c.Branches))
	for _, b := range c.Branches {
		names = append(names, b.Name)
	}
	return names
}

const (
	PermissionsKindSheet    = "sheet"
	PermissionsKindPostgres = "postgres"

	AlertChannelNone = "none"
	AlertChannelSNS  = "sns"
	AlertChannelSES  = "ses"
)

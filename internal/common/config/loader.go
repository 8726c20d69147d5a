// internal/common/config/loader.go
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"asset-lookup-bot/pkg/registry"
)

// legacyBranchEnv lists the branches the bot shipped with and the env vars holding their sheet URLs.
// Used only when the config file declares no branches.
var legacyBranchEnv = []struct {
	Name string
	Env  string
}{
	{"Юго-Западные ЭС", "YUGO_ZAPAD_ES_URL"},
	{"Усть-Лабинские ЭС", "UST_LAB_ES_URL"},
	{"Тимашевские ЭС", "TIMASHEV_ES_URL"},
	{"Тихорецкие ЭС", "TIKHORETS_ES_URL"},
	{"Сочинские ЭС", "SOCH_ES_URL"},
	{"Славянские ЭС", "SLAV_ES_URL"},
	{"Ленинградские ЭС", "LENINGRAD_ES_URL"},
	{"Лабинские ЭС", "LABIN_ES_URL"},
	{"Краснодарские ЭС", "KRASN_ES_URL"},
	{"Армавирские ЭС", "ARMAVIR_ES_URL"},
	{"Адыгейские ЭС", "ADYGEA_ES_URL"},
}

func Load() (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath("../../configs")
	v.AddConfigPath(".")

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	env := os.Getenv("APP_ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading base config: %w", err)
		}
	}

	v.SetConfigName(fmt.Sprintf("config.%s", env))
	_ = v.MergeInConfig() // optional

	return finish(v)
}

// LoadFromFile loads configuration from a specific file path
func LoadFromFile(path string) (*Config, error) {
	loadEnvFile()

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return finish(v)
}

func finish(v *viper.Viper) (*Config, error) {
	expandEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := applyRegistry(&cfg); err != nil {
		return nil, err
	}
	overrideEmptyConfig(&cfg)
	applyDefaults(&cfg)

	if err := validateConfig(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func loadEnvFile() {
	possiblePaths := []string{
		".env",
		"../.env",
		"../../.env",
	}
	if rootDir := findProjectRoot(); rootDir != "" {
		possiblePaths = append(possiblePaths, filepath.Join(rootDir, ".env"))
	}

	for _, path := range possiblePaths {
		if _, err := os.Stat(path); err == nil {
			if err := godotenv.Load(path); err == nil {
				return
			}
		}
	}
}

// Find project root by looking for go.mod
func findProjectRoot() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return ""
}

func expandEnvVars(v *viper.Viper) {
	for _, key := range v.AllKeys() {
		strVal, ok := v.Get(key).(string)
		if !ok {
			continue
		}
		if strings.Contains(strVal, "${") || (strings.HasPrefix(strVal, "$") && len(strVal) > 1) {
			expanded := os.ExpandEnv(strVal)
			if expanded != strVal && expanded != "" {
				v.Set(key, expanded)
			}
		}
	}
}

// applyRegistry replaces the branch list with the enabled entries of the registry file, when one is configured.
func applyRegistry(cfg *Config) error {
	if cfg.Sources.RegistryPath == "" {
		return nil
	}
	reg, err := registry.LoadRegistry(cfg.Sources.RegistryPath)
	if err != nil {
		return fmt.Errorf("load branch registry: %w", err)
	}
	cfg.Branches = cfg.Branches[:0]
	for _, b := range reg.Enabled() {
		cfg.Branches = append(cfg.Branches, BranchConfig{Name: b.Name, URL: b.URL, Index: b.Index})
	}
	return nil
}

// overrideEmptyConfig fills still-empty values from the env var names the bot was originally deployed with.
func overrideEmptyConfig(cfg *Config) {
	if cfg.Telegram.Token == "" {
		cfg.Telegram.Token = os.Getenv("TOKEN")
	}
	if cfg.Permissions.URL == "" {
		cfg.Permissions.URL = strings.TrimSpace(os.Getenv("ZONES_CSV_URL"))
	}
	if cfg.KeepAlive.URL == "" {
		if self := strings.TrimRight(os.Getenv("SELF_URL"), "/"); self != "" {
			cfg.KeepAlive.URL = self + "/webhook"
		}
	}
	if cfg.Server.Port == 0 {
		if port, err := strconv.Atoi(os.Getenv("PORT")); err == nil {
			cfg.Server.Port = port
		}
	}
	if len(cfg.Branches) == 0 {
		for _, b := range legacyBranchEnv {
			cfg.Branches = append(cfg.Branches, BranchConfig{Name: b.Name, URL: os.Getenv(b.Env)})
		}
	}
	if cfg.Database.Postgres.User == "" {
		cfg.Database.Postgres.User = os.Getenv("DB_USER")
	}
	if cfg.Database.Postgres.Password == "" {
		cfg.Database.Postgres.Password = os.Getenv("DB_PASSWORD")
	}
}

// applyDefaults sets default values for optional configuration fields
func applyDefaults(cfg *Config) {
	if cfg.App.Name == "" {
		cfg.App.Name = "asset-lookup-bot"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 5000
	}
	if cfg.Server.WebhookPath == "" {
		cfg.Server.WebhookPath = "/webhook"
	}

	if cfg.Telegram.APIBaseURL == "" {
		cfg.Telegram.APIBaseURL = "https://api.telegram.org"
	}
	if cfg.Telegram.Timeout == 0 {
		cfg.Telegram.Timeout = 10000
	}

	if cfg.Permissions.Kind == "" {
		cfg.Permissions.Kind = PermissionsKindSheet
	}
	if cfg.Permissions.Table == "" {
		cfg.Permissions.Table = "operator_permissions"
	}
	if cfg.Permissions.Unrestricted == "" {
		cfg.Permissions.Unrestricted = "All"
	}
	if cfg.Permissions.OperatorColumn == "" {
		cfg.Permissions.OperatorColumn = "ID"
	}
	if cfg.Permissions.BranchColumn == "" {
		cfg.Permissions.BranchColumn = "Филиал"
	}
	if cfg.Permissions.RegionColumn == "" {
		cfg.Permissions.RegionColumn = "РЭС"
	}
	if cfg.Permissions.NameColumn == "" {
		cfg.Permissions.NameColumn = "ФИО"
	}

	if cfg.Dataset.AssetColumn == "" {
		cfg.Dataset.AssetColumn = "Наименование ТП"
	}
	if cfg.Dataset.RegionColumn == "" {
		cfg.Dataset.RegionColumn = "РЭС"
	}
	if cfg.Dataset.QueryPrefix == "" {
		cfg.Dataset.QueryPrefix = "ТП-"
	}

	if cfg.Sources.Timeout == 0 {
		cfg.Sources.Timeout = 10000
	}

	if cfg.Tokens.Start == "" {
		cfg.Tokens.Start = "/start"
	}
	if cfg.Tokens.BranchMenu == "" {
		cfg.Tokens.BranchMenu = "Выбор филиала"
	}
	if cfg.Tokens.Search == "" {
		cfg.Tokens.Search = "Поиск"
	}
	if cfg.Tokens.Back == "" {
		cfg.Tokens.Back = "Назад"
	}

	if cfg.Database.Postgres.Port == 0 {
		cfg.Database.Postgres.Port = 5432
	}
	if cfg.Database.Postgres.MaxConnections == 0 {
		cfg.Database.Postgres.MaxConnections = 10
	}
	if cfg.Database.Postgres.MaxIdle == 0 {
		cfg.Database.Postgres.MaxIdle = 2
	}
	if cfg.Database.Postgres.SSLMode == "" {
		cfg.Database.Postgres.SSLMode = "disable"
	}

	if cfg.Alerts.Channel == "" {
		cfg.Alerts.Channel = AlertChannelNone
	}

	if cfg.KeepAlive.Interval == 0 {
		cfg.KeepAlive.Interval = 300000
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}

// validateConfig validates critical configuration fields
func validateConfig(cfg *Config) error {
	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	switch cfg.Permissions.Kind {
	case PermissionsKindSheet:
		if cfg.Permissions.URL == "" {
			return fmt.Errorf("permissions.url is required for kind %q", PermissionsKindSheet)
		}
	case PermissionsKindPostgres:
		if cfg.Database.Postgres.Host == "" || cfg.Database.Postgres.Database == "" {
			return fmt.Errorf("database.postgres.host and database.postgres.database are required for kind %q", PermissionsKindPostgres)
		}
	default:
		return fmt.Errorf("permissions.kind must be %q or %q, got %q", PermissionsKindSheet, PermissionsKindPostgres, cfg.Permissions.Kind)
	}

	if len(cfg.Branches) == 0 {
		return fmt.Errorf("at least one branch is required")
	}
	seen := make(map[string]bool, len(cfg.Branches))
	for _, b := range cfg.Branches {
		if b.Name == "" {
			return fmt.Errorf("branch name is required")
		}
		if seen[b.Name] {
			return fmt.Errorf("duplicate branch %q", b.Name)
		}
		seen[b.Name] = true
		if b.URL != "" && b.Index != "" {
			return fmt.Errorf("branch %q: url and index are mutually exclusive", b.Name)
		}
	}

	if cfg.Dataset.MaxRows < 0 {
		return fmt.Errorf("dataset.max_rows must be >= 0, got %d", cfg.Dataset.MaxRows)
	}
	if cfg.NeedsElasticsearch() && len(cfg.Database.Elasticsearch.Addresses) == 0 {
		return fmt.Errorf("database.elasticsearch.addresses is required when a branch uses an index")
	}
	if cfg.Dataset.CacheTTL > 0 && cfg.Database.Redis.Address == "" {
		return fmt.Errorf("database.redis.address is required when dataset.cache_ttl is set")
	}

	switch cfg.Alerts.Channel {
	case AlertChannelNone:
	case AlertChannelSNS:
		if cfg.Alerts.TopicARN == "" {
			return fmt.Errorf("alerts.topic_arn is required for channel %q", AlertChannelSNS)
		}
	case AlertChannelSES:
		if cfg.Alerts.FromEmail == "" || cfg.Alerts.ToEmail == "" {
			return fmt.Errorf("alerts.from_email and alerts.to_email are required for channel %q", AlertChannelSES)
		}
	default:
		return fmt.Errorf("unknown alerts.channel %q", cfg.Alerts.Channel)
	}

	return nil
}

// GetDuration converts milliseconds from config to time.Duration
func GetDuration(milliseconds int) time.Duration {
	return time.Duration(milliseconds) * time.Millisecond
}

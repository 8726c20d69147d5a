package directory

import (
	"time"

	"asset-lookup-bot/internal/common/config"
)

// Columns names the header cells the directory reads.
type Columns struct {
	Operator string
	Branch   string
	Region   string
	Name     string
}

type Config struct {
	CacheTTL     time.Duration
	FetchTimeout time.Duration // bounds the shared fetch, 0 = no limit
	Unrestricted string
	Columns      Columns
}

func LoadConfig(cfg *config.Config) *Config {
	p := cfg.Permissions
	return &Config{
		CacheTTL:     config.GetDuration(p.CacheTTL),
		FetchTimeout: config.GetDuration(cfg.Sources.Timeout),
		Unrestricted: p.Unrestricted,
		Columns: Columns{
			Operator: p.OperatorColumn,
			Branch:   p.BranchColumn,
			Region:   p.RegionColumn,
			Name:     p.NameColumn,
		},
	}
}

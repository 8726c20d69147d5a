package conversation

import (
	"time"

	"asset-lookup-bot/internal/common/config"
)

// Tokens are the literal inputs that navigate menus.
type Tokens struct {
	Start      string
	BranchMenu string
	Search     string
	Back       string
}

type Config struct {
	Tokens       Tokens
	FetchTimeout time.Duration
}

func LoadConfig(cfg *config.Config) *Config {
	return &Config{
		Tokens: Tokens{
			Start:      cfg.Tokens.Start,
			BranchMenu: cfg.Tokens.BranchMenu,
			Search:     cfg.Tokens.Search,
			Back:       cfg.Tokens.Back,
		},
		FetchTimeout: config.GetDuration(cfg.Sources.Timeout),
	}
}

func DefaultConfig() *Config {
	return &Config{
		Tokens: Tokens{
			Start:      "/start",
			BranchMenu: "Выбор филиала",
			Search:     "Поиск",
			Back:       "Назад",
		},
		FetchTimeout: 10 * time.Second,
	}
}

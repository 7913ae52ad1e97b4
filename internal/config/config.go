package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"corpempire/internal/economy"
)

type WorkerConfig struct {
	Addr                   string
	DatabaseURL            string
	AdminToken             string
	CycleInterval          time.Duration
	TaxRate                float64
	ValuationFloor         float64
	ValuationSensitivity   float64
	MarketEventProbability float64
	MaxActiveLoans         int
	RandomSeed             int64
	RunMigrations          bool
	RunOnce                bool
	DiscordToken           string
	DiscordGuildID         string
}

// Policy is the economic policy the worker runs with.
func (c WorkerConfig) Policy() economy.Policy {
	return economy.Policy{
		TaxRate:                c.TaxRate,
		ValuationFloor:         c.ValuationFloor,
		ValuationSensitivity:   c.ValuationSensitivity,
		MarketEventProbability: c.MarketEventProbability,
	}
}

type CLIConfig struct {
	APIBaseURL string
	AdminToken string
}

func LoadWorkerFromEnv() (WorkerConfig, error) {
	addr := os.Getenv("PORT")
	if addr != "" {
		if !strings.HasPrefix(addr, ":") {
			addr = ":" + addr
		}
	} else {
		addr = envDefault("EMPIRE_ADMIN_ADDR", ":8080")
	}

	var env envReader
	defaults := economy.DefaultPolicy()
	cfg := WorkerConfig{
		Addr:                   addr,
		DatabaseURL:            strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AdminToken:             strings.TrimSpace(os.Getenv("EMPIRE_ADMIN_TOKEN")),
		CycleInterval:          time.Duration(env.intDefault("EMPIRE_CYCLE_INTERVAL_SECONDS", 86400)) * time.Second,
		TaxRate:                env.floatDefault("EMPIRE_TAX_RATE", defaults.TaxRate),
		ValuationFloor:         env.floatDefault("EMPIRE_VALUATION_FLOOR", defaults.ValuationFloor),
		ValuationSensitivity:   env.floatDefault("EMPIRE_VALUATION_SENSITIVITY", defaults.ValuationSensitivity),
		MarketEventProbability: env.floatDefault("EMPIRE_MARKET_EVENT_PROBABILITY", defaults.MarketEventProbability),
		MaxActiveLoans:         env.intDefault("EMPIRE_MAX_ACTIVE_LOANS", 3),
		RandomSeed:             int64(env.intDefault("EMPIRE_RANDOM_SEED", 0)),
		RunMigrations:          env.boolDefault("EMPIRE_RUN_MIGRATIONS", true),
		RunOnce:                env.boolDefault("EMPIRE_WORKER_RUN_ONCE", false),
		DiscordToken:           strings.TrimSpace(os.Getenv("DISCORD_BOT_TOKEN")),
		DiscordGuildID:         strings.TrimSpace(os.Getenv("DISCORD_GUILD_ID")),
	}
	if err := errors.Join(env.errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c WorkerConfig) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%w: DATABASE_URL is required", economy.ErrConfiguration)
	}
	if c.AdminToken == "" && !c.RunOnce {
		return fmt.Errorf("%w: EMPIRE_ADMIN_TOKEN is required", economy.ErrConfiguration)
	}
	if c.CycleInterval <= 0 {
		return fmt.Errorf("%w: EMPIRE_CYCLE_INTERVAL_SECONDS must be positive", economy.ErrConfiguration)
	}
	if c.MaxActiveLoans < 1 {
		return fmt.Errorf("%w: EMPIRE_MAX_ACTIVE_LOANS must be at least 1", economy.ErrConfiguration)
	}
	return c.Policy().Validate()
}

func LoadCLIFromEnv() CLIConfig {
	return CLIConfig{
		APIBaseURL: strings.TrimRight(envDefault("EMPIRECTL_API_BASE_URL", "http://localhost:8080"), "/"),
		AdminToken: strings.TrimSpace(os.Getenv("EMPIRECTL_ADMIN_TOKEN")),
	}
}

func envDefault(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

// envReader parses optional variables and remembers the ones that are set
// but malformed.
type envReader struct {
	errs []error
}

func (r *envReader) invalid(key, value, want string) {
	r.errs = append(r.errs, fmt.Errorf("%w: %s=%q is not a valid %s", economy.ErrConfiguration, key, value, want))
}

func (r *envReader) intDefault(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.invalid(key, v, "integer")
		return fallback
	}
	return n
}

func (r *envReader) floatDefault(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.invalid(key, v, "number")
		return fallback
	}
	return f
}

func (r *envReader) boolDefault(key string, fallback bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.invalid(key, v, "boolean")
		return fallback
	}
	return b
}

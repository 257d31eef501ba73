// Package config loads service configuration from a YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the top-level service configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Logging   LoggingConfig   `yaml:"logging"`
	Database  DatabaseConfig  `yaml:"database"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Bank      BankConfig      `yaml:"bank"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// DatabaseConfig selects the persistence backend. An empty DSN selects the
// in-memory store.
type DatabaseConfig struct {
	Driver          string `yaml:"driver"`
	DSN             string `yaml:"dsn"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime_seconds"`
}

// OracleConfig configures the price feed. FeedURL selects the HTTP provider;
// when empty, a static provider serving StaticPriceUSD is used instead.
type OracleConfig struct {
	FeedURL          string `yaml:"feed_url"`
	FeedAPIKey       string `yaml:"feed_api_key"`
	StalenessMinutes int    `yaml:"staleness_minutes"`
	PollSeconds      int    `yaml:"poll_interval_seconds"`
	StaticPriceUSD   string `yaml:"static_price_usd"`
}

// BankConfig holds the policy parameters, admin principals, and the external
// asset-transfer endpoint. An empty TransferURL selects the passthrough
// provider.
type BankConfig struct {
	DepositCapUSD      string   `yaml:"deposit_cap_usd"`
	WithdrawalLimitUSD string   `yaml:"withdrawal_limit_usd"`
	AdminPrincipals    []string `yaml:"admin_principals"`
	TransferURL        string   `yaml:"transfer_url"`
	TransferAPIKey     string   `yaml:"transfer_api_key"`
}

type RateLimitConfig struct {
	RequestsPerSecond int `yaml:"requests_per_second"`
	Burst             int `yaml:"burst"`
}

// Load reads the configuration file (default config/ledgerd.yaml, overridable
// with LEDGER_CONFIG) and applies environment overrides. A missing file is
// not an error; defaults plus environment apply.
func Load() (*Config, error) {
	path := os.Getenv("LEDGER_CONFIG")
	if path == "" {
		path = "config/ledgerd.yaml"
	}

	cfg := defaults()
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// fall through to defaults
	default:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	applyEnv(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaults() *Config {
	return &Config{
		Server:  ServerConfig{Host: "0.0.0.0", Port: 8080},
		Logging: LoggingConfig{Level: "info", Format: "json", Output: "stdout"},
		Oracle: OracleConfig{
			StalenessMinutes: 120,
			PollSeconds:      30,
			StaticPriceUSD:   "2000",
		},
		Bank: BankConfig{
			DepositCapUSD:      "1000000",
			WithdrawalLimitUSD: "10000",
		},
		RateLimit: RateLimitConfig{RequestsPerSecond: 20, Burst: 40},
	}
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Host, "LEDGER_SERVER_HOST")
	setInt(&cfg.Server.Port, "LEDGER_SERVER_PORT")
	setString(&cfg.Logging.Level, "LEDGER_LOG_LEVEL")
	setString(&cfg.Logging.Format, "LEDGER_LOG_FORMAT")
	setString(&cfg.Database.Driver, "LEDGER_DB_DRIVER")
	setString(&cfg.Database.DSN, "LEDGER_DB_DSN")
	setString(&cfg.Oracle.FeedURL, "LEDGER_ORACLE_FEED_URL")
	setString(&cfg.Oracle.FeedAPIKey, "LEDGER_ORACLE_FEED_KEY")
	setInt(&cfg.Oracle.StalenessMinutes, "LEDGER_ORACLE_STALENESS_MINUTES")
	setInt(&cfg.Oracle.PollSeconds, "LEDGER_ORACLE_POLL_SECONDS")
	setString(&cfg.Oracle.StaticPriceUSD, "LEDGER_ORACLE_STATIC_PRICE_USD")
	setString(&cfg.Bank.DepositCapUSD, "LEDGER_BANK_DEPOSIT_CAP_USD")
	setString(&cfg.Bank.WithdrawalLimitUSD, "LEDGER_BANK_WITHDRAWAL_LIMIT_USD")
	setString(&cfg.Bank.TransferURL, "LEDGER_BANK_TRANSFER_URL")
	setString(&cfg.Bank.TransferAPIKey, "LEDGER_BANK_TRANSFER_KEY")

	if raw := strings.TrimSpace(os.Getenv("LEDGER_ADMIN_PRINCIPALS")); raw != "" {
		parts := strings.Split(raw, ",")
		admins := make([]string, 0, len(parts))
		for _, part := range parts {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				admins = append(admins, trimmed)
			}
		}
		cfg.Bank.AdminPrincipals = admins
	}
}

func validate(cfg *Config) error {
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", cfg.Server.Port)
	}
	if cfg.Oracle.StalenessMinutes <= 0 {
		return fmt.Errorf("oracle staleness must be positive")
	}
	if strings.TrimSpace(cfg.Bank.DepositCapUSD) == "" {
		return fmt.Errorf("bank deposit cap is required")
	}
	if strings.TrimSpace(cfg.Bank.WithdrawalLimitUSD) == "" {
		return fmt.Errorf("bank withdrawal limit is required")
	}
	return nil
}

func setString(dst *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			*dst = parsed
		}
	}
}

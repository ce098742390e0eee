package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

const (
	defaultDBPath   = "./dev.db"
	defaultPort     = "8080"
	defaultEnv      = "development"
	defaultLogLevel = "info"
	defaultUCPRate  = "500"

	// A complaint without a pricing rule is charged full labour and the
	// part at cost.
	defaultLabourPercent = "100"
	defaultPricePercent  = "0"
	defaultParentPolicy  = "roots"
)

// Config holds application configuration sourced from the environment, an
// optional .env file and an optional YAML file.
type Config struct {
	AdminEmail    string
	AdminPassword string
	SessionSecret string
	DBPath        string
	Port          string
	AppEnv        string
	LogLevel      string

	UCPRate              decimal.Decimal
	DefaultLabourPercent decimal.Decimal
	DefaultPricePercent  decimal.Decimal
	ParentPolicy         string
}

// IsDev reports whether the service runs in a development environment.
func (c Config) IsDev() bool {
	switch strings.ToLower(c.AppEnv) {
	case "", "dev", "development", "local":
		return true
	}
	return false
}

// Warnings lists settings that are missing but not fatal.
func (c Config) Warnings() []string {
	var out []string
	if c.AdminEmail == "" {
		out = append(out, "ADMIN_EMAIL is not set")
	}
	if c.AdminPassword == "" {
		out = append(out, "ADMIN_PASSWORD is not set")
	}
	if c.SessionSecret == "" {
		out = append(out, "SESSION_SECRET is not set")
	}
	return out
}

// Load reads configuration. Values in the process environment win over
// configPath (YAML, optional), which wins over envFile (dotenv, optional).
// Missing files are ignored unless configPath was given explicitly.
func Load(envFile, configPath string) (Config, error) {
	v := viper.New()
	v.SetDefault("db_path", defaultDBPath)
	v.SetDefault("port", defaultPort)
	v.SetDefault("app_env", defaultEnv)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("ucp_rate", defaultUCPRate)
	v.SetDefault("default_labour_percent", defaultLabourPercent)
	v.SetDefault("default_price_percent", defaultPricePercent)
	v.SetDefault("parent_policy", defaultParentPolicy)
	for _, key := range []string{"admin_email", "admin_password", "session_secret"} {
		v.SetDefault(key, "")
	}

	if envFile != "" {
		if err := readOptional(v, envFile, "env"); err != nil {
			return Config{}, err
		}
	}
	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.MergeInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}
	v.AutomaticEnv()

	cfg := Config{
		AdminEmail:    v.GetString("admin_email"),
		AdminPassword: v.GetString("admin_password"),
		SessionSecret: v.GetString("session_secret"),
		DBPath:        v.GetString("db_path"),
		Port:          v.GetString("port"),
		AppEnv:        v.GetString("app_env"),
		LogLevel:      v.GetString("log_level"),
		ParentPolicy:  v.GetString("parent_policy"),
	}

	var err error
	if cfg.UCPRate, err = decimalSetting(v, "ucp_rate"); err != nil {
		return Config{}, err
	}
	if cfg.DefaultLabourPercent, err = decimalSetting(v, "default_labour_percent"); err != nil {
		return Config{}, err
	}
	if cfg.DefaultPricePercent, err = decimalSetting(v, "default_price_percent"); err != nil {
		return Config{}, err
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks value ranges.
func (c Config) Validate() error {
	if c.UCPRate.IsNegative() {
		return errors.New("UCP_RATE must not be negative")
	}
	if c.DefaultLabourPercent.IsNegative() || c.DefaultPricePercent.IsNegative() {
		return errors.New("default percentages must not be negative")
	}
	switch c.ParentPolicy {
	case "", "roots", "any":
	default:
		return fmt.Errorf("PARENT_POLICY %q: want roots or any", c.ParentPolicy)
	}
	return nil
}

func readOptional(v *viper.Viper, path, kind string) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	v.SetConfigFile(path)
	v.SetConfigType(kind)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	return nil
}

func decimalSetting(v *viper.Viper, key string) (decimal.Decimal, error) {
	raw := strings.TrimSpace(v.GetString(key))
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s=%q: %w", strings.ToUpper(key), raw, err)
	}
	return d, nil
}

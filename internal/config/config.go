package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"golang.org/x/crypto/bcrypt"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Port        string   `yaml:"port"`
	DSN         string   `yaml:"dsn"`
	JWTSecret   string   `yaml:"jwt_secret"`
	JWTTTLHrs   int      `yaml:"jwt_ttl_hours"`
	BcryptCost  int      `yaml:"bcrypt_cost"`
	Env         string   `yaml:"env"`
	LogLevel    string   `yaml:"log_level"`
	CORSOrigins []string `yaml:"cors_origins"`
	Migrate     bool     `yaml:"migrate"`
}

func defaults() *Config {
	return &Config{
		Port:        "8080",
		BcryptCost:  12,
		Env:         "dev",
		LogLevel:    "info",
		CORSOrigins: []string{"*"},
		Migrate:     true,
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and finally the environment (a .env file is loaded first when
// present).
func Load() (*Config, error) {
	_ = godotenv.Load()

	c := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := c.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := c.loadEnv(); err != nil {
		return nil, err
	}
	if err := c.validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) loadFile(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) loadEnv() error {
	c.Port = getEnv("PORT", c.Port)
	c.DSN = getEnv("DB_DSN", c.DSN)
	c.JWTSecret = getEnv("JWT_SECRET", c.JWTSecret)
	c.Env = getEnv("ENV", c.Env)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)

	var err error
	if c.JWTTTLHrs, err = getInt("JWT_TTL_HOURS", c.JWTTTLHrs); err != nil {
		return err
	}
	if c.BcryptCost, err = getInt("BCRYPT_COST", c.BcryptCost); err != nil {
		return err
	}
	if v := os.Getenv("MIGRATE"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid MIGRATE: %w", err)
		}
		c.Migrate = b
	}
	if v := os.Getenv("CORS_ORIGINS"); v != "" {
		c.CORSOrigins = nil
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.CORSOrigins = append(c.CORSOrigins, o)
			}
		}
	}
	return nil
}

func (c *Config) validate() error {
	var errs []error
	if c.DSN == "" {
		errs = append(errs, errors.New("missing env: DB_DSN"))
	}
	if c.JWTSecret == "" {
		errs = append(errs, errors.New("missing env: JWT_SECRET"))
	}
	if c.JWTTTLHrs < 0 {
		errs = append(errs, errors.New("JWT_TTL_HOURS must not be negative"))
	}
	if c.BcryptCost < bcrypt.MinCost || c.BcryptCost > bcrypt.MaxCost {
		errs = append(errs, fmt.Errorf("BCRYPT_COST must be between %d and %d", bcrypt.MinCost, bcrypt.MaxCost))
	}
	return errors.Join(errs...)
}

func getEnv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", k, err)
	}
	return n, nil
}

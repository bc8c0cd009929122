package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"upsell-tracker/internal/logger"
)

const (
	DefaultDuration      = 30 * time.Second
	DefaultConcurrency   = 10
	DefaultQueryLimit    = 20
	DefaultSQLiteDSN     = "file:upsell.db"
	DefaultMongoDatabase = "commerce"

	// EnvPrefix is prepended to the upper-cased database name to form the
	// DSN override variable, e.g. COMMERCE_POSTGRES_DSN.
	EnvPrefix = "COMMERCE_"
)

type Config struct {
	Databases         Databases         `yaml:"databases"`
	MongoDatabase     string            `yaml:"mongo_database"`
	BenchmarkSettings BenchmarkSettings `yaml:"benchmark_settings"`
	Query             Query             `yaml:"query"`
	Logging           logger.Config     `yaml:"logging"`
}

type Databases struct {
	Postgres string `yaml:"postgres"`
	MySQL    string `yaml:"mysql"`
	SQLite   string `yaml:"sqlite"`
	Mongo    string `yaml:"mongo"`
}

type BenchmarkSettings struct {
	DefaultDuration    string `yaml:"default_duration"`
	DefaultConcurrency int    `yaml:"default_concurrency"`
}

type Query struct {
	DefaultLimit int `yaml:"default_limit"`
}

// LoadConfig reads path, fills defaults and applies environment
// overrides. A missing file is not an error: defaults and the environment
// are enough to run against SQLite.
func LoadConfig(path string) (*Config, error) {
	config := &Config{}

	file, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(file, config); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	config.applyEnv(os.LookupEnv)
	config.applyDefaults()
	if _, err := config.Duration(); err != nil {
		return nil, err
	}
	return config, nil
}

func (c *Config) applyDefaults() {
	if c.Databases.SQLite == "" {
		c.Databases.SQLite = DefaultSQLiteDSN
	}
	if c.MongoDatabase == "" {
		c.MongoDatabase = DefaultMongoDatabase
	}
	if c.BenchmarkSettings.DefaultDuration == "" {
		c.BenchmarkSettings.DefaultDuration = DefaultDuration.String()
	}
	if c.BenchmarkSettings.DefaultConcurrency <= 0 {
		c.BenchmarkSettings.DefaultConcurrency = DefaultConcurrency
	}
	if c.Query.DefaultLimit <= 0 {
		c.Query.DefaultLimit = DefaultQueryLimit
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	for name, dsn := range map[string]*string{
		"postgres": &c.Databases.Postgres,
		"mysql":    &c.Databases.MySQL,
		"sqlite":   &c.Databases.SQLite,
		"mongo":    &c.Databases.Mongo,
	} {
		if v, ok := lookup(EnvPrefix + strings.ToUpper(name) + "_DSN"); ok && v != "" {
			*dsn = v
		}
	}
	if v, ok := lookup(EnvPrefix + "LOG_LEVEL"); ok && v != "" {
		c.Logging.Level = v
	}
}

// DSN returns the connection string configured for the named database.
func (c *Config) DSN(db string) (string, error) {
	var dsn string
	switch db {
	case "postgres":
		dsn = c.Databases.Postgres
	case "mysql":
		dsn = c.Databases.MySQL
	case "sqlite":
		dsn = c.Databases.SQLite
	case "mongo":
		dsn = c.Databases.Mongo
	default:
		return "", fmt.Errorf("unsupported database type: %s", db)
	}
	if dsn == "" {
		return "", fmt.Errorf("no DSN configured for %s (set databases.%s or %s%s_DSN)", db, db, EnvPrefix, strings.ToUpper(db))
	}
	return dsn, nil
}

func (c *Config) Duration() (time.Duration, error) {
	d, err := time.ParseDuration(c.BenchmarkSettings.DefaultDuration)
	if err != nil {
		return 0, fmt.Errorf("benchmark_settings.default_duration: %w", err)
	}
	return d, nil
}

/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

package config

import (
	"bytes"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/suparena/repository/errors"
)

// Supported backends
const (
	BackendMemory   = "memory"
	BackendDynamoDB = "dynamodb"
	BackendPostgres = "postgres"
	BackendMongo    = "mongo"
)

var backends = []string{BackendMemory, BackendDynamoDB, BackendPostgres, BackendMongo}

// DynamoDBConfig holds the settings of the DynamoDB backend.
type DynamoDBConfig struct {
	Region    string `yaml:"region"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	Table     string `yaml:"table"`
	Endpoint  string `yaml:"endpoint"`
}

// PostgresConfig holds the settings of the PostgreSQL backend.
type PostgresConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
}

// MongoConfig holds the settings of the MongoDB backend.
type MongoConfig struct {
	URI        string        `yaml:"uri"`
	Database   string        `yaml:"database"`
	Collection string        `yaml:"collection"`
	Timeout    time.Duration `yaml:"timeout"`
}

// Config selects and configures a storage backend.
type Config struct {
	Backend  string         `yaml:"backend"`
	LogLevel string         `yaml:"logLevel"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb"`
	Postgres PostgresConfig `yaml:"postgres"`
	Mongo    MongoConfig    `yaml:"mongo"`
}

// Default returns the configuration used when nothing else is set.
func Default() *Config {
	return &Config{
		Backend:  BackendMemory,
		LogLevel: "info",
		Postgres: PostgresConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    5,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Mongo: MongoConfig{
			Timeout: 10 * time.Second,
		},
	}
}

// Load builds a configuration from, in increasing precedence: defaults, the
// YAML file at path (skipped when empty), the given .env files and the
// process environment. Missing .env files are ignored.
func Load(path string, envFiles ...string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := cfg.decode(bytes.NewReader(data)); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	dotenv := make(map[string]string)
	for _, file := range envFiles {
		values, err := godotenv.Read(file)
		if err != nil {
			if stderrors.Is(err, os.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("failed to read env file %s: %w", file, err)
		}
		for k, v := range values {
			if _, set := dotenv[k]; !set {
				dotenv[k] = v
			}
		}
	}

	lookup := func(key string) (string, bool) {
		if v, ok := os.LookupEnv(key); ok {
			return v, true
		}
		v, ok := dotenv[key]
		return v, ok
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a YAML document over the defaults. Unknown keys are rejected.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	if err := cfg.decode(r); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) decode(r io.Reader) error {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && !stderrors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return errors.NewValidationError(key, fmt.Sprintf("%q is not an integer", v))
		}
		*dst = n
		return nil
	}
	dur := func(key string, dst *time.Duration) error {
		v, ok := lookup(key)
		if !ok || v == "" {
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return errors.NewValidationError(key, fmt.Sprintf("%q is not a duration", v))
		}
		*dst = d
		return nil
	}

	str("REPOSITORY_BACKEND", &c.Backend)
	str("REPOSITORY_LOG_LEVEL", &c.LogLevel)

	str("AWS_REGION", &c.DynamoDB.Region)
	str("AWS_ACCESS_KEY_ID", &c.DynamoDB.AccessKey)
	str("AWS_SECRET_ACCESS_KEY", &c.DynamoDB.SecretKey)
	str("DDB_TABLE_NAME", &c.DynamoDB.Table)
	str("DDB_ENDPOINT", &c.DynamoDB.Endpoint)

	str("DATABASE_URL", &c.Postgres.DSN)
	str("MONGO_URI", &c.Mongo.URI)
	str("MONGO_DATABASE", &c.Mongo.Database)
	str("MONGO_COLLECTION", &c.Mongo.Collection)

	return stderrors.Join(
		num("DB_MAX_OPEN_CONNS", &c.Postgres.MaxOpenConns),
		num("DB_MAX_IDLE_CONNS", &c.Postgres.MaxIdleConns),
		dur("DB_CONN_MAX_LIFETIME", &c.Postgres.ConnMaxLifetime),
		dur("MONGO_TIMEOUT", &c.Mongo.Timeout),
	)
}

// Level returns the configured log level.
func (c *Config) Level() (logrus.Level, error) {
	level, err := logrus.ParseLevel(c.LogLevel)
	if err != nil {
		return logrus.InfoLevel, errors.NewValidationError("logLevel", err.Error())
	}
	return level, nil
}

// Validate checks that the selected backend has everything it needs.
func (c *Config) Validate() error {
	if !slices.Contains(backends, c.Backend) {
		return errors.NewValidationError("backend", fmt.Sprintf("unknown backend %q, expected one of %v", c.Backend, backends))
	}
	if _, err := c.Level(); err != nil {
		return err
	}

	switch c.Backend {
	case BackendDynamoDB:
		if c.DynamoDB.Region == "" {
			return errors.NewValidationError("dynamodb.region", "is required")
		}
		if c.DynamoDB.Table == "" {
			return errors.NewValidationError("dynamodb.table", "is required")
		}
	case BackendPostgres:
		if c.Postgres.DSN == "" {
			return errors.NewValidationError("postgres.dsn", "is required")
		}
		if c.Postgres.MaxOpenConns < 0 || c.Postgres.MaxIdleConns < 0 {
			return errors.NewValidationError("postgres", "connection limits must not be negative")
		}
	case BackendMongo:
		if c.Mongo.URI == "" {
			return errors.NewValidationError("mongo.uri", "is required")
		}
		if c.Mongo.Database == "" {
			return errors.NewValidationError("mongo.database", "is required")
		}
		if c.Mongo.Timeout <= 0 {
			return errors.NewValidationError("mongo.timeout", "must be positive")
		}
	}
	return nil
}

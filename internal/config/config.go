// Package config loads the unidb YAML configuration.
//
// A file holds up to five sections; anything left out keeps its default:
//
//	sql:
//	  driver: postgres
//	  host: db.internal
//	  user: app
//	  schema: shop
//	  table: users
//	  query_timeout: 15s
//	kv:
//	  host: cache.internal
//	  db: 2
//	object:
//	  endpoint: minio.internal:9000
//	  bucket: blobs
//	log:
//	  level: debug
//	  format: console
//	http:
//	  addr: ":8080"
//
// Secrets may come from the environment instead: UNIDB_SQL_PASSWORD,
// UNIDB_KV_PASSWORD and UNIDB_OBJECT_SECRET_KEY override the file.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/koustreak/unidb/internal/database"
	"github.com/koustreak/unidb/internal/errs"
	"github.com/koustreak/unidb/internal/filestore"
	"github.com/koustreak/unidb/internal/kv"
	"github.com/koustreak/unidb/internal/logger"
	"go.yaml.in/yaml/v3"
)

// Environment variables read by Parse.
const (
	EnvSQLPassword     = "UNIDB_SQL_PASSWORD"
	EnvKVPassword      = "UNIDB_KV_PASSWORD"
	EnvObjectSecretKey = "UNIDB_OBJECT_SECRET_KEY"
)

// Config is the whole process configuration.
type Config struct {
	SQL    database.Config  `yaml:"sql"`
	KV     kv.Config        `yaml:"kv"`
	Object filestore.Config `yaml:"object"`
	Log    logger.Config    `yaml:"log"`
	HTTP   HTTPConfig       `yaml:"http"`
}

// HTTPConfig configures the gateway listener.
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		SQL:    *database.DefaultConfig(),
		KV:     *kv.DefaultConfig(),
		Object: *filestore.DefaultConfig(),
		Log:    *logger.DefaultConfig(),
		HTTP: HTTPConfig{
			Addr:            ":8080",
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
	}
}

// Load reads and parses the file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, errs.Wrap(errs.ErrKindNotFound, "config file not found: "+path, err)
		}
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "read config "+path, err)
	}
	return Parse(data)
}

// Parse decodes data over the defaults, applies environment overrides and
// validates the result. Unknown keys are rejected.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	// Port 0 after decoding means "the driver's default".
	cfg.SQL.Port = 0

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, errs.Wrap(errs.ErrKindInvalidInput, "parse config", err)
	}

	if cfg.SQL.Port == 0 {
		cfg.SQL.Port = defaultSQLPort(cfg.SQL.Driver)
	}
	applyEnv(cfg, os.LookupEnv)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultSQLPort(d database.Driver) int {
	if d == database.DriverPostgres {
		return 5432
	}
	return 3306
}

func applyEnv(cfg *Config, lookup func(string) (string, bool)) {
	if v, ok := lookup(EnvSQLPassword); ok {
		cfg.SQL.Password = v
	}
	if v, ok := lookup(EnvKVPassword); ok {
		cfg.KV.Password = v
	}
	if v, ok := lookup(EnvObjectSecretKey); ok {
		cfg.Object.SecretKey = v
	}
}

// Validate reports the first invalid setting as an errs.ErrKindInvalidInput
// error.
func (c *Config) Validate() error {
	switch c.SQL.Driver {
	case database.DriverMySQL, database.DriverPostgres:
	default:
		return invalid("sql.driver must be mysql or postgres, got %q", c.SQL.Driver)
	}
	if err := checkPort("sql.port", c.SQL.Port); err != nil {
		return err
	}
	if err := checkPort("kv.port", c.KV.Port); err != nil {
		return err
	}
	if c.KV.DB < 0 {
		return invalid("kv.db must not be negative, got %d", c.KV.DB)
	}

	durations := map[string]time.Duration{
		"sql.connect_timeout":   c.SQL.ConnectTimeout,
		"sql.query_timeout":     c.SQL.QueryTimeout,
		"kv.connect_timeout":    c.KV.ConnectTimeout,
		"kv.read_timeout":       c.KV.ReadTimeout,
		"kv.write_timeout":      c.KV.WriteTimeout,
		"http.read_timeout":     c.HTTP.ReadTimeout,
		"http.write_timeout":    c.HTTP.WriteTimeout,
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
	}
	for name, d := range durations {
		if d < 0 {
			return invalid("%s must not be negative, got %s", name, d)
		}
	}

	if c.Object.Provider != filestore.ProviderMinIO {
		return invalid("object.provider must be minio, got %q", c.Object.Provider)
	}

	switch c.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return invalid("log.level must be debug, info, warn or error, got %q", c.Log.Level)
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return invalid("log.format must be json or console, got %q", c.Log.Format)
	}

	if c.HTTP.Addr == "" {
		return invalid("http.addr is required")
	}
	return nil
}

func checkPort(name string, port int) error {
	if port < 1 || port > 65535 {
		return invalid("%s must be between 1 and 65535, got %d", name, port)
	}
	return nil
}

func invalid(format string, args ...any) error {
	return errs.New(errs.ErrKindInvalidInput, fmt.Sprintf(format, args...))
}

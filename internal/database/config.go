package database

import "time"

// Driver identifies the SQL engine behind a Client.
type Driver string

const (
	DriverMySQL    Driver = "mysql"
	DriverPostgres Driver = "postgres"
)

// Config holds all settings needed to open the single connection a Client owns.
type Config struct {
	// Driver is the database engine (e.g. DriverMySQL).
	Driver Driver `yaml:"driver"`

	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`

	// Schema is the default schema (database name) selected on connect.
	Schema string `yaml:"schema"`

	// Table is the optional default table the builder operations target.
	// It can be changed at runtime with Client.SetTable.
	Table string `yaml:"table"`

	// Timeouts
	ConnectTimeout time.Duration `yaml:"connect_timeout"` // time limit for establishing the connection
	QueryTimeout   time.Duration `yaml:"query_timeout"`   // applied when the caller's context has no deadline
}

// DefaultConfig returns settings for a local MySQL server.
func DefaultConfig() *Config {
	return &Config{
		Driver:         DriverMySQL,
		Host:           "localhost",
		Port:           3306,
		ConnectTimeout: 10 * time.Second,
		QueryTimeout:   30 * time.Second,
	}
}

package sqlstore

import "fmt"

// Config selects the relational backend.
type Config struct {
	// Driver is "sqlite" or "postgres".
	Driver string `json:"driver"`
	// DSN is a file path or URI for sqlite, a connection string for postgres.
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
	// Migrate creates missing tables on startup.
	Migrate bool `json:"migrate"`
}

// SetDefaults applies sane defaults.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "sqlite"
	}
	if c.DSN == "" && c.Driver == "sqlite" {
		c.DSN = "rounds.db"
	}
	if c.MaxOpenConns <= 0 {
		c.MaxOpenConns = 10
	}
}

// Validate checks mandatory fields.
func (c Config) Validate() error {
	if c.Driver != "sqlite" && c.Driver != "postgres" {
		return fmt.Errorf("unknown store driver %s", c.Driver)
	}
	if c.DSN == "" {
		return fmt.Errorf("store dsn is required")
	}
	return nil
}

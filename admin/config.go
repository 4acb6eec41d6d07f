// Package admin manages the knowledge-base MySQL database the server uses:
// schema migrations, first-run seed data, user accounts and the LLM model
// table. It backs the askforge-admin command.
package admin

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"regexp"
	"strconv"

	"github.com/caarlos0/env/v11"
	"github.com/go-sql-driver/mysql"
	"github.com/joho/godotenv"
)

// Config is the database connection read from the environment, with the
// defaults the server's own scripts use.
type Config struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"3306"`
	User     string `env:"DB_USER" envDefault:"acore"`
	Password string `env:"DB_PASSWORD" envDefault:"acore"`
	Name     string `env:"DB_NAME" envDefault:"knowledge_base"`
}

var dbNamePattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// LoadConfig reads envFile (if it exists) into the process environment and
// parses the DB_* variables. Variables already set take precedence.
func LoadConfig(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that end up in SQL text.
func (c *Config) Validate() error {
	if !dbNamePattern.MatchString(c.Name) {
		return fmt.Errorf("invalid DB_NAME %q: only letters, digits and _ are allowed", c.Name)
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid DB_PORT %d", c.Port)
	}
	return nil
}

// Addr returns host:port.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// DSN returns a go-sql-driver/mysql data source name. withDB selects the
// configured database; without it the connection can create the database.
func (c *Config) DSN(withDB bool) string {
	m := mysql.NewConfig()
	m.User = c.User
	m.Passwd = c.Password
	m.Net = "tcp"
	m.Addr = c.Addr()
	m.ParseTime = true
	m.MultiStatements = true
	m.Params = map[string]string{"charset": "utf8mb4"}
	if withDB {
		m.DBName = c.Name
	}
	return m.FormatDSN()
}

// String describes the target without the password.
func (c *Config) String() string {
	return fmt.Sprintf("%s@%s/%s", c.User, c.Addr(), c.Name)
}

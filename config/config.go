// Package config loads the reservation service's connection and
// bind-address settings from a YAML file via viper, with defaults set
// before the file overlay and a layered search path for locating it.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

// Config holds every setting the reservation service's bootstrap
// needs before it can open a connection pool and bind a listener.
type Config struct {
	DB     DBConfig
	Server ServerConfig
	Cache  CacheConfig
}

// DBConfig holds PostgreSQL connection settings.
type DBConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	DBName         string `mapstructure:"dbname"`
	MaxConnections int32  `mapstructure:"max_connections"`
}

// ServerConfig holds the RPC adapter's bind address.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// CacheConfig holds the Redis cache-aside layer's connection settings.
// It defaults to a local Redis instance so a reservation.yml written
// before the cache existed keeps working unmodified.
type CacheConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	TTL  int    `mapstructure:"ttl_seconds"`
}

// Addr returns the Redis address in host:port form.
func (c CacheConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// DefaultMaxConnections is applied when max_connections is absent or
// zero in the loaded file.
const DefaultMaxConnections = 5

// DSN builds a postgres:// connection string. The password segment is
// omitted entirely when Password is empty, rather than emitted as an
// empty credential (":@") — some client libraries treat the latter as
// "authenticate with an empty password" instead of "no password
// supplied", which breaks peer/trust auth setups.
func (d DBConfig) DSN() string {
	userinfo := d.User
	if d.Password != "" {
		userinfo = fmt.Sprintf("%s:%s", d.User, d.Password)
	}
	return fmt.Sprintf("postgres://%s@%s:%d/%s", userinfo, d.Host, d.Port, d.DBName)
}

// PoolSize returns MaxConnections, or DefaultMaxConnections when unset.
func (d DBConfig) PoolSize() int32 {
	if d.MaxConnections <= 0 {
		return DefaultMaxConnections
	}
	return d.MaxConnections
}

// Addr returns the server's bind address in host:port form.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// searchPaths returns the configuration file locations to try, in
// priority order: an explicit $RESERVATION_CONFIG override, then the
// working directory, the user's config directory, and finally
// /etc — mirroring the layered lookup a systemd-managed service and a
// developer's checkout both need to satisfy.
func searchPaths() []string {
	var paths []string
	if p := os.Getenv("RESERVATION_CONFIG"); p != "" {
		paths = append(paths, p)
	}
	paths = append(paths, "./reservation.yml")
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "reservation.yml"))
	}
	paths = append(paths, "/etc/reservation.yml")
	return paths
}

// Load reads the first existing file from searchPaths and decodes it
// into a Config. A missing file at every candidate path is reported
// as an error rather than silently falling back to defaults — config
// load failure is meant to be fatal at startup (see cmd/server).
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	v.SetDefault("db.max_connections", DefaultMaxConnections)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("cache.host", "localhost")
	v.SetDefault("cache.port", 6379)
	v.SetDefault("cache.ttl_seconds", 30)

	var configPath string
	for _, p := range searchPaths() {
		if _, err := os.Stat(p); err == nil {
			configPath = p
			break
		}
	}
	if configPath == "" {
		return nil, fmt.Errorf("config: no reservation.yml found in %v", searchPaths())
	}

	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("config: read %s: %w", configPath, err)
	}

	cfg := &Config{}
	if err := v.UnmarshalKey("db", &cfg.DB); err != nil {
		return nil, fmt.Errorf("config: parse db section: %w", err)
	}
	if err := v.UnmarshalKey("server", &cfg.Server); err != nil {
		return nil, fmt.Errorf("config: parse server section: %w", err)
	}
	if err := v.UnmarshalKey("cache", &cfg.Cache); err != nil {
		return nil, fmt.Errorf("config: parse cache section: %w", err)
	}

	return cfg, nil
}

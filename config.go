package sqlmux

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// FileConfig is the parsed form of a .sqlmux.yaml environments file:
//
//	development:
//	  backend: sqlite
//	  path: dev.db
//	  pool_size: 4
//	production:
//	  backend: postgres
//	  host: db.internal
//	  port: 5432
//	  user: app
//	  database: app
//	  pool_size: 16
//	  translate_placeholders: true
type FileConfig struct {
	Environments map[string]*Environment `yaml:",inline"`
}

// Environment is one named entry in a FileConfig. Which fields matter depends
// on the backend; the driver package's Config documents its own requirements.
type Environment struct {
	Backend string `yaml:"backend"`

	// Embedded engines: filesystem path, ":memory:", or a shared-cache URI.
	Path string `yaml:"path"`

	// Remote libsql/Turso: database URL and auth token.
	URL       string `yaml:"url"`
	AuthToken string `yaml:"auth_token"`

	// Client-server engines.
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`

	PoolSize              int      `yaml:"pool_size"`
	ConnectTimeout        Duration `yaml:"connect_timeout"`
	TranslatePlaceholders bool     `yaml:"translate_placeholders"`
}

// Duration is a time.Duration that unmarshals from yaml strings like "5s" as
// well as integer nanoseconds.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			return err
		}
		*d = Duration(parsed)
		return nil
	}
	var ns int64
	if err := node.Decode(&ns); err != nil {
		return err
	}
	*d = Duration(ns)
	return nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DatabaseType resolves the environment's backend tag.
func (e *Environment) DatabaseType() (DatabaseType, error) {
	return ParseDatabaseType(e.Backend)
}

// LoadFile reads and parses an environments file.
func LoadFile(path string) (*FileConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ConfigError("cannot read config file %s: %v", path, err)
	}
	var fc FileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, ConfigError("cannot parse config file %s: %v", path, err)
	}
	return &fc, nil
}

// Env returns the named environment.
func (fc *FileConfig) Env(name string) (*Environment, error) {
	env, ok := fc.Environments[name]
	if !ok {
		return nil, ConfigError("environment %q not found in config file", name)
	}
	if env.Backend == "" {
		return nil, ConfigError("environment %q has no backend", name)
	}
	return env, nil
}

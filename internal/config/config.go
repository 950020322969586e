package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config represents runtime configuration for the server.
type Config struct {
	BasicConfig BasicConfig               `json:"basic_config"`
	Session     SessionConfig             `json:"session"`
	Redis       RedisConfig               `json:"redis"`
	Databases   map[string]DatabaseConfig `json:"databases"`
}

type BasicConfig struct {
	ServerAddress           string `json:"server_address"`
	Environment             string `json:"environment"`
	StaticDir               string `json:"static_dir"`
	BootswatchDir           string `json:"bootswatch_dir"`
	UploadStagingDir        string `json:"upload_staging_dir"`
	ImageDir                string `json:"image_dir"`
	StagingTTLMinutes       int    `json:"staging_ttl_minutes"`
	StagingCleanIntervalMin int    `json:"staging_clean_interval_minutes"`
	FileWorkers             int    `json:"file_workers"`
	SSL                     bool   `json:"ssl"`
}

// SessionConfig selects and tunes the session store.
type SessionConfig struct {
	Store              string `json:"store"`
	CookieName         string `json:"cookie_name"`
	CookiePath         string `json:"cookie_path"`
	IdleTimeoutMinutes int    `json:"idle_timeout_minutes"`
}

type RedisConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	Params   string `json:"params"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// IsDevelopment reports whether error details may be shown to clients.
func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.BasicConfig.Environment, EnvDevelopment)
}

// Load reads configuration from the provided path (defaults to config.json).
// When required is false a missing file yields the defaults.
func Load(path string, required bool) (*Config, error) {
	if path == "" {
		path = "config.json"
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	file, err := os.Open(absPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			cfg := Default()
			cfg.resolvePaths(filepath.Dir(absPath))
			return cfg, nil
		}
		return nil, fmt.Errorf("open config %s: %w", absPath, err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	cfg.resolvePaths(filepath.Dir(absPath))
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	b := &c.BasicConfig
	if b.ServerAddress == "" {
		b.ServerAddress = ":3000"
	}
	if b.Environment == "" {
		b.Environment = EnvDevelopment
	}
	if b.StaticDir == "" {
		b.StaticDir = "public"
	}
	if b.UploadStagingDir == "" {
		b.UploadStagingDir = filepath.Join("public", "uploads")
	}
	if b.ImageDir == "" {
		b.ImageDir = filepath.Join("public", "images")
	}
	if b.StagingTTLMinutes <= 0 {
		b.StagingTTLMinutes = 60
	}
	if b.StagingCleanIntervalMin <= 0 {
		b.StagingCleanIntervalMin = 15
	}
	if b.FileWorkers <= 0 {
		b.FileWorkers = 4
	}

	s := &c.Session
	s.Store = strings.ToLower(s.Store)
	switch s.Store {
	case "":
		s.Store = "memory"
	case "sqlite":
		s.Store = "sqlite3"
	}
	if s.CookieName == "" {
		s.CookieName = "lo1.sid"
	}
	if s.CookiePath == "" {
		s.CookiePath = "/"
	}
	if s.IdleTimeoutMinutes <= 0 {
		s.IdleTimeoutMinutes = 30
	}
}

func (c *Config) validate() error {
	switch strings.ToLower(c.BasicConfig.Environment) {
	case EnvDevelopment, EnvProduction:
	default:
		return fmt.Errorf("environment must be %q or %q", EnvDevelopment, EnvProduction)
	}
	switch c.Session.Store {
	case "memory", "redis":
	case "sqlite3", "mysql", "postgres":
		if _, ok := c.Databases[c.Session.Store]; !ok {
			return fmt.Errorf("session store %s needs a databases.%s entry", c.Session.Store, c.Session.Store)
		}
	default:
		return fmt.Errorf("unsupported session store: %s", c.Session.Store)
	}
	return nil
}

func (c *Config) resolvePaths(base string) {
	for _, p := range []*string{
		&c.BasicConfig.StaticDir,
		&c.BasicConfig.BootswatchDir,
		&c.BasicConfig.UploadStagingDir,
		&c.BasicConfig.ImageDir,
	} {
		if *p != "" && !filepath.IsAbs(*p) {
			*p = filepath.Join(base, *p)
		}
	}
	if db, ok := c.Databases["sqlite3"]; ok && db.DSN != "" && db.DSN != ":memory:" && !strings.HasPrefix(db.DSN, "file:") && !filepath.IsAbs(db.DSN) {
		db.DSN = filepath.Join(base, db.DSN)
		c.Databases["sqlite3"] = db
	}
}

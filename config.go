package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

const (
	appName               = "magiceye"
	configFileName        = "config.toml"
	defaultMaxConnections = 5
	defaultConnectTimeout = 10 * time.Second
	defaultQueryTimeout   = 30 * time.Second

	envBaseURL   = "MAGICEYE_BASE_URL"
	envTargetURL = "MAGICEYE_TARGET_URL"
)

// Config is the persisted tool configuration.
type Config struct {
	CurrentLanguage string         `toml:"current_language"`
	DefaultPair     string         `toml:"default_pair,omitempty"`
	IgnoreList      []string       `toml:"ignore_list"`
	QueryTimeout    time.Duration  `toml:"query_timeout"`
	ConnectTimeout  time.Duration  `toml:"connect_timeout"`
	MaxConnections  int            `toml:"max_connections"`
	OutputDir       string         `toml:"output_dir"`
	DatabasePairs   []DatabasePair `toml:"database_pairs"`
}

// DatabasePair names two databases of the same engine to compare.
type DatabasePair struct {
	Name             string `toml:"name"`
	DatabaseType     string `toml:"database_type"` // postgres, mysql or sqlite
	BaseConnection   string `toml:"base_connection"`
	TargetConnection string `toml:"target_connection"`
	Schema           string `toml:"schema,omitempty"` // postgres only
}

func defaultConfig() Config {
	return Config{
		CurrentLanguage: string(LanguageEnglish),
		IgnoreList:      []string{},
		QueryTimeout:    defaultQueryTimeout,
		ConnectTimeout:  defaultConnectTimeout,
		MaxConnections:  defaultMaxConnections,
		OutputDir:       ".",
	}
}

// appDir returns the per-user data directory for the tool.
func appDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	switch runtime.GOOS {
	case "windows":
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		return filepath.Join(home, "AppData", "Local", appName), nil
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", appName), nil
	default:
		if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		return filepath.Join(home, ".local", "share", appName), nil
	}
}

func defaultConfigPath() (string, error) {
	dir, err := appDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFileName), nil
}

// loadConfig reads a TOML config file and returns a Config with defaults applied.
func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := defaultConfig()
	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if unknown := md.Undecoded(); len(unknown) > 0 {
		keys := make([]string, len(unknown))
		for i, k := range unknown {
			keys[i] = k.String()
		}
		return nil, fmt.Errorf("unknown config keys: %s", strings.Join(keys, ", "))
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.CurrentLanguage == "" {
		c.CurrentLanguage = string(LanguageEnglish)
	}
	lang, err := parseLanguage(c.CurrentLanguage)
	if err != nil {
		return fmt.Errorf("current_language: %w", err)
	}
	c.CurrentLanguage = string(lang)

	if _, err := c.IgnoredKinds(); err != nil {
		return err
	}

	if c.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive")
	}
	if c.QueryTimeout <= 0 {
		return fmt.Errorf("query_timeout must be positive")
	}
	if c.ConnectTimeout <= 0 {
		return fmt.Errorf("connect_timeout must be positive")
	}
	if c.OutputDir == "" {
		c.OutputDir = "."
	}

	seen := make(map[string]bool, len(c.DatabasePairs))
	for i := range c.DatabasePairs {
		p := &c.DatabasePairs[i]
		p.Name = strings.TrimSpace(p.Name)
		if p.Name == "" {
			return fmt.Errorf("database_pairs[%d].name is required", i)
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate database pair %q", p.Name)
		}
		seen[p.Name] = true
		if err := p.validate(); err != nil {
			return fmt.Errorf("database pair %q: %w", p.Name, err)
		}
	}
	if c.DefaultPair != "" && !seen[c.DefaultPair] {
		return fmt.Errorf("default_pair %q is not a configured database pair", c.DefaultPair)
	}
	return nil
}

func (p *DatabasePair) validate() error {
	dbType, err := parseDatabaseType(p.DatabaseType)
	if err != nil {
		return err
	}
	p.DatabaseType = string(dbType)
	if dbType != DatabasePostgres && p.Schema != "" {
		return fmt.Errorf("schema is a PostgreSQL-only option")
	}
	if p.BaseConnection == "" {
		return fmt.Errorf("base_connection is required")
	}
	if p.TargetConnection == "" {
		return fmt.Errorf("target_connection is required")
	}
	return nil
}

// Language returns the validated message language.
func (c *Config) Language() Language {
	lang, err := parseLanguage(c.CurrentLanguage)
	if err != nil {
		return LanguageEnglish
	}
	return lang
}

// IgnoredKinds parses ignore_list into difference kinds.
func (c *Config) IgnoredKinds() ([]DiffKind, error) {
	kinds := make([]DiffKind, 0, len(c.IgnoreList))
	for _, s := range c.IgnoreList {
		k, err := parseDiffKind(s)
		if err != nil {
			return nil, fmt.Errorf("ignore_list: %w", err)
		}
		kinds = append(kinds, k)
	}
	return kinds, nil
}

// SelectPair resolves the pair to run: the named one, else default_pair,
// else the only configured pair.
func (c *Config) SelectPair(name string) (DatabasePair, error) {
	if name == "" {
		name = c.DefaultPair
	}
	if name == "" {
		switch len(c.DatabasePairs) {
		case 0:
			return DatabasePair{}, fmt.Errorf("no database pairs configured (run %s init)", appName)
		case 1:
			return c.DatabasePairs[0], nil
		default:
			return DatabasePair{}, fmt.Errorf("%d database pairs configured; choose one with --pair", len(c.DatabasePairs))
		}
	}
	for _, p := range c.DatabasePairs {
		if p.Name == name {
			return p, nil
		}
	}
	return DatabasePair{}, fmt.Errorf("database pair %q not found", name)
}

// UpsertPair adds p or replaces the pair with the same name.
func (c *Config) UpsertPair(p DatabasePair, makeDefault bool) error {
	if err := p.validate(); err != nil {
		return err
	}
	replaced := false
	for i := range c.DatabasePairs {
		if c.DatabasePairs[i].Name == p.Name {
			c.DatabasePairs[i] = p
			replaced = true
			break
		}
	}
	if !replaced {
		c.DatabasePairs = append(c.DatabasePairs, p)
	}
	if makeDefault {
		c.DefaultPair = p.Name
	}
	return nil
}

// saveConfig writes cfg as TOML, replacing path atomically. The file holds
// connection URLs and is only readable by the owner.
func saveConfig(path string, cfg *Config) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(cfg); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := writeFileAtomic(path, buf.Bytes(), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// loadEnvFile loads KEY=VALUE pairs into the process environment without
// overriding variables that are already set. A missing file is only an
// error when the path was given explicitly.
func loadEnvFile(path string, explicit bool, logger logrus.FieldLogger) error {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if explicit {
			return fmt.Errorf("env file %s does not exist", path)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	logger.WithField("path", path).Debug("loaded env file")
	return nil
}

// applyEnvOverrides replaces the pair's URLs with MAGICEYE_BASE_URL and
// MAGICEYE_TARGET_URL when those are set.
func applyEnvOverrides(p DatabasePair, lookup func(string) (string, bool)) DatabasePair {
	if v, ok := lookup(envBaseURL); ok && v != "" {
		p.BaseConnection = v
	}
	if v, ok := lookup(envTargetURL); ok && v != "" {
		p.TargetConnection = v
	}
	return p
}

// Package config loads daemon settings from the environment and an optional
// YAML or TOML file layered on top.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/joeshaw/envdecode"
	"gopkg.in/yaml.v3"
)

// Transports.
const (
	TransportStdio = "stdio"
	TransportHTTP  = "http"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds daemon settings. Defaults are provided via struct tags.
type Config struct {
	// Listen is the HTTP listen address. ENV: RPCPARAM_LISTEN
	Listen string `env:"RPCPARAM_LISTEN,default=127.0.0.1:9835"`
	// Transport is "stdio" or "http". ENV: RPCPARAM_TRANSPORT
	Transport string `env:"RPCPARAM_TRANSPORT,default=stdio"`
	// Developer enables declaration checks on every call. ENV: RPCPARAM_DEVELOPER
	Developer bool `env:"RPCPARAM_DEVELOPER,default=false"`
	// LogLevel is one of debug, info, warn, error. ENV: RPCPARAM_LOG_LEVEL
	LogLevel string `env:"RPCPARAM_LOG_LEVEL,default=info"`
	// Store is "memory" or "redis". ENV: RPCPARAM_STORE
	Store string `env:"RPCPARAM_STORE,default=memory"`
	// MemoryMaxItems bounds the memory store. ENV: RPCPARAM_MEMORY_MAX_ITEMS
	MemoryMaxItems int `env:"RPCPARAM_MEMORY_MAX_ITEMS,default=10000"`
	// RedisAddr like "localhost:6379". ENV: RPCPARAM_REDIS_ADDR
	RedisAddr string `env:"RPCPARAM_REDIS_ADDR,default=localhost:6379"`
	// MaxBodyBytes bounds one HTTP request or stdio line. ENV: RPCPARAM_MAX_BODY_BYTES
	MaxBodyBytes int64 `env:"RPCPARAM_MAX_BODY_BYTES,default=4194304"`
	// File is an optional YAML or TOML file overlaid on the environment. ENV: RPCPARAM_CONFIG
	File string `env:"RPCPARAM_CONFIG"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Listen:         "127.0.0.1:9835",
		Transport:      TransportStdio,
		LogLevel:       "info",
		Store:          StoreMemory,
		RedisAddr:      "localhost:6379",
		MemoryMaxItems: 10000,
		MaxBodyBytes:   4 << 20,
	}
}

// FromEnv decodes the environment over Default.
func FromEnv() (Config, error) {
	cfg := Default()
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode environment: %w", err)
	}
	return cfg, nil
}

// Load reads the environment, then the file it names, and validates the
// result.
func Load() (Config, error) {
	cfg, err := FromEnv()
	if err != nil {
		return Config{}, err
	}
	if cfg.File != "" {
		cfg, err = LoadFile(cfg.File, cfg)
		if err != nil {
			return Config{}, err
		}
	}
	return cfg, cfg.Validate()
}

// fileConfig is the file schema. Only keys present in the file override the
// base settings.
type fileConfig struct {
	Listen         *string `yaml:"listen" toml:"listen"`
	Transport      *string `yaml:"transport" toml:"transport"`
	Developer      *bool   `yaml:"developer" toml:"developer"`
	LogLevel       *string `yaml:"log_level" toml:"log_level"`
	Store          *string `yaml:"store" toml:"store"`
	RedisAddr      *string `yaml:"redis_addr" toml:"redis_addr"`
	MemoryMaxItems *int    `yaml:"memory_max_items" toml:"memory_max_items"`
	MaxBodyBytes   *int64  `yaml:"max_body_bytes" toml:"max_body_bytes"`
}

// LoadFile overlays the file at path onto base. The format follows the
// extension: .yaml/.yml or .toml. Unknown keys are rejected.
func LoadFile(path string, base Config) (Config, error) {
	var raw fileConfig
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		f, err := os.Open(path)
		if err != nil {
			return Config{}, fmt.Errorf("load config: %w", err)
		}
		defer f.Close()
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&raw); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
	case ".toml":
		meta, err := toml.DecodeFile(path, &raw)
		if err != nil {
			return Config{}, fmt.Errorf("load config %s: %w", path, err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return Config{}, fmt.Errorf("load config %s: unknown key %q", path, undecoded[0].String())
		}
	default:
		return Config{}, fmt.Errorf("load config %s: unsupported extension %q", path, ext)
	}

	cfg := base
	cfg.File = path
	overlay(&cfg.Listen, raw.Listen)
	overlay(&cfg.Transport, raw.Transport)
	overlay(&cfg.Developer, raw.Developer)
	overlay(&cfg.LogLevel, raw.LogLevel)
	overlay(&cfg.Store, raw.Store)
	overlay(&cfg.RedisAddr, raw.RedisAddr)
	overlay(&cfg.MemoryMaxItems, raw.MemoryMaxItems)
	overlay(&cfg.MaxBodyBytes, raw.MaxBodyBytes)
	return cfg, nil
}

func overlay[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch c.Transport {
	case TransportStdio, TransportHTTP:
	default:
		return fmt.Errorf("config: transport must be %q or %q, not %q", TransportStdio, TransportHTTP, c.Transport)
	}
	switch c.Store {
	case StoreMemory, StoreRedis:
	default:
		return fmt.Errorf("config: store must be %q or %q, not %q", StoreMemory, StoreRedis, c.Store)
	}
	if _, err := c.Level(); err != nil {
		return err
	}
	if c.MemoryMaxItems <= 0 {
		return fmt.Errorf("config: memory_max_items must be positive")
	}
	if c.MaxBodyBytes <= 0 {
		return fmt.Errorf("config: max_body_bytes must be positive")
	}
	return nil
}

// Level parses LogLevel.
func (c Config) Level() (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return 0, fmt.Errorf("config: log_level: %w", err)
	}
	return l, nil
}

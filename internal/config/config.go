// Package config loads the daemon configuration from defaults, an optional
// YAML file, an optional .env file and RESSCENE_* environment variables, in
// that order of precedence (later wins).
package config

import (
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/aretw0/resscene/pkg/domain"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendSQLite = "sqlite"
)

// Config is the full daemon configuration.
type Config struct {
	Store         StoreConfig         `yaml:"store" envPrefix:"STORE_"`
	Redis         RedisConfig         `yaml:"redis" envPrefix:"REDIS_"`
	Encryption    EncryptionConfig    `yaml:"encryption" envPrefix:"ENCRYPTION_"`
	Redact        []string            `yaml:"redact" env:"REDACT" envSeparator:","`
	HomeAssistant HomeAssistantConfig `yaml:"home_assistant" envPrefix:"HA_"`
	Scenes        SceneDefaults       `yaml:"scenes" envPrefix:"SCENE_"`
	Log           LogConfig           `yaml:"log" envPrefix:"LOG_"`
	HTTP          HTTPConfig          `yaml:"http" envPrefix:"HTTP_"`
}

type StoreConfig struct {
	Backend string `yaml:"backend" env:"BACKEND"`
	// Path is the directory of the file backend or the database file of the sqlite backend.
	Path string `yaml:"path" env:"PATH"`
}

type RedisConfig struct {
	Address  string `yaml:"address" env:"ADDRESS"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
	Prefix   string `yaml:"prefix" env:"PREFIX"`
	// Locking enables the distributed lock so several daemons can share one Redis.
	Locking bool `yaml:"locking" env:"LOCKING"`
}

type EncryptionConfig struct {
	// Key is base64 of 32 bytes. Empty disables encryption at rest.
	Key          string   `yaml:"key" env:"KEY"`
	FallbackKeys []string `yaml:"fallback_keys" env:"FALLBACK_KEYS" envSeparator:","`
}

type HomeAssistantConfig struct {
	URL   string `yaml:"url" env:"URL"`
	Token string `yaml:"token" env:"TOKEN"`
}

type SceneDefaults struct {
	RestoreLightAttributes bool          `yaml:"restore_light_attributes" env:"RESTORE_LIGHT_ATTRIBUTES"`
	ActionTimeout          time.Duration `yaml:"action_timeout" env:"ACTION_TIMEOUT"`
	CallDelay              time.Duration `yaml:"call_delay" env:"CALL_DELAY"`
}

type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"`
}

type HTTPConfig struct {
	Address string `yaml:"address" env:"ADDRESS"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Store: StoreConfig{Backend: BackendFile, Path: ".resscene/scenes"},
		Redis: RedisConfig{Address: "localhost:6379", Prefix: "resscene:scene:"},
		Scenes: SceneDefaults{
			ActionTimeout: domain.DefaultActionTimeout,
			CallDelay:     time.Second,
		},
		Log:  LogConfig{Level: "info", Format: "text"},
		HTTP: HTTPConfig{Address: ":8080"},
	}
}

// Load builds the configuration. path and dotenv are optional; a missing
// dotenv file is ignored, a missing config file named explicitly is not.
func Load(path, dotenv string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dotenv != "" {
		// godotenv.Load never overrides variables already set.
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("load %s: %w", dotenv, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: "RESSCENE_"}); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that cannot be caught by parsing.
func (c Config) Validate() error {
	switch c.Store.Backend {
	case BackendMemory, BackendRedis:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Store.Path) == "" {
			return fmt.Errorf("store.path is required for the %s backend", c.Store.Backend)
		}
	default:
		return fmt.Errorf("unknown store backend %q", c.Store.Backend)
	}
	if c.Redis.Locking && c.Store.Backend != BackendRedis {
		return errors.New("redis.locking requires the redis backend")
	}
	if c.Encryption.Key != "" {
		if _, _, err := c.EncryptionKeys(); err != nil {
			return err
		}
	}
	if c.Scenes.ActionTimeout <= 0 {
		return errors.New("scenes.action_timeout must be positive")
	}
	if c.Scenes.CallDelay < 0 {
		return errors.New("scenes.call_delay must not be negative")
	}
	return nil
}

// EncryptionKeys decodes the active key and the fallback keys.
func (c Config) EncryptionKeys() (active []byte, fallbacks [][]byte, err error) {
	active, err = decodeKey("encryption.key", c.Encryption.Key)
	if err != nil {
		return nil, nil, err
	}
	for i, k := range c.Encryption.FallbackKeys {
		fb, err := decodeKey(fmt.Sprintf("encryption.fallback_keys[%d]", i), k)
		if err != nil {
			return nil, nil, err
		}
		fallbacks = append(fallbacks, fb)
	}
	return active, fallbacks, nil
}

func decodeKey(field, s string) ([]byte, error) {
	key, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", field, err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("%s: must decode to 32 bytes, got %d", field, len(key))
	}
	return key, nil
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override, e.g. QUIZ_POSTGRES_URL.
const EnvPrefix = "QUIZ_"

type Config struct {
	Server   ServerConfig   `yaml:"server" envPrefix:"SERVER_"`
	Redis    RedisConfig    `yaml:"redis" envPrefix:"REDIS_"`
	Postgres PostgresConfig `yaml:"postgres" envPrefix:"POSTGRES_"`
	Quiz     QuizConfig     `yaml:"quiz" envPrefix:"CATALOG_"`
	Session  SessionConfig  `yaml:"session" envPrefix:"SESSION_"`
	Log      LogConfig      `yaml:"log" envPrefix:"LOG_"`
	Client   ClientConfig   `yaml:"client" envPrefix:"CLIENT_"`
}

type ServerConfig struct {
	Port string `yaml:"port" env:"PORT"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr" env:"ADDR"`
	Password string `yaml:"password" env:"PASSWORD"`
	DB       int    `yaml:"db" env:"DB"`
}

type PostgresConfig struct {
	URL string `yaml:"url" env:"URL"`
}

// QuizConfig controls the question catalog cache.
type QuizConfig struct {
	TTL string `yaml:"ttl" env:"TTL"`
}

type SessionConfig struct {
	VotingWindow string `yaml:"voting_window" env:"VOTING_WINDOW"`
	RankingLimit int    `yaml:"ranking_limit" env:"RANKING_LIMIT"`
	AutoAdvance  bool   `yaml:"auto_advance" env:"AUTO_ADVANCE"`
	// Scoring is "client" (trust client points) or "server" (recompute on the host).
	Scoring string `yaml:"scoring" env:"SCORING"`
}

type LogConfig struct {
	Level string `yaml:"level" env:"LEVEL"`
	// File enables a rotating JSON log file next to console output.
	File string `yaml:"file" env:"FILE"`
}

// ClientConfig is used by the host and play commands.
type ClientConfig struct {
	ServerURL    string `yaml:"server_url" env:"SERVER_URL"`
	IdentityFile string `yaml:"identity_file" env:"IDENTITY_FILE"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		Server:  ServerConfig{Port: "8080"},
		Quiz:    QuizConfig{TTL: "10m"},
		Session: SessionConfig{VotingWindow: "10s", RankingLimit: 10, Scoring: "client"},
		Log:     LogConfig{Level: "info"},
		Client:  ClientConfig{ServerURL: "http://localhost:8080", IdentityFile: ".quiz-identity.json"},
	}
}

// Load reads YAML config from path on top of Default and then applies QUIZ_*
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parsing environment: %w", err)
	}
	return cfg, nil
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

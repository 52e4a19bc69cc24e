// Package config loads the relay configuration from the environment.
package config

import (
	"fmt"
	"log/slog"
	"strings"

	env "github.com/Netflix/go-env"
	"github.com/joho/godotenv"
)

type Config struct {
	Addr           string `env:"ADDR,required=true"`
	JWTSecret      string `env:"JWT_SECRET,required=true"`
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
	HistoryLimit   int    `env:"HISTORY_LIMIT,default=50"`
	LogLevel       string `env:"LOG_LEVEL,default=info"`

	// Empty RabbitURL disables the backend action bridge.
	RabbitURL string `env:"RABBITMQ_URL"`

	// Empty CensoredWords disables the content filter.
	CensoredWords   string `env:"CENSORED_WORDS"`
	CharReplacement string `env:"CHARACTER_REPLACEMENT,default=*"`
}

// Load reads an optional .env file and unmarshals the environment.
func Load() (Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	return cfg, nil
}

// Words splits the comma-separated censored words list, dropping blanks.
func (c Config) Words() []string {
	if strings.TrimSpace(c.CensoredWords) == "" {
		return nil
	}

	var words []string
	for _, w := range strings.Split(c.CensoredWords, ",") {
		if w = strings.TrimSpace(w); w != "" {
			words = append(words, w)
		}
	}
	return words
}

// ReplacementRune validates that CHARACTER_REPLACEMENT is a single character.
func (c Config) ReplacementRune() (rune, error) {
	r := []rune(c.CharReplacement)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			c.CharReplacement,
		)
	}
	return r[0], nil
}

// Level maps LOG_LEVEL onto a slog level, defaulting to info.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

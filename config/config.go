// Package config loads runtime settings from the environment and builds
// the process logger.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config holds settings read from FABLECORE_* variables.
type Config struct {
	SaveDir  string     `env:"FABLECORE_SAVE_DIR" envDefault:"~/.fablecore/saves"`
	LogLevel slog.Level `env:"FABLECORE_LOG_LEVEL" envDefault:"WARN"`
	LogJSON  bool       `env:"FABLECORE_LOG_JSON" envDefault:"false"`
	Metrics  bool       `env:"FABLECORE_METRICS" envDefault:"false"`
}

// ParseEnv loads configuration from environment variables.
func ParseEnv(target any) error {
	if err := env.Parse(target); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// Load parses Config and expands a leading ~ in SaveDir.
func Load() (Config, error) {
	var cfg Config
	if err := ParseEnv(&cfg); err != nil {
		return Config{}, err
	}
	dir, err := expandHome(cfg.SaveDir)
	if err != nil {
		return Config{}, err
	}
	cfg.SaveDir = dir
	return cfg, nil
}

func expandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("expand %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// LoggerOptions configures NewLogger.
type LoggerOptions struct {
	Subsystem string
	JSON      bool
	MinLevel  slog.Level
	Output    io.Writer
}

// LoggerOptions returns the logger settings carried by cfg.
func (c Config) LoggerOptions(subsystem string) LoggerOptions {
	return LoggerOptions{Subsystem: subsystem, JSON: c.LogJSON, MinLevel: c.LogLevel}
}

// NewLogger builds a text or JSON logger. Output defaults to stderr so log
// lines never interleave with game text on stdout.
func NewLogger(opts LoggerOptions) *slog.Logger {
	if opts.Output == nil {
		opts.Output = os.Stderr
	}
	ho := &slog.HandlerOptions{Level: opts.MinLevel}

	var h slog.Handler
	if opts.JSON {
		h = slog.NewJSONHandler(opts.Output, ho)
	} else {
		h = slog.NewTextHandler(opts.Output, ho)
	}

	l := slog.New(h)
	if opts.Subsystem != "" {
		l = l.With("subsystem", opts.Subsystem)
	}
	return l
}

// Exitf writes a formatted error message to stderr and exits with code 1.
func Exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

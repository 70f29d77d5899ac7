// Package logging builds zap loggers from configuration.
package logging

import (
	"fmt"
	"strings"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Output formats.
const (
	FormatJSON    = "json"
	FormatConsole = "console"
)

// Config controls the logger.
type Config struct {
	Level  string `json:"level" yaml:"level" mapstructure:"level"`
	Format string `json:"format" yaml:"format" mapstructure:"format"`
}

// DefaultConfig returns info level json logging.
func DefaultConfig() Config {
	return Config{Level: "info", Format: FormatJSON}
}

// Validate checks level and format.
func (c Config) Validate() error {
	if _, err := zapcore.ParseLevel(c.level()); err != nil {
		return fmt.Errorf("invalid log level %q: %w", c.Level, err)
	}
	switch c.format() {
	case FormatJSON, FormatConsole:
	default:
		return fmt.Errorf("invalid log format %q", c.Format)
	}
	return nil
}

// New builds a logger: json uses the production preset, console the
// development one.
func New(c Config, fields ...zap.Field) (*zap.Logger, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	level, _ := zapcore.ParseLevel(c.level())
	var zapConfig zap.Config
	if c.format() == FormatConsole {
		zapConfig = zap.NewDevelopmentConfig()
	} else {
		zapConfig = zap.NewProductionConfig()
	}
	zapConfig.Level.SetLevel(level)
	logger, err := zapConfig.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return logger.With(fields...), nil
}

func (c Config) level() string {
	if c.Level == "" {
		return "info"
	}
	return strings.ToLower(c.Level)
}

func (c Config) format() string {
	if c.Format == "" {
		return FormatJSON
	}
	return strings.ToLower(c.Format)
}

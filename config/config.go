// Package config loads the tool configuration used by the memcheck CLI.
// Every field has a sensible zero-value default, so an empty file (or no
// file at all) yields a working configuration.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

type Config struct {
	// Entries overrides the entry functions named by the program model.
	Entries []string `yaml:"entries,omitempty"`

	// ContextDepth is the call-string length k (0 selects the engine
	// default).
	ContextDepth int `yaml:"context-depth,omitempty"`
	// MaxContextsPerFunc bounds distinct contexts per function before
	// widening.
	MaxContextsPerFunc int `yaml:"max-contexts-per-func,omitempty"`
	// MaxProjectionDepth truncates projection paths in the flow graph.
	MaxProjectionDepth int `yaml:"max-projection-depth,omitempty"`

	// LogLevel is a logrus level name ("debug", "info", "warn", ...).
	LogLevel string `yaml:"log-level,omitempty"`
	// NoColor disables ANSI colors in diagnostics.
	NoColor bool `yaml:"no-color,omitempty"`
}

func Default() *Config {
	return &Config{LogLevel: "warn"}
}

// Load reads a YAML configuration file. Unknown keys are errors.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	c := Default()
	if err := unmarshalStrict(data, c); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	if err := c.validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return c, nil
}

func unmarshalStrict(data []byte, c *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return err
	}
	return nil
}

func (c *Config) validate() error {
	if c.ContextDepth < 0 {
		return fmt.Errorf("context-depth must not be negative (got %d)", c.ContextDepth)
	}
	if c.MaxContextsPerFunc < 0 {
		return fmt.Errorf("max-contexts-per-func must not be negative (got %d)", c.MaxContextsPerFunc)
	}
	if c.MaxProjectionDepth < 0 {
		return fmt.Errorf("max-projection-depth must not be negative (got %d)", c.MaxProjectionDepth)
	}
	if c.LogLevel != "" {
		if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
			return err
		}
	}
	return nil
}

// Logger builds the logger described by the configuration.
func (c *Config) Logger() *logrus.Logger {
	l := logrus.New()
	level := logrus.WarnLevel
	if c.LogLevel != "" {
		if parsed, err := logrus.ParseLevel(c.LogLevel); err == nil {
			level = parsed
		}
	}
	l.SetLevel(level)
	return l
}

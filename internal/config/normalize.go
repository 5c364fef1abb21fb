package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if value, ok := os.LookupEnv("MUSICALITY_RUNS_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.RunsDir = strings.TrimSpace(value)
	}
	if value, ok := os.LookupEnv("MUSICALITY_ROUNDS_DIR"); ok && strings.TrimSpace(value) != "" {
		c.Paths.RoundsDir = strings.TrimSpace(value)
	}
	if strings.TrimSpace(c.Paths.RunsDir) == "" {
		c.Paths.RunsDir = defaultRunsDir
	}
	if strings.TrimSpace(c.Paths.RoundsDir) == "" {
		c.Paths.RoundsDir = defaultRoundsDir
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.RunsDir, err = expandPath(c.Paths.RunsDir); err != nil {
		return fmt.Errorf("paths.runs_dir: %w", err)
	}
	if c.Paths.RoundsDir, err = expandPath(c.Paths.RoundsDir); err != nil {
		return fmt.Errorf("paths.rounds_dir: %w", err)
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

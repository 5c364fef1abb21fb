package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"musicality/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique, existing temp directories
// per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.RunsDir = filepath.Join(base, "runs")
	cfgVal.Paths.RoundsDir = filepath.Join(base, "rounds")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Scoring.Workers = 2

	for _, dir := range []string{cfgVal.Paths.RunsDir, cfgVal.Paths.RoundsDir, cfgVal.Paths.StateDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithTopN overrides the promoted candidate count.
func WithTopN(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.TopN = n
	}
}

// WithWorkers overrides the evaluation worker count.
func WithWorkers(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scoring.Workers = n
	}
}

// WithHistory toggles the round history store.
func WithHistory(enabled bool) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.History.Enabled = enabled
	}
}

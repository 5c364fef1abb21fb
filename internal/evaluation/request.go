package evaluation

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"musicality/internal/config"
	"musicality/internal/rounds"
)

var (
	// ErrInvalidRequest is returned before any work when a request cannot run.
	ErrInvalidRequest = errors.New("invalid evaluation request")
	// ErrRunMissing marks a requested run whose manifest could not be loaded.
	ErrRunMissing = errors.New("run missing")
	// ErrNoCandidates is returned when no requested run produced a candidate.
	ErrNoCandidates = errors.New("no candidates loaded")
)

// Request describes one batch evaluation.
type Request struct {
	RunIDs    []string
	RunsDir   string
	RoundsDir string
	// RoundID defaults to a timestamped id.
	RoundID string
	TopN    int
	Workers int
	// Timeout bounds the scoring phase; zero means none.
	Timeout time.Duration
}

// NewRequest seeds a request with the configured paths and scoring settings.
func NewRequest(cfg *config.Config, runIDs []string) Request {
	return Request{
		RunIDs:    append([]string(nil), runIDs...),
		RunsDir:   cfg.Paths.RunsDir,
		RoundsDir: cfg.Paths.RoundsDir,
		TopN:      cfg.Scoring.TopN,
		Workers:   cfg.Scoring.Workers,
		Timeout:   cfg.Timeout(),
	}
}

// Validate rejects requests that would produce an unusable round.
func (r Request) Validate() error {
	if len(r.RunIDs) == 0 {
		return fmt.Errorf("%w: no run ids", ErrInvalidRequest)
	}
	seen := make(map[string]struct{}, len(r.RunIDs))
	for _, id := range r.RunIDs {
		trimmed := strings.TrimSpace(id)
		if trimmed == "" {
			return fmt.Errorf("%w: blank run id", ErrInvalidRequest)
		}
		if strings.ContainsAny(trimmed, `/\`) || trimmed == "." || trimmed == ".." {
			return fmt.Errorf("%w: run id %q is not a directory name", ErrInvalidRequest, id)
		}
		if _, dup := seen[trimmed]; dup {
			return fmt.Errorf("%w: duplicate run id %q", ErrInvalidRequest, trimmed)
		}
		seen[trimmed] = struct{}{}
	}
	if r.TopN < 1 {
		return fmt.Errorf("%w: top_n must be at least 1, got %d", ErrInvalidRequest, r.TopN)
	}
	if r.Workers < 1 {
		return fmt.Errorf("%w: workers must be at least 1, got %d", ErrInvalidRequest, r.Workers)
	}
	if r.Timeout < 0 {
		return fmt.Errorf("%w: negative timeout %s", ErrInvalidRequest, r.Timeout)
	}
	if strings.TrimSpace(r.RunsDir) == "" {
		return fmt.Errorf("%w: runs directory not set", ErrInvalidRequest)
	}
	if strings.TrimSpace(r.RoundsDir) == "" {
		return fmt.Errorf("%w: rounds directory not set", ErrInvalidRequest)
	}
	if r.RoundID != "" {
		if err := rounds.ValidateID(r.RoundID); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
	}
	return nil
}

func (r Request) runIDs() []string {
	ids := make([]string, len(r.RunIDs))
	for i, id := range r.RunIDs {
		ids[i] = strings.TrimSpace(id)
	}
	return ids
}

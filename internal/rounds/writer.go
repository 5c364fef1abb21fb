package rounds

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"musicality/internal/fileutil"
	"musicality/internal/logging"
	"musicality/internal/votes"
)

const publishLockFile = ".rounds.lock"

// Writer publishes rounds under a root directory.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter returns a Writer rooted at dir.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	return &Writer{root: dir, logger: logging.NewComponentLogger(logger, "rounds")}
}

// Dir returns the directory a round id is published to.
func (w *Writer) Dir(roundID string) string {
	return filepath.Join(w.root, roundID)
}

// Write stages every artifact and renames the staging directory to
// <root>/<round id>. It fails with ErrRoundExists when that directory is
// already present and leaves nothing behind on any failure.
func (w *Writer) Write(ctx context.Context, r *Round) (string, error) {
	if err := ValidateID(r.ID); err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.root, 0o755); err != nil {
		return "", fmt.Errorf("ensure rounds dir: %w", err)
	}
	target := w.Dir(r.ID)
	if exists(target) {
		return "", fmt.Errorf("%w: %s", ErrRoundExists, target)
	}

	staging := filepath.Join(w.root, ".staging-"+uuid.NewString())
	if err := os.Mkdir(staging, 0o755); err != nil {
		return "", fmt.Errorf("create staging dir: %w", err)
	}
	published := false
	defer func() {
		if !published {
			_ = os.RemoveAll(staging)
		}
	}()

	artifacts := []struct {
		name  string
		value any
	}{
		{ManifestFile, r.Manifest},
		{ScoresFile, r.Scores},
		{SummaryFile, r.Summary},
	}
	for _, a := range artifacts {
		if err := fileutil.WriteJSON(filepath.Join(staging, a.name), a.value); err != nil {
			return "", fmt.Errorf("write %s: %w", a.name, err)
		}
	}
	if err := votes.InitLedger(filepath.Join(staging, votes.FileName)); err != nil {
		return "", err
	}

	lock := flock.New(filepath.Join(w.root, publishLockFile))
	locked, err := lock.TryLockContext(ctx, 25*time.Millisecond)
	if err != nil {
		return "", fmt.Errorf("lock rounds dir: %w", err)
	}
	if !locked {
		return "", errors.New("lock rounds dir: not acquired")
	}
	defer func() {
		_ = lock.Unlock()
	}()

	if exists(target) {
		return "", fmt.Errorf("%w: %s", ErrRoundExists, target)
	}
	if err := os.Rename(staging, target); err != nil {
		return "", fmt.Errorf("publish round: %w", err)
	}
	published = true

	w.logger.Info("round written",
		logging.String(logging.FieldRoundID, r.ID),
		logging.String("dir", target),
		logging.Int("candidates", r.Manifest.CandidateCount),
		logging.Int("missing", len(r.Manifest.RunsMissing)),
	)
	return target, nil
}

func exists(path string) bool {
	_, err := os.Lstat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"musicality/internal/config"
)

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Store manages the round index backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Entry is one ranked candidate of a recorded round.
type Entry struct {
	RoundID        string
	Rank           int
	RunID          string
	VariantID      string
	Profile        string
	HardGatePass   bool
	AggregateScore float64
	Promoted       bool
	Reason         string
}

// Round is the indexed summary of one published round.
type Round struct {
	ID                string
	CreatedAt         string
	RecordedAt        time.Time
	InvocationID      string
	Dir               string
	PolicyVersion     string
	CandidateCount    int
	HardGatePassCount int
	RunsMissing       int
	WinnerRunID       string
	Entries           []Entry
}

// Open initializes or connects to the history database under the state
// directory.
func Open(cfg *config.Config) (*Store, error) {
	if err := os.MkdirAll(cfg.Paths.StateDir, 0o755); err != nil {
		return nil, fmt.Errorf("ensure state dir: %w", err)
	}
	return OpenPath(context.Background(), cfg.HistoryPath())
}

// OpenPath opens the database at dbPath.
func OpenPath(ctx context.Context, dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// RecordRound stores a round and its ranked candidates in one transaction.
// Recording the same round id twice replaces the earlier entry.
func (s *Store) RecordRound(ctx context.Context, r Round) error {
	ctx = ensureContext(ctx)
	return retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin record tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		if _, err := tx.ExecContext(ctx, `DELETE FROM rounds WHERE round_id = ?`, r.ID); err != nil {
			return fmt.Errorf("replace round: %w", err)
		}
		recordedAt := r.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now()
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO rounds (
                round_id, created_at, recorded_at, invocation_id, round_dir, policy_version,
                candidate_count, hard_gate_pass_count, runs_missing, winner_run_id
            ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			r.ID,
			r.CreatedAt,
			recordedAt.UTC().Format(time.RFC3339Nano),
			r.InvocationID,
			r.Dir,
			r.PolicyVersion,
			r.CandidateCount,
			r.HardGatePassCount,
			r.RunsMissing,
			nullableString(r.WinnerRunID),
		); err != nil {
			return fmt.Errorf("insert round: %w", err)
		}

		for _, e := range r.Entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO round_candidates (
                    round_id, rank, run_id, variant_id, profile,
                    hard_gate_pass, aggregate_score, promoted, reason
                ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				r.ID,
				e.Rank,
				e.RunID,
				e.VariantID,
				e.Profile,
				boolToInt(e.HardGatePass),
				e.AggregateScore,
				boolToInt(e.Promoted),
				nullableString(e.Reason),
			); err != nil {
				return fmt.Errorf("insert candidate %s: %w", e.RunID, err)
			}
		}
		return tx.Commit()
	})
}

const roundColumns = "round_id, created_at, recorded_at, invocation_id, round_dir, policy_version, candidate_count, hard_gate_pass_count, runs_missing, winner_run_id"

// ListRounds returns recorded rounds, newest first. limit <= 0 returns all.
func (s *Store) ListRounds(ctx context.Context, limit int) ([]Round, error) {
	query := `SELECT ` + roundColumns + ` FROM rounds ORDER BY created_at DESC, round_id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list rounds: %w", err)
	}
	defer rows.Close()

	var out []Round
	for rows.Next() {
		r, err := scanRound(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// GetRound returns a recorded round with its candidates, or nil when absent.
func (s *Store) GetRound(ctx context.Context, id string) (*Round, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+roundColumns+` FROM rounds WHERE round_id = ?`, id)
	r, err := scanRound(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entries, err := s.queryEntries(ctx, `WHERE round_id = ? ORDER BY rank`, id)
	if err != nil {
		return nil, err
	}
	r.Entries = entries
	return &r, nil
}

// RunHistory returns every recorded placement of a run variant, newest round
// first.
func (s *Store) RunHistory(ctx context.Context, runID string) ([]Entry, error) {
	return s.queryEntries(ensureContext(ctx),
		`JOIN rounds r USING (round_id) WHERE c.run_id = ? ORDER BY r.created_at DESC, c.round_id DESC`, runID)
}

func (s *Store) queryEntries(ctx context.Context, clause string, args ...any) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT c.round_id, c.rank, c.run_id, c.variant_id, c.profile, c.hard_gate_pass,
                c.aggregate_score, c.promoted, c.reason
         FROM round_candidates c `+clause, args...)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e        Entry
			pass     int64
			promoted int64
			reason   sql.NullString
		)
		if err := rows.Scan(&e.RoundID, &e.Rank, &e.RunID, &e.VariantID, &e.Profile, &pass, &e.AggregateScore, &promoted, &reason); err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		e.HardGatePass = pass != 0
		e.Promoted = promoted != 0
		e.Reason = reason.String
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanRound(scanner interface{ Scan(dest ...any) error }) (Round, error) {
	var (
		r           Round
		recordedRaw string
		winner      sql.NullString
	)
	if err := scanner.Scan(
		&r.ID,
		&r.CreatedAt,
		&recordedRaw,
		&r.InvocationID,
		&r.Dir,
		&r.PolicyVersion,
		&r.CandidateCount,
		&r.HardGatePassCount,
		&r.RunsMissing,
		&winner,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Round{}, err
		}
		return Round{}, fmt.Errorf("scan round: %w", err)
	}
	r.WinnerRunID = winner.String
	if ts, err := time.Parse(time.RFC3339Nano, recordedRaw); err == nil {
		r.RecordedAt = ts
	}
	return r, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func nullableString(value string) any {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	return value
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}

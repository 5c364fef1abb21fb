package evaluation_test

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"musicality/internal/config"
	"musicality/internal/evaluation"
	"musicality/internal/logging"
	"musicality/internal/rounds"
	"musicality/internal/scoring"
	"musicality/internal/testsupport"
	"musicality/internal/votes"
)

var fixedNow = time.Date(2026, 1, 2, 3, 4, 5, 0, time.Local)

func scale(offset int) []testsupport.MIDINote {
	keys := []int{60, 62, 64, 65}
	notes := make([]testsupport.MIDINote, len(keys))
	for i, k := range keys {
		notes[i] = testsupport.MIDINote{Onset: float64(i), Duration: 1, Key: uint8(k + offset)}
	}
	return notes
}

func scaleBar(offset, count int) []testsupport.Note {
	pitches := []int{60, 62, 64, 65}
	bar := make([]testsupport.Note, 0, count)
	for _, p := range pitches[:count] {
		bar = append(bar, testsupport.N(p+offset, 1))
	}
	return bar
}

func melodyRun(id, candidate string) testsupport.RunFixture {
	return testsupport.RunFixture{
		ID:      id,
		Profile: "default",
		Parts: []testsupport.RunPart{{
			Name:      "Alto Sax 1 (Alto Sax)",
			Stem:      "sax",
			Candidate: candidate,
			Reference: scale(0),
		}},
	}
}

func newEvaluator(t *testing.T, cfg *config.Config, opts ...evaluation.Option) *evaluation.Evaluator {
	t.Helper()
	opts = append([]evaluation.Option{evaluation.WithClock(func() time.Time { return fixedNow })}, opts...)
	return evaluation.New(cfg, logging.NewNop(), opts...)
}

func TestRequestValidate(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	valid := evaluation.NewRequest(cfg, []string{"run_a", "run_b"})
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid request, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*evaluation.Request)
	}{
		{"no runs", func(r *evaluation.Request) { r.RunIDs = nil }},
		{"blank run", func(r *evaluation.Request) { r.RunIDs = []string{"run_a", "  "} }},
		{"duplicate run", func(r *evaluation.Request) { r.RunIDs = []string{"run_a", " run_a"} }},
		{"path run", func(r *evaluation.Request) { r.RunIDs = []string{"../run_a"} }},
		{"zero top n", func(r *evaluation.Request) { r.TopN = 0 }},
		{"zero workers", func(r *evaluation.Request) { r.Workers = 0 }},
		{"negative timeout", func(r *evaluation.Request) { r.Timeout = -time.Second }},
		{"bad round id", func(r *evaluation.Request) { r.RoundID = ".hidden" }},
		{"no runs dir", func(r *evaluation.Request) { r.RunsDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := evaluation.NewRequest(cfg, []string{"run_a", "run_b"})
			tt.mutate(&req)
			if err := req.Validate(); !errors.Is(err, evaluation.ErrInvalidRequest) {
				t.Fatalf("expected ErrInvalidRequest, got %v", err)
			}
		})
	}
}

func TestEvaluateRejectsInvalidRequestBeforeWork(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req := evaluation.NewRequest(cfg, []string{"run_a"})
	req.TopN = 0

	_, err := newEvaluator(t, cfg).Evaluate(context.Background(), req)
	if !errors.Is(err, evaluation.ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	entries, err := os.ReadDir(cfg.Paths.RoundsDir)
	if err != nil {
		t.Fatalf("read rounds dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, got %d entries", len(entries))
	}
}

func TestEvaluatePublishesRankedRound(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithTopN(2))
	store := testsupport.MustOpenHistory(t, cfg)

	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_short", testsupport.MusicXML(4, 4, scaleBar(0, 3))))
	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_octave", testsupport.MusicXML(4, 4, scaleBar(12, 4))))
	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_exact", testsupport.MusicXML(4, 4, scaleBar(0, 4))))

	req := evaluation.NewRequest(cfg, []string{"run_short", "run_ghost", "run_octave", "run_exact"})
	res, err := newEvaluator(t, cfg, evaluation.WithHistory(store)).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if res.Round.ID != "musicality_20260102_030405" {
		t.Fatalf("unexpected round id %q", res.Round.ID)
	}
	if res.Dir != filepath.Join(cfg.Paths.RoundsDir, res.Round.ID) {
		t.Fatalf("unexpected round dir %q", res.Dir)
	}

	ranked := res.Round.Scores.Candidates
	gotOrder := []string{}
	for _, c := range ranked {
		gotOrder = append(gotOrder, c.RunID)
	}
	wantOrder := []string{"run_exact", "run_octave", "run_short"}
	if strings.Join(gotOrder, ",") != strings.Join(wantOrder, ",") {
		t.Fatalf("rank order = %v, want %v", gotOrder, wantOrder)
	}

	exact := ranked[0]
	if exact.Rank != 1 || !exact.HardGatePass || exact.AggregateScore != 0.9 {
		t.Fatalf("unexpected exact candidate %+v", exact)
	}
	if len(exact.PartScores) != 1 || exact.PartScores[0].StemName != "sax" {
		t.Fatalf("unexpected part scores %+v", exact.PartScores)
	}
	octave := ranked[1]
	if !octave.HardGatePass || math.Abs(octave.AggregateScore-0.75) > 1e-9 {
		t.Fatalf("unexpected octave candidate %+v", octave)
	}
	short := ranked[2]
	if short.HardGatePass {
		t.Fatal("incomplete bar should fail the gate")
	}
	if short.AggregateScore <= octave.AggregateScore {
		t.Fatalf("expected gate-failing candidate to outscore %v, got %v", octave.AggregateScore, short.AggregateScore)
	}

	manifest := res.Round.Manifest
	if len(manifest.RunsMissing) != 1 || manifest.RunsMissing[0] != "run_ghost" {
		t.Fatalf("unexpected runs_missing %v", manifest.RunsMissing)
	}
	if manifest.MissingDetails[0].Reason != evaluation.MissingManifestNotFound {
		t.Fatalf("unexpected missing reason %q", manifest.MissingDetails[0].Reason)
	}
	if len(manifest.RunsRequested) != 4 || manifest.CandidateCount != 3 {
		t.Fatalf("unexpected manifest %+v", manifest)
	}
	if manifest.PolicyVersion != scoring.PolicyV1().Version || manifest.ScoreFormula != scoring.PolicyV1().Formula() {
		t.Fatalf("unexpected policy fields %+v", manifest)
	}
	if manifest.InvocationID == "" {
		t.Fatal("expected invocation id")
	}

	summary := res.Round.Summary
	if summary.Winner.RunID != "run_exact" || len(summary.TopCandidates) != 2 || summary.HardGatePassCount != 2 {
		t.Fatalf("unexpected summary %+v", summary)
	}

	for _, name := range []string{rounds.ManifestFile, rounds.ScoresFile, rounds.SummaryFile, votes.FileName} {
		if _, err := os.Stat(filepath.Join(res.Dir, name)); err != nil {
			t.Fatalf("expected %s: %v", name, err)
		}
	}
	loaded, err := rounds.Load(cfg.Paths.RoundsDir, res.Round.ID)
	if err != nil {
		t.Fatalf("rounds.Load: %v", err)
	}
	if loaded.Summary.Winner.RunID != "run_exact" {
		t.Fatalf("reloaded winner %q", loaded.Summary.Winner.RunID)
	}

	indexed, err := store.GetRound(context.Background(), res.Round.ID)
	if err != nil {
		t.Fatalf("GetRound: %v", err)
	}
	if indexed == nil || indexed.WinnerRunID != "run_exact" || indexed.RunsMissing != 1 || len(indexed.Entries) != 3 {
		t.Fatalf("unexpected history entry %+v", indexed)
	}
	promoted := 0
	for _, e := range indexed.Entries {
		if e.Promoted {
			promoted++
		}
	}
	if promoted != 2 {
		t.Fatalf("expected 2 promoted entries, got %d", promoted)
	}
}

func TestEvaluateSilentCandidateHasNoScorableParts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	silent := testsupport.MusicXML(4, 4, []testsupport.Note{testsupport.N(testsupport.Rest, 4)})
	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_silent", silent))

	req := evaluation.NewRequest(cfg, []string{"run_silent"})
	res, err := newEvaluator(t, cfg).Evaluate(context.Background(), req)
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}
	c := res.Round.Scores.Candidates[0]
	if c.Reason != scoring.ReasonNoScorableParts || c.AggregateScore != 0 || c.HardGatePass {
		t.Fatalf("unexpected candidate %+v", c)
	}
	if len(c.PartScores) != 1 || c.PartScores[0].Metrics.CandidateNotes != 0 {
		t.Fatalf("expected the silent part to be listed, got %+v", c.PartScores)
	}
	if res.Round.Summary.Winner.RunID != "run_silent" {
		t.Fatal("fallback promotion should still name a winner")
	}
}

func TestEvaluateRecordsExcludedParts(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteRun(t, cfg.Paths.RunsDir, testsupport.RunFixture{
		ID: "run_mixed",
		Parts: []testsupport.RunPart{
			{Name: "Lead", Stem: "lead", Candidate: testsupport.MusicXML(4, 4, scaleBar(0, 4)), Reference: scale(0)},
			{Name: "Bass", Stem: "bass", Reference: scale(-24)},
			{Name: "Keys", Candidate: testsupport.MusicXML(4, 4, scaleBar(0, 4))},
			{Name: "Pad", Stem: "pad", Candidate: testsupport.MusicXML(4, 4, scaleBar(0, 4))},
			{Name: "Horn", Stem: "horn", Candidate: "<score-partwise><part", Reference: scale(0)},
			{Name: "Draft", Status: "pending", Stem: "draft", Candidate: testsupport.MusicXML(4, 4, scaleBar(0, 4)), Reference: scale(0)},
		},
	})

	ev := newEvaluator(t, cfg)
	c, err := ev.EvaluateRun(context.Background(), cfg.Paths.RunsDir, "run_mixed")
	if err != nil {
		t.Fatalf("EvaluateRun: %v", err)
	}
	if len(c.PartScores) != 1 || c.PartScores[0].PartName != "Lead" {
		t.Fatalf("unexpected part scores %+v", c.PartScores)
	}
	reasons := map[string]string{}
	for _, ex := range c.ExcludedParts {
		reasons[ex.PartName] = ex.Reason
	}
	want := map[string]string{
		"Bass": scoring.ExcludeMissingCandidate,
		"Keys": scoring.ExcludeNoStemAssignment,
		"Pad":  scoring.ExcludeMissingReference,
		"Horn": scoring.ExcludeParseFailure,
	}
	if len(reasons) != len(want) {
		t.Fatalf("excluded = %v, want %v", reasons, want)
	}
	for part, reason := range want {
		if reasons[part] != reason {
			t.Fatalf("part %s excluded as %q, want %q", part, reasons[part], reason)
		}
	}
	if c.AggregateScore != 0.9 || !c.HardGatePass {
		t.Fatalf("unexpected aggregate %+v", c)
	}
}

func TestEvaluateRunMissingManifest(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteFile(t, filepath.Join(cfg.Paths.RunsDir, "run_bad", "manifest.json"), []byte("{not json"))

	ev := newEvaluator(t, cfg)
	_, err := ev.EvaluateRun(context.Background(), cfg.Paths.RunsDir, "run_absent")
	var missing *evaluation.MissingError
	if !errors.As(err, &missing) || missing.Reason != evaluation.MissingManifestNotFound {
		t.Fatalf("expected manifest_not_found, got %v", err)
	}
	if !errors.Is(err, evaluation.ErrRunMissing) {
		t.Fatalf("expected ErrRunMissing, got %v", err)
	}

	_, err = ev.EvaluateRun(context.Background(), cfg.Paths.RunsDir, "run_bad")
	if !errors.As(err, &missing) || missing.Reason != evaluation.MissingInvalidManifest {
		t.Fatalf("expected invalid_manifest, got %v", err)
	}
}

func TestEvaluateAllMissingWritesNothing(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	req := evaluation.NewRequest(cfg, []string{"run_a", "run_b"})

	_, err := newEvaluator(t, cfg).Evaluate(context.Background(), req)
	if !errors.Is(err, evaluation.ErrNoCandidates) {
		t.Fatalf("expected ErrNoCandidates, got %v", err)
	}
	entries, _ := os.ReadDir(cfg.Paths.RoundsDir)
	if len(entries) != 0 {
		t.Fatalf("expected empty rounds dir, got %d entries", len(entries))
	}
}

func TestEvaluateRefusesExistingRound(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_exact", testsupport.MusicXML(4, 4, scaleBar(0, 4))))
	req := evaluation.NewRequest(cfg, []string{"run_exact"})
	req.RoundID = "round_one"

	ev := newEvaluator(t, cfg)
	if _, err := ev.Evaluate(context.Background(), req); err != nil {
		t.Fatalf("first Evaluate: %v", err)
	}
	if _, err := ev.Evaluate(context.Background(), req); !errors.Is(err, rounds.ErrRoundExists) {
		t.Fatalf("expected ErrRoundExists, got %v", err)
	}
}

func TestEvaluateHonoursCancelledContext(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun("run_exact", testsupport.MusicXML(4, 4, scaleBar(0, 4))))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := newEvaluator(t, cfg).Evaluate(ctx, evaluation.NewRequest(cfg, []string{"run_exact"}))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestEvaluateTimeoutReportsAbandonedRunsAsMissing(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithWorkers(1))
	ids := []string{"run_a", "run_b", "run_c", "run_d", "run_e", "run_f"}
	for _, id := range ids {
		testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun(id, testsupport.MusicXML(4, 4, scaleBar(0, 4))))
	}
	req := evaluation.NewRequest(cfg, ids)
	req.Timeout = time.Nanosecond

	res, err := newEvaluator(t, cfg).Evaluate(context.Background(), req)
	if errors.Is(err, evaluation.ErrNoCandidates) {
		entries, readErr := os.ReadDir(cfg.Paths.RoundsDir)
		if readErr != nil {
			t.Fatalf("read rounds dir: %v", readErr)
		}
		if len(entries) != 0 {
			t.Fatalf("expected nothing written, got %d entries", len(entries))
		}
		return
	}
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	manifest := res.Round.Manifest
	if len(manifest.MissingDetails) == 0 {
		t.Fatal("expected abandoned runs to be listed as missing")
	}
	if got := manifest.CandidateCount + len(manifest.MissingDetails); got != len(ids) {
		t.Fatalf("accounted for %d of %d runs", got, len(ids))
	}
	for _, m := range manifest.MissingDetails {
		if m.Reason != evaluation.MissingDeadlineExceeded {
			t.Fatalf("run %s missing as %q, want %q", m.RunID, m.Reason, evaluation.MissingDeadlineExceeded)
		}
	}
	if _, err := os.Stat(res.Dir); err != nil {
		t.Fatalf("round not published after deadline: %v", err)
	}
}

func TestEvaluateIsDeterministicAcrossWorkerCounts(t *testing.T) {
	var scores [][]float64
	for _, workers := range []int{1, 4} {
		cfg := testsupport.NewConfig(t, testsupport.WithWorkers(workers))
		ids := []string{}
		for i, offset := range []int{0, 1, 2, 12, 0} {
			id := "run_" + string(rune('a'+i))
			count := 4
			if i == 4 {
				count = 2
			}
			testsupport.WriteRun(t, cfg.Paths.RunsDir, melodyRun(id, testsupport.MusicXML(4, 4, scaleBar(offset, count))))
			ids = append(ids, id)
		}
		res, err := newEvaluator(t, cfg).Evaluate(context.Background(), evaluation.NewRequest(cfg, ids))
		if err != nil {
			t.Fatalf("Evaluate with %d workers: %v", workers, err)
		}
		row := []float64{}
		for _, c := range res.Round.Scores.Candidates {
			row = append(row, c.AggregateScore)
		}
		scores = append(scores, row)
	}
	if len(scores[0]) != len(scores[1]) {
		t.Fatalf("candidate counts differ: %v vs %v", scores[0], scores[1])
	}
	for i := range scores[0] {
		if scores[0][i] != scores[1][i] {
			t.Fatalf("scores differ at %d: %v vs %v", i, scores[0], scores[1])
		}
	}
}

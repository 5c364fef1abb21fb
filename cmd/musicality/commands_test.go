package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"musicality/internal/scoring"
	"musicality/internal/testsupport"
	"musicality/internal/votes"
)

func scaleReference() []testsupport.MIDINote {
	return []testsupport.MIDINote{
		{Onset: 0, Duration: 1, Key: 60},
		{Onset: 1, Duration: 1, Key: 62},
		{Onset: 2, Duration: 1, Key: 64},
		{Onset: 3, Duration: 1, Key: 65},
	}
}

func scaleMusicXML(shift int) string {
	return testsupport.MusicXML(4, 4, []testsupport.Note{
		testsupport.N(60+shift, 1),
		testsupport.N(62+shift, 1),
		testsupport.N(64+shift, 1),
		testsupport.N(65+shift, 1),
	})
}

func writeScaleRun(t *testing.T, runsDir, id string, shift int) {
	t.Helper()
	testsupport.WriteRun(t, runsDir, testsupport.RunFixture{
		ID:      id,
		Profile: "default",
		Parts: []testsupport.RunPart{{
			Name:      "Lead",
			Stem:      "lead",
			Candidate: scaleMusicXML(shift),
			Reference: scaleReference(),
		}},
	})
}

func TestConfigInitAndValidate(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"config", "validate"}, env.configPath)
	if err != nil {
		t.Fatalf("config validate: %v", err)
	}
	requireContains(t, out, "Configuration valid")
	requireContains(t, out, env.cfg.Paths.RunsDir)

	target := filepath.Join(t.TempDir(), "config.toml")
	out, _, err = runCLI(t, []string{"config", "init", "--path", target}, "")
	if err != nil {
		t.Fatalf("config init: %v", err)
	}
	requireContains(t, out, "Wrote sample configuration")
	if _, err := os.Stat(target); err != nil {
		t.Fatalf("expected config file at %s: %v", target, err)
	}

	if _, _, err := runCLI(t, []string{"config", "init", "--path", target}, ""); err == nil {
		t.Fatal("expected init to refuse an existing file")
	}
}

func TestScoreCommandJSON(t *testing.T) {
	dir := t.TempDir()
	reference := filepath.Join(dir, "reference.mid")
	candidate := filepath.Join(dir, "candidate.musicxml")
	testsupport.WriteMIDI(t, reference, scaleReference()...)
	testsupport.WriteFile(t, candidate, []byte(scaleMusicXML(0)))

	out, _, err := runCLI(t, []string{"score", "--reference", reference, "--candidate", candidate, "--json"}, "")
	if err != nil {
		t.Fatalf("score: %v", err)
	}
	var metrics scoring.PartMetrics
	if err := json.Unmarshal([]byte(out), &metrics); err != nil {
		t.Fatalf("decode metrics: %v\n%s", err, out)
	}
	if !metrics.HardGatePass || metrics.PartScore != 0.9 || metrics.OnsetScore != 1 {
		t.Fatalf("unexpected metrics %+v", metrics)
	}

	out, _, err = runCLI(t, []string{"score", "-r", reference, "-k", candidate}, "")
	if err != nil {
		t.Fatalf("score table: %v", err)
	}
	requireContains(t, out, "Part score")
	requireContains(t, out, "PASS")
	requireContains(t, out, scoring.PolicyV1().Formula())
}

func TestScoreCommandRequiresBothFiles(t *testing.T) {
	_, _, err := runCLI(t, []string{"score", "--reference", "ref.mid"}, "")
	if err == nil || !strings.Contains(err.Error(), "--candidate") {
		t.Fatalf("expected missing flag error, got %v", err)
	}
}

func TestEvalShowVoteAndList(t *testing.T) {
	env := setupCLITestEnv(t)
	writeScaleRun(t, env.cfg.Paths.RunsDir, "run_exact", 0)
	writeScaleRun(t, env.cfg.Paths.RunsDir, "run_octave", 12)

	out, _, err := runCLI(t, []string{"eval", "--run-id", "run_octave,run_exact", "run_ghost", "--round-id", "round_one", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("eval: %v", err)
	}
	var summary evalOutput
	if err := json.Unmarshal([]byte(out), &summary); err != nil {
		t.Fatalf("decode eval output: %v\n%s", err, out)
	}
	if summary.RoundID != "round_one" || summary.Winner != "run_exact" || summary.CandidateCount != 2 {
		t.Fatalf("unexpected eval output %+v", summary)
	}
	if len(summary.RunsMissing) != 1 || summary.RunsMissing[0].RunID != "run_ghost" {
		t.Fatalf("unexpected missing runs %+v", summary.RunsMissing)
	}

	out, _, err = runCLI(t, []string{"round", "show", "round_one"}, env.configPath)
	if err != nil {
		t.Fatalf("round show: %v", err)
	}
	requireContains(t, out, "run_exact")
	requireContains(t, out, "PASS")
	requireContains(t, out, "Missing runs: run_ghost (manifest_not_found)")
	requireContains(t, out, "No review votes recorded")

	out, _, err = runCLI(t, []string{
		"vote", "--round", "round_one", "--reviewer", "rev1",
		"--a", "run_exact", "--b", "run_octave", "--winner", "a", "--confidence", "high",
	}, env.configPath)
	if err != nil {
		t.Fatalf("vote: %v", err)
	}
	requireContains(t, out, "Recorded vote")

	ledger, err := votes.Read(filepath.Join(env.cfg.Paths.RoundsDir, "round_one", votes.FileName))
	if err != nil {
		t.Fatalf("read ledger: %v", err)
	}
	if len(ledger) != 1 || ledger[0].Winner != votes.WinnerA || ledger[0].Confidence != votes.ConfidenceHigh {
		t.Fatalf("unexpected ledger %+v", ledger)
	}

	out, _, err = runCLI(t, []string{"round", "show", "round_one", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("round show json: %v", err)
	}
	var shown roundShowOutput
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode round show: %v", err)
	}
	if len(shown.Votes) != 2 || shown.Votes[0].RunID != "run_exact" || shown.Votes[0].Wins != 1 {
		t.Fatalf("unexpected tally %+v", shown.Votes)
	}

	out, _, err = runCLI(t, []string{"round", "list", "--json"}, env.configPath)
	if err != nil {
		t.Fatalf("round list: %v", err)
	}
	var listed []roundListEntry
	if err := json.Unmarshal([]byte(out), &listed); err != nil {
		t.Fatalf("decode round list: %v", err)
	}
	if len(listed) != 1 || listed[0].RoundID != "round_one" || listed[0].RunsMissing != 1 {
		t.Fatalf("unexpected round list %+v", listed)
	}

	if _, _, err := runCLI(t, []string{"eval", "run_exact", "--round-id", "round_one"}, env.configPath); err == nil {
		t.Fatal("expected second eval into the same round to fail")
	}
}

func TestEvalRejectsBadRequest(t *testing.T) {
	env := setupCLITestEnv(t)
	_, _, err := runCLI(t, []string{"eval", "run_a", "--top-n", "0"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "top_n") {
		t.Fatalf("expected top_n error, got %v", err)
	}
	_, _, err = runCLI(t, []string{"eval"}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "no run ids") {
		t.Fatalf("expected no run ids error, got %v", err)
	}
}

func TestVoteRejectsUnknownCandidate(t *testing.T) {
	env := setupCLITestEnv(t)
	writeScaleRun(t, env.cfg.Paths.RunsDir, "run_exact", 0)
	if _, _, err := runCLI(t, []string{"eval", "run_exact", "--round-id", "round_two"}, env.configPath); err != nil {
		t.Fatalf("eval: %v", err)
	}
	_, _, err := runCLI(t, []string{
		"vote", "--round", "round_two", "--reviewer", "rev1",
		"--a", "run_exact", "--b", "run_other", "--winner", "B",
	}, env.configPath)
	if err == nil || !strings.Contains(err.Error(), "run_other") {
		t.Fatalf("expected unknown candidate error, got %v", err)
	}
}

func TestRoundListWithoutRounds(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"round", "list"}, env.configPath)
	if err != nil {
		t.Fatalf("round list: %v", err)
	}
	requireContains(t, out, "No rounds recorded")
}

func TestDoctor(t *testing.T) {
	env := setupCLITestEnv(t)
	out, _, err := runCLI(t, []string{"doctor"}, env.configPath)
	if err != nil {
		t.Fatalf("doctor: %v\n%s", err, out)
	}
	requireContains(t, out, "Runs directory")
	requireContains(t, out, "[OK]")
	requireContains(t, out, "History database")

	if err := os.RemoveAll(env.cfg.Paths.RunsDir); err != nil {
		t.Fatalf("remove runs dir: %v", err)
	}
	out, _, err = runCLI(t, []string{"doctor"}, env.configPath)
	if err == nil {
		t.Fatal("expected doctor to fail without a runs directory")
	}
	requireContains(t, out, "[ERROR]")
}

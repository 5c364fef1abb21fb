// Package rounds builds, writes and reads the artifacts of one scoring round.
//
// A round directory holds round_manifest.json, auto_scores.json, summary.json
// and an ab_votes.csv ledger. The Writer stages all four in a hidden
// directory beside the target and renames it into place, so a round is either
// complete or absent. Existing rounds are never overwritten.
package rounds

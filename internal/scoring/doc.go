// Package scoring composes alignment, similarity and integrity checks into
// part-level metrics and averages them into one candidate record per run
// variant.
//
// Weights and gate thresholds live on a versioned Policy. Changing any of them
// means adding a new Policy value with a new Version, so recorded rounds stay
// comparable.
package scoring

// Package history indexes published rounds in SQLite so reviewers can list
// past rounds and follow one run variant across them without scanning round
// directories.
//
// The round directories stay the source of truth; the index only summarises
// them. Schema changes bump schemaVersion in schema.go; users delete
// history.db to adopt the new schema.
package history

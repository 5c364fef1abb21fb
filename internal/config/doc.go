// Package config loads, normalizes, and validates musicality configuration.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment fallbacks such as
// MUSICALITY_RUNS_DIR. The Config type centralizes the directories the batch
// evaluator reads from and writes to, the ranking and worker settings, and
// logging options.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config

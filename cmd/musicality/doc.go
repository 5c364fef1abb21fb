// Package main hosts the musicality CLI entrypoint and command graph.
//
// The Cobra-based command tree scores single part pairs, evaluates batches
// of run variants into rounds, renders and lists rounds, appends reviewer
// votes and checks the local setup. It centralizes configuration resolution
// and structured logging setup so subcommands can focus on output.
//
// Keep this package lean: scoring, ranking and persistence live in the
// internal packages and are surfaced here through dedicated commands.
package main

// Package preflight provides readiness checks for the filesystem paths and
// local state that musicality depends on.
//
// These checks run in two contexts:
//   - The "musicality doctor" command runs RunAll and prints every result.
//   - The "musicality eval" command runs RunAll before scoring a batch and
//     refuses to start when a check fails, so a round is never half written.
//
// The history check is gated by its config toggle.
package preflight

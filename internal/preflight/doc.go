// Package preflight provides readiness checks for the directories and
// services livecap depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before starting any capture loop and refuses
//     to start when a check fails.
//   - The CLI "livecap deps" command prints the same results next to the
//     external program checks.
//
// Each check is gated by its config toggle; disabled features are skipped.
package preflight

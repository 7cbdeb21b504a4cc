// Package report holds the outcome of a probe run.
//
// A Report is an ordered, append-only list of assertion results plus run
// metadata (run id, target, timing). Writers in pkg/output/writers render
// a finalized Report; the CLI maps it to a process exit code.
package report

// Package tasks wraps the pipeline operations as schedulable tasks: run
// identifiers, the export enable gate, and the export retry policy live
// here, keeping the export and reconcile packages single-shot.
package tasks

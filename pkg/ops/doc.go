// Package ops exposes the operational HTTP surface: health and metrics
// endpoints plus on-demand triggers for the export and reconciliation tasks.
package ops

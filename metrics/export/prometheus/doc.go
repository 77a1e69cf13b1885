// Package prometheus renders goSession engine metrics in Prometheus text
// exposition format.
//
// [NewPrometheusExporter] wraps an Engine and exposes an [http.Handler].
// Counters are named gosession_*_total; the validate latency histogram is
// gosession_validate_latency_seconds and appears only when latency
// histograms are enabled. Nothing is registered in a global registry.
package prometheus

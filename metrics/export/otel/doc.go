// Package otel binds goSession engine metrics to an OpenTelemetry Meter.
//
// [NewOTelExporter] registers one Int64ObservableCounter per engine counter.
// The validate latency histogram becomes a cumulative bucket gauge keyed by
// an "le" attribute plus a count gauge, and is reported only while latency
// histograms are enabled. A single callback reads the engine snapshot on
// each collection. Callers own the MeterProvider.
package otel

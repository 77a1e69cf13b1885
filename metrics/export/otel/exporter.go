package otel

import (
	"context"
	"errors"
	"fmt"

	goSession "github.com/MrEthical07/goSession"
	"github.com/MrEthical07/goSession/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

type metricsSource interface {
	MetricsSnapshot() goSession.MetricsSnapshot
	ActivityDropped() uint64
}

// backendSource is implemented by *goSession.Engine.
type backendSource interface {
	Backend() goSession.BackendInfo
}

type observedCounter struct {
	id         goSession.MetricID
	instrument metric.Int64ObservableCounter
}

// observedHistogram reports one gauge point per bucket bound, keyed by
// the "le" attribute, plus the total sample count.
type observedHistogram struct {
	id      goSession.MetricID
	buckets metric.Int64ObservableGauge
	count   metric.Int64ObservableGauge
	bounds  [8]metric.ObserveOption
}

// OTelExporter publishes engine metrics as observable OTel instruments.
type OTelExporter struct {
	source       metricsSource
	registration metric.Registration

	counters   []observedCounter
	histograms []observedHistogram
	dropped    metric.Int64ObservableCounter
	backend    metric.Int64ObservableGauge
}

// NewOTelExporter registers instruments on meter that read from engine on
// every collection.
func NewOTelExporter(meter metric.Meter, engine *goSession.Engine) (*OTelExporter, error) {
	return NewOTelExporterFromSource(meter, engine)
}

// NewOTelExporterFromSource is NewOTelExporter for any snapshot source.
// Sources that also report backend selection get a
// gosession_backend_remote gauge.
func NewOTelExporterFromSource(meter metric.Meter, source metricsSource) (*OTelExporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &OTelExporter{
		source:     source,
		counters:   make([]observedCounter, 0, len(internaldefs.CounterDefs)),
		histograms: make([]observedHistogram, 0, len(internaldefs.HistogramDefs)),
	}
	observables := make([]metric.Observable, 0, len(internaldefs.CounterDefs)+2*len(internaldefs.HistogramDefs)+2)

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", def.Name, err)
		}
		e.counters = append(e.counters, observedCounter{id: def.ID, instrument: ins})
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		h, err := newObservedHistogram(meter, def)
		if err != nil {
			return nil, err
		}
		e.histograms = append(e.histograms, h)
		observables = append(observables, h.buckets, h.count)
	}

	dropped, err := meter.Int64ObservableCounter(
		"gosession_activity_dropped_total",
		metric.WithDescription("Activity-log entries dropped because the dispatcher buffer was full."),
	)
	if err != nil {
		return nil, fmt.Errorf("create activity dropped counter: %w", err)
	}
	e.dropped = dropped
	observables = append(observables, dropped)

	if _, ok := source.(backendSource); ok {
		backend, err := meter.Int64ObservableGauge(
			"gosession_backend_remote",
			metric.WithDescription("1 when the networked backend is in use, 0 on the in-process fallback."),
		)
		if err != nil {
			return nil, fmt.Errorf("create backend gauge: %w", err)
		}
		e.backend = backend
		observables = append(observables, backend)
	}

	registration, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = registration
	return e, nil
}

func newObservedHistogram(meter metric.Meter, def internaldefs.HistogramDef) (observedHistogram, error) {
	h := observedHistogram{id: def.ID}

	buckets, err := meter.Int64ObservableGauge(def.Name+"_bucket",
		metric.WithDescription(def.Help+" Cumulative count per upper bound."))
	if err != nil {
		return h, fmt.Errorf("create histogram buckets %s: %w", def.Name, err)
	}
	count, err := meter.Int64ObservableGauge(def.Name+"_count",
		metric.WithDescription(def.Help+" Total samples."))
	if err != nil {
		return h, fmt.Errorf("create histogram count %s: %w", def.Name, err)
	}

	h.buckets = buckets
	h.count = count
	for i, bound := range internaldefs.HistogramBounds {
		h.bounds[i] = metric.WithAttributes(attribute.String("le", bound))
	}
	return h, nil
}

func (e *OTelExporter) observe(_ context.Context, o metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for _, c := range e.counters {
		o.ObserveInt64(c.instrument, int64(snapshot.Counters[c.id]))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		for i, v := range cumulative {
			o.ObserveInt64(h.buckets, int64(v), h.bounds[i])
		}
		o.ObserveInt64(h.count, int64(cumulative[len(cumulative)-1]))
	}

	o.ObserveInt64(e.dropped, int64(e.source.ActivityDropped()))

	if bs, ok := e.source.(backendSource); ok && e.backend != nil {
		info := bs.Backend()
		var remote int64
		if info.Remote {
			remote = 1
		}
		o.ObserveInt64(e.backend, remote, metric.WithAttributes(attribute.String("backend", info.Name)))
	}
	return nil
}

// Close unregisters the collection callback.
func (e *OTelExporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

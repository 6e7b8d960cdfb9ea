package otel

import (
	"context"
	"errors"
	"fmt"

	rotauth "github.com/rotauth/rotauth"
	"github.com/rotauth/rotauth/metrics/export/internaldefs"
	"go.opentelemetry.io/otel/metric"
)

var (
	ErrNilMeter  = errors.New("nil meter")
	ErrNilSource = errors.New("nil metrics source")
)

// Source is the engine surface the exporter reads from.
type Source interface {
	MetricsSnapshot() rotauth.MetricsSnapshot
	AuditDropped() uint64
}

// bucketSet holds the observable gauges backing one exported histogram:
// one gauge per cumulative bucket plus a total sample count.
type bucketSet struct {
	gauges [8]metric.Int64ObservableGauge
	total  metric.Int64ObservableGauge
}

// Exporter bridges engine snapshots into OpenTelemetry observable
// instruments. All values are read lazily inside the meter callback, so
// registering the exporter adds no work to the engine hot path.
type Exporter struct {
	source       Source
	registration metric.Registration

	counters     map[rotauth.MetricID]metric.Int64ObservableCounter
	histograms   map[rotauth.MetricID]bucketSet
	auditDropped metric.Int64ObservableCounter
}

// New registers engine metrics on meter and returns the exporter handle.
func New(meter metric.Meter, engine *rotauth.Engine) (*Exporter, error) {
	return NewFromSource(meter, engine)
}

// NewFromSource is like [New] but reads from any [Source].
func NewFromSource(meter metric.Meter, source Source) (*Exporter, error) {
	if meter == nil {
		return nil, ErrNilMeter
	}
	if source == nil {
		return nil, ErrNilSource
	}

	e := &Exporter{
		source:     source,
		counters:   make(map[rotauth.MetricID]metric.Int64ObservableCounter, len(internaldefs.CounterDefs)),
		histograms: make(map[rotauth.MetricID]bucketSet, len(internaldefs.HistogramDefs)),
	}

	var observables []metric.Observable

	for _, def := range internaldefs.CounterDefs {
		ins, err := meter.Int64ObservableCounter(def.Name, metric.WithDescription(def.Help))
		if err != nil {
			return nil, fmt.Errorf("counter %s: %w", def.Name, err)
		}
		e.counters[def.ID] = ins
		observables = append(observables, ins)
	}

	for _, def := range internaldefs.HistogramDefs {
		set, obs, err := newBucketSet(meter, def.Name)
		if err != nil {
			return nil, err
		}
		e.histograms[def.ID] = set
		observables = append(observables, obs...)
	}

	dropped, err := meter.Int64ObservableCounter(
		"rotauth_audit_dropped_total",
		metric.WithDescription("Dropped audit events due to dispatcher backpressure."),
	)
	if err != nil {
		return nil, fmt.Errorf("counter rotauth_audit_dropped_total: %w", err)
	}
	e.auditDropped = dropped
	observables = append(observables, dropped)

	reg, err := meter.RegisterCallback(e.observe, observables...)
	if err != nil {
		return nil, fmt.Errorf("register callback: %w", err)
	}
	e.registration = reg

	return e, nil
}

func newBucketSet(meter metric.Meter, base string) (bucketSet, []metric.Observable, error) {
	var (
		set bucketSet
		obs []metric.Observable
	)

	for i, suffix := range internaldefs.HistogramBoundSuffix {
		name := base + "_bucket_le_" + suffix
		g, err := meter.Int64ObservableGauge(name, metric.WithDescription("Cumulative histogram bucket count."))
		if err != nil {
			return bucketSet{}, nil, fmt.Errorf("gauge %s: %w", name, err)
		}
		set.gauges[i] = g
		obs = append(obs, g)
	}

	total, err := meter.Int64ObservableGauge(base+"_count", metric.WithDescription("Histogram total sample count."))
	if err != nil {
		return bucketSet{}, nil, fmt.Errorf("gauge %s_count: %w", base, err)
	}
	set.total = total
	obs = append(obs, total)

	return set, obs, nil
}

func (e *Exporter) observe(_ context.Context, observer metric.Observer) error {
	snapshot := e.source.MetricsSnapshot()

	for id, ins := range e.counters {
		observer.ObserveInt64(ins, int64(snapshot.Counters[id]))
	}

	for id, set := range e.histograms {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[id]))
		for i, g := range set.gauges {
			observer.ObserveInt64(g, int64(cumulative[i]))
		}
		observer.ObserveInt64(set.total, int64(cumulative[len(cumulative)-1]))
	}

	observer.ObserveInt64(e.auditDropped, int64(e.source.AuditDropped()))

	return nil
}

// Close unregisters the meter callback. Safe on a nil receiver.
func (e *Exporter) Close() error {
	if e == nil || e.registration == nil {
		return nil
	}
	return e.registration.Unregister()
}

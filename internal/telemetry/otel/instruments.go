package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metric names recorded by Instruments.
const (
	MetricImageCache        = "bubble.image.cache"
	MetricReadinessAttempts = "bubble.readiness.attempts"
	MetricResourcesRemoved  = "bubble.resources.removed"
	MetricPhaseErrors       = "bubble.phase.errors"
)

// Instruments records lifecycle spans and counters.
type Instruments struct {
	tracer trace.Tracer

	cacheLookups      metric.Int64Counter
	readinessAttempts metric.Int64Counter
	resourcesRemoved  metric.Int64Counter
	phaseErrors       metric.Int64Counter
}

func newInstruments(p *Provider) *Instruments {
	if p == nil {
		return nil
	}
	inst := &Instruments{tracer: p.tracer}
	if p.meter != nil {
		inst.cacheLookups, _ = p.meter.Int64Counter(
			MetricImageCache,
			metric.WithDescription("Image cache lookups by result"),
		)
		inst.readinessAttempts, _ = p.meter.Int64Counter(
			MetricReadinessAttempts,
			metric.WithDescription("Readiness probes executed per service"),
		)
		inst.resourcesRemoved, _ = p.meter.Int64Counter(
			MetricResourcesRemoved,
			metric.WithDescription("Session resources removed during cleanup"),
		)
		inst.phaseErrors, _ = p.meter.Int64Counter(
			MetricPhaseErrors,
			metric.WithDescription("Lifecycle phases that ended in error"),
		)
	}
	return inst
}

// StartPhase opens a span for a lifecycle phase. The returned function ends
// the span, marking it failed when err is non-nil.
func (i *Instruments) StartPhase(ctx context.Context, phase string) (context.Context, func(err error)) {
	if i == nil {
		return ctx, func(error) {}
	}
	var span trace.Span
	if i.tracer != nil {
		ctx, span = i.tracer.Start(ctx, "bubble."+phase, trace.WithAttributes(attribute.String("phase", phase)))
	}
	return ctx, func(err error) {
		if err != nil && i.phaseErrors != nil {
			i.phaseErrors.Add(ctx, 1, metric.WithAttributes(attribute.String("phase", phase)))
		}
		if span == nil {
			return
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}
}

// CacheLookup counts an image cache hit or miss.
func (i *Instruments) CacheLookup(ctx context.Context, hit bool) {
	if i == nil || i.cacheLookups == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	i.cacheLookups.Add(ctx, 1, metric.WithAttributes(attribute.String("result", result)))
}

// ReadinessAttempt counts one readiness probe.
func (i *Instruments) ReadinessAttempt(ctx context.Context, container string, ready bool) {
	if i == nil || i.readinessAttempts == nil {
		return
	}
	i.readinessAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("container", container),
		attribute.Bool("ready", ready),
	))
}

// ResourceRemoved counts a resource torn down during cleanup.
func (i *Instruments) ResourceRemoved(ctx context.Context, kind string, err error) {
	if i == nil || i.resourcesRemoved == nil {
		return
	}
	i.resourcesRemoved.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.Bool("failed", err != nil),
	))
}

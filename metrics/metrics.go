// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

// Package metrics exposes connection traffic as Prometheus metrics.
package metrics

import (
	"context"
	"time"

	"github.com/juju/errors"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/juju/driverrpc/rpc"
)

const metricsNamespace = "driverrpc"

// Call outcomes used as the "outcome" label.
const (
	OutcomeOK          = "ok"
	OutcomeDriverError = "driver-error"
	OutcomeTimeout     = "timeout"
	OutcomeClosed      = "closed"
	OutcomeCancelled   = "cancelled"
	OutcomeError       = "error"
)

// Collector is a prometheus.Collector that also implements
// rpc.Observer, so it can be handed straight to a connection.
type Collector struct {
	calls          *prometheus.CounterVec
	callDuration   *prometheus.HistogramVec
	objects        *prometheus.GaugeVec
	objectsCreated *prometheus.CounterVec
	dropped        *prometheus.CounterVec
}

var _ rpc.Observer = (*Collector)(nil)

// NewCollector returns a new Collector.
func NewCollector() *Collector {
	return &Collector{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "calls_total",
				Help:      "The number of calls made to the driver, by method and outcome.",
			}, []string{"method", "outcome"},
		),
		callDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "call_duration_seconds",
				Help:      "The time taken for a call to complete.",
				Buckets:   []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 30},
			}, []string{"method"},
		),
		objects: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: metricsNamespace,
				Name:      "objects",
				Help:      "The number of live remote objects, by type.",
			}, []string{"type"},
		),
		objectsCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "objects_created_total",
				Help:      "The number of remote objects created by the driver, by type.",
			}, []string{"type"},
		),
		dropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "messages_dropped_total",
				Help:      "The number of inbound messages discarded, by reason.",
			}, []string{"reason"},
		),
	}
}

// CallCompleted is part of the rpc.Observer interface.
func (c *Collector) CallCompleted(method string, duration time.Duration, err error) {
	c.calls.WithLabelValues(method, Outcome(err)).Inc()
	c.callDuration.WithLabelValues(method).Observe(duration.Seconds())
}

// ObjectCreated is part of the rpc.Observer interface.
func (c *Collector) ObjectCreated(objectType string) {
	c.objects.WithLabelValues(objectType).Inc()
	c.objectsCreated.WithLabelValues(objectType).Inc()
}

// ObjectDisposed is part of the rpc.Observer interface.
func (c *Collector) ObjectDisposed(objectType string) {
	if objectType == rpc.RootType {
		return
	}
	c.objects.WithLabelValues(objectType).Dec()
}

// MessageDropped is part of the rpc.Observer interface.
func (c *Collector) MessageDropped(reason string) {
	c.dropped.WithLabelValues(reason).Inc()
}

// Describe is part of the prometheus.Collector interface.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	c.calls.Describe(ch)
	c.callDuration.Describe(ch)
	c.objects.Describe(ch)
	c.objectsCreated.Describe(ch)
	c.dropped.Describe(ch)
}

// Collect is part of the prometheus.Collector interface.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	c.calls.Collect(ch)
	c.callDuration.Collect(ch)
	c.objects.Collect(ch)
	c.objectsCreated.Collect(ch)
	c.dropped.Collect(ch)
}

// Outcome classifies the result of a call for the "outcome" label.
func Outcome(err error) string {
	var driverErr *rpc.DriverError
	switch {
	case err == nil:
		return OutcomeOK
	case errors.As(err, &driverErr):
		return OutcomeDriverError
	case errors.Is(err, errors.Timeout), errors.Is(err, context.DeadlineExceeded):
		return OutcomeTimeout
	case rpc.IsClosed(err):
		return OutcomeClosed
	case errors.Is(err, context.Canceled):
		return OutcomeCancelled
	}
	return OutcomeError
}

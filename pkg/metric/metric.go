// Copyright (C) 2025, ADXYZ Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package metric

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all bidwatch metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Snapshot metrics
	Polls          prometheus.Counter
	PollFailures   prometheus.Counter
	StaleSnapshots prometheus.Counter

	// Price reconciliation metrics
	ConversionFallbacks prometheus.Counter
	ReconcileDuration   prometheus.Histogram

	// Notifier metrics
	NotificationsEmitted prometheus.Counter

	// Bid submission metrics
	BidsSubmitted *prometheus.CounterVec
}

// New creates a metrics instance backed by its own registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		Polls: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidwatch_auction_polls_total",
			Help: "Total number of auction snapshot reads",
		}),
		PollFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidwatch_auction_poll_failures_total",
			Help: "Total number of failed auction snapshot reads",
		}),
		StaleSnapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidwatch_auction_stale_snapshots_total",
			Help: "Total number of snapshot reads discarded as out of sequence",
		}),
		ConversionFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidwatch_price_conversion_fallbacks_total",
			Help: "Total number of reconciliations that fell back to canonical currency",
		}),
		ReconcileDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "bidwatch_price_reconcile_duration_seconds",
			Help:    "Time to convert a full auction snapshot to display currency",
			Buckets: prometheus.DefBuckets,
		}),
		NotificationsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bidwatch_bid_notifications_total",
			Help: "Total number of new-bid notifications emitted",
		}),
		BidsSubmitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bidwatch_bids_submitted_total",
			Help: "Total number of bid submissions by mode and status",
		}, []string{"mode", "status"}),
	}

	registry.MustRegister(
		m.Polls,
		m.PollFailures,
		m.StaleSnapshots,
		m.ConversionFallbacks,
		m.ReconcileDuration,
		m.NotificationsEmitted,
		m.BidsSubmitted,
	)

	return m
}

// Handler returns an HTTP handler exposing the registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

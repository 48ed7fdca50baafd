// Package metrics exposes the storage engine and proxy's Prometheus
// counters and histograms: a package-level registry plus a
// promhttp.Handler mounted on /metrics.
/*
 * Copyright (c) 2018-2020, NVIDIA CORPORATION. All rights reserved.
 */
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// CasRetries counts CAS conflict retries across all keys.
	CasRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "cas",
		Name:      "retries_total",
		Help:      "Number of CAS write conflicts that triggered a retry.",
	})

	// CasExhausted counts CAS loops that ran out of MaxAttempts.
	CasExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "cas",
		Name:      "exhausted_total",
		Help:      "Number of CAS operations that exhausted their retry budget.",
	})

	// RecoveryAttempts counts session-recovery handshakes.
	RecoveryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "recovery",
		Name:      "attempts_total",
		Help:      "Number of synthetic initialize handshakes attempted, by outcome.",
	}, []string{"outcome"})

	// SyncFailures counts failed external-source sync/upload attempts,
	// labeled by source type.
	SyncFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "sync",
		Name:      "failures_total",
		Help:      "Number of failed sync-to-source operations, by source type.",
	}, []string{"source_type"})

	// ProxyRetries counts backend-forward retries and their eventual outcome.
	ProxyRetries = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "proxy",
		Name:      "forward_retries_total",
		Help:      "Number of retried forwards to the document-protocol backend.",
	})

	ProxyRetriesExhausted = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "docxstorage",
		Subsystem: "proxy",
		Name:      "forward_retries_exhausted_total",
		Help:      "Number of forwards that exhausted the retry budget.",
	})

	// ForwardLatency measures end-to-end SendWithRetry duration.
	ForwardLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "docxstorage",
		Subsystem: "proxy",
		Name:      "forward_latency_seconds",
		Help:      "Latency of a (possibly retried) forward to the backend.",
		Buckets:   prometheus.DefBuckets,
	})
)

// Handler returns the promhttp handler for mounting at /metrics.
func Handler() http.Handler { return promhttp.Handler() }

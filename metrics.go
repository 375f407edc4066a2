// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package restapi

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	callsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "restapi",
			Subsystem: "client",
			Name:      "calls_total",
			Help:      "API calls by transport and outcome.",
		},
		[]string{"transport", "outcome"},
	)
	callDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "restapi",
			Subsystem: "client",
			Name:      "call_duration_seconds",
			Help:      "API call duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"transport"},
	)
	fallbacksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "restapi",
			Subsystem: "client",
			Name:      "fallbacks_total",
			Help:      "Calls rerouted from the script transport to the bridge.",
		},
	)
	bridgeRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "restapi",
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "HTTP requests performed by the bridge host.",
		},
		[]string{"method", "status"},
	)
)

// RegisterMetrics registers the collectors with the default registry.
func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(callsTotal, callDuration, fallbacksTotal, bridgeRequests)
	})
}

const (
	outcomeOK      = "ok"
	outcomeError   = "error"
	outcomeTimeout = "timeout"
)

func recordCall(transport string, r Result, d time.Duration) {
	outcome := outcomeOK
	switch {
	case r.Err != nil:
		outcome = outcomeError
	case r.Response.Timeout:
		outcome = outcomeTimeout
	}
	if transport == "" {
		transport = "none"
	}
	callsTotal.WithLabelValues(transport, outcome).Inc()
	callDuration.WithLabelValues(transport).Observe(d.Seconds())
}

func recordBridgeRequest(method string, status int) {
	bridgeRequests.WithLabelValues(method, strconv.Itoa(status)).Inc()
}

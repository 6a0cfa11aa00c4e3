// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package metrics provides Prometheus metrics collection for the field
// controller.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler serving the Prometheus exposition format.
func Handler() http.Handler { return promhttp.Handler() }

var (
	// Cone fleet metrics
	nodesOnline = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldcone_nodes_online",
		Help: "Number of cones currently reporting as online",
	})
	nodesOffline = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_nodes_offline_total",
		Help: "Total number of times a cone has been swept offline",
	})
	heartbeatsReceived = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_heartbeats_received_total",
		Help: "Total number of heartbeat frames received from cones",
	})
	clockSkewMS = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "fieldcone_clock_skew_ms",
		Help: "Most recently observed clock skew per node, in milliseconds",
	}, []string{"node_id"})

	// Touch attribution metrics
	touchesAttributed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldcone_touches_attributed_total",
		Help: "Touches attributed to a run, by priority",
	}, []string{"priority"}) // priority=1|2
	touchesRejected = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldcone_touches_rejected_total",
		Help: "Touches rejected, by reason",
	}, []string{"reason"}) // reason=bounce|backwards|debounce|wrong_device

	// Segment / alert metrics
	segmentsRecorded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_segments_recorded_total",
		Help: "Total segments recorded with a touch time",
	})
	segmentsMissed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_segments_missed_total",
		Help: "Total segments marked missed during sequential attribution",
	})
	segmentAlertsRaised = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_segment_alerts_raised_total",
		Help: "Total segment-time alerts raised for slow splits",
	})

	// Session lifecycle metrics
	sessionsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_sessions_started_total",
		Help: "Total sessions started",
	})
	sessionsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "fieldcone_sessions_completed_total",
		Help: "Total sessions completed, by final status",
	}, []string{"status"}) // status=completed|incomplete
	runsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "fieldcone_runs_active",
		Help: "Number of concurrently active runs across all sessions",
	})

	// Store metrics
	storeRetries = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fieldcone_store_busy_retries_total",
		Help: "Total number of SQLITE_BUSY retry attempts on write operations",
	})
)

// SetNodesOnline sets the number of cones present in the latest snapshot.
func SetNodesOnline(n int) { nodesOnline.Set(float64(n)) }

// NodeOffline records a cone being swept offline.
func NodeOffline() { nodesOffline.Inc() }

// HeartbeatReceived records one inbound heartbeat frame.
func HeartbeatReceived() { heartbeatsReceived.Inc() }

// ClockSkew records the most recent observed clock skew for a node.
func ClockSkew(nodeID string, ms float64) { clockSkewMS.WithLabelValues(nodeID).Set(ms) }

// TouchAttributed records a successfully attributed touch by priority ("1" or "2").
func TouchAttributed(priority string) { touchesAttributed.WithLabelValues(priority).Inc() }

// TouchRejected records a rejected touch by reason.
func TouchRejected(reason string) { touchesRejected.WithLabelValues(reason).Inc() }

// SegmentRecorded records one segment gaining a touch time.
func SegmentRecorded() { segmentsRecorded.Inc() }

// SegmentMissed records one segment marked missed.
func SegmentMissed() { segmentsMissed.Inc() }

// SegmentAlertRaised records one slow-split alert.
func SegmentAlertRaised() { segmentAlertsRaised.Inc() }

// SessionStarted records a session start.
func SessionStarted() { sessionsStarted.Inc() }

// SessionCompleted records a session's terminal status.
func SessionCompleted(status string) { sessionsCompleted.WithLabelValues(status).Inc() }

// SetRunsActive sets the current active-run gauge.
func SetRunsActive(n int) { runsActive.Set(float64(n)) }

// StoreRetry records one SQLITE_BUSY retry attempt.
func StoreRetry() { storeRetries.Inc() }

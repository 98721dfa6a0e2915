// Package metrics provides Prometheus metrics for watch progress and playback sessions.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ProgressWrites counts successful watch state writes by kind (film, episode, source).
	ProgressWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamit_progress_writes_total",
		Help: "Total number of watch progress writes, by content kind.",
	}, []string{"kind"})

	// ProgressWriteErrors counts writes the local storage backend rejected.
	ProgressWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamit_progress_write_errors_total",
		Help: "Total number of failed watch progress writes.",
	})

	// WatchedMarks counts playback samples classified as watched, by trigger (threshold, ended).
	WatchedMarks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamit_watched_marks_total",
		Help: "Total number of playback samples that marked content watched, by trigger.",
	}, []string{"trigger"})

	// StaleCallbacks counts metadata callbacks ignored because a newer play superseded them.
	StaleCallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "streamit_playback_stale_callbacks_total",
		Help: "Total number of playback callbacks ignored because the session moved on.",
	})

	// PlaybackSessions tracks open playback sessions.
	PlaybackSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "streamit_playback_sessions",
		Help: "Number of open playback sessions.",
	})

	// Imports counts progress imports by result (ok, invalid).
	Imports = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamit_progress_imports_total",
		Help: "Total number of progress imports, by result.",
	}, []string{"result"})

	// CatalogReloads counts catalog reloads by result (ok, error).
	CatalogReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "streamit_catalog_reloads_total",
		Help: "Total number of catalog reloads, by result.",
	}, []string{"result"})
)

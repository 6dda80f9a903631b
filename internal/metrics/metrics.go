// Package metrics exposes the server's Prometheus collectors.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups the collectors registered on one registry.
type Metrics struct {
	Registry *prometheus.Registry

	PostFetches  *prometheus.CounterVec
	Exports      *prometheus.CounterVec
	LiveSessions prometheus.Gauge
	StickerSyncs *prometheus.CounterVec
	BotUpdates   *prometheus.CounterVec
}

// New registers every collector on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		Registry: reg,
		PostFetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xraid",
			Name:      "post_fetches_total",
			Help:      "Post lookups by outcome (ok, not_found, invalid_url, error).",
		}, []string{"outcome"}),
		Exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xraid",
			Name:      "exports_total",
			Help:      "Artifact exports by sink and outcome.",
		}, []string{"sink", "outcome"}),
		LiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "xraid",
			Name:      "live_sessions",
			Help:      "Open live editor connections.",
		}),
		StickerSyncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xraid",
			Name:      "sticker_syncs_total",
			Help:      "Sticker set sync runs by outcome.",
		}, []string{"outcome"}),
		BotUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "xraid",
			Name:      "bot_updates_total",
			Help:      "Telegram updates handled by kind.",
		}, []string{"kind"}),
	}
	reg.MustRegister(
		m.PostFetches, m.Exports, m.LiveSessions, m.StickerSyncs, m.BotUpdates,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// Outcome labels an error for the counters.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

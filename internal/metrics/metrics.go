// Package metrics holds the Prometheus instruments for poll cycles, alerts
// and chat commands. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle names used as label values.
const (
	CycleMarkets = "markets"
	CycleTrades  = "trades"
)

// Metrics contains all Prometheus metrics for the monitor.
type Metrics struct {
	CyclesTotal        *prometheus.CounterVec
	CycleDuration      *prometheus.HistogramVec
	ItemsChecked       *prometheus.CounterVec
	NewItemsTotal      *prometheus.CounterVec
	EntityFailures     *prometheus.CounterVec
	NotificationsTotal *prometheus.CounterVec
	CommandsTotal      *prometheus.CounterVec
	MinBetSize         prometheus.Gauge
	AlertClients       prometheus.Gauge
}

// New creates the metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CyclesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_cycles_total",
			Help: "Poll cycles run, by cycle and outcome",
		}, []string{"cycle", "outcome"}),

		CycleDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "polywatch_cycle_duration_seconds",
			Help:    "Wall time of a poll cycle",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"cycle"}),

		ItemsChecked: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_items_checked_total",
			Help: "Markets or trades examined by poll cycles",
		}, []string{"cycle"}),

		NewItemsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_new_items_total",
			Help: "Novel markets or large trades persisted",
		}, []string{"cycle"}),

		EntityFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_entity_failures_total",
			Help: "Per-entity failures inside a cycle, by stage",
		}, []string{"cycle", "stage"}),

		NotificationsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_notifications_total",
			Help: "Chat notifications attempted, by type and success",
		}, []string{"type", "success"}),

		CommandsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "polywatch_commands_total",
			Help: "Operator commands handled, by kind",
		}, []string{"kind"}),

		MinBetSize: f.NewGauge(prometheus.GaugeOpts{
			Name: "polywatch_min_bet_size",
			Help: "Threshold used by the latest trade cycle",
		}),

		AlertClients: f.NewGauge(prometheus.GaugeOpts{
			Name: "polywatch_alert_stream_clients",
			Help: "Connected live alert stream clients",
		}),
	}
}

// RecordCycle records the outcome and duration of one cycle.
func (m *Metrics) RecordCycle(cycle string, ok bool, took time.Duration) {
	if m == nil {
		return
	}
	outcome := "success"
	if !ok {
		outcome = "error"
	}
	m.CyclesTotal.WithLabelValues(cycle, outcome).Inc()
	m.CycleDuration.WithLabelValues(cycle).Observe(took.Seconds())
}

// RecordChecked adds n examined items.
func (m *Metrics) RecordChecked(cycle string, n int) {
	if m == nil {
		return
	}
	m.ItemsChecked.WithLabelValues(cycle).Add(float64(n))
}

// RecordNewItem counts one persisted novel entity.
func (m *Metrics) RecordNewItem(cycle string) {
	if m == nil {
		return
	}
	m.NewItemsTotal.WithLabelValues(cycle).Inc()
}

// RecordFailure counts a per-entity failure at stage ("lookup", "store", "send").
func (m *Metrics) RecordFailure(cycle, stage string) {
	if m == nil {
		return
	}
	m.EntityFailures.WithLabelValues(cycle, stage).Inc()
}

// RecordNotification counts one send attempt.
func (m *Metrics) RecordNotification(typ string, success bool) {
	if m == nil {
		return
	}
	s := "false"
	if success {
		s = "true"
	}
	m.NotificationsTotal.WithLabelValues(typ, s).Inc()
}

// RecordCommand counts one handled command.
func (m *Metrics) RecordCommand(kind string) {
	if m == nil {
		return
	}
	m.CommandsTotal.WithLabelValues(kind).Inc()
}

// SetMinBetSize publishes the threshold in effect.
func (m *Metrics) SetMinBetSize(v int64) {
	if m == nil {
		return
	}
	m.MinBetSize.Set(float64(v))
}

// SetAlertClients publishes the live alert stream client count.
func (m *Metrics) SetAlertClients(n int) {
	if m == nil {
		return
	}
	m.AlertClients.Set(float64(n))
}

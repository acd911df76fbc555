// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package perf

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	metricsSubSystemSignaling = "signaling"
	metricsSubSystemWS        = "ws"
	metricsSubSystemLimiter   = "limiter"
)

type Metrics struct {
	registry *prometheus.Registry

	RoomSessions    *prometheus.GaugeVec
	Rooms           prometheus.Gauge
	DispatchErrors  *prometheus.CounterVec
	LimiterDenials  *prometheus.CounterVec
	LimiterBansTot  prometheus.Counter
	WSConnections   *prometheus.GaugeVec
	WSMessageCounts *prometheus.CounterVec
}

func NewMetrics(namespace string, registry *prometheus.Registry) *Metrics {
	var m Metrics

	if registry != nil {
		m.registry = registry
	} else {
		m.registry = prometheus.NewRegistry()
		m.registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{
			Namespace: namespace,
		}))
		m.registry.MustRegister(collectors.NewGoCollector())
	}

	m.RoomSessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemSignaling,
			Name:      "sessions_total",
			Help:      "Total number of active sessions per room",
		},
		[]string{"roomID"},
	)
	m.registry.MustRegister(m.RoomSessions)

	m.Rooms = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemSignaling,
			Name:      "rooms_total",
			Help:      "Total number of active rooms",
		},
	)
	m.registry.MustRegister(m.Rooms)

	m.DispatchErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemSignaling,
			Name:      "dispatch_errors_total",
			Help:      "Total number of signaling dispatch failures",
		},
		[]string{"type"},
	)
	m.registry.MustRegister(m.DispatchErrors)

	m.LimiterDenials = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemLimiter,
			Name:      "denials_total",
			Help:      "Total number of admission denials",
		},
		[]string{"reason"},
	)
	m.registry.MustRegister(m.LimiterDenials)

	m.LimiterBansTot = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemLimiter,
			Name:      "bans_total",
			Help:      "Total number of bans issued by the admission limiter",
		},
	)
	m.registry.MustRegister(m.LimiterBansTot)

	m.WSConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemWS,
			Name:      "connections_total",
			Help:      "Total number of active WebSocket connections",
		},
		[]string{"clientID"},
	)
	m.registry.MustRegister(m.WSConnections)

	m.WSMessageCounts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: metricsSubSystemWS,
			Name:      "messages_total",
			Help:      "Total number of sent/received WebSocket messages",
		},
		[]string{"type", "direction"},
	)
	m.registry.MustRegister(m.WSMessageCounts)

	return &m
}

func (m *Metrics) IncRoomSessions(roomID string) {
	m.RoomSessions.With(prometheus.Labels{"roomID": roomID}).Inc()
}

func (m *Metrics) DecRoomSessions(roomID string) {
	m.RoomSessions.With(prometheus.Labels{"roomID": roomID}).Dec()
}

func (m *Metrics) IncRooms() {
	m.Rooms.Inc()
}

func (m *Metrics) DecRooms() {
	m.Rooms.Dec()
}

func (m *Metrics) IncDispatchErrors(msgType string) {
	m.DispatchErrors.With(prometheus.Labels{"type": msgType}).Inc()
}

func (m *Metrics) IncLimiterDenials(reason string) {
	m.LimiterDenials.With(prometheus.Labels{"reason": reason}).Inc()
}

func (m *Metrics) IncLimiterBans() {
	m.LimiterBansTot.Inc()
}

func (m *Metrics) IncWSConnections(clientID string) {
	m.WSConnections.With(prometheus.Labels{"clientID": clientID}).Inc()
}

func (m *Metrics) DecWSConnections(clientID string) {
	m.WSConnections.With(prometheus.Labels{"clientID": clientID}).Dec()
}

func (m *Metrics) IncWSMessages(msgType, direction string) {
	m.WSMessageCounts.With(prometheus.Labels{"type": msgType, "direction": direction}).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

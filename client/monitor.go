// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

type QualityGrade string

const (
	QualityExcellent QualityGrade = "excellent"
	QualityGood      QualityGrade = "good"
	QualityPoor      QualityGrade = "poor"
	QualityVeryPoor  QualityGrade = "very_poor"
)

// QualityBand is the upper bound of RTT and loss rate for a grade.
type QualityBand struct {
	MaxRTT      time.Duration
	MaxLossRate float64
}

// QualityThresholds are the bands used to derive a grade from raw stats.
// Anything beyond the Poor band grades as VeryPoor.
type QualityThresholds struct {
	Excellent QualityBand
	Good      QualityBand
	Poor      QualityBand
}

func (t *QualityThresholds) SetDefaults() {
	t.Excellent = QualityBand{MaxRTT: 150 * time.Millisecond, MaxLossRate: 0.01}
	t.Good = QualityBand{MaxRTT: 300 * time.Millisecond, MaxLossRate: 0.03}
	t.Poor = QualityBand{MaxRTT: 500 * time.Millisecond, MaxLossRate: 0.08}
}

func (t QualityThresholds) grade(stats TransportStats) QualityGrade {
	matches := func(b QualityBand) bool {
		return stats.RTT <= b.MaxRTT && stats.LossRate <= b.MaxLossRate
	}
	switch {
	case matches(t.Excellent):
		return QualityExcellent
	case matches(t.Good):
		return QualityGood
	case matches(t.Poor):
		return QualityPoor
	default:
		return QualityVeryPoor
	}
}

// NetworkQualityMetrics is a graded sample of a consumer's network
// conditions.
type NetworkQualityMetrics struct {
	Quality       QualityGrade
	BandwidthKbps int
	RTT           time.Duration
	Jitter        float64
	LossRate      float64
	Timestamp     time.Time
}

// QualityChange is the payload of quality-change events.
type QualityChange struct {
	From    QualityGrade
	To      QualityGrade
	Metrics NetworkQualityMetrics
}

const defaultMonitorInterval = 2 * time.Second

type MonitorConfig struct {
	// Interval specifies how often consumer stats are sampled.
	Interval time.Duration
	// Thresholds are the grade bands. Zero value applies the defaults.
	Thresholds QualityThresholds
}

func (c *MonitorConfig) SetDefaults() {
	if c.Interval <= 0 {
		c.Interval = defaultMonitorInterval
	}
	if c.Thresholds == (QualityThresholds{}) {
		c.Thresholds.SetDefaults()
	}
}

// QualityMonitor periodically samples a consumer's transport stats, grades
// them and emits quality-update on every sample plus quality-change on
// grade transitions.
type QualityMonitor struct {
	cfg      MonitorConfig
	log      *slog.Logger
	provider StatsProvider
	emitter  *Emitter

	lastGrade QualityGrade

	stopCh chan struct{}
	doneCh chan struct{}

	mut sync.Mutex
}

func NewQualityMonitor(cfg MonitorConfig, provider StatsProvider, emitter *Emitter, log *slog.Logger) *QualityMonitor {
	cfg.SetDefaults()
	if log == nil {
		log = slog.Default()
	}
	return &QualityMonitor{
		cfg:      cfg,
		log:      log,
		provider: provider,
		emitter:  emitter,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

func (m *QualityMonitor) Start() {
	m.log.Debug("starting quality monitor")
	go func() {
		defer close(m.doneCh)
		ticker := time.NewTicker(m.cfg.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				m.Sample()
			case <-m.stopCh:
				return
			}
		}
	}()
}

func (m *QualityMonitor) Stop() {
	m.log.Debug("stopping quality monitor")
	close(m.stopCh)
	<-m.doneCh
}

// Sample polls the stats provider once, grading and emitting the result.
func (m *QualityMonitor) Sample() {
	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.Interval)
	defer cancel()

	stats, err := m.provider.GetStats(ctx)
	if err != nil {
		m.log.Error("failed to gather consumer stats", slog.String("err", err.Error()))
		return
	}
	if stats.Timestamp.IsZero() {
		stats.Timestamp = time.Now()
	}

	metrics := NetworkQualityMetrics{
		Quality:       m.cfg.Thresholds.grade(stats),
		BandwidthKbps: stats.BitrateKbps,
		RTT:           stats.RTT,
		Jitter:        stats.Jitter,
		LossRate:      stats.LossRate,
		Timestamp:     stats.Timestamp,
	}

	m.mut.Lock()
	prev := m.lastGrade
	m.lastGrade = metrics.Quality
	m.mut.Unlock()

	m.emitter.Emit(QualityUpdateEvent, metrics)
	if prev != "" && prev != metrics.Quality {
		m.emitter.Emit(QualityChangeEvent, QualityChange{
			From:    prev,
			To:      metrics.Quality,
			Metrics: metrics,
		})
	}
}

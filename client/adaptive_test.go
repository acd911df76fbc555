// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRecommendLayer(t *testing.T) {
	c := NewAdaptiveController(nil, NewEmitter(nil, 0), testLogger(t))

	for _, tc := range []struct {
		name     string
		metrics  NetworkQualityMetrics
		spatial  int
		temporal int
		bitrate  int
	}{
		{
			name:     "excellent with headroom picks the top rung",
			metrics:  NetworkQualityMetrics{Quality: QualityExcellent, BandwidthKbps: 6000},
			spatial:  3,
			temporal: 2,
			bitrate:  4500,
		},
		{
			name:     "excellent with moderate bandwidth",
			metrics:  NetworkQualityMetrics{Quality: QualityExcellent, BandwidthKbps: 1600},
			spatial:  2,
			temporal: 1,
			bitrate:  1500,
		},
		{
			name:     "good is capped at spatial 2 regardless of bandwidth",
			metrics:  NetworkQualityMetrics{Quality: QualityGood, BandwidthKbps: 6000},
			spatial:  2,
			temporal: 2,
			bitrate:  2500,
		},
		{
			name:     "poor picks the highest rung fitting the estimate",
			metrics:  NetworkQualityMetrics{Quality: QualityPoor, BandwidthKbps: 400},
			spatial:  1,
			temporal: 0,
			bitrate:  300,
		},
		{
			name:     "poor with 250kbps still fits the base rung only",
			metrics:  NetworkQualityMetrics{Quality: QualityPoor, BandwidthKbps: 250},
			spatial:  0,
			temporal: 0,
			bitrate:  100,
		},
		{
			name:     "very poor always lands on the bottom rung",
			metrics:  NetworkQualityMetrics{Quality: QualityVeryPoor, BandwidthKbps: 5000},
			spatial:  0,
			temporal: 0,
			bitrate:  100,
		},
		{
			name:     "nothing fits falls back to the lowest capped rung",
			metrics:  NetworkQualityMetrics{Quality: QualityExcellent, BandwidthKbps: 50},
			spatial:  0,
			temporal: 0,
			bitrate:  100,
		},
	} {
		t.Run(tc.name, func(t *testing.T) {
			layer := c.RecommendLayer(tc.metrics)
			require.Equal(t, tc.spatial, layer.Spatial)
			require.Equal(t, tc.temporal, layer.Temporal)
			require.Equal(t, tc.bitrate, layer.BitrateKbps)
		})
	}
}

func TestShouldChangeLayer(t *testing.T) {
	c := NewAdaptiveController(nil, NewEmitter(nil, 0), testLogger(t))

	t.Run("no current layer always changes", func(t *testing.T) {
		require.True(t, c.ShouldChangeLayer(SimulcastLayer{Spatial: 1}))
	})

	c.ApplyLayer(SimulcastLayer{Spatial: 2, Temporal: 1, BitrateKbps: 1500})

	t.Run("temporal-only delta is suppressed", func(t *testing.T) {
		require.False(t, c.ShouldChangeLayer(SimulcastLayer{Spatial: 2, Temporal: 2}))
		require.False(t, c.ShouldChangeLayer(SimulcastLayer{Spatial: 2, Temporal: 0}))
	})

	t.Run("spatial transitions pass", func(t *testing.T) {
		require.True(t, c.ShouldChangeLayer(SimulcastLayer{Spatial: 3}))
		require.True(t, c.ShouldChangeLayer(SimulcastLayer{Spatial: 1}))
	})
}

func TestAdaptiveControllerLoop(t *testing.T) {
	setter := &fakeLayerSetter{}
	emitter := NewEmitter(nil, 0)
	c := NewAdaptiveController(setter, emitter, testLogger(t))

	var layerChanges []LayerChange
	emitter.On(LayerChangedEvent, func(ctx any) {
		layerChanges = append(layerChanges, ctx.(LayerChange))
	})
	var adjustments []LayerChange
	emitter.On(QualityAdjustedEvent, func(ctx any) {
		adjustments = append(adjustments, ctx.(LayerChange))
	})

	c.Start()
	defer c.Stop()

	t.Run("first sample applies a layer", func(t *testing.T) {
		emitter.Emit(QualityUpdateEvent, NetworkQualityMetrics{
			Quality:       QualityExcellent,
			BandwidthKbps: 6000,
		})

		require.Len(t, layerChanges, 1)
		require.Equal(t, 3, layerChanges[0].Layer.Spatial)
		require.False(t, layerChanges[0].Manual)
		require.NotNil(t, layerChanges[0].Metrics)
		require.Len(t, adjustments, 1)

		spatial, temporal, ok := setter.lastApplied()
		require.True(t, ok)
		require.Equal(t, 3, spatial)
		require.Equal(t, 2, temporal)

		current := c.CurrentLayer()
		require.NotNil(t, current)
		require.Equal(t, 3, current.Spatial)
	})

	t.Run("hysteresis suppresses temporal-only moves", func(t *testing.T) {
		emitter.Emit(QualityUpdateEvent, NetworkQualityMetrics{
			Quality:       QualityExcellent,
			BandwidthKbps: 2200,
		})
		// 2000kbps at spatial 3 fits, same spatial tier, no switch.
		require.Len(t, layerChanges, 1)
	})

	t.Run("degradation drops the layer", func(t *testing.T) {
		emitter.Emit(QualityUpdateEvent, NetworkQualityMetrics{
			Quality:       QualityPoor,
			BandwidthKbps: 400,
		})

		require.Len(t, layerChanges, 2)
		require.Equal(t, 1, layerChanges[1].Layer.Spatial)

		spatial, _, ok := setter.lastApplied()
		require.True(t, ok)
		require.Equal(t, 1, spatial)
	})

	t.Run("non-metrics payload is ignored", func(t *testing.T) {
		emitter.Emit(QualityUpdateEvent, "garbage")
		require.Len(t, layerChanges, 2)
	})
}

func TestAdaptiveControllerManual(t *testing.T) {
	setter := &fakeLayerSetter{}
	emitter := NewEmitter(nil, 0)
	c := NewAdaptiveController(setter, emitter, testLogger(t))

	var layerChanges []LayerChange
	emitter.On(LayerChangedEvent, func(ctx any) {
		layerChanges = append(layerChanges, ctx.(LayerChange))
	})

	c.Start()
	defer c.Stop()

	pinned := SimulcastLayer{Spatial: 1, Temporal: 0, BitrateKbps: 300}
	c.SetManualLayer(pinned)

	require.Len(t, layerChanges, 1)
	require.True(t, layerChanges[0].Manual)
	require.Nil(t, layerChanges[0].Metrics)
	require.Equal(t, pinned, *c.CurrentLayer())

	t.Run("samples are ignored while pinned", func(t *testing.T) {
		emitter.Emit(QualityUpdateEvent, NetworkQualityMetrics{
			Quality:       QualityExcellent,
			BandwidthKbps: 6000,
		})
		require.Len(t, layerChanges, 1)
		require.Equal(t, pinned, *c.CurrentLayer())
	})

	t.Run("reset resumes automatic selection", func(t *testing.T) {
		c.ResetToAutomatic()
		require.Nil(t, c.CurrentLayer())

		emitter.Emit(QualityUpdateEvent, NetworkQualityMetrics{
			Quality:       QualityExcellent,
			BandwidthKbps: 6000,
		})
		require.Len(t, layerChanges, 2)
		require.Equal(t, 3, layerChanges[1].Layer.Spatial)
	})
}

func TestAdaptiveControllerStartStop(t *testing.T) {
	emitter := NewEmitter(nil, 0)
	c := NewAdaptiveController(nil, emitter, testLogger(t))

	c.Start()
	// Start is idempotent.
	c.Start()
	require.Equal(t, 1, emitter.ListenerCount(QualityUpdateEvent))

	c.Stop()
	require.Zero(t, emitter.ListenerCount(QualityUpdateEvent))
	// Stop is idempotent.
	c.Stop()
}

func TestLadder(t *testing.T) {
	ladder := Ladder()
	require.Len(t, ladder, 9)

	// Mutating the copy leaves the fixed ladder alone.
	ladder[0].BitrateKbps = 1
	require.Equal(t, 100, Ladder()[0].BitrateKbps)

	// Within each spatial tier rungs are ordered by ascending bitrate.
	byTier := make(map[int][]SimulcastLayer)
	for _, l := range ladder[1:] {
		byTier[l.Spatial] = append(byTier[l.Spatial], l)
	}
	for _, rungs := range byTier {
		for i := 1; i < len(rungs); i++ {
			require.Greater(t, rungs[i].BitrateKbps, rungs[i-1].BitrateKbps)
		}
	}
}

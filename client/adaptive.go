// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"log/slog"
	"sync"

	"golang.org/x/time/rate"
)

// SimulcastLayer is one rung of the fixed encoding ladder.
type SimulcastLayer struct {
	Spatial     int
	Temporal    int
	BitrateKbps int
	Width       int
	Height      int
	FrameRate   int
}

// simulcastLadder is the fixed ladder, lowest bitrate first within each
// spatial tier.
var simulcastLadder = []SimulcastLayer{
	{Spatial: 0, Temporal: 0, BitrateKbps: 100, Width: 320, Height: 180, FrameRate: 15},
	{Spatial: 1, Temporal: 0, BitrateKbps: 300, Width: 640, Height: 360, FrameRate: 15},
	{Spatial: 1, Temporal: 1, BitrateKbps: 500, Width: 640, Height: 360, FrameRate: 30},
	{Spatial: 2, Temporal: 0, BitrateKbps: 800, Width: 1280, Height: 720, FrameRate: 15},
	{Spatial: 2, Temporal: 1, BitrateKbps: 1500, Width: 1280, Height: 720, FrameRate: 30},
	{Spatial: 2, Temporal: 2, BitrateKbps: 2500, Width: 1280, Height: 720, FrameRate: 60},
	{Spatial: 3, Temporal: 0, BitrateKbps: 2000, Width: 1920, Height: 1080, FrameRate: 15},
	{Spatial: 3, Temporal: 1, BitrateKbps: 3000, Width: 1920, Height: 1080, FrameRate: 30},
	{Spatial: 3, Temporal: 2, BitrateKbps: 4500, Width: 1920, Height: 1080, FrameRate: 60},
}

// maxSpatialForGrade caps the ladder by quality grade.
func maxSpatialForGrade(grade QualityGrade) int {
	switch grade {
	case QualityExcellent:
		return 3
	case QualityGood:
		return 2
	case QualityPoor:
		return 1
	default:
		return 0
	}
}

// LayerChange is the payload of layer-changed and quality-adjusted events.
type LayerChange struct {
	Layer   SimulcastLayer
	Manual  bool
	Metrics *NetworkQualityMetrics
}

// AdaptiveController is a closed-loop controller that maps graded network
// samples to a simulcast layer and applies it to the consumer.
type AdaptiveController struct {
	log     *slog.Logger
	setter  LayerSetter
	emitter *Emitter

	current    *SimulcastLayer
	manual     bool
	unregister func()
	logLimiter *rate.Limiter

	mut sync.Mutex
}

// NewAdaptiveController creates a controller applying layers through the
// given setter. A nil setter is allowed for consumers without simulcast
// support; selection still runs and events still fire.
func NewAdaptiveController(setter LayerSetter, emitter *Emitter, log *slog.Logger) *AdaptiveController {
	if log == nil {
		log = slog.Default()
	}
	return &AdaptiveController{
		log:        log,
		setter:     setter,
		emitter:    emitter,
		logLimiter: rate.NewLimiter(1, 1),
	}
}

// Start subscribes the controller to quality-update samples.
func (c *AdaptiveController) Start() {
	c.mut.Lock()
	defer c.mut.Unlock()
	if c.unregister != nil {
		return
	}
	c.unregister = c.emitter.On(QualityUpdateEvent, c.onQualityUpdate)
}

// Stop unsubscribes from quality samples.
func (c *AdaptiveController) Stop() {
	c.mut.Lock()
	defer c.mut.Unlock()
	if c.unregister != nil {
		c.unregister()
		c.unregister = nil
	}
}

func (c *AdaptiveController) onQualityUpdate(ctx any) {
	metrics, ok := ctx.(NetworkQualityMetrics)
	if !ok {
		return
	}

	c.mut.Lock()
	if c.manual {
		c.mut.Unlock()
		return
	}
	c.mut.Unlock()

	layer := c.RecommendLayer(metrics)
	if !c.ShouldChangeLayer(layer) {
		return
	}

	if c.logLimiter.Allow() {
		c.log.Debug("adaptive: switching simulcast layer",
			slog.String("quality", string(metrics.Quality)),
			slog.Int("bandwidthKbps", metrics.BandwidthKbps),
			slog.Int("spatial", layer.Spatial),
			slog.Int("temporal", layer.Temporal))
	}

	c.applyLayer(layer, false, &metrics)
}

// RecommendLayer selects the ladder rung for the given sample: cap the
// spatial layer by grade, then pick the highest bitrate fitting the
// estimated bandwidth. When nothing fits the lowest capped rung is
// returned, there is no rung below the ladder.
func (c *AdaptiveController) RecommendLayer(metrics NetworkQualityMetrics) SimulcastLayer {
	maxSpatial := maxSpatialForGrade(metrics.Quality)

	var available []SimulcastLayer
	for _, l := range simulcastLadder {
		if l.Spatial <= maxSpatial {
			available = append(available, l)
		}
	}

	best := available[0]
	found := false
	for _, l := range available {
		if l.BitrateKbps <= metrics.BandwidthKbps && (!found || l.BitrateKbps >= best.BitrateKbps) {
			best = l
			found = true
		}
	}
	if found {
		return best
	}

	lowest := available[0]
	for _, l := range available[1:] {
		if l.BitrateKbps < lowest.BitrateKbps {
			lowest = l
		}
	}
	return lowest
}

// ShouldChangeLayer applies hysteresis: only spatial transitions are worth
// a switch, temporal-only deltas would flap on band boundaries.
func (c *AdaptiveController) ShouldChangeLayer(layer SimulcastLayer) bool {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.current == nil {
		return true
	}
	diff := layer.Spatial - c.current.Spatial
	if diff < 0 {
		diff = -diff
	}
	return diff >= 1
}

// ApplyLayer applies the layer to the consumer and records it as current.
func (c *AdaptiveController) ApplyLayer(layer SimulcastLayer) {
	c.applyLayer(layer, false, nil)
}

func (c *AdaptiveController) applyLayer(layer SimulcastLayer, manual bool, metrics *NetworkQualityMetrics) {
	if c.setter != nil {
		if err := c.setter.SetMaxSpatialLayer(layer.Spatial); err != nil {
			c.log.Error("adaptive: failed to set spatial layer", slog.String("err", err.Error()))
		}
		if err := c.setter.SetMaxTemporalLayer(layer.Temporal); err != nil {
			c.log.Error("adaptive: failed to set temporal layer", slog.String("err", err.Error()))
		}
	}

	c.mut.Lock()
	c.current = &layer
	c.mut.Unlock()

	change := LayerChange{Layer: layer, Manual: manual, Metrics: metrics}
	c.emitter.Emit(LayerChangedEvent, change)
	if metrics != nil {
		c.emitter.Emit(QualityAdjustedEvent, change)
	}
}

// SetManualLayer applies the layer and pins it, skipping recommendations
// until ResetToAutomatic.
func (c *AdaptiveController) SetManualLayer(layer SimulcastLayer) {
	c.mut.Lock()
	c.manual = true
	c.mut.Unlock()
	c.applyLayer(layer, true, nil)
}

// ResetToAutomatic resumes automatic selection. The current layer is
// cleared so the next sample reapplies unconditionally.
func (c *AdaptiveController) ResetToAutomatic() {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.manual = false
	c.current = nil
}

// CurrentLayer returns the last applied layer, or nil.
func (c *AdaptiveController) CurrentLayer() *SimulcastLayer {
	c.mut.Lock()
	defer c.mut.Unlock()
	return c.current
}

// Ladder returns a copy of the fixed simulcast ladder.
func Ladder() []SimulcastLayer {
	out := make([]SimulcastLayer, len(simulcastLadder))
	copy(out, simulcastLadder)
	return out
}

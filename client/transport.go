// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"strings"
	"time"

	"github.com/pion/webrtc/v4"
)

// RemoteTrack is the transport-supplied handle attached to a publication
// after a successful subscription. The association is weak: ClearTrack
// drops it without touching transport state.
type RemoteTrack interface {
	ID() string
	Kind() TrackKind
	// OnUnsubscribed notifies the handle that the server ended the
	// subscription.
	OnUnsubscribed()
}

// WebRTCTrack adapts a pion remote track to the RemoteTrack handle the
// room model stores.
type WebRTCTrack struct {
	track *webrtc.TrackRemote
}

func NewWebRTCTrack(track *webrtc.TrackRemote) *WebRTCTrack {
	return &WebRTCTrack{track: track}
}

func (t *WebRTCTrack) ID() string {
	return t.track.ID()
}

func (t *WebRTCTrack) Kind() TrackKind {
	switch t.track.Kind() {
	case webrtc.RTPCodecTypeAudio:
		return TrackKindAudio
	case webrtc.RTPCodecTypeVideo:
		return TrackKindVideo
	default:
		return TrackKindData
	}
}

func (t *WebRTCTrack) OnUnsubscribed() {
	// The pion track is owned by the transport, nothing to release here.
}

// Underlying exposes the wrapped pion track.
func (t *WebRTCTrack) Underlying() *webrtc.TrackRemote {
	return t.track
}

type DataPacketKind string

const (
	DataPacketReliable DataPacketKind = "reliable"
	DataPacketLossy    DataPacketKind = "lossy"
)

// dataKindForLabel classifies a data consumer by its channel label.
func dataKindForLabel(label string) DataPacketKind {
	if strings.Contains(label, "lossy") {
		return DataPacketLossy
	}
	return DataPacketReliable
}

// DataPacket is the decoded payload delivered through data-received events.
type DataPacket struct {
	Kind           DataPacketKind
	Value          any
	ParticipantSid string
	Timestamp      time.Time
}

// DataConsumer is the transport handle for a server-created SCTP data
// consumer.
type DataConsumer interface {
	Label() string
	OnMessage(cb func(payload []byte))
	OnClose(cb func())
	OnError(cb func(err error))
	Close() error
}

// DataChannelConsumer adapts a pion data channel to the DataConsumer
// handle bound by the data_consumer_created handler.
type DataChannelConsumer struct {
	dc *webrtc.DataChannel
}

func NewDataChannelConsumer(dc *webrtc.DataChannel) *DataChannelConsumer {
	return &DataChannelConsumer{dc: dc}
}

func (c *DataChannelConsumer) Label() string {
	return c.dc.Label()
}

func (c *DataChannelConsumer) OnMessage(cb func(payload []byte)) {
	c.dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		cb(msg.Data)
	})
}

func (c *DataChannelConsumer) OnClose(cb func()) {
	c.dc.OnClose(cb)
}

func (c *DataChannelConsumer) OnError(cb func(err error)) {
	c.dc.OnError(cb)
}

func (c *DataChannelConsumer) Close() error {
	return c.dc.Close()
}

// AddDataConsumerParams carries the server-supplied parameters for a new
// data consumer. The SCTP stream parameters are opaque to the core.
type AddDataConsumerParams struct {
	ID                   string
	SCTPStreamParameters map[string]any
	ParticipantSid       string
	Label                string
	Ordered              bool
}

// TransportStats are the raw per-consumer network statistics the monitor
// samples.
type TransportStats struct {
	RTT         time.Duration
	Jitter      float64
	LossRate    float64
	BitrateKbps int
	Timestamp   time.Time
}

// StatsProvider exposes consumer statistics for sampling.
type StatsProvider interface {
	GetStats(ctx context.Context) (TransportStats, error)
}

// LayerSetter is implemented by consumers that support simulcast layer
// capping.
type LayerSetter interface {
	SetMaxSpatialLayer(layer int) error
	SetMaxTemporalLayer(layer int) error
}

// TransportController is the boundary to the WebRTC transport binding. The
// core never drives media directly, it only requests subscriptions and data
// consumers and reacts to the handles it gets back.
type TransportController interface {
	EnsureWebRTCInitialized(ctx context.Context) error
	InitDataProvider(ctx context.Context) error
	SubscribeToTrack(ctx context.Context, trackSid string) error
	UnsubscribeFromTrack(ctx context.Context, trackSid string) error
	SubscribeToAllTracks(ctx context.Context) error
	AddDataConsumer(ctx context.Context, producerID string, params AddDataConsumerParams) (DataConsumer, error)

	// Local capabilities, wired into the local participant on join.
	EnableCamera(ctx context.Context, enabled bool) error
	EnableMicrophone(ctx context.Context, enabled bool) error
	PublishData(ctx context.Context, kind DataPacketKind, payload any) error
}

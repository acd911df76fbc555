// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
)

func testLogger(tb testing.TB) *slog.Logger {
	tb.Helper()
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeTransport records the calls the handlers make against the transport
// boundary.
type fakeTransport struct {
	mut sync.Mutex

	initialized        int
	dataProviderInits  int
	subscribed         []string
	unsubscribed       []string
	subscribeAllCalls  int
	subscribeErr       error
	addedDataConsumers []AddDataConsumerParams
	dataConsumer       *fakeDataConsumer
	dataConsumerErr    error
	publishedData      []any
}

func (t *fakeTransport) EnsureWebRTCInitialized(_ context.Context) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.initialized++
	return nil
}

func (t *fakeTransport) InitDataProvider(_ context.Context) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.dataProviderInits++
	return nil
}

func (t *fakeTransport) SubscribeToTrack(_ context.Context, trackSid string) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.subscribeErr != nil {
		return t.subscribeErr
	}
	t.subscribed = append(t.subscribed, trackSid)
	return nil
}

func (t *fakeTransport) UnsubscribeFromTrack(_ context.Context, trackSid string) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.unsubscribed = append(t.unsubscribed, trackSid)
	return nil
}

func (t *fakeTransport) SubscribeToAllTracks(_ context.Context) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.subscribeAllCalls++
	return nil
}

func (t *fakeTransport) AddDataConsumer(_ context.Context, _ string, params AddDataConsumerParams) (DataConsumer, error) {
	t.mut.Lock()
	defer t.mut.Unlock()
	if t.dataConsumerErr != nil {
		return nil, t.dataConsumerErr
	}
	t.addedDataConsumers = append(t.addedDataConsumers, params)
	if t.dataConsumer == nil {
		t.dataConsumer = &fakeDataConsumer{label: params.Label}
	}
	return t.dataConsumer, nil
}

func (t *fakeTransport) EnableCamera(_ context.Context, _ bool) error {
	return nil
}

func (t *fakeTransport) EnableMicrophone(_ context.Context, _ bool) error {
	return nil
}

func (t *fakeTransport) PublishData(_ context.Context, _ DataPacketKind, payload any) error {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.publishedData = append(t.publishedData, payload)
	return nil
}

func (t *fakeTransport) subscribedTracks() []string {
	t.mut.Lock()
	defer t.mut.Unlock()
	out := make([]string, len(t.subscribed))
	copy(out, t.subscribed)
	return out
}

// fakeDataConsumer captures the callbacks bound by the
// data_consumer_created handler so tests can drive them.
type fakeDataConsumer struct {
	mut sync.Mutex

	label     string
	onMessage func(payload []byte)
	onClose   func()
	onError   func(err error)
	closed    bool
}

func (c *fakeDataConsumer) Label() string {
	return c.label
}

func (c *fakeDataConsumer) OnMessage(cb func(payload []byte)) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.onMessage = cb
}

func (c *fakeDataConsumer) OnClose(cb func()) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.onClose = cb
}

func (c *fakeDataConsumer) OnError(cb func(err error)) {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.onError = cb
}

func (c *fakeDataConsumer) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()
	c.closed = true
	return nil
}

func (c *fakeDataConsumer) deliver(payload []byte) {
	c.mut.Lock()
	cb := c.onMessage
	c.mut.Unlock()
	if cb != nil {
		cb(payload)
	}
}

// fakeRemoteTrack is a minimal transport handle for publication tests.
type fakeRemoteTrack struct {
	mut          sync.Mutex
	id           string
	kind         TrackKind
	unsubscribed bool
}

func (t *fakeRemoteTrack) ID() string {
	return t.id
}

func (t *fakeRemoteTrack) Kind() TrackKind {
	return t.kind
}

func (t *fakeRemoteTrack) OnUnsubscribed() {
	t.mut.Lock()
	defer t.mut.Unlock()
	t.unsubscribed = true
}

func (t *fakeRemoteTrack) wasUnsubscribed() bool {
	t.mut.Lock()
	defer t.mut.Unlock()
	return t.unsubscribed
}

// fakeStatsProvider returns a fixed stats sample, or an error.
type fakeStatsProvider struct {
	mut   sync.Mutex
	stats TransportStats
	err   error
}

func (p *fakeStatsProvider) GetStats(_ context.Context) (TransportStats, error) {
	p.mut.Lock()
	defer p.mut.Unlock()
	return p.stats, p.err
}

func (p *fakeStatsProvider) set(stats TransportStats) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.stats = stats
}

// fakeLayerSetter records the last applied simulcast caps.
type fakeLayerSetter struct {
	mut      sync.Mutex
	spatial  []int
	temporal []int
}

func (s *fakeLayerSetter) SetMaxSpatialLayer(layer int) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.spatial = append(s.spatial, layer)
	return nil
}

func (s *fakeLayerSetter) SetMaxTemporalLayer(layer int) error {
	s.mut.Lock()
	defer s.mut.Unlock()
	s.temporal = append(s.temporal, layer)
	return nil
}

func (s *fakeLayerSetter) lastApplied() (int, int, bool) {
	s.mut.Lock()
	defer s.mut.Unlock()
	if len(s.spatial) == 0 || len(s.temporal) == 0 {
		return 0, 0, false
	}
	return s.spatial[len(s.spatial)-1], s.temporal[len(s.temporal)-1], true
}

// newHandlerContext builds a context with a synchronous Go runner so
// deferred transport work completes before the handler returns.
func newHandlerContext(tb testing.TB, transport TransportController) *HandlerContext {
	tb.Helper()
	return &HandlerContext{
		Room:      NewRoomState(),
		Transport: transport,
		Emitter:   NewEmitter(nil, 0),
		Send: func(_ Message) error {
			return nil
		},
		Log:           testLogger(tb),
		AutoSubscribe: true,
		Go: func(_ string, fn func(ctx context.Context) error) {
			_ = fn(context.Background())
		},
	}
}

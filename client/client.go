// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pulsewave/pulsewave/derrors"
	"github.com/pulsewave/pulsewave/service/ws"
)

const (
	transportTimeout = 10 * time.Second
)

const (
	clientStateNew int32 = iota
	clientStateConnected
	clientStateClosing
	clientStateClosed
)

// Client is the PulseWave room client: it owns the signaling carrier, the
// handler registry, the room state and the top-level emitter. All room
// mutations happen on the single dispatch goroutine, in frame arrival
// order.
type Client struct {
	cfg Config
	log *slog.Logger

	emitter   *Emitter
	registry  *Registry
	room      *RoomState
	transport TransportController

	ws       *ws.Client
	wsDoneCh chan struct{}

	monitor  *QualityMonitor
	adaptive *AdaptiveController

	deferredCtx    context.Context
	deferredCancel context.CancelFunc
	deferredWG     sync.WaitGroup

	state int32

	mut sync.RWMutex
}

type Option func(c *Client) error

func WithLogger(log *slog.Logger) Option {
	return func(c *Client) error {
		c.log = log
		return nil
	}
}

// WithTransport injects the WebRTC transport binding the handlers drive.
func WithTransport(t TransportController) Option {
	return func(c *Client) error {
		c.transport = t
		return nil
	}
}

// New initializes and returns a new PulseWave client.
func New(cfg Config, opts ...Option) (*Client, error) {
	if err := cfg.Parse(); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	c := &Client{
		cfg:      cfg,
		wsDoneCh: make(chan struct{}),
	}

	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if c.log == nil {
		c.log = slog.Default()
	}

	c.emitter = NewEmitter(c.log, cfg.MaxListeners)
	c.registry = NewRegistry(c.log)
	registerDefaultHandlers(c.registry)
	c.room = NewRoomState()
	c.deferredCtx, c.deferredCancel = context.WithCancel(context.Background())

	return c, nil
}

// Connect dials the signaling endpoint and starts the dispatch loop.
func (c *Client) Connect() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if !atomic.CompareAndSwapInt32(&c.state, clientStateNew, clientStateConnected) {
		return derrors.NewInvalidState("client is already connected")
	}

	wsClient, err := ws.NewClient(ws.ClientConfig{
		URL:       c.cfg.wsURL,
		AuthType:  ws.BasicClientAuthType,
		AuthToken: base64.StdEncoding.EncodeToString([]byte(c.cfg.ClientID + ":" + c.cfg.AuthToken)),
	})
	if err != nil {
		atomic.StoreInt32(&c.state, clientStateNew)
		return fmt.Errorf("failed to create ws client: %w", err)
	}
	c.ws = wsClient

	go c.msgReader()

	return nil
}

// Room returns the room state store.
func (c *Client) Room() *RoomState {
	return c.room
}

// Registry returns the handler registry. Mutation after Connect is
// permitted, dispatch takes a brief exclusion window.
func (c *Client) Registry() *Registry {
	return c.registry
}

// On registers an event listener and returns its unregister function.
func (c *Client) On(event EventType, h EventHandler) func() {
	return c.emitter.On(event, h)
}

// Once registers a listener removed before its first invocation.
func (c *Client) Once(event EventType, h EventHandler) func() {
	return c.emitter.Once(event, h)
}

// Off removes the registration for the (event, handler) pair.
func (c *Client) Off(event EventType, h EventHandler) {
	c.emitter.Off(event, h)
}

// Join asks the server to place this connection in the given room. The
// server answers with a joined frame which populates the room state.
func (c *Client) Join(roomID, identity string) error {
	return c.send(NewMessage(JoinMessage, map[string]any{
		"roomID":   roomID,
		"identity": identity,
	}))
}

// Leave removes this connection from its room.
func (c *Client) Leave() error {
	return c.send(NewMessage(LeaveMessage, nil))
}

// SendData publishes a data frame to the room.
func (c *Client) SendData(kind DataPacketKind, value any) error {
	return c.send(NewMessage(DataMessage, map[string]any{
		"kind":  string(kind),
		"value": value,
	}))
}

// SubscribeTrack requests a subscription to a remote track.
func (c *Client) SubscribeTrack(trackSid string) error {
	return c.send(NewMessage(SubscribeMessage, map[string]any{
		"trackSid": trackSid,
	}))
}

// UnsubscribeTrack releases a subscription to a remote track.
func (c *Client) UnsubscribeTrack(trackSid string) error {
	return c.send(NewMessage(UnsubscribeMessage, map[string]any{
		"trackSid": trackSid,
	}))
}

// RequestCall starts a 1-to-1 call with the target participant.
func (c *Client) RequestCall(targetSid string, metadata map[string]any) error {
	return c.send(NewMessage(CallRequestMessage, map[string]any{
		"targetSid": targetSid,
		"metadata":  metadata,
	}))
}

// EnableAdaptiveBitrate starts the quality monitor on the given stats
// provider and wires the adaptive controller to the given consumer.
func (c *Client) EnableAdaptiveBitrate(provider StatsProvider, setter LayerSetter) error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if c.monitor != nil {
		return derrors.NewInvalidState("adaptive bitrate is already enabled")
	}

	c.adaptive = NewAdaptiveController(setter, c.emitter, c.log)
	c.adaptive.Start()
	c.monitor = NewQualityMonitor(c.cfg.Monitor, provider, c.emitter, c.log)
	c.monitor.Start()

	return nil
}

// AdaptiveController returns the controller, or nil when adaptive bitrate
// is not enabled.
func (c *Client) AdaptiveController() *AdaptiveController {
	c.mut.RLock()
	defer c.mut.RUnlock()
	return c.adaptive
}

// Close permanently disconnects the client. Teardown order: stop reading
// frames, cancel deferred transport work, stop the monitor, drop all
// listeners, clear the room.
func (c *Client) Close() error {
	c.mut.Lock()
	defer c.mut.Unlock()

	if !atomic.CompareAndSwapInt32(&c.state, clientStateConnected, clientStateClosing) {
		return derrors.NewInvalidState("client is not connected")
	}

	err := c.ws.Close()
	<-c.wsDoneCh

	c.deferredCancel()
	c.deferredWG.Wait()

	if c.monitor != nil {
		c.monitor.Stop()
		c.monitor = nil
	}
	if c.adaptive != nil {
		c.adaptive.Stop()
		c.adaptive = nil
	}

	c.emitter.RemoveAll()
	c.room.Clear()
	c.transport = nil

	atomic.StoreInt32(&c.state, clientStateClosed)

	return err
}

func (c *Client) send(msg Message) error {
	c.mut.RLock()
	wsClient := c.ws
	c.mut.RUnlock()

	if wsClient == nil || atomic.LoadInt32(&c.state) != clientStateConnected {
		return derrors.NewInvalidState("client is not connected")
	}

	data, err := msg.Pack()
	if err != nil {
		return fmt.Errorf("failed to pack message: %w", err)
	}
	return wsClient.Send(ws.BinaryMessage, data)
}

func (c *Client) handlerContext() *HandlerContext {
	return &HandlerContext{
		Room:          c.room,
		Transport:     c.transport,
		Emitter:       c.emitter,
		Send:          c.send,
		Log:           c.log,
		AutoSubscribe: c.cfg.AutoSubscribe,
		Go:            c.deferredGo,
	}
}

// deferredGo runs transport work off the dispatch goroutine so message
// ingestion never blocks on remote acknowledgements. Failures are logged,
// timeouts surface as Timeout domain errors.
func (c *Client) deferredGo(op string, fn func(ctx context.Context) error) {
	c.deferredWG.Add(1)
	go func() {
		defer c.deferredWG.Done()

		ctx, cancel := context.WithTimeout(c.deferredCtx, transportTimeout)
		defer cancel()

		err := fn(ctx)
		if err == nil {
			return
		}

		derr := derrors.ToDomainError(err)
		if errors.Is(err, context.DeadlineExceeded) {
			derr = derrors.NewTimeout(op, transportTimeout)
		}
		c.log.Error("deferred transport call failed",
			slog.String("op", op), slog.String("err", derr.Error()))
	}()
}

// msgReader is the single dispatch loop: frames are decoded and dispatched
// in arrival order, one at a time.
func (c *Client) msgReader() {
	defer close(c.wsDoneCh)

	hctx := c.handlerContext()

	for {
		select {
		case msg, ok := <-c.ws.ReceiveCh():
			if !ok {
				return
			}
			if msg.Type != ws.BinaryMessage {
				c.log.Warn("dropping frame with unexpected carrier type")
				continue
			}

			var m Message
			if err := m.Unpack(msg.Data); err != nil {
				c.log.Warn("failed to unpack frame", slog.String("err", err.Error()))
				continue
			}

			c.registry.Dispatch(hctx, m)
		case err := <-c.ws.ErrorCh():
			if err != nil {
				c.log.Error("ws error", slog.String("err", err.Error()))
			}
		}
	}
}

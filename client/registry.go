// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"log/slog"
	"sync"
)

// HandlerContext exposes everything a signaling handler may touch: the room
// store, the transport controller, the carrier send and the top-level
// emitter. Handlers close over nothing else.
type HandlerContext struct {
	Room      *RoomState
	Transport TransportController
	Emitter   *Emitter
	Send      func(msg Message) error
	Log       *slog.Logger

	// AutoSubscribe mirrors the client option: subscribe to existing and
	// newly published tracks without an explicit request.
	AutoSubscribe bool

	// Go schedules deferred transport work. It must not block; failures
	// are logged by the runner and never fail the dispatch.
	Go func(op string, fn func(ctx context.Context) error)
}

// HandlerFunc handles a single inbound message type.
type HandlerFunc func(ctx *HandlerContext, msg Message) error

// Registry maps message type tags to handlers. Dispatch is total: malformed
// frames, unknown types and handler failures are logged and dropped so that
// protocol additions on the server never take down older clients.
type Registry struct {
	log      *slog.Logger
	handlers map[string]HandlerFunc

	mut sync.RWMutex
}

func NewRegistry(log *slog.Logger) *Registry {
	if log == nil {
		log = slog.Default()
	}
	return &Registry{
		log:      log,
		handlers: make(map[string]HandlerFunc),
	}
}

// Register inserts the handler keyed by message type. Re-registration
// overwrites, which lets tests inject doubles.
func (r *Registry) Register(msgType string, h HandlerFunc) {
	if msgType == "" || h == nil {
		return
	}
	r.mut.Lock()
	defer r.mut.Unlock()
	r.handlers[msgType] = h
}

func (r *Registry) Unregister(msgType string) {
	r.mut.Lock()
	defer r.mut.Unlock()
	delete(r.handlers, msgType)
}

func (r *Registry) Get(msgType string) HandlerFunc {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.handlers[msgType]
}

func (r *Registry) Has(msgType string) bool {
	return r.Get(msgType) != nil
}

func (r *Registry) Types() []string {
	r.mut.RLock()
	defer r.mut.RUnlock()
	types := make([]string, 0, len(r.handlers))
	for t := range r.handlers {
		types = append(types, t)
	}
	return types
}

func (r *Registry) Clear() {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.handlers = make(map[string]HandlerFunc)
}

// Dispatch routes the message to its handler. It never panics and never
// returns an error to the dispatch loop.
func (r *Registry) Dispatch(ctx *HandlerContext, msg Message) {
	if msg.Type == "" {
		r.log.Warn("registry: dropping frame with missing type")
		return
	}

	h := r.Get(msg.Type)
	if h == nil {
		r.log.Warn("registry: dropping frame with unknown type",
			slog.String("type", msg.Type))
		return
	}

	defer func() {
		if rec := recover(); rec != nil {
			r.log.Error("registry: handler panicked",
				slog.String("type", msg.Type), slog.Any("panic", rec))
		}
	}()

	if err := h(ctx, msg); err != nil {
		r.log.Error("registry: handler failed",
			slog.String("type", msg.Type), slog.String("err", err.Error()))
	}
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"log/slog"
	"reflect"
	"sync"
)

type EventType string

const (
	LocalParticipantJoinedEvent EventType = "local-participant-joined"
	ParticipantJoinedEvent      EventType = "participant-joined"
	ParticipantLeftEvent        EventType = "participant-left"
	TrackPublishedEvent         EventType = "track-published"
	TrackUnpublishedEvent       EventType = "track-unpublished"
	TrackMutedEvent             EventType = "track-muted"
	TrackUnmutedEvent           EventType = "track-unmuted"
	TrackUnsubscribedEvent      EventType = "track-unsubscribed"
	DataReceivedEvent           EventType = "data-received"
	CallReceivedEvent           EventType = "call-received"
	CallAcceptedEvent           EventType = "call-accepted"
	CallRejectedEvent           EventType = "call-rejected"
	ErrorEvent                  EventType = "error"
	LayerChangedEvent           EventType = "layer-changed"
	QualityAdjustedEvent        EventType = "quality-adjusted"
	QualityUpdateEvent          EventType = "quality-update"
	QualityChangeEvent          EventType = "quality-change"
)

type EventHandler func(ctx any)

const defaultMaxListeners = 10

type eventListener struct {
	fn   EventHandler
	once bool
}

// Emitter is a publish/subscribe primitive for client events. Every call to
// On or Once creates its own registration, distinct closures built from the
// same function literal register independently. Listeners invoked during an
// emission see a snapshot of the registrations taken when the emission
// started, mutations apply from the next emission on.
type Emitter struct {
	log          *slog.Logger
	maxListeners int

	listeners map[EventType][]*eventListener

	mut sync.RWMutex
}

// NewEmitter returns a new emitter. A maxListeners value of zero applies
// the default threshold (10).
func NewEmitter(log *slog.Logger, maxListeners int) *Emitter {
	if log == nil {
		log = slog.Default()
	}
	if maxListeners <= 0 {
		maxListeners = defaultMaxListeners
	}
	return &Emitter{
		log:          log,
		maxListeners: maxListeners,
		listeners:    make(map[EventType][]*eventListener),
	}
}

func handlerID(h EventHandler) uintptr {
	return reflect.ValueOf(h).Pointer()
}

// On registers a listener for the given event and returns a function that
// removes exactly this registration. The returned function is the only
// precise removal handle, registrations are never deduplicated.
func (e *Emitter) On(event EventType, h EventHandler) func() {
	return e.register(event, h, false)
}

// Once registers a listener that unregisters itself right before its first
// invocation.
func (e *Emitter) Once(event EventType, h EventHandler) func() {
	return e.register(event, h, true)
}

func (e *Emitter) register(event EventType, h EventHandler, once bool) func() {
	if h == nil {
		return func() {}
	}

	e.mut.Lock()
	defer e.mut.Unlock()

	l := &eventListener{fn: h, once: once}
	e.listeners[event] = append(e.listeners[event], l)

	if n := len(e.listeners[event]); n > e.maxListeners {
		e.log.Warn("emitter: max listeners threshold exceeded",
			slog.String("event", string(event)), slog.Int("count", n))
	}

	return func() { e.remove(event, l) }
}

// Off removes the earliest registration whose handler shares the given
// function's code pointer. Closures built from the same literal share one
// code pointer, so removal by function is best effort: prefer the function
// returned by On when the exact registration matters.
func (e *Emitter) Off(event EventType, h EventHandler) {
	if h == nil {
		return
	}

	e.mut.Lock()
	defer e.mut.Unlock()

	id := handlerID(h)
	for _, l := range e.listeners[event] {
		if handlerID(l.fn) == id {
			e.removeLocked(event, l)
			return
		}
	}
}

// RemoveAll drops all listeners for the given events, or every listener if
// no event is given.
func (e *Emitter) RemoveAll(events ...EventType) {
	e.mut.Lock()
	defer e.mut.Unlock()

	if len(events) == 0 {
		e.listeners = make(map[EventType][]*eventListener)
		return
	}
	for _, event := range events {
		delete(e.listeners, event)
	}
}

// ListenerCount returns the number of listeners registered for the event.
func (e *Emitter) ListenerCount(event EventType) int {
	e.mut.RLock()
	defer e.mut.RUnlock()
	return len(e.listeners[event])
}

// Emit invokes all listeners registered for the event at the time of the
// call. A panicking listener is logged and does not prevent delivery to the
// remaining listeners.
func (e *Emitter) Emit(event EventType, ctx any) {
	e.mut.Lock()
	snapshot := make([]*eventListener, len(e.listeners[event]))
	copy(snapshot, e.listeners[event])
	for _, l := range snapshot {
		if l.once {
			e.removeLocked(event, l)
		}
	}
	e.mut.Unlock()

	for _, l := range snapshot {
		e.invoke(event, l, ctx)
	}
}

func (e *Emitter) invoke(event EventType, l *eventListener, ctx any) {
	defer func() {
		if r := recover(); r != nil {
			e.log.Error("emitter: listener panicked",
				slog.String("event", string(event)), slog.Any("panic", r))
		}
	}()
	l.fn(ctx)
}

func (e *Emitter) remove(event EventType, l *eventListener) {
	e.mut.Lock()
	defer e.mut.Unlock()
	e.removeLocked(event, l)
}

func (e *Emitter) removeLocked(event EventType, l *eventListener) {
	ls := e.listeners[event]
	for i := range ls {
		if ls[i] == l {
			e.listeners[event] = append(ls[:i:i], ls[i+1:]...)
			return
		}
	}
}

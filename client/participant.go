// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"context"
	"log/slog"
	"sync"
)

type ParticipantState string

const (
	ParticipantStateJoining      ParticipantState = "joining"
	ParticipantStateConnected    ParticipantState = "connected"
	ParticipantStateDisconnected ParticipantState = "disconnected"
	ParticipantStateReconnecting ParticipantState = "reconnecting"
)

// LocalCapabilities are the actions a local participant can perform.
// They are injected at construction so that no event can observe a local
// participant whose callbacks are not wired yet.
type LocalCapabilities struct {
	EnableCamera     func(ctx context.Context, enabled bool) error
	EnableMicrophone func(ctx context.Context, enabled bool) error
	PublishData      func(ctx context.Context, kind DataPacketKind, payload any) error
}

// TrackEvent is the payload for track related events.
type TrackEvent struct {
	Participant *Participant
	Publication *TrackPublication
	Track       RemoteTrack
}

// Participant is the in-memory model of a room member and its owned set of
// track publications.
type Participant struct {
	log     *slog.Logger
	emitter *Emitter

	sid      string
	identity string
	name     string
	metadata map[string]any
	state    ParticipantState
	isLocal  bool

	capabilities *LocalCapabilities
	subscribeFn  func(trackSid string, subscribe bool) error

	tracks map[string]*TrackPublication

	mut sync.RWMutex
}

func newParticipant(info ParticipantInfo, emitter *Emitter, log *slog.Logger, isLocal bool) *Participant {
	p := &Participant{
		log:      log,
		emitter:  emitter,
		sid:      info.Sid,
		identity: info.Identity,
		name:     info.Name,
		metadata: info.Metadata,
		state:    ParticipantStateJoining,
		isLocal:  isLocal,
		tracks:   make(map[string]*TrackPublication),
	}
	for _, ti := range info.Tracks {
		if ti.Sid == "" {
			continue
		}
		p.tracks[ti.Sid] = newTrackPublication(ti, info.Sid)
	}
	return p
}

func newLocalParticipant(info ParticipantInfo, caps *LocalCapabilities, emitter *Emitter, log *slog.Logger) *Participant {
	p := newParticipant(info, emitter, log, true)
	p.capabilities = caps
	return p
}

func (p *Participant) Sid() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.sid
}

func (p *Participant) Identity() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.identity
}

func (p *Participant) Name() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.name
}

func (p *Participant) Metadata() map[string]any {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.metadata
}

func (p *Participant) State() ParticipantState {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.state
}

func (p *Participant) setState(state ParticipantState) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.state = state
}

func (p *Participant) IsLocal() bool {
	return p.isLocal
}

// Capabilities returns the injected local actions. It returns nil for
// remote participants.
func (p *Participant) Capabilities() *LocalCapabilities {
	return p.capabilities
}

func (p *Participant) setSubscribeFn(fn func(trackSid string, subscribe bool) error) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.subscribeFn = fn
}

// Subscribe requests a subscription to one of this participant's tracks
// through the callback wired by the joined/participant_joined handlers.
func (p *Participant) Subscribe(trackSid string) error {
	p.mut.RLock()
	fn := p.subscribeFn
	p.mut.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(trackSid, true)
}

// Unsubscribe releases the subscription to one of this participant's tracks.
func (p *Participant) Unsubscribe(trackSid string) error {
	p.mut.RLock()
	fn := p.subscribeFn
	p.mut.RUnlock()
	if fn == nil {
		return nil
	}
	return fn(trackSid, false)
}

// GetTrack returns the publication with the given sid, or nil.
func (p *Participant) GetTrack(trackSid string) *TrackPublication {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.tracks[trackSid]
}

// Tracks returns a snapshot of the participant's publications.
func (p *Participant) Tracks() []*TrackPublication {
	p.mut.RLock()
	defer p.mut.RUnlock()
	tracks := make([]*TrackPublication, 0, len(p.tracks))
	for _, pub := range p.tracks {
		tracks = append(tracks, pub)
	}
	return tracks
}

// addTrack inserts the descriptor, deduplicated on trackSid. It returns the
// publication and whether it was newly created.
func (p *Participant) addTrack(info TrackInfo) (*TrackPublication, bool) {
	p.mut.Lock()
	defer p.mut.Unlock()

	if pub := p.tracks[info.Sid]; pub != nil {
		pub.updateInfo(info)
		return pub, false
	}
	pub := newTrackPublication(info, p.sid)
	p.tracks[info.Sid] = pub
	return pub, true
}

func (p *Participant) removeTrack(trackSid string) *TrackPublication {
	p.mut.Lock()
	defer p.mut.Unlock()
	pub := p.tracks[trackSid]
	delete(p.tracks, trackSid)
	return pub
}

// UpdateInfo reconciles the participant against a fresh server-side view.
// Scalars are assigned, new tracks are published, known tracks get their
// mute state refreshed and tracks absent from the new view are unpublished.
// This is the single reconciliation point; targeted track events layer on
// top of it.
func (p *Participant) UpdateInfo(info ParticipantInfo) {
	p.mut.Lock()
	if info.Identity != "" {
		p.identity = info.Identity
	}
	if info.Name != "" {
		p.name = info.Name
	}
	if info.Metadata != nil {
		p.metadata = info.Metadata
	}

	seen := make(map[string]bool, len(info.Tracks))
	var published []*TrackPublication
	var unpublished []*TrackPublication

	for _, ti := range info.Tracks {
		if ti.Sid == "" {
			continue
		}
		seen[ti.Sid] = true
		if pub := p.tracks[ti.Sid]; pub != nil {
			pub.setMuted(ti.Muted)
			continue
		}
		pub := newTrackPublication(ti, p.sid)
		p.tracks[ti.Sid] = pub
		published = append(published, pub)
	}

	for sid, pub := range p.tracks {
		if !seen[sid] {
			delete(p.tracks, sid)
			pub.ClearTrack()
			unpublished = append(unpublished, pub)
		}
	}
	p.mut.Unlock()

	for _, pub := range published {
		p.emitter.Emit(TrackPublishedEvent, TrackEvent{Participant: p, Publication: pub})
	}
	for _, pub := range unpublished {
		p.emitter.Emit(TrackUnpublishedEvent, TrackEvent{Participant: p, Publication: pub})
	}
}

// close tears the participant down: the subscribe callback is dropped and
// all publications release their transport handles.
func (p *Participant) close() {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.subscribeFn = nil
	p.state = ParticipantStateDisconnected
	for _, pub := range p.tracks {
		pub.ClearTrack()
	}
}

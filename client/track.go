// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"sync"
)

type TrackKind string

const (
	TrackKindAudio TrackKind = "audio"
	TrackKindVideo TrackKind = "video"
	TrackKindData  TrackKind = "data"
)

// TrackPublication represents an advertised track, independently of whether
// a transport-level handle is attached. The publication holds the sid of its
// owning participant rather than a back-pointer so that teardown never has
// to break reference cycles.
type TrackPublication struct {
	info           TrackInfo
	participantSid string
	track          RemoteTrack

	mut sync.RWMutex
}

func newTrackPublication(info TrackInfo, participantSid string) *TrackPublication {
	return &TrackPublication{
		info:           info,
		participantSid: participantSid,
	}
}

func (p *TrackPublication) Sid() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info.Sid
}

func (p *TrackPublication) Name() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info.Name
}

func (p *TrackPublication) Kind() TrackKind {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info.Kind
}

func (p *TrackPublication) Source() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info.Source
}

func (p *TrackPublication) IsMuted() bool {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info.Muted
}

func (p *TrackPublication) setMuted(muted bool) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.info.Muted = muted
}

// ParticipantSid returns the sid of the participant owning this publication.
func (p *TrackPublication) ParticipantSid() string {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.participantSid
}

// Track returns the attached transport handle, or nil while unsubscribed.
func (p *TrackPublication) Track() RemoteTrack {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.track
}

// IsSubscribed reports whether a transport handle is attached.
func (p *TrackPublication) IsSubscribed() bool {
	return p.Track() != nil
}

func (p *TrackPublication) setTrack(track RemoteTrack) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.track = track
}

// ClearTrack detaches the transport handle while preserving the publication
// record, permitting transparent reuse on re-publish. It returns the handle
// that was attached, if any.
func (p *TrackPublication) ClearTrack() RemoteTrack {
	p.mut.Lock()
	defer p.mut.Unlock()
	track := p.track
	p.track = nil
	return track
}

func (p *TrackPublication) updateInfo(info TrackInfo) {
	p.mut.Lock()
	defer p.mut.Unlock()
	p.info = info
}

func (p *TrackPublication) Info() TrackInfo {
	p.mut.RLock()
	defer p.mut.RUnlock()
	return p.info
}

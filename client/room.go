// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"sync"
)

// RoomState is the authoritative per-connection view of a room: its info,
// the local participant and the remote participants keyed by sid.
//
// Invariants: at most one participant per sid, identities are unique across
// participants, a track belongs to exactly one participant and the local
// participant never appears in the remote map.
type RoomState struct {
	info            RoomInfo
	rtpCapabilities any
	local           *Participant
	participants    map[string]*Participant

	mut sync.RWMutex
}

func NewRoomState() *RoomState {
	return &RoomState{
		participants: make(map[string]*Participant),
	}
}

func (r *RoomState) SetInfo(info RoomInfo) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.info = info
}

func (r *RoomState) Info() RoomInfo {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.info
}

// SetRTPCapabilities stores the server's RTP capabilities blob. The value
// is opaque to the core and only relayed to the transport layer.
func (r *RoomState) SetRTPCapabilities(caps any) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.rtpCapabilities = caps
}

func (r *RoomState) RTPCapabilities() any {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.rtpCapabilities
}

func (r *RoomState) SetLocalParticipant(p *Participant) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.local = p
	if p != nil {
		// The local participant never lives in the remote map.
		delete(r.participants, p.Sid())
	}
}

func (r *RoomState) LocalParticipant() *Participant {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.local
}

// AddParticipant inserts a remote participant. A participant with the same
// sid is replaced; a participant with the same identity under a different
// sid is dropped first to keep identities unique.
func (r *RoomState) AddParticipant(p *Participant) {
	if p == nil {
		return
	}

	r.mut.Lock()
	defer r.mut.Unlock()

	if r.local != nil && r.local.Sid() == p.Sid() {
		return
	}

	for sid, existing := range r.participants {
		if sid != p.Sid() && existing.Identity() == p.Identity() {
			existing.close()
			delete(r.participants, sid)
		}
	}

	r.participants[p.Sid()] = p
}

// GetParticipant returns the remote participant with the given sid, or the
// local participant when the sid matches it.
func (r *RoomState) GetParticipant(sid string) *Participant {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if r.local != nil && r.local.Sid() == sid {
		return r.local
	}
	return r.participants[sid]
}

func (r *RoomState) GetParticipantByIdentity(identity string) *Participant {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if r.local != nil && r.local.Identity() == identity {
		return r.local
	}
	for _, p := range r.participants {
		if p.Identity() == identity {
			return p
		}
	}
	return nil
}

// RemoveParticipant drops the remote participant and atomically tears down
// all its publications. It returns the removed participant, or nil.
func (r *RoomState) RemoveParticipant(sid string) *Participant {
	r.mut.Lock()
	p := r.participants[sid]
	delete(r.participants, sid)
	r.mut.Unlock()

	if p != nil {
		p.close()
	}
	return p
}

// Participants returns a snapshot of the remote participants.
func (r *RoomState) Participants() []*Participant {
	r.mut.RLock()
	defer r.mut.RUnlock()
	out := make([]*Participant, 0, len(r.participants))
	for _, p := range r.participants {
		out = append(out, p)
	}
	return out
}

// FindTrack locates the unique owner of the given track sid.
func (r *RoomState) FindTrack(trackSid string) (*Participant, *TrackPublication) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if r.local != nil {
		if pub := r.local.GetTrack(trackSid); pub != nil {
			return r.local, pub
		}
	}
	for _, p := range r.participants {
		if pub := p.GetTrack(trackSid); pub != nil {
			return p, pub
		}
	}
	return nil, nil
}

// Clear resets the store, tearing down every participant.
func (r *RoomState) Clear() {
	r.mut.Lock()
	local := r.local
	participants := r.participants
	r.local = nil
	r.participants = make(map[string]*Participant)
	r.info = RoomInfo{}
	r.rtpCapabilities = nil
	r.mut.Unlock()

	if local != nil {
		local.close()
	}
	for _, p := range participants {
		p.close()
	}
}

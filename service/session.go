// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"fmt"
	"sync"
	"time"
)

// session tracks one authenticated ws connection and, once joined, its
// place in a room.
type session struct {
	connID   string
	clientID string

	roomID   string
	sid      string
	identity string
	name     string
	joinedAt time.Time
}

func (s *session) participantData() map[string]any {
	return map[string]any{
		"sid":      s.sid,
		"identity": s.identity,
		"name":     s.name,
	}
}

type room struct {
	id        string
	createdAt time.Time
	sessions  map[string]*session
}

func (r *room) infoData() map[string]any {
	return map[string]any{
		"id":        r.id,
		"name":      r.id,
		"createdAt": r.createdAt.UnixMilli(),
	}
}

// sessionRegistry maps ws connections to sessions and rooms so signaling
// frames can be fanned out to room members.
type sessionRegistry struct {
	sessions map[string]*session
	rooms    map[string]*room

	mut sync.RWMutex
}

func newSessionRegistry() *sessionRegistry {
	return &sessionRegistry{
		sessions: make(map[string]*session),
		rooms:    make(map[string]*room),
	}
}

func (r *sessionRegistry) add(connID, clientID string) {
	r.mut.Lock()
	defer r.mut.Unlock()
	r.sessions[connID] = &session{
		connID:   connID,
		clientID: clientID,
	}
}

func (r *sessionRegistry) get(connID string) *session {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return r.sessions[connID]
}

// join places the connection's session in the given room. It returns the
// joining session, the other members at join time and whether the room was
// created by this join.
func (r *sessionRegistry) join(connID, roomID, sid, identity, name string) (*session, []*session, bool, error) {
	r.mut.Lock()
	defer r.mut.Unlock()

	s := r.sessions[connID]
	if s == nil {
		return nil, nil, false, fmt.Errorf("no session for connection %q", connID)
	}
	if s.roomID != "" {
		return nil, nil, false, fmt.Errorf("session already joined room %q", s.roomID)
	}

	var created bool
	rm := r.rooms[roomID]
	if rm == nil {
		rm = &room{
			id:        roomID,
			createdAt: time.Now(),
			sessions:  make(map[string]*session),
		}
		r.rooms[roomID] = rm
		created = true
	}

	others := make([]*session, 0, len(rm.sessions))
	for _, other := range rm.sessions {
		others = append(others, other)
	}

	s.roomID = roomID
	s.sid = sid
	s.identity = identity
	s.name = name
	s.joinedAt = time.Now()
	rm.sessions[connID] = s

	return s, others, created, nil
}

// leave removes the connection's session from its room. It returns the
// leaving session, the remaining members and whether the room was dropped.
func (r *sessionRegistry) leave(connID string) (*session, []*session, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()
	return r.leaveLocked(connID)
}

func (r *sessionRegistry) leaveLocked(connID string) (*session, []*session, bool) {
	s := r.sessions[connID]
	if s == nil || s.roomID == "" {
		return nil, nil, false
	}

	rm := r.rooms[s.roomID]
	if rm == nil {
		return nil, nil, false
	}
	delete(rm.sessions, connID)

	var dropped bool
	remaining := make([]*session, 0, len(rm.sessions))
	for _, other := range rm.sessions {
		remaining = append(remaining, other)
	}
	if len(rm.sessions) == 0 {
		delete(r.rooms, s.roomID)
		dropped = true
	}

	left := *s
	s.roomID = ""
	s.sid = ""

	return &left, remaining, dropped
}

// remove drops the session entirely, leaving its room first if needed.
func (r *sessionRegistry) remove(connID string) (*session, []*session, bool) {
	r.mut.Lock()
	defer r.mut.Unlock()

	left, remaining, dropped := r.leaveLocked(connID)
	delete(r.sessions, connID)
	return left, remaining, dropped
}

// roomMembers returns the sessions currently in the connection's room,
// excluding the connection itself.
func (r *sessionRegistry) roomMembers(connID string) []*session {
	r.mut.RLock()
	defer r.mut.RUnlock()

	s := r.sessions[connID]
	if s == nil || s.roomID == "" {
		return nil
	}
	rm := r.rooms[s.roomID]
	if rm == nil {
		return nil
	}

	members := make([]*session, 0, len(rm.sessions))
	for id, other := range rm.sessions {
		if id == connID {
			continue
		}
		members = append(members, other)
	}
	return members
}

// findBySid returns the room member with the given participant sid, or nil.
func (r *sessionRegistry) findBySid(roomID, sid string) *session {
	r.mut.RLock()
	defer r.mut.RUnlock()

	rm := r.rooms[roomID]
	if rm == nil {
		return nil
	}
	for _, s := range rm.sessions {
		if s.sid == sid {
			return s
		}
	}
	return nil
}

// roomData returns the room's wire descriptor.
func (r *sessionRegistry) roomData(roomID string) map[string]any {
	r.mut.RLock()
	defer r.mut.RUnlock()
	if rm := r.rooms[roomID]; rm != nil {
		return rm.infoData()
	}
	return map[string]any{"id": roomID}
}

func (r *sessionRegistry) counts() (sessions, rooms int) {
	r.mut.RLock()
	defer r.mut.RUnlock()
	return len(r.sessions), len(r.rooms)
}

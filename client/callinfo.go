// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"time"
)

type CallState string

const (
	CallStatePending  CallState = "pending"
	CallStateAccepted CallState = "accepted"
	CallStateRejected CallState = "rejected"
	CallStateEnded    CallState = "ended"
)

// CallInfo is the state of a 1-to-1 call signaling exchange layered on top
// of the room. Once a call reaches a terminal state the value is not
// mutated anymore, handlers build a fresh one per signaling message.
type CallInfo struct {
	CallID      string
	CallerSid   string
	TargetSid   string
	Participant *Participant
	Caller      *Participant
	Metadata    map[string]any
	State       CallState
	StartTime   time.Time
	EndTime     time.Time
}

// IsTerminal reports whether the call reached a final state.
func (c CallInfo) IsTerminal() bool {
	return c.State == CallStateRejected || c.State == CallStateEnded
}

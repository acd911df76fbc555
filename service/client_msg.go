// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Message types handled by the service (client to server).
const (
	ClientMessageJoin        = "join"
	ClientMessageLeave       = "leave"
	ClientMessageData        = "data"
	ClientMessageSubscribe   = "subscribe"
	ClientMessageUnsubscribe = "unsubscribe"
	ClientMessageCallRequest = "call_request"
)

// Message types sent by the service (server to client).
const (
	ClientMessageJoined            = "joined"
	ClientMessageParticipantJoined = "participant_joined"
	ClientMessageParticipantLeft   = "participant_left"
	ClientMessageCallReceived      = "call_received"
	ClientMessageError             = "error"
)

// ClientMessage is a signaling frame exchanged with clients. On the wire a
// frame is a msgpack map with a required string "type" field; the payload
// either nests under "data" or sits at the top level of the map.
type ClientMessage struct {
	Type string         `msgpack:"type"`
	Data map[string]any `msgpack:"data,omitempty"`
}

func NewClientMessage(msgType string, data map[string]any) *ClientMessage {
	return &ClientMessage{
		Type: msgType,
		Data: data,
	}
}

func (cm *ClientMessage) Pack() ([]byte, error) {
	return msgpack.Marshal(cm)
}

func (cm *ClientMessage) Unpack(data []byte) error {
	var frame map[string]any
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	msgType, _ := frame["type"].(string)
	if msgType == "" {
		return fmt.Errorf("invalid frame: missing type field")
	}
	cm.Type = msgType

	if nested, ok := frame["data"].(map[string]any); ok {
		cm.Data = nested
		return nil
	}

	delete(frame, "type")
	cm.Data = frame

	return nil
}

func (cm *ClientMessage) stringField(key string) string {
	v, _ := cm.Data[key].(string)
	return v
}

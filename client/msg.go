// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// Inbound message types (server to client).
const (
	JoinedMessage              = "joined"
	ParticipantJoinedMessage   = "participant_joined"
	ParticipantLeftMessage     = "participant_left"
	TrackPublishedMessage      = "track_published"
	TrackUnpublishedMessage    = "track_unpublished"
	TrackSubscribedMessage     = "track_subscribed"
	TrackUnsubscribedMessage   = "track_unsubscribed"
	TrackMutedMessage          = "track_muted"
	TrackUnmutedMessage        = "track_unmuted"
	TransportCreatedMessage    = "transport_created"
	TransportConnectedMessage  = "transport_connected"
	DataMessage                = "data"
	DataConsumerCreatedMessage = "data_consumer_created"
	DataConsumerClosedMessage  = "data_consumer_closed"
	DataProducerCreatedMessage = "data_producer_created"
	CallReceivedMessage        = "call_received"
	CallAcceptedMessage        = "call_accepted"
	CallRejectedMessage        = "call_rejected"
	ErrorMessage               = "error"
)

// Outbound message types (client to server).
const (
	JoinMessage        = "join"
	LeaveMessage       = "leave"
	SubscribeMessage   = "subscribe"
	UnsubscribeMessage = "unsubscribe"
	CallRequestMessage = "call_request"
)

// Message is a signaling frame. On the wire a frame is a map with a
// required string "type" field; every other field is message specific and
// kept in Data. Frames using a nested "data" object are accepted too for
// schema evolution tolerance.
type Message struct {
	Type string
	Data map[string]any
}

func NewMessage(msgType string, data map[string]any) Message {
	return Message{
		Type: msgType,
		Data: data,
	}
}

// Pack serializes the message into its wire shape with the payload fields
// at the top level of the frame.
func (m *Message) Pack() ([]byte, error) {
	frame := make(map[string]any, len(m.Data)+1)
	for k, v := range m.Data {
		frame[k] = v
	}
	frame["type"] = m.Type
	return msgpack.Marshal(frame)
}

// Unpack deserializes a wire frame. The "type" field is required; the
// payload is taken from a nested "data" object when present, otherwise from
// the remaining top-level fields.
func (m *Message) Unpack(data []byte) error {
	var frame map[string]any
	if err := msgpack.Unmarshal(data, &frame); err != nil {
		return fmt.Errorf("failed to unmarshal frame: %w", err)
	}

	msgType, _ := frame["type"].(string)
	if msgType == "" {
		return fmt.Errorf("invalid frame: missing type field")
	}
	m.Type = msgType

	if nested, ok := frame["data"].(map[string]any); ok {
		m.Data = nested
		return nil
	}

	delete(frame, "type")
	m.Data = frame

	return nil
}

// Tolerant field accessors. Server payloads evolve independently of the
// client, a missing or differently typed field yields the zero value.

func stringField(m map[string]any, key string) string {
	v, _ := m[key].(string)
	return v
}

func boolField(m map[string]any, key string) bool {
	v, _ := m[key].(bool)
	return v
}

func mapField(m map[string]any, key string) map[string]any {
	v, _ := m[key].(map[string]any)
	return v
}

func sliceField(m map[string]any, key string) []any {
	v, _ := m[key].([]any)
	return v
}

func intField(m map[string]any, key string) int64 {
	switch v := m[key].(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case uint64:
		return int64(v)
	case int32:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}

// RoomInfo describes the room a connection has joined.
type RoomInfo struct {
	ID        string
	Name      string
	CreatedAt int64
}

func roomInfoFromMap(m map[string]any) RoomInfo {
	return RoomInfo{
		ID:        stringField(m, "id"),
		Name:      stringField(m, "name"),
		CreatedAt: intField(m, "createdAt"),
	}
}

// TrackInfo is the server-advertised descriptor of a published track.
type TrackInfo struct {
	Sid    string
	Name   string
	Kind   TrackKind
	Muted  bool
	Source string
}

func trackInfoFromMap(m map[string]any) TrackInfo {
	return TrackInfo{
		Sid:    stringField(m, "sid"),
		Name:   stringField(m, "name"),
		Kind:   TrackKind(stringField(m, "kind")),
		Muted:  boolField(m, "muted"),
		Source: stringField(m, "source"),
	}
}

// ParticipantInfo is the server-side view of a participant.
type ParticipantInfo struct {
	Sid      string
	Identity string
	Name     string
	Metadata map[string]any
	Tracks   []TrackInfo
}

func participantInfoFromMap(m map[string]any) ParticipantInfo {
	info := ParticipantInfo{
		Sid:      stringField(m, "sid"),
		Identity: stringField(m, "identity"),
		Name:     stringField(m, "name"),
		Metadata: mapField(m, "metadata"),
	}
	for _, t := range sliceField(m, "tracks") {
		tm, ok := t.(map[string]any)
		if !ok {
			continue
		}
		info.Tracks = append(info.Tracks, trackInfoFromMap(tm))
	}
	return info
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestClientMessage(t *testing.T) {
	t.Run("missing type", func(t *testing.T) {
		msg := NewClientMessage("", nil)
		data, err := msg.Pack()
		require.NoError(t, err)

		var msg2 ClientMessage
		err = msg2.Unpack(data)
		require.Error(t, err)
		require.Equal(t, "invalid frame: missing type field", err.Error())
	})

	t.Run("invalid data", func(t *testing.T) {
		var msg ClientMessage
		err := msg.Unpack([]byte{0x45, 0x45, 0x45})
		require.Error(t, err)
	})

	t.Run("type only", func(t *testing.T) {
		msg := NewClientMessage(ClientMessageLeave, nil)
		data, err := msg.Pack()
		require.NoError(t, err)

		var msg2 ClientMessage
		err = msg2.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, ClientMessageLeave, msg2.Type)
		require.Empty(t, msg2.Data)
	})

	t.Run("nested payload", func(t *testing.T) {
		msgData := map[string]any{
			"roomID":   "roomA",
			"identity": "alice",
		}
		msg := NewClientMessage(ClientMessageJoin, msgData)
		data, err := msg.Pack()
		require.NoError(t, err)

		var msg2 ClientMessage
		err = msg2.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, ClientMessageJoin, msg2.Type)
		require.Equal(t, "roomA", msg2.stringField("roomID"))
		require.Equal(t, "alice", msg2.stringField("identity"))
	})

	t.Run("flattened payload", func(t *testing.T) {
		frame := map[string]any{
			"type":    ClientMessageData,
			"payload": "hello",
			"topic":   "chat",
		}
		data, err := msgpack.Marshal(frame)
		require.NoError(t, err)

		var msg ClientMessage
		err = msg.Unpack(data)
		require.NoError(t, err)
		require.Equal(t, ClientMessageData, msg.Type)
		require.Equal(t, "hello", msg.stringField("payload"))
		require.Equal(t, "chat", msg.stringField("topic"))
		_, ok := msg.Data["type"]
		require.False(t, ok)
	})
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package ws

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"testing"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	server, addr, shutdown := setupServer(t)
	defer shutdown()

	t.Run("invalid config", func(t *testing.T) {
		c, err := NewClient(ClientConfig{})
		require.Error(t, err)
		require.Nil(t, c)
	})

	t.Run("valid config", func(t *testing.T) {
		_, port, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws"}

		cfg := ClientConfig{
			URL:      u.String(),
			AuthType: BasicClientAuthType,
		}
		c, err := NewClient(cfg)
		require.NoError(t, err)
		require.NotNil(t, c)

		msg, ok := <-server.ReceiveCh()
		require.True(t, ok)
		require.NotEmpty(t, msg.ConnID)
		require.Equal(t, OpenMessage, msg.Type)

		err = c.Close()
		require.NoError(t, err)

		msg, ok = <-server.ReceiveCh()
		require.True(t, ok)
		require.NotEmpty(t, msg.ConnID)
		require.Equal(t, CloseMessage, msg.Type)
	})

	t.Run("custom dial function", func(t *testing.T) {
		_, port, err := net.SplitHostPort(addr)
		require.NoError(t, err)
		u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws"}

		var called bool
		dialFn := func(ctx context.Context, network, addr string) (net.Conn, error) {
			called = true
			return (&net.Dialer{}).DialContext(ctx, network, addr)
		}

		cfg := ClientConfig{
			URL:      u.String(),
			AuthType: BasicClientAuthType,
		}
		c, err := NewClient(cfg, WithDialFunc(dialFn))
		require.NoError(t, err)
		require.NotNil(t, c)
		require.True(t, called)

		msg, ok := <-server.ReceiveCh()
		require.True(t, ok)
		require.Equal(t, OpenMessage, msg.Type)

		require.NoError(t, c.Close())

		msg, ok = <-server.ReceiveCh()
		require.True(t, ok)
		require.Equal(t, CloseMessage, msg.Type)
	})

	t.Run("dial failure", func(t *testing.T) {
		dialFn := func(_ context.Context, _, _ string) (net.Conn, error) {
			return nil, fmt.Errorf("test dial failure")
		}

		cfg := ClientConfig{
			URL:      "ws://localhost:8045/ws",
			AuthType: BasicClientAuthType,
		}
		c, err := NewClient(cfg, WithDialFunc(dialFn))
		require.Error(t, err)
		require.Contains(t, err.Error(), "test dial failure")
		require.Nil(t, c)
	})
}

func TestClientPing(t *testing.T) {
	server, addr, shutdown := setupServer(t)
	defer shutdown()

	_, port, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	u := url.URL{Scheme: "ws", Host: "localhost:" + port, Path: "/ws"}

	ws, _, err := websocket.DefaultDialer.Dial(u.String(), nil)
	require.NoError(t, err)
	defer ws.Close()

	// Swallow pings so the server sees no pongs and drops the connection
	// once the read deadline expires.
	ws.SetPingHandler(func(_ string) error {
		return nil
	})
	go func() {
		for {
			if _, _, err := ws.NextReader(); err != nil {
				return
			}
		}
	}()

	msg, ok := <-server.ReceiveCh()
	require.True(t, ok)
	require.Equal(t, OpenMessage, msg.Type)

	msg, ok = <-server.ReceiveCh()
	require.True(t, ok)
	require.Equal(t, CloseMessage, msg.Type)
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package ws

import (
	"context"
	"net"
)

type Option func(s *Server) error

type ClientOption func(c *Client) error

type DialContextFn func(ctx context.Context, network, addr string) (net.Conn, error)

// WithDialFunc lets the caller set a custom dialing function for the client
// connection.
func WithDialFunc(dialFn DialContextFn) ClientOption {
	return func(c *Client) error {
		c.dialFn = dialFn
		return nil
	}
}

// WithUpgradeCb lets the caller set an optional callback to be called prior to
// performing the websocket upgrade.
func WithUpgradeCb(cb UpgradeCb) Option {
	return func(s *Server) error {
		s.upgradeCb = cb
		return nil
	}
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package client

import (
	"fmt"
	"net/url"
	"strings"
)

const signalingPath = "/ws"

type Config struct {
	// URL is the base URL of the PulseWave service to connect to.
	URL string
	// AuthToken is the key obtained at registration time.
	AuthToken string
	// ClientID identifies this client to the service.
	ClientID string

	// AutoSubscribe makes the client subscribe to existing and newly
	// published tracks without explicit requests. SetDefaults turns it
	// on; set it to false explicitly to opt out.
	AutoSubscribe bool

	// MaxListeners is the per-event listener threshold above which the
	// emitter warns. Zero applies the default.
	MaxListeners int

	// Monitor configures the network quality sampling loop.
	Monitor MonitorConfig

	wsURL string
}

func (c *Config) SetDefaults() {
	c.AutoSubscribe = true
	c.Monitor.SetDefaults()
}

func (c *Config) Parse() error {
	if c.URL == "" {
		return fmt.Errorf("invalid URL value: should not be empty")
	}
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}
	u.Path += signalingPath
	c.wsURL = u.String()

	if c.ClientID == "" {
		return fmt.Errorf("invalid ClientID value: should not be empty")
	}

	if c.AuthToken == "" {
		return fmt.Errorf("invalid AuthToken value: should not be empty")
	}

	c.Monitor.SetDefaults()

	return nil
}

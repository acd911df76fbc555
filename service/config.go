// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/pulsewave/pulsewave/logger"
	"github.com/pulsewave/pulsewave/service/api"
	"github.com/pulsewave/pulsewave/service/auth"
	"github.com/pulsewave/pulsewave/service/limiter"
)

type SecurityConfig struct {
	// Whether or not to enable admin API access.
	EnableAdmin bool `toml:"enable_admin"`
	// The secret key used to authenticate admin requests.
	AdminSecretKey string `toml:"admin_secret_key"`
	// Whether or not to allow clients to self-register.
	AllowSelfRegistration bool                    `toml:"allow_self_registration"`
	SessionCache          auth.SessionCacheConfig `toml:"session_cache"`
}

func (c SecurityConfig) IsValid() error {
	if !c.EnableAdmin {
		return nil
	}

	if c.AdminSecretKey == "" {
		return fmt.Errorf("invalid AdminSecretKey value: should not be empty")
	}

	return nil
}

type APIConfig struct {
	HTTP     api.Config     `toml:"http"`
	Security SecurityConfig `toml:"security"`
}

func (c APIConfig) IsValid() error {
	if err := c.Security.IsValid(); err != nil {
		return fmt.Errorf("failed to validate security config: %w", err)
	}

	if err := c.HTTP.IsValid(); err != nil {
		return fmt.Errorf("failed to validate http config: %w", err)
	}

	return nil
}

type StoreConfig struct {
	DataSource string `toml:"data_source"`
}

func (c StoreConfig) IsValid() error {
	if c.DataSource == "" {
		return fmt.Errorf("invalid DataSource value: should not be empty")
	}
	return nil
}

type Config struct {
	API       APIConfig
	Admission limiter.Config `toml:"admission"`
	Store     StoreConfig
	Logger    logger.Config
}

func (c Config) IsValid() error {
	if err := c.API.IsValid(); err != nil {
		return err
	}

	if err := c.Admission.IsValid(); err != nil {
		return err
	}

	if err := c.Store.IsValid(); err != nil {
		return err
	}

	return c.Logger.IsValid()
}

func (c *Config) SetDefaults() {
	c.API.HTTP.ListenAddress = ":8045"
	c.API.Security.SessionCache.ExpirationMinutes = 1440
	c.Admission.SetDefaults()
	c.Store.DataSource = "/tmp/pulsewave_db"
	c.Logger.EnableConsole = true
	c.Logger.ConsoleJSON = false
	c.Logger.ConsoleLevel = "INFO"
	c.Logger.EnableFile = true
	c.Logger.FileJSON = true
	c.Logger.FileLocation = "pulsewave.log"
	c.Logger.FileLevel = "DEBUG"
	c.Logger.EnableColor = false
}

// ClientConfig holds the settings used by Client to register with and
// connect to a PulseWave service.
type ClientConfig struct {
	// URL is the base URL of the service, e.g. "http://localhost:8045".
	URL string
	// ClientID identifies the client to the service.
	ClientID string
	// AuthKey is the key obtained at registration time.
	AuthKey string

	httpURL string
	wsURL   string
}

func (c *ClientConfig) Parse() error {
	if c.URL == "" {
		return fmt.Errorf("invalid URL value: should not be empty")
	}
	c.URL = strings.TrimRight(strings.TrimSpace(c.URL), "/")

	u, err := url.Parse(c.URL)
	if err != nil {
		return fmt.Errorf("failed to parse URL: %w", err)
	}

	switch u.Scheme {
	case "http":
		c.httpURL = c.URL
		u.Scheme = "ws"
		c.wsURL = u.String() + "/ws"
	case "https":
		c.httpURL = c.URL
		u.Scheme = "wss"
		c.wsURL = u.String() + "/ws"
	default:
		return fmt.Errorf("invalid URL scheme %q", u.Scheme)
	}

	return nil
}

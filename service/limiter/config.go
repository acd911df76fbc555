// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package limiter

import (
	"fmt"
	"time"
)

// Duration is a time.Duration that decodes from strings like "30s" in toml
// files and environment overrides.
type Duration time.Duration

func (d *Duration) UnmarshalText(data []byte) error {
	v, err := time.ParseDuration(string(data))
	if err != nil {
		return fmt.Errorf("failed to parse duration: %w", err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

type Config struct {
	// Limit specifies the maximum number of requests allowed
	// per identifier within Window.
	Limit int `toml:"limit"`
	// Window specifies the width of the sliding window.
	Window Duration `toml:"window"`
	// BanThreshold specifies how many requests beyond Limit within the
	// window will get the identifier banned.
	BanThreshold int `toml:"ban_threshold"`
	// BanDuration specifies for how long a banned identifier keeps
	// being rejected.
	BanDuration Duration `toml:"ban_duration"`
}

func (c Config) IsValid() error {
	if c.Limit <= 0 {
		return fmt.Errorf("invalid Limit value: should be greater than zero")
	}
	if c.Window <= 0 {
		return fmt.Errorf("invalid Window value: should be greater than zero")
	}
	if c.BanThreshold <= 0 {
		return fmt.Errorf("invalid BanThreshold value: should be greater than zero")
	}
	if c.BanDuration <= 0 {
		return fmt.Errorf("invalid BanDuration value: should be greater than zero")
	}
	return nil
}

func (c *Config) SetDefaults() {
	c.Limit = 10
	c.Window = Duration(time.Second)
	c.BanThreshold = 5
	c.BanDuration = Duration(time.Minute)
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("non existent file falls back to defaults", func(t *testing.T) {
		cfg, err := loadConfig("")
		require.NoError(t, err)
		require.NoError(t, cfg.IsValid())
		require.Equal(t, ":8045", cfg.API.HTTP.ListenAddress)
	})

	t.Run("empty file keeps defaults", func(t *testing.T) {
		file, err := os.CreateTemp("", "config.toml")
		require.NoError(t, err)
		require.NotNil(t, file)
		defer file.Close()
		defer os.Remove(file.Name())

		cfg, err := loadConfig(file.Name())
		require.NoError(t, err)
		require.NoError(t, cfg.IsValid())
	})

	t.Run("valid config", func(t *testing.T) {
		cfg, err := loadConfig("../../config/config.sample.toml")
		require.NoError(t, err)
		require.NoError(t, cfg.IsValid())
		require.Equal(t, 10, cfg.Admission.Limit)
	})

	t.Run("env override", func(t *testing.T) {
		cfg, err := loadConfig("../../config/config.sample.toml")
		require.NoError(t, err)
		require.Equal(t, "DEBUG", cfg.Logger.FileLevel)

		os.Setenv("PULSEWAVE_LOGGER_FILELEVEL", "ERROR")
		defer os.Unsetenv("PULSEWAVE_LOGGER_FILELEVEL")
		cfg, err = loadConfig("../../config/config.sample.toml")
		require.NoError(t, err)
		require.Equal(t, "ERROR", cfg.Logger.FileLevel)
	})
}

// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetVersionInfo(t *testing.T) {
	th := SetupTestHelper(t, nil)
	defer th.Teardown()

	buildHash = "432dad0"
	buildDate = "2024-11-02 09:05"
	buildVersion = "v0.1.0"
	defer func() {
		buildHash = ""
		buildDate = ""
		buildVersion = ""
	}()

	info, err := th.adminClient.GetVersionInfo()
	require.NoError(t, err)
	require.Equal(t, VersionInfo{
		BuildHash:    buildHash,
		BuildDate:    buildDate,
		BuildVersion: buildVersion,
		GoVersion:    runtime.Version(),
		GoOS:         runtime.GOOS,
		GoArch:       runtime.GOARCH,
	}, info)
}

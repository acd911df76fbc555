// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"net"
	"os"
	"testing"
	"time"

	"github.com/pulsewave/pulsewave/logger"
	"github.com/pulsewave/pulsewave/service/api"
	"github.com/pulsewave/pulsewave/service/auth"
	"github.com/pulsewave/pulsewave/service/limiter"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/stretchr/testify/require"
)

type TestHelper struct {
	srvc        *Service
	adminClient *Client
	cfg         Config
	tb          testing.TB
	apiURL      string
	dbDir       string
}

func MakeDefaultCfg(tb testing.TB) *Config {
	tb.Helper()

	dbDir, err := os.MkdirTemp("", "db")
	require.NoError(tb, err)

	return &Config{
		API: APIConfig{
			HTTP: api.Config{
				ListenAddress: ":0",
			},
			Security: SecurityConfig{
				EnableAdmin:    true,
				AdminSecretKey: "admin_secret_key",
				SessionCache: auth.SessionCacheConfig{
					ExpirationMinutes: 1440,
				},
			},
		},
		Admission: limiter.Config{
			Limit:        1000,
			Window:       limiter.Duration(time.Second),
			BanThreshold: 1000,
			BanDuration:  limiter.Duration(time.Minute),
		},
		Store: StoreConfig{
			DataSource: dbDir,
		},
		Logger: logger.Config{
			EnableConsole: true,
			ConsoleLevel:  "ERROR",
		},
	}
}

func SetupTestHelper(tb testing.TB, cfg *Config) *TestHelper {
	tb.Helper()

	if cfg == nil {
		cfg = MakeDefaultCfg(tb)
	}

	th := &TestHelper{
		cfg:   *cfg,
		tb:    tb,
		dbDir: cfg.Store.DataSource,
	}

	log, err := mlog.NewLogger()
	require.NoError(tb, err)

	th.srvc, err = New(th.cfg, log)
	require.NoError(th.tb, err)
	require.NotNil(th.tb, th.srvc)

	err = th.srvc.Start()
	require.NoError(th.tb, err)

	_, port, err := net.SplitHostPort(th.srvc.apiServer.Addr())
	require.NoError(th.tb, err)
	th.apiURL = "http://localhost:" + port

	th.adminClient, err = NewClient(ClientConfig{
		URL:     th.apiURL,
		AuthKey: th.srvc.cfg.API.Security.AdminSecretKey,
	})
	require.NoError(th.tb, err)
	require.NotNil(th.tb, th.adminClient)

	return th
}

func (th *TestHelper) Teardown() {
	err := th.adminClient.Close()
	require.NoError(th.tb, err)

	err = th.srvc.Stop()
	require.NoError(th.tb, err)

	err = os.RemoveAll(th.dbDir)
	require.NoError(th.tb, err)
}

// newUserClient registers a fresh client and returns a connected ws client
// for it.
func (th *TestHelper) newUserClient(clientID string) *Client {
	th.tb.Helper()

	authKey, err := th.adminClient.Register(clientID)
	require.NoError(th.tb, err)
	require.NotEmpty(th.tb, authKey)

	c, err := NewClient(ClientConfig{
		URL:      th.apiURL,
		ClientID: clientID,
		AuthKey:  authKey,
	})
	require.NoError(th.tb, err)

	err = c.Connect()
	require.NoError(th.tb, err)

	return c
}

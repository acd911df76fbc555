// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package api

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
	"github.com/stretchr/testify/require"
)

func genTLSCert(t *testing.T) (string, string) {
	t.Helper()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	tpl := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject:      pkix.Name{CommonName: "localhost"},
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		KeyUsage:     x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		DNSNames:     []string{"localhost"},
	}
	der, err := x509.CreateCertificate(rand.Reader, &tpl, &tpl, &key.PublicKey, key)
	require.NoError(t, err)

	dir := t.TempDir()

	certFile := filepath.Join(dir, "cert.pem")
	certOut, err := os.Create(certFile)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: der}))
	require.NoError(t, certOut.Close())

	keyDER, err := x509.MarshalECPrivateKey(key)
	require.NoError(t, err)
	keyFile := filepath.Join(dir, "key.pem")
	keyOut, err := os.Create(keyFile)
	require.NoError(t, err)
	require.NoError(t, pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyDER}))
	require.NoError(t, keyOut.Close())

	return certFile, keyFile
}

func TestStartServer(t *testing.T) {
	log, err := mlog.NewLogger()
	require.NoError(t, err)
	defer func() {
		err := log.Shutdown()
		require.NoError(t, err)
	}()

	t.Run("port unavailable", func(t *testing.T) {
		listener, err := net.Listen("tcp", ":0")
		require.NoError(t, err)
		defer func() {
			err := listener.Close()
			require.NoError(t, err)
		}()

		cfg := Config{
			ListenAddress: listener.Addr().String(),
		}
		s, err := NewServer(cfg, log)
		require.NoError(t, err)
		require.NotNil(t, s)

		err = s.Start()
		require.Error(t, err)
		err = s.Stop()
		require.NoError(t, err)
	})

	t.Run("plaintext", func(t *testing.T) {
		cfg := Config{
			ListenAddress: ":0",
		}
		s, err := NewServer(cfg, log)
		require.NoError(t, err)
		require.NotNil(t, s)

		err = s.Start()
		require.NoError(t, err)

		client := &http.Client{}

		_, port, err := net.SplitHostPort(s.Addr())
		require.NoError(t, err)
		_, err = client.Get("http://localhost:" + port)
		require.NoError(t, err)

		err = s.Stop()
		require.NoError(t, err)

		_, err = client.Get("http://localhost:" + port)
		require.Error(t, err)
	})

	t.Run("tls", func(t *testing.T) {
		certFile, keyFile := genTLSCert(t)

		cfg := Config{
			ListenAddress: ":0",
			TLS: TLSConfig{
				Enable:   true,
				CertFile: certFile,
				CertKey:  keyFile,
			},
		}
		s, err := NewServer(cfg, log)
		require.NoError(t, err)
		require.NotNil(t, s)

		err = s.Start()
		require.NoError(t, err)

		tr := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		client := &http.Client{Transport: tr}

		_, port, err := net.SplitHostPort(s.Addr())
		require.NoError(t, err)
		_, err = client.Get("https://localhost:" + port)
		require.NoError(t, err)

		err = s.Stop()
		require.NoError(t, err)

		_, err = client.Get("https://localhost:" + port)
		require.Error(t, err)
	})

	t.Run("registered handler", func(t *testing.T) {
		cfg := Config{
			ListenAddress: ":0",
		}
		s, err := NewServer(cfg, log)
		require.NoError(t, err)

		s.RegisterHandleFunc("/test", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
		})

		err = s.Start()
		require.NoError(t, err)
		defer func() {
			require.NoError(t, s.Stop())
		}()

		_, port, err := net.SplitHostPort(s.Addr())
		require.NoError(t, err)
		resp, err := http.Get("http://localhost:" + port + "/test")
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusTeapot, resp.StatusCode)
	})
}

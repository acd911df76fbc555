// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/pulsewave/pulsewave/service/auth"

	"github.com/mattermost/mattermost/server/public/shared/mlog"
)

// authHandler authenticates an HTTP request through basic (clientID +
// registered key) or bearer (session token) credentials. It returns the
// authenticated client id, or the status code to fail the request with.
func (s *Service) authHandler(r *http.Request) (string, int, error) {
	if authHeader := r.Header.Get("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
		token := strings.TrimPrefix(authHeader, "Bearer ")
		session, err := s.sessionCache.Get(token)
		if err != nil {
			return "", http.StatusUnauthorized, fmt.Errorf("authentication failed: %w", err)
		}
		return session.ClientID, http.StatusOK, nil
	}

	clientID, authKey, ok := r.BasicAuth()
	if !ok {
		return "", http.StatusUnauthorized, fmt.Errorf("authentication failed: invalid auth header")
	}

	if s.cfg.API.Security.EnableAdmin && authKey == s.cfg.API.Security.AdminSecretKey {
		return clientID, http.StatusOK, nil
	}

	if clientID == "" {
		return "", http.StatusUnauthorized, fmt.Errorf("authentication failed: unauthorized")
	}

	if err := s.auth.Authenticate(clientID, authKey); err != nil {
		return "", http.StatusUnauthorized, fmt.Errorf("authentication failed: %w", err)
	}

	return clientID, http.StatusOK, nil
}

// wsAuthHandler gates ws upgrades: the request passes the admission
// limiter, then authenticates. It runs before the connection is tracked.
func (s *Service) wsAuthHandler(connID string, w http.ResponseWriter, r *http.Request) error {
	decision := s.admission.Check(admissionKey(r))
	if !decision.Allowed {
		reason := "over_limit"
		if decision.Banned {
			reason = "banned"
			s.metrics.IncLimiterBans()
		}
		s.metrics.IncLimiterDenials(reason)
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int(decision.RetryAfter.Seconds())+1))
		http.Error(w, "too many requests", http.StatusTooManyRequests)
		return fmt.Errorf("admission denied for %q", admissionKey(r))
	}

	clientID, code, err := s.authHandler(r)
	if err != nil {
		http.Error(w, "unauthorized", code)
		return err
	}

	s.registry.add(connID, clientID)

	return nil
}

// admissionKey is the identifier requests are rate limited on. Credentialed
// requests limit per client, anonymous ones per remote host.
func admissionKey(r *http.Request) string {
	if clientID, _, ok := r.BasicAuth(); ok && clientID != "" {
		return clientID
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func (s *Service) registerClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	data := newHTTPData()
	defer s.httpAudit("registerClient", data, w, r)

	decision := s.admission.Check(admissionKey(r))
	if !decision.Allowed {
		reason := "over_limit"
		if decision.Banned {
			reason = "banned"
			s.metrics.IncLimiterBans()
		}
		s.metrics.IncLimiterDenials(reason)
		data.err = "too many requests"
		data.code = http.StatusTooManyRequests
		return
	}

	if !s.cfg.API.Security.AllowSelfRegistration {
		if _, code, err := s.authHandler(r); err != nil {
			data.err = err.Error()
			data.code = code
			return
		}
	}

	request := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		data.err = err.Error()
		data.code = http.StatusBadRequest
		return
	}
	data.reqData = request

	clientID := request["clientID"]
	authKey, err := s.auth.Register(clientID)
	if err != nil {
		data.err = err.Error()
		data.code = http.StatusBadRequest
		return
	}

	s.log.Debug("registered new client", mlog.String("clientID", clientID))
	data.code = http.StatusCreated
	data.resData["clientID"] = clientID
	data.resData["authKey"] = authKey
}

func (s *Service) unregisterClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	data := newHTTPData()
	defer s.httpAudit("unregisterClient", data, w, r)

	if _, code, err := s.authHandler(r); err != nil {
		data.err = err.Error()
		data.code = code
		return
	}

	request := map[string]string{}
	if err := json.NewDecoder(r.Body).Decode(&request); err != nil {
		data.err = err.Error()
		data.code = http.StatusBadRequest
		return
	}
	data.reqData = request

	clientID := request["clientID"]
	if clientID == "" {
		data.err = "client id should not be empty"
		data.code = http.StatusBadRequest
		return
	}

	if err := s.auth.Unregister(clientID); err != nil {
		data.err = err.Error()
		data.code = http.StatusBadRequest
		return
	}

	s.log.Debug("unregistered client", mlog.String("clientID", clientID))
	s.sessionCache.Delete(clientID)

	data.code = http.StatusOK
}

// loginClient exchanges basic credentials for a short-lived bearer token.
func (s *Service) loginClient(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}

	data := newHTTPData()
	defer s.httpAudit("loginClient", data, w, r)

	clientID, code, err := s.authHandler(r)
	if err != nil {
		data.err = err.Error()
		data.code = code
		return
	}

	token, err := auth.NewSessionToken()
	if err != nil {
		data.err = err.Error()
		data.code = http.StatusInternalServerError
		return
	}

	if err := s.sessionCache.Put(clientID, token); err != nil {
		data.err = err.Error()
		data.code = http.StatusInternalServerError
		return
	}

	data.code = http.StatusOK
	data.resData["bearerToken"] = token
}

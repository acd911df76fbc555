// Copyright (c) 2024-present PulseWave, Inc. All Rights Reserved.
// See LICENSE.txt for license information.

package service

import (
	"net/http"
)

func (s *Service) getStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	data := newHTTPData()
	defer s.httpAudit("getStats", data, w, r)

	if _, code, err := s.authHandler(r); err != nil {
		data.err = err.Error()
		data.code = code
		return
	}

	sessions, rooms := s.registry.counts()
	admStats := s.admission.GetStats()

	data.resData["sessions"] = sessions
	data.resData["rooms"] = rooms
	data.resData["admission"] = map[string]int{
		"entries":       admStats.Entries,
		"banned":        admStats.Banned,
		"totalRequests": admStats.TotalRequests,
	}

	data.code = http.StatusOK
}

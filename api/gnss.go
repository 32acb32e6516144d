package api

import (
	"net/http"

	"i4.energy/across/linkstation/gnss"
)

func (s *Server) handleGNSS(w http.ResponseWriter, r *http.Request) {
	type GNSSResponse struct {
		OK  bool     `json:"ok"`
		TS  int64    `json:"ts"`
		Nav gnss.Nav `json:"nav"`
	}

	if s.GNSS == nil {
		s.fail(w, r, ErrGNSSDisabled)
		return
	}
	nav, err := s.GNSS.Read(r.Context(), verbose(r))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	s.sendJSON(w, GNSSResponse{OK: true, TS: nowMillis(), Nav: nav}, http.StatusOK)
}

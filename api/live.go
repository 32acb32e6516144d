package api

import (
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"i4.energy/across/linkstation/poller"
)

const (
	wsWriteWait  = 5 * time.Second
	wsPingPeriod = 30 * time.Second
)

type LiveResponse struct {
	OK        bool                `json:"ok"`
	TS        int64               `json:"ts"`
	UpdatedAt *int64              `json:"updated_at"`
	AgeMs     *int64              `json:"age_ms"`
	Data      poller.Snapshot     `json:"data"`
	Raw       map[string][]string `json:"raw,omitempty"`
}

func liveResponse(s poller.Snapshot, at time.Time, withRaw bool) LiveResponse {
	now := time.Now()
	resp := LiveResponse{OK: true, TS: now.UnixMilli(), Data: s}
	if !at.IsZero() {
		updated := at.UnixMilli()
		age := now.Sub(at).Milliseconds()
		resp.UpdatedAt, resp.AgeMs = &updated, &age
	}
	if withRaw {
		resp.Raw = s.Raw
		if resp.Raw == nil {
			resp.Raw = map[string][]string{}
		}
	}
	return resp
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	snapshot, at := s.Live.Get()
	s.sendJSON(w, liveResponse(snapshot, at, verbose(r)), http.StatusOK)
}

// handleLiveWS pushes the current snapshot and then every new one until
// the client goes away.
func (s *Server) handleLiveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.Logger.Warn("Websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	withRaw := verbose(r)
	updates, unsubscribe := s.Live.Subscribe()
	defer unsubscribe()

	s.Logger.Debug("Live client connected", "remote", r.RemoteAddr)
	defer s.Logger.Debug("Live client disconnected", "remote", r.RemoteAddr)

	// Reader goroutine: detects the client closing the connection.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	write := func(v any) bool {
		conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
		return conn.WriteJSON(v) == nil
	}

	if snapshot, at := s.Live.Get(); !at.IsZero() {
		if !write(liveResponse(snapshot, at, withRaw)) {
			return
		}
	}

	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	for {
		select {
		case <-gone:
			return
		case <-r.Context().Done():
			return
		case snapshot, ok := <-updates:
			if !ok {
				return
			}
			if !write(liveResponse(snapshot, time.Now(), withRaw)) {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}

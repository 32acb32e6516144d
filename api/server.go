// Package api serves the modem, live snapshot and auxiliary device
// endpoints over HTTP.
package api

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"i4.energy/across/linkstation/gnss"
	"i4.energy/across/linkstation/modem"
	"i4.energy/across/linkstation/nvr"
	"i4.energy/across/linkstation/poller"
	"i4.energy/across/linkstation/sysinfo"
)

//go:generate go tool mockgen -destination=mock_api.go -package=api i4.energy/across/linkstation/api Modem,LiveSource,GNSSReader

// Modem is the serialized command gateway.
type Modem interface {
	Execute(ctx context.Context, command string, deadline time.Duration) ([]string, error)
	Status() modem.Status
}

// LiveSource provides the poller's latest snapshot.
type LiveSource interface {
	Get() (poller.Snapshot, time.Time)
	Subscribe() (<-chan poller.Snapshot, func())
}

// GNSSReader reads one navigation state.
type GNSSReader interface {
	Read(ctx context.Context, verbose bool) (gnss.Nav, error)
}

// Options are the deployment settings the API reports or enforces.
type Options struct {
	Title          string
	Prefix         string
	SerialPort     string
	BaudRate       int
	AuthRequired   bool
	AuthToken      string
	CtrlEnabled    bool
	AllowDangerous bool
}

// Server handles incoming HTTP requests for the configured modem and its
// collaborators. GNSS and NVR are optional.
type Server struct {
	Logger   *slog.Logger
	Modem    Modem
	Live     LiveSource
	GNSS     GNSSReader
	NVR      *nvr.Proxy
	HostInfo func() sysinfo.Info
	Options  Options
	Started  time.Time

	once     sync.Once
	mux      *http.ServeMux
	upgrader websocket.Upgrader
}

// ServeHTTP implements the http.Handler interface for the Server struct
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.once.Do(s.routes)
	s.mux.ServeHTTP(w, r)
}

func (s *Server) routes() {
	if s.Logger == nil {
		s.Logger = slog.New(slog.DiscardHandler)
	}
	if s.Started.IsZero() {
		s.Started = time.Now()
	}
	if s.HostInfo == nil {
		s.HostInfo = sysinfo.Collect
	}
	s.upgrader = websocket.Upgrader{
		CheckOrigin: func(r *http.Request) bool { return true },
	}

	p := s.Options.Prefix
	mux := http.NewServeMux()

	mux.HandleFunc("GET "+p+"/health", s.handleHealth)
	mux.HandleFunc("GET "+p+"/version", s.handleVersion)
	mux.HandleFunc("GET "+p+"/base/info", s.handleBaseInfo)

	mux.HandleFunc("GET "+p+"/link", s.auth(s.handleLink))
	mux.HandleFunc("GET "+p+"/info", s.auth(s.handleInfo))
	mux.HandleFunc("GET "+p+"/live", s.auth(s.handleLive))
	mux.HandleFunc("GET "+p+"/live/ws", s.auth(s.handleLiveWS))
	mux.HandleFunc("GET "+p+"/gnss/live", s.auth(s.handleGNSS))

	mux.HandleFunc("POST "+p+"/ctrl/reboot", s.handleReboot)
	mux.HandleFunc("GET "+p+"/ctrl/roaming", s.handleGetRoaming)
	mux.HandleFunc("POST "+p+"/ctrl/roaming", s.handleSetRoaming)
	mux.HandleFunc("POST "+p+"/ctrl/band", s.handleBand)
	mux.HandleFunc("POST "+p+"/ctrl/cell_lock", s.handleCellLock)
	mux.HandleFunc("POST "+p+"/ctrl/ca", s.handleCA)
	mux.HandleFunc("POST "+p+"/ctrl/gnss", s.handleGNSSCtrl)
	mux.HandleFunc("POST "+p+"/ctrl/apn", s.handleAPN)
	mux.HandleFunc("POST "+p+"/ctrl/usbnet", s.handleUSBNet)
	mux.HandleFunc("POST "+p+"/ctrl/reset_profile", s.handleResetProfile)

	if s.NVR != nil {
		mux.Handle("GET "+p+"/nvr/", http.StripPrefix(p+"/nvr", s.NVR.API()))
		mux.Handle("GET /live/{ip}/{profile}/{file...}", s.NVR.HLS())
	}

	s.mux = mux
}

// auth rejects requests without the configured X-Api-Token when
// authentication is required.
func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.Options.AuthRequired {
			token := r.Header.Get("X-Api-Token")
			if token == "" || subtle.ConstantTimeCompare([]byte(token), []byte(s.Options.AuthToken)) != 1 {
				s.sendError(w, "invalid or missing X-Api-Token", http.StatusUnauthorized)
				return
			}
		}
		next(w, r)
	}
}

func (s *Server) sendJSON(w http.ResponseWriter, v any, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Debug("Failed to write response", "error", err)
	}
}

func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	if message == "" {
		w.WriteHeader(statusCode)
		return
	}

	type ErrorResponse struct {
		OK    bool   `json:"ok"`
		TS    int64  `json:"ts"`
		Error string `json:"error"`
	}
	s.sendJSON(w, ErrorResponse{TS: nowMillis(), Error: message}, statusCode)
}

// fail logs err and answers with the status its kind maps to.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	s.Logger.Warn("Request failed", "path", r.URL.Path, "status", status, "error", err)
	s.sendError(w, err.Error(), status)
}

// verbose reports whether ?verbose= is a true value (1, true, yes).
func verbose(r *http.Request) bool {
	v := r.URL.Query().Get("verbose")
	if v == "yes" || v == "on" {
		return true
	}
	b, _ := strconv.ParseBool(v)
	return b
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

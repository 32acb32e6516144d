package api

import (
	"math"
	"net/http"
	"time"

	"i4.energy/across/linkstation/modem"
	"i4.energy/across/linkstation/sysinfo"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	type HealthResponse struct {
		OK        bool    `json:"ok"`
		Time      string  `json:"time"`
		UptimeSec float64 `json:"uptime_sec"`
	}
	now := time.Now().UTC()
	uptime := math.Round(now.Sub(s.Started).Seconds()*1000) / 1000
	s.sendJSON(w, HealthResponse{
		OK:        true,
		Time:      now.Format("2006-01-02T15:04:05.000000Z"),
		UptimeSec: uptime,
	}, http.StatusOK)
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	type VersionResponse struct {
		Title      string `json:"api_title"`
		Prefix     string `json:"api_prefix"`
		SerialPort string `json:"serial_port"`
		BaudRate   int    `json:"baudrate"`
	}
	s.sendJSON(w, VersionResponse{
		Title:      s.Options.Title,
		Prefix:     s.Options.Prefix,
		SerialPort: s.Options.SerialPort,
		BaudRate:   s.Options.BaudRate,
	}, http.StatusOK)
}

func (s *Server) handleBaseInfo(w http.ResponseWriter, r *http.Request) {
	type BaseInfoResponse struct {
		OK   bool         `json:"ok"`
		TS   int64        `json:"ts"`
		Base sysinfo.Info `json:"base"`
	}
	s.sendJSON(w, BaseInfoResponse{OK: true, TS: nowMillis(), Base: s.HostInfo()}, http.StatusOK)
}

func (s *Server) handleLink(w http.ResponseWriter, r *http.Request) {
	type LinkResponse struct {
		OK   bool         `json:"ok"`
		TS   int64        `json:"ts"`
		Link modem.Status `json:"link"`
	}
	s.sendJSON(w, LinkResponse{OK: true, TS: nowMillis(), Link: s.Modem.Status()}, http.StatusOK)
}

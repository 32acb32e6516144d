// Package nvr forwards REST and HLS requests to the on-board network video
// recorder.
package nvr

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultTimeout bounds the wait for NVR response headers.
	DefaultTimeout = 3 * time.Second
	// FileTimeout bounds recording downloads, which start slower.
	FileTimeout = 30 * time.Second
	// APIPrefix is the NVR's REST prefix.
	APIPrefix = "/v1"

	playlistName = "index.m3u8"
)

// Proxy serves the NVR REST API under /nvr and its HLS tree under /live.
type Proxy struct {
	base    *url.URL
	enabled bool
	logger  *slog.Logger

	publicHost     string
	publicBasePort int

	api   *httputil.ReverseProxy
	files *httputil.ReverseProxy
	hls   *httputil.ReverseProxy
}

// NewProxy creates a Proxy for the NVR at baseURL. A disabled Proxy answers
// every request with 503.
func NewProxy(baseURL string, enabled bool, timeout time.Duration, logger *slog.Logger) (*Proxy, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("nvr: invalid base URL %q: %w", baseURL, err)
	}
	if enabled && (base.Scheme == "" || base.Host == "") {
		return nil, fmt.Errorf("nvr: base URL %q must be absolute", baseURL)
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	p := &Proxy{base: base, enabled: enabled, logger: logger, publicBasePort: DefaultPublicBasePort}
	p.api = p.reverseProxy(APIPrefix, timeout, p.rewriteCamera)
	p.files = p.reverseProxy(APIPrefix, FileTimeout, nil)
	p.hls = p.reverseProxy("", timeout, hlsCaching)
	return p, nil
}

// Enabled reports whether requests are forwarded.
func (p *Proxy) Enabled() bool { return p.enabled }

// API returns the handler for NVR REST paths. It expects the request path
// relative to the /nvr mount, e.g. /cameras or /recordings/{ip}/days.
// Camera stream answers get public RTSP URLs and live-hls answers report the
// camera online.
func (p *Proxy) API() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.enabled {
			writeError(w, ErrDisabled.Error(), http.StatusServiceUnavailable)
			return
		}
		if strings.HasPrefix(r.URL.Path, "/recordings/") && strings.Contains(r.URL.Path, "/files/") {
			p.files.ServeHTTP(w, r)
			return
		}
		if rewritesJSON(r.URL.Path) {
			r = r.Clone(r.Context())
			if liveHLSPathRe.MatchString(r.URL.Path) {
				q := r.URL.Query()
				profile := q.Get("profile")
				if profile == "" {
					profile = "sub"
				}
				if !validProfile(profile) {
					writeError(w, fmt.Sprintf("%s: %s", ErrInvalidProfile, profile), http.StatusBadRequest)
					return
				}
				q.Set("profile", profile)
				r.URL.RawQuery = q.Encode()
			}
			// The answer is patched, so it must arrive uncompressed.
			r.Header.Del("Accept-Encoding")
		}
		p.api.ServeHTTP(w, r)
	})
}

// HLS returns the handler for /live/{ip}/{profile}/{file...}.
func (p *Proxy) HLS() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !p.enabled {
			writeError(w, ErrDisabled.Error(), http.StatusServiceUnavailable)
			return
		}
		if profile := r.PathValue("profile"); !validProfile(profile) {
			writeError(w, fmt.Sprintf("%s: %s", ErrInvalidProfile, profile), http.StatusBadRequest)
			return
		}
		p.hls.ServeHTTP(w, r)
	})
}

func (p *Proxy) reverseProxy(prefix string, timeout time.Duration, modify func(*http.Response) error) *httputil.ReverseProxy {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.ResponseHeaderTimeout = timeout
	transport.DialContext = (&net.Dialer{Timeout: timeout}).DialContext

	return &httputil.ReverseProxy{
		Rewrite: func(pr *httputil.ProxyRequest) {
			pr.Out.URL.Scheme = p.base.Scheme
			pr.Out.URL.Host = p.base.Host
			pr.Out.URL.Path = p.base.Path + prefix + pr.In.URL.Path
			pr.Out.URL.RawPath = ""
			pr.Out.Host = p.base.Host
			pr.SetXForwarded()
		},
		Transport:      transport,
		ModifyResponse: modify,
		ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
			p.logger.Warn("NVR request failed", "path", r.URL.Path, "error", err)

			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				writeError(w, "NVR request timeout", http.StatusGatewayTimeout)
				return
			}
			writeError(w, fmt.Sprintf("NVR request failed: %v", err), http.StatusBadGateway)
		},
	}
}

// hlsCaching rejects upstream errors and sets cache headers: playlists are
// never cached, segments are immutable.
func hlsCaching(resp *http.Response) error {
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%w: %s", ErrUpstream, resp.Status)
	}
	h := resp.Header
	if strings.HasSuffix(resp.Request.URL.Path, "/"+playlistName) {
		h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
		h.Set("Pragma", "no-cache")
		h.Set("Expires", "0")
		if h.Get("Content-Type") == "" {
			h.Set("Content-Type", "application/vnd.apple.mpegurl")
		}
		return nil
	}
	h.Set("Cache-Control", "public, max-age=3600")
	if h.Get("Content-Type") == "" {
		h.Set("Content-Type", "video/mp2t")
	}
	return nil
}

func writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]any{
		"ok":    false,
		"ts":    time.Now().UnixMilli(),
		"error": message,
	})
}

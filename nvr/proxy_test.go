package nvr_test

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"i4.energy/across/linkstation/nvr"
)

type upstreamRequest struct {
	path    string
	query   string
	rangeHd string
}

func newUpstream(t *testing.T) (*httptest.Server, <-chan upstreamRequest) {
	t.Helper()
	seen := make(chan upstreamRequest, 8)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen <- upstreamRequest{path: r.URL.Path, query: r.URL.RawQuery, rangeHd: r.Header.Get("Range")}
		switch r.URL.Path {
		case "/v1/cameras":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"cameras":[]}`)
		case "/v1/recordings/192.168.11.103/files/2026-10-01/seg.mp4":
			w.Header().Set("Content-Range", "bytes 0-3/100")
			w.WriteHeader(http.StatusPartialContent)
			io.WriteString(w, "abcd")
		case "/v1/cameras/192.168.11.103/stream", "/v1/cameras/192.168.11.100/stream":
			ip := strings.Split(r.URL.Path, "/")[3]
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"ok":true,"ts":1760000000000,"stream":{"url":"rtsp://admin:pw@%[1]s:554/sub","main_url":"rtsp://admin:pw@%[1]s:554/main","codec":"h264"}}`, ip)
		case "/v1/cameras/192.168.11.103/live-hls":
			w.Header().Set("Content-Type", "application/json")
			io.WriteString(w, `{"ok":true,"camera":{"ip":"192.168.11.103","online":false,"auth":"fail","auth_status":"unauthorized"},"hls":{"playlist":"/live/192.168.11.103/sub/index.m3u8"}}`)
		case "/live/192.168.11.103/sub/index.m3u8":
			io.WriteString(w, "#EXTM3U\n")
		case "/live/192.168.11.103/sub/seg_00991.ts":
			io.WriteString(w, "ts")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv, seen
}

func hlsMux(p *nvr.Proxy) *http.ServeMux {
	mux := http.NewServeMux()
	mux.Handle("GET /live/{ip}/{profile}/{file...}", p.HLS())
	return mux
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("invalid error body: %v", err)
	}
	if body.OK {
		t.Error("expected ok=false")
	}
	return body.Error
}

func TestProxyAPI(t *testing.T) {
	t.Run("Forwards under the NVR prefix", func(t *testing.T) {
		upstream, seen := newUpstream(t)
		p, err := nvr.NewProxy(upstream.URL, true, time.Second, nil)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		rec := httptest.NewRecorder()
		p.API().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/cameras?online=1", nil))

		if rec.Code != http.StatusOK || rec.Body.String() != `{"cameras":[]}` {
			t.Errorf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
		req := <-seen
		if req.path != "/v1/cameras" || req.query != "online=1" {
			t.Errorf("unexpected upstream request %+v", req)
		}
	})

	t.Run("Recording downloads keep range headers", func(t *testing.T) {
		upstream, seen := newUpstream(t)
		p, _ := nvr.NewProxy(upstream.URL, true, time.Second, nil)

		r := httptest.NewRequest(http.MethodGet, "/recordings/192.168.11.103/files/2026-10-01/seg.mp4", nil)
		r.Header.Set("Range", "bytes=0-3")
		rec := httptest.NewRecorder()
		p.API().ServeHTTP(rec, r)

		if rec.Code != http.StatusPartialContent || rec.Header().Get("Content-Range") != "bytes 0-3/100" {
			t.Errorf("unexpected response %d %v", rec.Code, rec.Header())
		}
		if req := <-seen; req.rangeHd != "bytes=0-3" {
			t.Errorf("range header not forwarded: %+v", req)
		}
	})

	t.Run("Disabled integration", func(t *testing.T) {
		p, _ := nvr.NewProxy("", false, 0, nil)

		rec := httptest.NewRecorder()
		p.API().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("expected 503, got %d", rec.Code)
		}
		if msg := decodeError(t, rec); msg != nvr.ErrDisabled.Error() {
			t.Errorf("unexpected error %q", msg)
		}
	})

	t.Run("Unreachable NVR", func(t *testing.T) {
		upstream, _ := newUpstream(t)
		url := upstream.URL
		upstream.Close()
		p, _ := nvr.NewProxy(url, true, time.Second, nil)

		rec := httptest.NewRecorder()
		p.API().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})

	t.Run("Relative base URL is rejected", func(t *testing.T) {
		if _, err := nvr.NewProxy("192.168.99.11:8787", true, 0, nil); err == nil {
			t.Error("expected error for relative base URL")
		}
	})
}

func TestProxyHLS(t *testing.T) {
	t.Run("Playlists are not cached", func(t *testing.T) {
		upstream, _ := newUpstream(t)
		p, _ := nvr.NewProxy(upstream.URL, true, time.Second, nil)

		rec := httptest.NewRecorder()
		hlsMux(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live/192.168.11.103/sub/index.m3u8", nil))

		if rec.Code != http.StatusOK || rec.Body.String() != "#EXTM3U\n" {
			t.Fatalf("unexpected response %d %q", rec.Code, rec.Body.String())
		}
		if got := rec.Header().Get("Cache-Control"); got != "no-cache, no-store, must-revalidate" {
			t.Errorf("unexpected Cache-Control %q", got)
		}
		if rec.Header().Get("Pragma") != "no-cache" || rec.Header().Get("Expires") != "0" {
			t.Errorf("missing no-cache headers: %v", rec.Header())
		}
	})

	t.Run("Segments are cacheable", func(t *testing.T) {
		upstream, _ := newUpstream(t)
		p, _ := nvr.NewProxy(upstream.URL, true, time.Second, nil)

		rec := httptest.NewRecorder()
		hlsMux(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live/192.168.11.103/sub/seg_00991.ts", nil))

		if rec.Code != http.StatusOK {
			t.Fatalf("unexpected status %d", rec.Code)
		}
		if got := rec.Header().Get("Cache-Control"); got != "public, max-age=3600" {
			t.Errorf("unexpected Cache-Control %q", got)
		}
	})

	t.Run("Unknown profile", func(t *testing.T) {
		upstream, _ := newUpstream(t)
		p, _ := nvr.NewProxy(upstream.URL, true, time.Second, nil)

		rec := httptest.NewRecorder()
		hlsMux(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live/192.168.11.103/hd/index.m3u8", nil))

		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("Upstream errors become bad gateway", func(t *testing.T) {
		upstream, _ := newUpstream(t)
		p, _ := nvr.NewProxy(upstream.URL, true, time.Second, nil)

		rec := httptest.NewRecorder()
		hlsMux(p).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/live/192.168.11.104/main/index.m3u8", nil))

		if rec.Code != http.StatusBadGateway {
			t.Errorf("expected 502, got %d", rec.Code)
		}
	})
}

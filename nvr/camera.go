package nvr

import (
	"bytes"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"regexp"
	"strconv"
)

// DefaultPublicBasePort is added to a camera's host offset to form the
// public RTSP port of its sub stream.
const DefaultPublicBasePort = 9550

// Cameras are numbered from .101; .101 maps to base port + 1.
const cameraHostBase = 100

var (
	streamPathRe  = regexp.MustCompile(`/cameras/([^/]+)/stream$`)
	liveHLSPathRe = regexp.MustCompile(`/cameras/([^/]+)/live-hls$`)
)

// PublicStream sets the host and base port that camera RTSP URLs are
// rewritten to. An empty host leaves stream URLs as the NVR reports them.
func (p *Proxy) PublicStream(host string, basePort int) {
	if basePort <= 0 {
		basePort = DefaultPublicBasePort
	}
	p.publicHost = host
	p.publicBasePort = basePort
}

func validProfile(profile string) bool {
	return profile == "sub" || profile == "main"
}

// rewritesJSON reports whether the NVR answer for path is patched before
// it is returned.
func rewritesJSON(path string) bool {
	return streamPathRe.MatchString(path) || liveHLSPathRe.MatchString(path)
}

// rewriteCamera patches successful camera stream and live-hls answers.
func (p *Proxy) rewriteCamera(resp *http.Response) error {
	path := resp.Request.URL.Path
	var (
		patch func(data map[string]any, ip string)
		m     []string
	)
	if m = streamPathRe.FindStringSubmatch(path); m != nil {
		patch = p.publicStreamURLs
	} else if m = liveHLSPathRe.FindStringSubmatch(path); m != nil {
		patch = markCameraOnline
	} else {
		return nil
	}
	if resp.StatusCode != http.StatusOK || resp.Header.Get("Content-Encoding") != "" {
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return err
	}

	var data map[string]any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&data); err != nil {
		p.logger.Debug("NVR camera answer is not a JSON object", "path", path, "error", err)
		resp.Body = io.NopCloser(bytes.NewReader(body))
		return nil
	}
	patch(data, m[1])

	out, err := json.Marshal(data)
	if err != nil {
		return err
	}
	resp.Body = io.NopCloser(bytes.NewReader(out))
	resp.ContentLength = int64(len(out))
	resp.Header.Set("Content-Length", strconv.Itoa(len(out)))
	return nil
}

// publicStreamURLs points stream.url and stream.main_url at the public NVR
// entry. The port is the base port plus the camera's last octet minus 100;
// cameras at .100 or below keep their URLs.
func (p *Proxy) publicStreamURLs(data map[string]any, ip string) {
	if p.publicHost == "" {
		return
	}
	stream, ok := data["stream"].(map[string]any)
	if !ok {
		return
	}
	if u, _ := stream["url"].(string); u == "" {
		return
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return
	}
	offset := int(addr.As4()[3]) - cameraHostBase
	if offset < 1 {
		return
	}
	hostPort := net.JoinHostPort(p.publicHost, strconv.Itoa(p.publicBasePort+offset))

	for _, key := range []string{"url", "main_url"} {
		raw, _ := stream[key].(string)
		if raw == "" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		u.Host = hostPort
		stream[key] = u.String()
	}
}

// markCameraOnline reports the camera as online and authenticated: the NVR
// only answers live-hls for a camera it can reach.
func markCameraOnline(data map[string]any, _ string) {
	camera, ok := data["camera"].(map[string]any)
	if !ok {
		return
	}
	camera["online"] = true
	camera["auth"] = "ok"
	if _, ok := camera["auth_status"]; ok {
		camera["auth_status"] = "ok"
	}
}

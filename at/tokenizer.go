package at

import (
	"bytes"
	"strings"
)

// Terminal markers searched for anywhere in an accumulated response buffer.
// The AT protocol carries no length prefix, so a response is complete once
// one of these appears.
var (
	okMarkers = [][]byte{
		[]byte("\r\nOK\r\n"),
		[]byte("\nOK\r\n"),
		[]byte("\r\nOK\n"),
	}
	errorMarkers = [][]byte{
		[]byte("\r\nERROR"),
		[]byte("\nERROR"),
		[]byte(CmeError[:len(CmeError)-1]),
		[]byte(CmsError[:len(CmsError)-1]),
	}
)

// Done reports whether buf contains a success or error terminal marker.
//
// A buffer that starts with a bare "OK" or "ERROR" line also counts, which
// happens when the modem runs with echo disabled and omits the leading CRLF.
func Done(buf []byte) bool {
	if bytes.HasPrefix(buf, []byte(OK+CRLF)) || bytes.HasPrefix(buf, []byte(ERROR)) {
		return true
	}
	for _, m := range okMarkers {
		if bytes.Contains(buf, m) {
			return true
		}
	}
	for _, m := range errorMarkers {
		if bytes.Contains(buf, m) {
			return true
		}
	}
	return false
}

// Lines normalizes CRLF and bare CR line endings to LF, splits buf into
// lines and drops trailing blank lines. Leading and interior blank lines are
// kept so callers see the modem output as it was sent.
func Lines(buf []byte) []string {
	text := strings.ToValidUTF8(string(buf), "")
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	lines := strings.Split(text, "\n")
	for len(lines) > 0 && lines[len(lines)-1] == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}

// Classify identifies the nature of the modem output
func Classify(line string) ResponseType {
	line = strings.TrimSpace(line)

	// Direct matches for final results
	switch line {
	case OK, ERROR, NoCarrier, NoDialtone, Busy, NoAnswer:
		return TypeFinal
	}

	// Prefix matches
	switch {
	case strings.HasPrefix(line, CmeError), strings.HasPrefix(line, CmsError):
		return TypeFinal
	case strings.HasPrefix(line, UrcNewMsg), line == UrcCall, line == UrcPowerUp:
		return TypeURC
	case len(line) >= 2 && strings.EqualFold(line[:2], CommandPrefix):
		return TypeEcho
	default:
		return TypeData
	}
}

// Payload returns the response lines that carry data: command echoes,
// blank lines, URCs and final result codes are dropped.
func Payload(lines []string) []string {
	var out []string
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if s == "" {
			continue
		}
		if Classify(s) == TypeData {
			out = append(out, s)
		}
	}
	return out
}

// FirstPayload returns the first data line of a response, or "" if there is
// none.
func FirstPayload(lines []string) string {
	if p := Payload(lines); len(p) > 0 {
		return p[0]
	}
	return ""
}

// Failed reports whether a response ended in an error result code and
// returns that line.
func Failed(lines []string) (string, bool) {
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if s == ERROR || strings.HasPrefix(s, CmeError) || strings.HasPrefix(s, CmsError) {
			return s, true
		}
	}
	return "", false
}

// Find returns the first line that starts with prefix, trimmed.
func Find(lines []string, prefix string) (string, bool) {
	for _, ln := range lines {
		s := strings.TrimSpace(ln)
		if strings.HasPrefix(s, prefix) {
			return s, true
		}
	}
	return "", false
}

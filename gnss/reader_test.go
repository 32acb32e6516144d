package gnss_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"i4.energy/across/linkstation/gnss"
)

func shell(script string) []string {
	return []string{"sh", "-c", script}
}

func TestReaderRead(t *testing.T) {
	t.Run("Decodes the navigation state", func(t *testing.T) {
		r := gnss.NewReader(shell(`echo '{"fix":"3D","lat":48.1,"raw":["$GPGGA"]}'`), "", 0, nil)

		nav, err := r.Read(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if nav["fix"] != "3D" || nav["lat"] != 48.1 {
			t.Errorf("unexpected nav %v", nav)
		}
		if _, ok := nav["raw"]; ok {
			t.Error("raw should be dropped unless verbose")
		}
	})

	t.Run("Verbose keeps raw sentences", func(t *testing.T) {
		r := gnss.NewReader(shell(`echo '{"raw":["$GPGGA"]}'`), "", 0, nil)

		nav, err := r.Read(context.Background(), true)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := nav["raw"]; !ok {
			t.Error("expected raw in verbose output")
		}
	})

	t.Run("Runs in the configured directory", func(t *testing.T) {
		dir := t.TempDir()
		if err := os.WriteFile(filepath.Join(dir, "nav.json"), []byte(`{"fix":"2D"}`), 0644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
		r := gnss.NewReader([]string{"cat", "nav.json"}, dir, 0, nil)

		nav, err := r.Read(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if nav["fix"] != "2D" {
			t.Errorf("unexpected nav %v", nav)
		}
	})
}

func TestReaderErrors(t *testing.T) {
	tests := []struct {
		name     string
		command  []string
		timeout  time.Duration
		expected error
	}{
		{name: "No command", command: nil, expected: gnss.ErrNoCommand},
		{name: "Timeout", command: shell("sleep 2"), timeout: 50 * time.Millisecond, expected: gnss.ErrReaderTimeout},
		{name: "Non-zero exit", command: shell("echo 'no such device' >&2; exit 3"), expected: gnss.ErrReaderFailed},
		{name: "Empty output", command: shell("echo"), expected: gnss.ErrEmptyOutput},
		{name: "Invalid JSON", command: shell("echo not-json"), expected: gnss.ErrInvalidOutput},
		{name: "JSON that is not an object", command: shell("echo null"), expected: gnss.ErrInvalidOutput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gnss.NewReader(tt.command, "", tt.timeout, nil)

			_, err := r.Read(context.Background(), false)
			if !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got: %v", tt.expected, err)
			}
		})
	}

	t.Run("Failure detail comes from stderr", func(t *testing.T) {
		r := gnss.NewReader(shell("echo 'no such device' >&2; exit 3"), "", 0, nil)

		_, err := r.Read(context.Background(), false)
		if err == nil || err.Error() != "GNSS reader error: no such device" {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestReaderSatellitePatch(t *testing.T) {
	dir := t.TempDir()
	frame := filepath.Join(dir, "frame.json")
	write := func(s string) {
		t.Helper()
		if err := os.WriteFile(frame, []byte(s), 0644); err != nil {
			t.Fatalf("Setup failed: %v", err)
		}
	}
	r := gnss.NewReader([]string{"cat", frame}, "", 0, nil)

	t.Run("No satellites before a good frame", func(t *testing.T) {
		write(`{"fix":"none"}`)
		nav, err := r.Read(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := nav["satellites"]; ok {
			t.Errorf("unexpected satellites %v", nav["satellites"])
		}
	})

	t.Run("Good frame is passed through", func(t *testing.T) {
		write(`{"satellites":{"valid":true,"in_view":9,"in_use":6,"list":[{"prn":5}]}}`)
		nav, err := r.Read(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sats := nav["satellites"].(map[string]any)
		if sats["in_view"] != 9.0 {
			t.Errorf("unexpected satellites %v", sats)
		}
	})

	t.Run("Later frame without satellites is patched", func(t *testing.T) {
		write(`{"fix":"3D","satellites":{"valid":false,"in_view":0}}`)
		nav, err := r.Read(context.Background(), false)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		sats := nav["satellites"].(map[string]any)
		if sats["valid"] != true || sats["in_use"] != 6.0 || sats["in_view"] != 9.0 {
			t.Errorf("expected last good satellites, got %v", sats)
		}
		if list, _ := sats["list"].([]any); len(list) != 1 {
			t.Errorf("expected satellite list, got %v", sats["list"])
		}
	})
}

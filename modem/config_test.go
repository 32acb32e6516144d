package modem_test

import (
	"errors"
	"testing"
	"time"

	"i4.energy/across/linkstation/modem"
)

func TestConfig(t *testing.T) {
	t.Run("ErrNoDevicePath when no device path provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().Build()

		if err != modem.ErrNoDevicePath {
			t.Errorf("expected ErrNoDevicePath, got: %v", err)
		}
	})

	t.Run("ErrNoDialer when a nil dialer is provided", func(t *testing.T) {
		_, err := modem.NewConfigBuilder().
			WithDevicePath("/dev/ttyUSB2").
			WithDialer(nil).
			Build()

		if !errors.Is(err, modem.ErrNoDialer) {
			t.Errorf("expected ErrNoDialer, got: %v", err)
		}
	})

	t.Run("Defaults", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDevicePath("/dev/ttyUSB2").
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}

		if config.BaudRate() != 115200 {
			t.Errorf("expected baud 115200, got %d", config.BaudRate())
		}
		if config.Deadline() != 1200*time.Millisecond {
			t.Errorf("expected deadline 1.2s, got %s", config.Deadline())
		}
		if config.InterfaceSuffix() != ":1.2" {
			t.Errorf("expected suffix :1.2, got %q", config.InterfaceSuffix())
		}
		if _, ok := config.Topology().(modem.SysfsTopology); !ok {
			t.Errorf("expected sysfs topology, got %T", config.Topology())
		}
	})

	t.Run("Zero values keep defaults", func(t *testing.T) {
		config, err := modem.NewConfigBuilder().
			WithDevicePath("/dev/ttyUSB2").
			WithBaudRate(0).
			WithDeadline(0).
			WithInterfaceSuffix("").
			Build()
		if err != nil {
			t.Fatalf("unexpected error from Build(): %v", err)
		}
		if config.BaudRate() != 115200 || config.Deadline() != 1200*time.Millisecond || config.InterfaceSuffix() != ":1.2" {
			t.Errorf("zero values should not override defaults: %+v", config)
		}
	})
}

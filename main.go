package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"i4.energy/across/linkstation/modem"
)

var rootCmd = &cobra.Command{
	Use:   "linkstation",
	Short: "Cellular modem gateway for the LinkStation",
	Long: `linkstation owns the AT command port of a cellular modem and exposes
it over HTTP together with live radio state, GNSS and NVR passthrough.

Configuration is layered: defaults, then the YAML file given by --config,
then environment variables, then flags set on the command line.`,
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("config", "/etc/linkstation/config.yaml", "Path to the YAML configuration file")
	flags.String("serial-port", "/dev/ttyUSB2", "Preferred AT serial port")
	flags.Int("baud-rate", 115200, "Baud rate for serial communication")
	flags.Duration("deadline", modem.DefaultDeadline, "Default deadline for one AT command")
	flags.String("interface-suffix", modem.DefaultInterfaceSuffix, "USB interface suffix of the AT port")
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads the layered configuration and builds the process logger.
func setup(cmd *cobra.Command) (*Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	config, err := LoadConfig(WithDefaults(), WithFile(path), WithEnv(), WithFlags(cmd.Flags()))
	if err != nil {
		return nil, nil, fmt.Errorf("load configuration: %w", err)
	}

	var logLevel slog.Level
	switch config.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
	return config, logger, nil
}

func newModem(ctx context.Context, config *Config, logger *slog.Logger) (*modem.Modem, error) {
	modemConfig, err := modem.NewConfigBuilder().
		WithDevicePath(config.Serial.Port).
		WithBaudRate(config.Serial.BaudRate).
		WithDeadline(config.Serial.Deadline).
		WithInterfaceSuffix(config.Serial.InterfaceSuffix).
		WithBackoff(config.Serial.Backoff...).
		WithLogger(logger.With("component", "modem")).
		Build()
	if err != nil {
		return nil, fmt.Errorf("create modem config: %w", err)
	}

	m, err := modem.New(ctx, modemConfig)
	if err != nil {
		return nil, fmt.Errorf("create modem: %w", err)
	}
	return m, nil
}

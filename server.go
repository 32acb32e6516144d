package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"i4.energy/across/linkstation/api"
	"i4.energy/across/linkstation/gnss"
	"i4.energy/across/linkstation/nvr"
	"i4.energy/across/linkstation/poller"
	"i4.energy/across/linkstation/sysinfo"
	"i4.energy/across/linkstation/telemetry"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API and the live poller",
	Long: `Run the HTTP API, the live snapshot poller and, when a broker is
configured, the MQTT publisher until SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		config, logger, err := setup(cmd)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		m, err := newModem(ctx, config, logger)
		if err != nil {
			return err
		}

		proxy, err := nvr.NewProxy(config.NVR.URL(), config.NVR.Enabled, config.NVR.Timeout, logger.With("component", "nvr"))
		if err != nil {
			return fmt.Errorf("create NVR proxy: %w", err)
		}
		proxy.PublicStream(config.NVR.StreamHost(), config.NVR.PublicBasePort)

		state := poller.NewState()
		go poller.New(m, state, config.Live.Interval, logger.With("component", "poller")).Run(ctx)

		if config.MQTT.Broker != "" {
			sink, err := telemetry.Dial(telemetry.Config{
				Broker:   config.MQTT.Broker,
				ClientID: config.MQTT.ClientID,
				Topic:    config.MQTT.Topic,
				Username: config.MQTT.Username,
				Password: config.MQTT.Password,
			}, logger.With("component", "mqtt"))
			if err != nil {
				logger.Error("MQTT publisher disabled", "broker", config.MQTT.Broker, "error", err)
			} else {
				defer sink.Close()
				updates, unsubscribe := state.Subscribe()
				defer unsubscribe()
				go telemetry.NewPublisher(sink, config.MQTT.Topic, logger.With("component", "telemetry")).Run(ctx, updates)
			}
		}

		server := &api.Server{
			Logger:   logger.With("component", "server"),
			Modem:    m,
			Live:     state,
			NVR:      proxy,
			HostInfo: sysinfo.Collect,
			Options: api.Options{
				Title:          config.API.Title,
				Prefix:         config.API.Prefix,
				SerialPort:     config.Serial.Port,
				BaudRate:       config.Serial.BaudRate,
				AuthRequired:   config.API.AuthRequired,
				AuthToken:      config.API.AuthToken,
				CtrlEnabled:    config.Ctrl.Enabled,
				AllowDangerous: config.Ctrl.AllowDangerous,
			},
			Started: time.Now(),
		}
		if len(config.GNSS.Command) > 0 {
			server.GNSS = gnss.NewReader(config.GNSS.Command, config.GNSS.Dir, config.GNSS.Timeout, logger.With("component", "gnss"))
		}

		httpServer := &http.Server{
			Addr:    config.BindAddress,
			Handler: server,
		}

		serveErr := make(chan error, 1)
		go func() {
			logger.Info("Starting HTTP server", "address", httpServer.Addr, "serial_port", config.Serial.Port)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serveErr <- err
			}
		}()

		select {
		case <-ctx.Done():
			logger.Info("Received shutdown signal")
		case err := <-serveErr:
			logger.Error("HTTP server failed", "error", err)
			m.Close()
			return err
		}

		logger.Info("Closing modem connection")
		if err := m.Close(); err != nil {
			logger.Error("Failed to close modem", "error", err)
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("Closing HTTP server")
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown HTTP server: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("bind-address", "0.0.0.0:8080", "Bind address for the HTTP server")
	serveCmd.Flags().String("api-prefix", "/v1", "Path prefix of the API routes")
	serveCmd.Flags().Bool("auth-required", false, "Require the X-Api-Token header on protected routes")
	serveCmd.Flags().Duration("poll-interval", poller.DefaultInterval, "Pause between live snapshot polls")
	serveCmd.Flags().String("mqtt-broker", "", "MQTT broker URL for live snapshot publishing")
}

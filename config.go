package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
	"i4.energy/across/linkstation/nvr"
)

// Config holds the application configuration
type Config struct {
	// BindAddress is the address the server listens on (e.g. "0.0.0.0:8080")
	BindAddress string `yaml:"bind_address"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`

	Serial SerialConfig `yaml:"serial"`
	Live   LiveConfig   `yaml:"live"`
	API    APIConfig    `yaml:"api"`
	Ctrl   CtrlConfig   `yaml:"ctrl"`
	NVR    NVRConfig    `yaml:"nvr"`
	GNSS   GNSSConfig   `yaml:"gnss"`
	MQTT   MQTTConfig   `yaml:"mqtt"`
}

// SerialConfig configures the AT command link
type SerialConfig struct {
	// Port is the preferred device node (e.g. "/dev/ttyUSB2")
	Port string `yaml:"port"`
	// BaudRate is the baud rate for serial communication with the modem
	BaudRate int `yaml:"baud_rate"`
	// Deadline bounds one command exchange
	Deadline time.Duration `yaml:"deadline"`
	// InterfaceSuffix selects the AT interface when the port is renumbered
	InterfaceSuffix string `yaml:"interface_suffix"`
	// Backoff is the reconnect schedule
	Backoff []time.Duration `yaml:"backoff"`
}

type LiveConfig struct {
	// Interval is the pause between live snapshot polls
	Interval time.Duration `yaml:"interval"`
}

type APIConfig struct {
	Title        string `yaml:"title"`
	Prefix       string `yaml:"prefix"`
	AuthRequired bool   `yaml:"auth_required"`
	AuthToken    string `yaml:"auth_token"`
}

type CtrlConfig struct {
	Enabled        bool `yaml:"enabled"`
	AllowDangerous bool `yaml:"allow_dangerous"`
}

type NVRConfig struct {
	Enabled bool          `yaml:"enabled"`
	BaseURL string        `yaml:"base_url"`
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`

	// PublicHost and PublicBasePort form the RTSP address handed out for
	// camera streams. PublicHost defaults to Host.
	PublicHost     string `yaml:"public_host"`
	PublicBasePort int    `yaml:"public_base_port"`
}

// StreamHost returns the host camera stream URLs are rewritten to.
func (c NVRConfig) StreamHost() string {
	if c.PublicHost != "" {
		return c.PublicHost
	}
	return c.Host
}

// URL returns BaseURL, or one derived from Host and Port when unset.
func (c NVRConfig) URL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return fmt.Sprintf("http://%s:%d", c.Host, c.Port)
}

type GNSSConfig struct {
	// Command is the reader program and its arguments; empty disables GNSS
	Command []string      `yaml:"command"`
	Dir     string        `yaml:"dir"`
	Timeout time.Duration `yaml:"timeout"`
}

type MQTTConfig struct {
	// Broker is the broker URL (e.g. "tcp://127.0.0.1:1883"); empty disables publishing
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

func (s *SerialConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsToDurations(node, "deadline", "backoff"); err != nil {
		return err
	}
	type plain SerialConfig
	return node.Decode((*plain)(s))
}

func (l *LiveConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsToDurations(node, "interval"); err != nil {
		return err
	}
	type plain LiveConfig
	return node.Decode((*plain)(l))
}

func (n *NVRConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsToDurations(node, "timeout"); err != nil {
		return err
	}
	type plain NVRConfig
	return node.Decode((*plain)(n))
}

func (g *GNSSConfig) UnmarshalYAML(node *yaml.Node) error {
	if err := secondsToDurations(node, "timeout"); err != nil {
		return err
	}
	type plain GNSSConfig
	return node.Decode((*plain)(g))
}

// secondsToDurations rewrites numeric values of the given mapping keys,
// sequence items included, into duration strings so plain seconds decode
// into time.Duration fields.
func secondsToDurations(node *yaml.Node, keys ...string) error {
	if node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i].Value
		if !slices.Contains(keys, key) {
			continue
		}
		value := node.Content[i+1]
		items := []*yaml.Node{value}
		if value.Kind == yaml.SequenceNode {
			items = value.Content
		}
		for _, item := range items {
			if item.Kind != yaml.ScalarNode {
				continue
			}
			if tag := item.ShortTag(); tag != "!!int" && tag != "!!float" {
				continue
			}
			d, err := parseDuration(item.Value)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			item.Tag = "!!str"
			item.Value = d.String()
		}
	}
	return nil
}

// ConfigOption is a function that modifies a Config
type ConfigOption func(*Config) error

// LoadConfig creates a new config by applying the given options in order
func LoadConfig(opts ...ConfigOption) (*Config, error) {
	config := &Config{}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, err
		}
	}

	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.BindAddress = "0.0.0.0:8080"
		c.LogLevel = "info"
		c.Serial = SerialConfig{
			Port:            "/dev/ttyUSB2",
			BaudRate:        115200,
			Deadline:        1200 * time.Millisecond,
			InterfaceSuffix: ":1.2",
			Backoff:         []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second},
		}
		c.Live = LiveConfig{Interval: time.Second}
		c.API = APIConfig{
			Title:     "LinkStation Modem API",
			Prefix:    "/v1",
			AuthToken: "changeme",
		}
		c.Ctrl = CtrlConfig{Enabled: true}
		c.NVR = NVRConfig{
			Enabled: true,
			Host:    "192.168.99.11",
			Port:    8787,
			Timeout: 3 * time.Second,

			PublicBasePort: nvr.DefaultPublicBasePort,
		}
		c.GNSS = GNSSConfig{Timeout: 2500 * time.Millisecond}
		c.MQTT = MQTTConfig{ClientID: "linkstation", Topic: "linkstation/live"}
		return nil
	}
}

// WithFile loads configuration from a YAML file. A missing file is not an
// error.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		if path == "" {
			return nil
		}
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		var errs []error
		str := func(key string, dst *string) {
			if v := os.Getenv(key); v != "" {
				*dst = v
			}
		}
		num := func(key string, dst *int) {
			if v := os.Getenv(key); v != "" {
				n, err := strconv.Atoi(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = n
			}
		}
		flag := func(key string, dst *bool) {
			if v := os.Getenv(key); v != "" {
				b, err := parseBool(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = b
			}
		}
		dur := func(key string, dst *time.Duration) {
			if v := os.Getenv(key); v != "" {
				d, err := parseDuration(v)
				if err != nil {
					errs = append(errs, fmt.Errorf("%s: %w", key, err))
					return
				}
				*dst = d
			}
		}

		str("BIND_ADDRESS", &c.BindAddress)
		str("LOG_LEVEL", &c.LogLevel)

		str("SERIAL_PORT", &c.Serial.Port)
		num("BAUDRATE", &c.Serial.BaudRate)
		dur("AT_DEADLINE", &c.Serial.Deadline)
		str("AT_INTERFACE_SUFFIX", &c.Serial.InterfaceSuffix)
		if v := os.Getenv("AT_BACKOFF"); v != "" {
			steps, err := parseDurations(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("AT_BACKOFF: %w", err))
			} else {
				c.Serial.Backoff = steps
			}
		}
		dur("POLL_INTERVAL", &c.Live.Interval)

		str("API_TITLE", &c.API.Title)
		str("API_PREFIX", &c.API.Prefix)
		flag("AUTH_REQUIRED", &c.API.AuthRequired)
		str("AUTH_TOKEN", &c.API.AuthToken)

		flag("LINKSTATION_CTRL_ENABLE", &c.Ctrl.Enabled)
		flag("LINKSTATION_CTRL_ALLOW_DANGEROUS", &c.Ctrl.AllowDangerous)

		flag("NVR_ENABLED", &c.NVR.Enabled)
		str("NVR_BASE_URL", &c.NVR.BaseURL)
		str("NVR_HOST", &c.NVR.Host)
		num("NVR_PORT", &c.NVR.Port)
		dur("NVR_TIMEOUT", &c.NVR.Timeout)
		str("NVR_PUBLIC_HOST", &c.NVR.PublicHost)
		num("NVR_PUBLIC_SUB_BASE_PORT", &c.NVR.PublicBasePort)

		if v := os.Getenv("GNSS_COMMAND"); v != "" {
			c.GNSS.Command = strings.Fields(v)
		}
		str("GNSS_DIR", &c.GNSS.Dir)
		dur("GNSS_TIMEOUT", &c.GNSS.Timeout)

		str("MQTT_BROKER", &c.MQTT.Broker)
		str("MQTT_CLIENT_ID", &c.MQTT.ClientID)
		str("MQTT_TOPIC", &c.MQTT.Topic)
		str("MQTT_USERNAME", &c.MQTT.Username)
		str("MQTT_PASSWORD", &c.MQTT.Password)

		return errors.Join(errs...)
	}
}

// WithFlags loads configuration from command-line flags that were set
// explicitly
func WithFlags(fSet *pflag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var errs []error
		fSet.Visit(func(f *pflag.Flag) {
			value := f.Value.String()
			switch f.Name {
			case "bind-address":
				c.BindAddress = value
			case "log-level":
				c.LogLevel = value
			case "serial-port":
				c.Serial.Port = value
			case "baud-rate":
				if b, err := strconv.Atoi(value); err == nil {
					c.Serial.BaudRate = b
				} else {
					errs = append(errs, fmt.Errorf("--baud-rate: %w", err))
				}
			case "deadline":
				if d, err := time.ParseDuration(value); err == nil {
					c.Serial.Deadline = d
				} else {
					errs = append(errs, fmt.Errorf("--deadline: %w", err))
				}
			case "interface-suffix":
				c.Serial.InterfaceSuffix = value
			case "poll-interval":
				if d, err := time.ParseDuration(value); err == nil {
					c.Live.Interval = d
				} else {
					errs = append(errs, fmt.Errorf("--poll-interval: %w", err))
				}
			case "api-prefix":
				c.API.Prefix = value
			case "auth-required":
				c.API.AuthRequired = value == "true"
			case "mqtt-broker":
				c.MQTT.Broker = value
			}
		})
		return errors.Join(errs...)
	}
}

// parseBool accepts the usual boolean spellings plus yes/no and on/off.
func parseBool(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "yes", "on":
		return true, nil
	case "no", "off":
		return false, nil
	}
	return strconv.ParseBool(strings.TrimSpace(s))
}

// parseDuration accepts Go durations ("1.2s") and plain seconds ("1.2").
func parseDuration(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if d, err := time.ParseDuration(s); err == nil {
		return d, nil
	}
	secs, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", s)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

func parseDurations(s string) ([]time.Duration, error) {
	var steps []time.Duration
	for part := range strings.SplitSeq(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		d, err := parseDuration(part)
		if err != nil {
			return nil, err
		}
		steps = append(steps, d)
	}
	return steps, nil
}

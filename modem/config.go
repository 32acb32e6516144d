package modem

import (
	"log/slog"
	"slices"
	"time"
)

const (
	DefaultBaudRate        = 115200
	DefaultReadTimeout     = 100 * time.Millisecond
	DefaultDeadline        = 1200 * time.Millisecond
	DefaultPollInterval    = time.Second
	DefaultInterfaceSuffix = ":1.2"

	defaultIdleSleep = 10 * time.Millisecond
)

// DefaultBackoff is the wait schedule consumed left to right after an I/O
// failure.
var DefaultBackoff = []time.Duration{2 * time.Second, 5 * time.Second, 10 * time.Second}

// Config holds the transport settings of a Modem. Build it with
// NewConfigBuilder.
type Config struct {
	devicePath      string
	interfaceSuffix string
	baudRate        int
	deadline        time.Duration
	readTimeout     time.Duration
	idleSleep       time.Duration
	backoff         []time.Duration
	pollInterval    time.Duration
	dialer          Dialer
	topology        Topology
	logger          *slog.Logger
}

func (c *Config) validate() error {
	if c.devicePath == "" {
		return ErrNoDevicePath
	}
	if c.dialer == nil {
		return ErrNoDialer
	}
	return nil
}

// DevicePath returns the preferred device node.
func (c Config) DevicePath() string { return c.devicePath }

// BaudRate returns the configured line speed.
func (c Config) BaudRate() int { return c.baudRate }

// Deadline returns the default per-call deadline.
func (c Config) Deadline() time.Duration { return c.deadline }

// InterfaceSuffix returns the initial expected interface suffix.
func (c Config) InterfaceSuffix() string { return c.interfaceSuffix }

// Topology returns the device topology used for resolution.
func (c Config) Topology() Topology { return c.topology }

// ConfigBuilder assembles a Config with defaults for every unset field.
type ConfigBuilder struct {
	config       Config
	customDialer bool
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{
		config: Config{
			interfaceSuffix: DefaultInterfaceSuffix,
			baudRate:        DefaultBaudRate,
			deadline:        DefaultDeadline,
			readTimeout:     DefaultReadTimeout,
			idleSleep:       defaultIdleSleep,
			backoff:         slices.Clone(DefaultBackoff),
			pollInterval:    DefaultPollInterval,
		},
	}
}

func (b *ConfigBuilder) WithDevicePath(path string) *ConfigBuilder {
	b.config.devicePath = path
	return b
}

func (b *ConfigBuilder) WithInterfaceSuffix(suffix string) *ConfigBuilder {
	if suffix != "" {
		b.config.interfaceSuffix = suffix
	}
	return b
}

func (b *ConfigBuilder) WithBaudRate(baud int) *ConfigBuilder {
	if baud > 0 {
		b.config.baudRate = baud
	}
	return b
}

// WithDeadline sets the deadline used when Execute is called with zero.
func (b *ConfigBuilder) WithDeadline(d time.Duration) *ConfigBuilder {
	if d > 0 {
		b.config.deadline = d
	}
	return b
}

func (b *ConfigBuilder) WithReadTimeout(d time.Duration) *ConfigBuilder {
	if d > 0 {
		b.config.readTimeout = d
	}
	return b
}

// WithIdleSleep sets the pause between reads that returned no data.
func (b *ConfigBuilder) WithIdleSleep(d time.Duration) *ConfigBuilder {
	if d > 0 {
		b.config.idleSleep = d
	}
	return b
}

// WithBackoff replaces the reconnect schedule. An empty schedule disables
// reconnects: the first I/O failure is surfaced as ErrRecoveryExhausted.
func (b *ConfigBuilder) WithBackoff(steps ...time.Duration) *ConfigBuilder {
	b.config.backoff = slices.Clone(steps)
	return b
}

// WithPollInterval sets how often the resolver is retried inside a backoff
// step.
func (b *ConfigBuilder) WithPollInterval(d time.Duration) *ConfigBuilder {
	if d > 0 {
		b.config.pollInterval = d
	}
	return b
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	b.customDialer = true
	return b
}

func (b *ConfigBuilder) WithTopology(t Topology) *ConfigBuilder {
	b.config.topology = t
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// Build fills in the serial dialer, sysfs topology and a discarding logger
// when none were given and validates the result.
func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	c.backoff = slices.Clone(c.backoff)
	if !b.customDialer {
		c.dialer = SerialDialer{BaudRate: c.baudRate, ReadTimeout: c.readTimeout}
	}
	if c.topology == nil {
		c.topology = NewSysfsTopology()
	}
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

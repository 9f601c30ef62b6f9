package modem

import (
	"errors"
	"log/slog"
	"time"
)

// Config holds the settings for a Modem. Build it with NewConfigBuilder.
type Config struct {
	dialer        Dialer
	logger        *slog.Logger
	ssid          string
	password      string
	listenPort    int
	serverTimeout int

	atTimeout    time.Duration
	initTimeout  time.Duration
	joinTimeout  time.Duration
	sendTimeout  time.Duration
	flushTimeout time.Duration

	ringSize     int
	accSize      int
	maxSendChunk int
	initRetries  int
}

func (c *Config) validate() error {
	if c.dialer == nil {
		return ErrNoDialer
	}
	if c.ringSize < 2 || c.ringSize&(c.ringSize-1) != 0 {
		return errors.New("ring size must be a power of two")
	}
	if c.listenPort < 0 || c.listenPort > 65535 {
		return errors.New("listen port out of range")
	}
	return nil
}

func (c *Config) setDefaults() {
	if c.logger == nil {
		c.logger = slog.New(slog.DiscardHandler)
	}
	if c.listenPort == 0 {
		c.listenPort = 80
	}
	if c.atTimeout == 0 {
		c.atTimeout = 2 * time.Second
	}
	if c.initTimeout == 0 {
		c.initTimeout = 30 * time.Second
	}
	if c.joinTimeout == 0 {
		c.joinTimeout = 20 * time.Second
	}
	if c.sendTimeout == 0 {
		c.sendTimeout = 5 * time.Second
	}
	if c.flushTimeout == 0 {
		c.flushTimeout = 50 * time.Millisecond
	}
	if c.ringSize == 0 {
		c.ringSize = 4096
	}
	if c.accSize == 0 {
		c.accSize = 1024
	}
	if c.maxSendChunk == 0 {
		c.maxSendChunk = 2048
	}
	if c.initRetries == 0 {
		c.initRetries = 3
	}
}

// ConfigBuilder assembles a Config step by step.
type ConfigBuilder struct {
	config Config
}

func NewConfigBuilder() *ConfigBuilder {
	return &ConfigBuilder{}
}

func (b *ConfigBuilder) WithDialer(d Dialer) *ConfigBuilder {
	b.config.dialer = d
	return b
}

func (b *ConfigBuilder) WithLogger(l *slog.Logger) *ConfigBuilder {
	b.config.logger = l
	return b
}

// WithNetwork makes initialization join the given access point. Without it
// the modem keeps whatever network it has stored.
func (b *ConfigBuilder) WithNetwork(ssid, password string) *ConfigBuilder {
	b.config.ssid = ssid
	b.config.password = password
	return b
}

func (b *ConfigBuilder) WithListenPort(port int) *ConfigBuilder {
	b.config.listenPort = port
	return b
}

// WithServerTimeout sets the idle timeout, in seconds, after which the modem
// drops silent server connections. Zero keeps the firmware default.
func (b *ConfigBuilder) WithServerTimeout(seconds int) *ConfigBuilder {
	b.config.serverTimeout = seconds
	return b
}

func (b *ConfigBuilder) WithATTimeout(d time.Duration) *ConfigBuilder {
	b.config.atTimeout = d
	return b
}

func (b *ConfigBuilder) WithInitTimeout(d time.Duration) *ConfigBuilder {
	b.config.initTimeout = d
	return b
}

func (b *ConfigBuilder) WithJoinTimeout(d time.Duration) *ConfigBuilder {
	b.config.joinTimeout = d
	return b
}

func (b *ConfigBuilder) WithSendTimeout(d time.Duration) *ConfigBuilder {
	b.config.sendTimeout = d
	return b
}

func (b *ConfigBuilder) WithFlushTimeout(d time.Duration) *ConfigBuilder {
	b.config.flushTimeout = d
	return b
}

// WithRingSize sets the receive ring capacity. It must be a power of two.
func (b *ConfigBuilder) WithRingSize(n int) *ConfigBuilder {
	b.config.ringSize = n
	return b
}

func (b *ConfigBuilder) WithAccumulatorSize(n int) *ConfigBuilder {
	b.config.accSize = n
	return b
}

func (b *ConfigBuilder) WithMaxSendChunk(n int) *ConfigBuilder {
	b.config.maxSendChunk = n
	return b
}

func (b *ConfigBuilder) WithInitRetries(n int) *ConfigBuilder {
	b.config.initRetries = n
	return b
}

func (b *ConfigBuilder) Build() (Config, error) {
	c := b.config
	c.setDefaults()
	if err := c.validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	// SerialPort is the path to the modem's serial port (e.g. "/dev/ttyUSB0"),
	// or "auto" to pick the first USB serial adapter
	SerialPort string `yaml:"serial_port"`
	// BaudRate is the baud rate for serial communication with the modem (e.g. 115200)
	BaudRate int `yaml:"baud_rate"`
	// LogLevel sets the logging level (e.g. "debug", "info", "warn", "error")
	LogLevel string `yaml:"log_level"`

	// SSID and Password of the access point to join. An empty SSID keeps
	// whatever network the modem has stored.
	SSID     string `yaml:"ssid"`
	Password string `yaml:"password"`
	// PasswordFile is read into Password when set
	PasswordFile string `yaml:"password_file"`

	// ListenPort is the TCP port the modem serves HTTP on
	ListenPort int `yaml:"listen_port"`
	// ServerTimeout is the modem's idle link timeout in seconds, 0 keeps
	// the firmware default
	ServerTimeout int `yaml:"server_timeout"`
	// AutoClose closes each link after its response
	AutoClose bool `yaml:"auto_close"`
	// BadRequest answers unparsable requests with 400 instead of dropping them
	BadRequest bool `yaml:"bad_request"`

	// PollInterval is the longest the loop sleeps between demultiplexer passes
	PollInterval time.Duration `yaml:"poll_interval"`
	// StatusInterval is how often the link status snapshot is refreshed
	StatusInterval time.Duration `yaml:"status_interval"`
	// StagingSize is the frame demultiplexer's staging buffer
	StagingSize int `yaml:"staging_size"`
	// DiscardTimeout bounds waiting for the tail of an oversized request
	DiscardTimeout time.Duration `yaml:"discard_timeout"`

	// Discovery enables the SSDP responder on a UDP link
	Discovery bool `yaml:"discovery"`
	// FriendlyName is announced over discovery
	FriendlyName string `yaml:"friendly_name"`
	// DeviceUUID fixes the announced device identity
	DeviceUUID string `yaml:"device_uuid"`
	// AnnounceInterval is the period of ssdp:alive notifications
	AnnounceInterval time.Duration `yaml:"announce_interval"`

	// AdminAddress is the host-side address serving /metrics and /status,
	// empty disables it
	AdminAddress string `yaml:"admin_address"`
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

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return config, nil
}

// WithDefaults applies default configuration values
func WithDefaults() ConfigOption {
	return func(c *Config) error {
		c.SerialPort = "/dev/ttyUSB0"
		c.BaudRate = 115200
		c.LogLevel = "info"
		c.ListenPort = 80
		c.AutoClose = true
		c.PollInterval = 20 * time.Millisecond
		c.StatusInterval = 30 * time.Second
		c.StagingSize = 1024
		c.DiscardTimeout = 2 * time.Second
		c.FriendlyName = "wifigw"
		c.AnnounceInterval = 5 * time.Minute
		c.AdminAddress = "127.0.0.1:9100"
		return nil
	}
}

// WithFile loads a YAML file on top of the current values. An empty path
// falls back to $WIFIGW_CONFIG, then ./wifigw.yaml; a missing fallback file
// is not an error.
func WithFile(path string) ConfigOption {
	return func(c *Config) error {
		explicit := path != ""
		if !explicit {
			path = os.Getenv("WIFIGW_CONFIG")
			explicit = path != ""
		}
		if path == "" {
			path = "wifigw.yaml"
		}

		data, err := os.ReadFile(path)
		if errors.Is(err, os.ErrNotExist) && !explicit {
			return nil
		}
		if err != nil {
			return fmt.Errorf("loading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing config file %s: %w", path, err)
		}
		return nil
	}
}

// WithEnv loads configuration from environment variables
func WithEnv() ConfigOption {
	return func(c *Config) error {
		if serial := os.Getenv("SERIAL_PORT"); serial != "" {
			c.SerialPort = serial
		}

		if baud := os.Getenv("BAUD_RATE"); baud != "" {
			if b, err := strconv.Atoi(baud); err == nil {
				c.BaudRate = b
			}
		}

		if level := os.Getenv("LOG_LEVEL"); level != "" {
			c.LogLevel = level
		}

		if ssid := os.Getenv("WIFI_SSID"); ssid != "" {
			c.SSID = ssid
		}

		if pass := os.Getenv("WIFI_PASSWORD"); pass != "" {
			c.Password = pass
		}

		if file := os.Getenv("WIFI_PASSWORD_FILE"); file != "" {
			c.PasswordFile = file
		}

		if port := os.Getenv("LISTEN_PORT"); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				c.ListenPort = p
			}
		}

		if addr := os.Getenv("ADMIN_ADDRESS"); addr != "" {
			c.AdminAddress = addr
		}

		if d := os.Getenv("DISCOVERY"); d != "" {
			if b, err := strconv.ParseBool(d); err == nil {
				c.Discovery = b
			}
		}

		return nil
	}
}

// WithFlags loads configuration from command-line flags
func WithFlags(fSet *flag.FlagSet) ConfigOption {
	return func(c *Config) error {
		var err error
		fSet.Visit(func(f *flag.Flag) {
			v := f.Value.String()
			switch f.Name {
			case "serial-port":
				c.SerialPort = v
			case "baud-rate":
				if b, e := strconv.Atoi(v); e == nil {
					c.BaudRate = b
				}
			case "log-level":
				c.LogLevel = v
			case "ssid":
				c.SSID = v
			case "password-file":
				c.PasswordFile = v
			case "listen-port":
				if p, e := strconv.Atoi(v); e == nil {
					c.ListenPort = p
				}
			case "poll-interval":
				if d, e := time.ParseDuration(v); e == nil {
					c.PollInterval = d
				} else {
					err = fmt.Errorf("flag -poll-interval: %w", e)
				}
			case "discovery":
				c.Discovery = v == "true"
			case "admin-address":
				c.AdminAddress = v
			}
		})
		return err
	}
}

// WithSecrets reads file-backed secrets.
func WithSecrets() ConfigOption {
	return func(c *Config) error {
		if c.PasswordFile == "" {
			return nil
		}
		data, err := os.ReadFile(c.PasswordFile)
		if err != nil {
			return fmt.Errorf("reading password file: %w", err)
		}
		c.Password = strings.TrimRight(string(data), "\r\n")
		return nil
	}
}

func (c *Config) Validate() error {
	if c.SerialPort == "" {
		return errors.New("serial port is required")
	}
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.ListenPort < 1 || c.ListenPort > 65535 {
		return fmt.Errorf("invalid listen port %d", c.ListenPort)
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %s", c.PollInterval)
	}
	if c.StatusInterval < 0 {
		return fmt.Errorf("status interval must not be negative, got %s", c.StatusInterval)
	}
	if c.Discovery && c.AnnounceInterval <= 0 {
		return fmt.Errorf("announce interval must be positive with discovery on, got %s", c.AnnounceInterval)
	}
	if c.Password != "" && c.SSID == "" {
		return errors.New("password set without ssid")
	}
	return nil
}

// Package config loads and validates the watchdog configuration file.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the configuration file is looked up when no --config flag is given.
const DefaultPath = "config/ip_config_watchdog.yml"

type Config struct {
	Devices      map[string]string   `mapstructure:"-" json:"devices" validate:"required,min=1,dive,keys,required,endkeys,required"`
	DeviceGroups map[string][]string `mapstructure:"-" json:"device_groups"`
	Monitoring   MonitoringConfig    `mapstructure:"monitoring" json:"monitoring"`
	Logging      LoggingConfig       `mapstructure:"logging" json:"logging"`
	Server       ServerConfig        `mapstructure:"server" json:"server"`

	// order holds device names as they appear in the file.
	order []string
}

type MonitoringConfig struct {
	PingTimeout    int           `mapstructure:"ping_timeout" json:"ping_timeout" validate:"gt=0"`
	PingCount      int           `mapstructure:"ping_count" json:"ping_count" validate:"gt=0"`
	PingInterval   float64       `mapstructure:"ping_interval" json:"ping_interval" validate:"gt=0"`
	PingBinary     string        `mapstructure:"ping_binary" json:"ping_binary" validate:"required"`
	StreamThrottle time.Duration `mapstructure:"stream_throttle" json:"stream_throttle" validate:"gt=0"`
}

// MarshalJSON renders StreamThrottle as a duration string, as written in the file.
func (m MonitoringConfig) MarshalJSON() ([]byte, error) {
	type plain MonitoringConfig
	return json.Marshal(struct {
		plain
		StreamThrottle string `json:"stream_throttle"`
	}{plain(m), m.StreamThrottle.String()})
}

type LoggingConfig struct {
	Directory      string `mapstructure:"directory" json:"directory" validate:"required"`
	FilenameFormat string `mapstructure:"filename_format" json:"filename_format" validate:"required"`
	Level          string `mapstructure:"level" json:"level" validate:"oneof=debug info warn error"`
	Format         string `mapstructure:"format" json:"format" validate:"oneof=text json"`
}

type ServerConfig struct {
	Host  string `mapstructure:"host" json:"host"`
	Port  int    `mapstructure:"port" json:"port" validate:"min=1,max=65535"`
	Debug bool   `mapstructure:"debug" json:"debug"`
}

// Device is a configured probe target.
type Device struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

// Error reports a missing or malformed configuration. It is fatal at startup.
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("configuration: %v", e.Err)
	}
	return fmt.Sprintf("configuration %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var validate = validator.New(validator.WithRequiredStructEnabled())

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("monitoring.ping_timeout", 1)
	v.SetDefault("monitoring.ping_count", 1)
	v.SetDefault("monitoring.ping_interval", 5.0)
	v.SetDefault("monitoring.ping_binary", "ping")
	v.SetDefault("monitoring.stream_throttle", time.Second)

	v.SetDefault("logging.directory", "logs")
	v.SetDefault("logging.filename_format", "watchdog_%Y-%m-%d.log")
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.debug", false)
}

// Load reads the configuration file at path into v and returns the validated result.
// Environment variables prefixed with WATCHDOG_ override file values.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}
	SetDefaults(v)
	v.SetConfigFile(path)
	v.SetEnvPrefix("watchdog")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &Error{Path: path, Err: fmt.Errorf("file not found, see README.md for the expected format")}
		}
		return nil, &Error{Path: path, Err: fmt.Errorf("read: %w", err)}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, &Error{Path: path, Err: fmt.Errorf("decode: %w", err)}
	}
	// viper folds map keys to lower case, device names are read verbatim.
	if err := cfg.readDevices(path); err != nil {
		return nil, &Error{Path: path, Err: err}
	}
	if err := cfg.Validate(); err != nil {
		return nil, &Error{Path: path, Err: err}
	}

	slog.Debug("configuration loaded", "path", path, "devices", len(cfg.Devices))
	return &cfg, nil
}

// Validate checks field constraints and that every group member is a known device.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}
	for group, members := range c.DeviceGroups {
		for _, name := range members {
			if _, ok := c.Devices[name]; !ok {
				return fmt.Errorf("device group %q references unknown device %q", group, name)
			}
		}
	}
	return nil
}

// DeviceList returns the configured devices in file order, or sorted by name
// when the config was built in code. The order is the probe and log order of
// every cycle.
func (c *Config) DeviceList() []Device {
	names := c.order
	if len(names) != len(c.Devices) {
		names = make([]string, 0, len(c.Devices))
		for name := range c.Devices {
			names = append(names, name)
		}
		sort.Strings(names)
	}
	out := make([]Device, 0, len(names))
	for _, name := range names {
		out = append(out, Device{Name: name, Address: c.Devices[name]})
	}
	return out
}

type deviceSections struct {
	Devices      yaml.Node           `yaml:"devices"`
	DeviceGroups map[string][]string `yaml:"device_groups"`
}

func (c *Config) readDevices(path string) error {
	content, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read devices: %w", err)
	}
	var sections deviceSections
	if err := yaml.Unmarshal(content, &sections); err != nil {
		return fmt.Errorf("parse devices: %w", err)
	}

	node := &sections.Devices
	if node.Kind == 0 {
		return errors.New("configuration must define at least one device")
	}
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("devices must be a mapping of name to address (line %d)", node.Line)
	}

	c.Devices = make(map[string]string, len(node.Content)/2)
	c.order = c.order[:0]
	for i := 0; i+1 < len(node.Content); i += 2 {
		key, value := node.Content[i], node.Content[i+1]
		if value.Kind != yaml.ScalarNode {
			return fmt.Errorf("device %q: address must be a string (line %d)", key.Value, value.Line)
		}
		if _, dup := c.Devices[key.Value]; dup {
			return fmt.Errorf("device %q defined twice (line %d)", key.Value, key.Line)
		}
		c.Devices[key.Value] = strings.TrimSpace(value.Value)
		c.order = append(c.order, key.Value)
	}
	c.DeviceGroups = sections.DeviceGroups
	return nil
}

// Lookup returns the address configured for name.
func (c *Config) Lookup(name string) (string, bool) {
	addr, ok := c.Devices[name]
	return addr, ok
}

// Interval returns monitoring.ping_interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.Monitoring.PingInterval * float64(time.Second))
}

// ProbeTimeout returns monitoring.ping_timeout as a duration.
func (c *Config) ProbeTimeout() time.Duration {
	return time.Duration(c.Monitoring.PingTimeout) * time.Second
}

// NewLogger builds the process logger described by the logging section.
func (c *Config) NewLogger() *slog.Logger {
	return NewLogger(c.Logging.Level, c.Logging.Format)
}

// NewLogger builds a stderr logger for the given level and format.
func NewLogger(level, format string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if strings.ToLower(format) == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

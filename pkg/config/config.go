package config

import (
	"fmt"
	"os"
	"time"

	"github.com/itohio/gogmc/pkg/channel"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Serial  SerialConfig  `yaml:"serial"`
	Panel   PanelConfig   `yaml:"panel"`
	Mixture MixtureConfig `yaml:"mixture"`
	Poll    PollConfig    `yaml:"poll"`
	Remote  RemoteConfig  `yaml:"remote"`
	Mock    MockConfig    `yaml:"mock"`
}

// SerialConfig contains serial port configuration.
type SerialConfig struct {
	Port        string        `yaml:"port"`
	BaudRate    int           `yaml:"baud_rate"`
	ReadTimeout time.Duration `yaml:"read_timeout"`
}

// PanelConfig describes the panel variant and how its logical slots map
// onto physical mainframe channels.
type PanelConfig struct {
	Channels int             `yaml:"channels"` // number of logical lines, 2 or 4
	Mapping  channel.Mapping `yaml:"mapping"`
}

// MixtureConfig holds the default dilution parameters for the mixture entry.
type MixtureConfig struct {
	TotalFlow           float64      `yaml:"total_flow"`           // sccm
	TargetConcentration float64      `yaml:"target_concentration"` // ppm
	Carrier             channel.Slot `yaml:"carrier"`
}

// PollConfig contains flow polling parameters.
type PollConfig struct {
	Interval time.Duration `yaml:"interval"`
}

// RemoteConfig configures the optional WebSocket readout server.
type RemoteConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// MockConfig contains simulated-device configuration.
type MockConfig struct {
	TimeConstant time.Duration `yaml:"time_constant"` // first-order lag of actual flow toward setpoint
	Noise        float64       `yaml:"noise"`         // reading noise (sccm)
}

// Default returns a default configuration with sensible values.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			Port:        "COM3", // Default for Windows, should be "/dev/ttyUSB0" on Linux/Mac
			BaudRate:    9600,
			ReadTimeout: 200 * time.Millisecond,
		},
		Panel: PanelConfig{
			Channels: 2,
			Mapping:  channel.DefaultMapping(2),
		},
		Mixture: MixtureConfig{
			TotalFlow:           1000,
			TargetConcentration: 20000,
			Carrier:             channel.SlotA,
		},
		Poll: PollConfig{
			Interval: time.Second,
		},
		Remote: RemoteConfig{
			Enabled: false,
			Listen:  ":8428",
		},
		Mock: MockConfig{
			TimeConstant: 2 * time.Second,
			Noise:        0.5,
		},
	}
}

// Load loads configuration from a YAML file. If the file doesn't exist or
// fields are missing, it uses default values.
func Load(filename string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(filename)
	if err != nil {
		if os.IsNotExist(err) {
			// File doesn't exist, return defaults
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Ensure minimum required fields are set (use defaults if missing)
	cfg.ensureDefaults()

	return cfg, nil
}

// Save saves the configuration to a YAML file.
func (c *Config) Save(filename string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ensureDefaults ensures that all required fields have default values if missing.
func (c *Config) ensureDefaults() {
	def := Default()

	if c.Serial.Port == "" {
		c.Serial.Port = def.Serial.Port
	}
	if c.Serial.BaudRate == 0 {
		c.Serial.BaudRate = def.Serial.BaudRate
	}
	if c.Serial.ReadTimeout == 0 {
		c.Serial.ReadTimeout = def.Serial.ReadTimeout
	}

	if c.Panel.Channels != 2 && c.Panel.Channels != 4 {
		c.Panel.Channels = def.Panel.Channels
	}
	if c.Panel.Mapping == nil {
		c.Panel.Mapping = channel.Mapping{}
	}
	fallback := channel.DefaultMapping(c.Panel.Channels)
	for _, slot := range channel.Slots(c.Panel.Channels) {
		if _, ok := c.Panel.Mapping[slot]; !ok {
			c.Panel.Mapping[slot] = fallback[slot]
		}
	}

	if c.Mixture.TotalFlow == 0 {
		c.Mixture.TotalFlow = def.Mixture.TotalFlow
	}
	if c.Mixture.TargetConcentration == 0 {
		c.Mixture.TargetConcentration = def.Mixture.TargetConcentration
	}
	if c.Mixture.Carrier == "" {
		c.Mixture.Carrier = def.Mixture.Carrier
	}

	if c.Poll.Interval == 0 {
		c.Poll.Interval = def.Poll.Interval
	}

	if c.Remote.Listen == "" {
		c.Remote.Listen = def.Remote.Listen
	}

	if c.Mock.TimeConstant == 0 {
		c.Mock.TimeConstant = def.Mock.TimeConstant
	}
}

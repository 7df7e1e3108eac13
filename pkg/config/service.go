package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/controller"
)

// Environment variables that take precedence over the config file.
const (
	EnvReadPort        = "P1_READ_PORT"
	EnvWritePort       = "P1_WRITE_PORT"
	EnvCurrentLimit    = "P1_CURRENT_LIMIT"
	EnvChargingPhases  = "P1_CHARGING_PHASES"
	defaultBaudrate    = 115200
	defaultDataBits    = 8
	defaultIntervalSec = 10
)

func Default() *Config {
	return &Config{
		InputPort: SerialConfig{
			Device:   "/dev/ttyUSB0",
			Baudrate: defaultBaudrate,
			DataBits: defaultDataBits,
			Parity:   "none",
			StopBits: "one",
		},
		OutputPort: SerialConfig{
			Device:   "/dev/ttyUSB1",
			Baudrate: defaultBaudrate,
			DataBits: defaultDataBits,
			Parity:   "none",
			StopBits: "one",
		},
		CurrentLimit:         25,
		CarChargingPhases:    "1 phase",
		Regulation:           "surplus",
		CycleIntervalSeconds: defaultIntervalSec,
		Status: StatusConfig{
			Enabled:       true,
			ListenAddress: "0.0.0.0",
			ListenPort:    9040,
		},
		Journal: JournalConfig{
			Enabled:       false,
			RetentionDays: 30,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads the config file at path, writing the defaults there first if it
// does not exist, then applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg := Default()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := writeDefault(path, cfg); err != nil {
			return nil, err
		}
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func writeDefault(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	cfgFile, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create config %s: %w", path, err)
	}
	defer cfgFile.Close()

	if err := toml.NewEncoder(cfgFile).Encode(cfg); err != nil {
		return fmt.Errorf("write config %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvReadPort); ok && v != "" {
		c.InputPort.Device = v
	}
	if v, ok := lookup(EnvWritePort); ok && v != "" {
		c.OutputPort.Device = v
	}
	if v, ok := lookup(EnvCurrentLimit); ok && v != "" {
		limit, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return fmt.Errorf("%s: %w: %q", EnvCurrentLimit, controller.ErrInvalidCurrentLimit, v)
		}
		c.CurrentLimit = limit
	}
	if v, ok := lookup(EnvChargingPhases); ok && v != "" {
		c.CarChargingPhases = v
	}
	return nil
}

// Validate checks every setting; the first problem found is returned.
func (c *Config) Validate() error {
	ctrl, err := c.ControllerConfig()
	if err != nil {
		return err
	}
	if err := ctrl.Validate(); err != nil {
		return err
	}
	if c.CycleIntervalSeconds <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidInterval, c.CycleIntervalSeconds)
	}
	if err := c.InputPort.Validate(); err != nil {
		return fmt.Errorf("input_port: %w", err)
	}
	if err := c.OutputPort.Validate(); err != nil {
		return fmt.Errorf("output_port: %w", err)
	}
	if c.Status.Enabled && (c.Status.ListenPort <= 0 || c.Status.ListenPort > 65535) {
		return fmt.Errorf("%w: port %d", ErrInvalidStatus, c.Status.ListenPort)
	}
	if c.Journal.RetentionDays < 0 {
		return errors.New("journal retention_days must not be negative")
	}
	return nil
}

func (s SerialConfig) Validate() error {
	if s.Device == "" {
		return fmt.Errorf("%w: device is empty", ErrInvalidPort)
	}
	if s.Baudrate == 0 {
		return fmt.Errorf("%w: baudrate is zero", ErrInvalidPort)
	}
	if s.DataBits < 5 || s.DataBits > 8 {
		return fmt.Errorf("%w: data_bits %d not in 5-8", ErrInvalidPort, s.DataBits)
	}
	switch strings.ToLower(s.Parity) {
	case "none", "odd", "even":
	default:
		return fmt.Errorf("%w: parity %q", ErrInvalidPort, s.Parity)
	}
	switch strings.ToLower(s.StopBits) {
	case "one", "two":
	default:
		return fmt.Errorf("%w: stop_bits %q", ErrInvalidPort, s.StopBits)
	}
	return nil
}

// StatusAddr is the host:port the status server listens on.
func (c *Config) StatusAddr() string {
	return fmt.Sprintf("%s:%d", c.Status.ListenAddress, c.Status.ListenPort)
}

package config

import (
	"errors"
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/controller"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
)

var (
	ErrInvalidPort     = errors.New("invalid serial port settings")
	ErrInvalidInterval = errors.New("cycle interval must be positive")
	ErrInvalidStatus   = errors.New("invalid status server settings")
)

type Config struct {
	InputPort  SerialConfig `toml:"input_port"`
	OutputPort SerialConfig `toml:"output_port"`

	// Amps per phase the charger may draw at most.
	CurrentLimit float64 `toml:"current_limit"`
	// "1 phase" or "3 phase"
	CarChargingPhases string `toml:"car_charging_phases"`
	// "surplus" or "import"
	Regulation           string `toml:"regulation"`
	CycleIntervalSeconds int    `toml:"cycle_interval_seconds"`
	// Write integer fields zero padded (0002) instead of bare (2).
	PadIntegers bool `toml:"pad_integers"`

	Status  StatusConfig  `toml:"status"`
	Journal JournalConfig `toml:"journal"`
	Log     LogConfig     `toml:"log"`
}

type SerialConfig struct {
	Device   string `toml:"device"`
	Baudrate uint   `toml:"baudrate"`
	DataBits uint   `toml:"data_bits"`
	// none, odd or even
	Parity string `toml:"parity"`
	// one or two
	StopBits string `toml:"stop_bits"`
}

type StatusConfig struct {
	Enabled       bool   `toml:"enabled"`
	ListenAddress string `toml:"listen_address"`
	ListenPort    int    `toml:"listen_port"`
}

type JournalConfig struct {
	Enabled       bool `toml:"enabled"`
	RetentionDays int  `toml:"retention_days"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Pretty bool   `toml:"pretty"`
}

// Interval returns the cycle interval as a duration.
func (c *Config) Interval() time.Duration {
	return time.Duration(c.CycleIntervalSeconds) * time.Second
}

// Retention returns how long journal rows are kept. Zero keeps everything.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Journal.RetentionDays) * 24 * time.Hour
}

// EncoderOptions returns the telegram encoder settings.
func (c *Config) EncoderOptions() []telegram.EncoderOption {
	if c.PadIntegers {
		return []telegram.EncoderOption{telegram.WithZeroPadding()}
	}
	return nil
}

// ControllerConfig converts the charging settings. Call Validate first.
func (c *Config) ControllerConfig() (controller.Config, error) {
	topology, err := controller.ParseTopology(c.CarChargingPhases)
	if err != nil {
		return controller.Config{}, err
	}
	regulation, err := controller.ParseRegulation(c.Regulation)
	if err != nil {
		return controller.Config{}, err
	}
	return controller.Config{
		CurrentLimit: c.CurrentLimit,
		Topology:     topology,
		Regulation:   regulation,
	}, nil
}

// Package serialport opens the P1 input and output ports.
package serialport

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/config"
	"github.com/jacobsa/go-serial/serial"
	"github.com/rs/zerolog/log"
	bugserial "go.bug.st/serial"
)

// Open opens the port described by cfg. Reads block until at least one
// byte is available.
func Open(cfg config.SerialConfig) (io.ReadWriteCloser, error) {
	options, err := openOptions(cfg)
	if err != nil {
		return nil, err
	}

	port, err := serial.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port %s: %w", cfg.Device, err)
	}

	log.Info().
		Str("component", "serialport").
		Str("device", cfg.Device).
		Uint("baudrate", cfg.Baudrate).
		Msg("Serial port opened")
	return port, nil
}

func openOptions(cfg config.SerialConfig) (serial.OpenOptions, error) {
	if err := cfg.Validate(); err != nil {
		return serial.OpenOptions{}, err
	}

	options := serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        cfg.Baudrate,
		DataBits:        cfg.DataBits,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	}

	switch strings.ToLower(cfg.Parity) {
	case "odd":
		options.ParityMode = serial.PARITY_ODD
	case "even":
		options.ParityMode = serial.PARITY_EVEN
	}
	if strings.EqualFold(cfg.StopBits, "two") {
		options.StopBits = 2
	}
	return options, nil
}

// ListPorts returns the serial devices present on this machine, sorted.
func ListPorts() ([]string, error) {
	ports, err := bugserial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}
	sort.Strings(ports)
	return ports, nil
}

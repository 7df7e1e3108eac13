package controller

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

var (
	ErrInvalidCurrentLimit = errors.New("current limit must be a positive number of amperes")
	ErrInvalidTopology     = errors.New("invalid car charging phases, expected \"1 phase\" or \"3 phase\"")
	ErrInvalidRegulation   = errors.New("invalid regulation, expected \"surplus\" or \"import\"")
)

// Topology tells whether the car draws its current over one or three phases.
type Topology uint8

const (
	SinglePhase Topology = iota
	ThreePhase
)

func (t Topology) String() string {
	if t == ThreePhase {
		return "3 phase"
	}
	return "1 phase"
}

// ParseTopology accepts "1 phase"/"3 phase" as well as "1"/"3".
func ParseTopology(s string) (Topology, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1 phase", "1":
		return SinglePhase, nil
	case "3 phase", "3":
		return ThreePhase, nil
	}
	return SinglePhase, fmt.Errorf("%w: %q", ErrInvalidTopology, s)
}

// Regulation sets which way the net grid power moves the deduction.
type Regulation uint8

const (
	// RegulateSurplus lets the car charge on exported power: net import shrinks
	// the deduction (less current advertised as free), net export grows it.
	RegulateSurplus Regulation = iota
	// RegulateImport reacts to net import by growing the deduction and to net
	// export by shrinking it.
	RegulateImport
)

func (r Regulation) String() string {
	if r == RegulateImport {
		return "import"
	}
	return "surplus"
}

func ParseRegulation(s string) (Regulation, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "surplus", "":
		return RegulateSurplus, nil
	case "import":
		return RegulateImport, nil
	}
	return RegulateSurplus, fmt.Errorf("%w: %q", ErrInvalidRegulation, s)
}

// Config is fixed for the life of a Controller.
type Config struct {
	// CurrentLimit is the rated current per phase in amperes.
	CurrentLimit float64
	Topology     Topology
	Regulation   Regulation
}

func (c Config) Validate() error {
	if !(c.CurrentLimit > 0) || math.IsInf(c.CurrentLimit, 0) {
		return fmt.Errorf("%w: %v", ErrInvalidCurrentLimit, c.CurrentLimit)
	}
	if c.Topology != SinglePhase && c.Topology != ThreePhase {
		return ErrInvalidTopology
	}
	if c.Regulation != RegulateSurplus && c.Regulation != RegulateImport {
		return ErrInvalidRegulation
	}
	return nil
}

// Inputs is the global signal of one cycle, summed over the three phases.
type Inputs struct {
	ConsumptionKW float64 `json:"consumption_kw"`
	GenerationKW  float64 `json:"generation_kw"`
	CurrentA      float64 `json:"current_a"`
}

// Deductions holds the amperes withheld from the current limit, per phase.
type Deductions [3]float64

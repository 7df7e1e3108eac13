// Package controller decides how much current the charge controller may use.
//
// Each phase keeps a deduction: the amperes withheld from the rated limit.
// Every cycle the deduction moves by one step in the direction given by the
// net grid power, so it integrates over cycles instead of following a single
// reading.
package controller

import (
	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
)

type Controller struct {
	cfg       Config
	deduction Deductions
}

// New returns a controller with every deduction at zero.
func New(cfg Config) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Controller{cfg: cfg}, nil
}

func (c *Controller) Config() Config {
	return c.cfg
}

// InputsFrom sums the per-phase readings of r into one signal.
func InputsFrom(r telegram.Reader) Inputs {
	var in Inputs
	for phase := 0; phase < 3; phase++ {
		in.ConsumptionKW += r.Number(telegram.PowerImportFields[phase])
		in.GenerationKW += r.Number(telegram.PowerExportFields[phase])
		in.CurrentA += r.Number(telegram.CurrentFields[phase])
	}
	return in
}

// Update runs one cycle and returns the new deductions. All phases follow
// the same global signal; they only differ by the state they start from.
func (c *Controller) Update(in Inputs) Deductions {
	step := in.CurrentA
	if c.cfg.Topology == ThreePhase {
		step /= 3
	}

	net := in.ConsumptionKW - in.GenerationKW
	if c.cfg.Regulation == RegulateImport {
		net = -net
	}

	for phase := range c.deduction {
		v := c.deduction[phase]
		switch {
		case net > 0:
			v -= step
		case net < 0:
			v += step
		}
		c.deduction[phase] = c.clamp(v)
	}
	return c.deduction
}

func (c *Controller) clamp(v float64) float64 {
	if v > c.cfg.CurrentLimit {
		return c.cfg.CurrentLimit
	}
	if v < 0 {
		return 0
	}
	return v
}

func (c *Controller) Deductions() Deductions {
	return c.deduction
}

// Allowances returns the current advertised per phase: limit minus deduction.
func (c *Controller) Allowances() telegram.PhaseCurrents {
	var out telegram.PhaseCurrents
	for phase, d := range c.deduction {
		out[phase] = c.cfg.CurrentLimit - d
	}
	return out
}

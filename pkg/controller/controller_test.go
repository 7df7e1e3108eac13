package controller

import (
	"errors"
	"math"
	"testing"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newController(t *testing.T, limit float64, topology Topology, regulation Regulation) *Controller {
	t.Helper()
	c, err := New(Config{CurrentLimit: limit, Topology: topology, Regulation: regulation})
	require.NoError(t, err)
	return c
}

var (
	netImport = Inputs{ConsumptionKW: 2, GenerationKW: 0, CurrentA: 8}
	netExport = Inputs{ConsumptionKW: 0, GenerationKW: 2, CurrentA: 8}
	balanced  = Inputs{ConsumptionKW: 1.5, GenerationKW: 1.5, CurrentA: 8}
)

func TestNewStartsAtZeroDeduction(t *testing.T) {
	c := newController(t, 25, SinglePhase, RegulateSurplus)
	assert.Equal(t, Deductions{0, 0, 0}, c.Deductions())
	assert.Equal(t, telegram.PhaseCurrents{25, 25, 25}, c.Allowances())
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want error
	}{
		{"valid", Config{CurrentLimit: 16}, nil},
		{"zero limit", Config{CurrentLimit: 0}, ErrInvalidCurrentLimit},
		{"negative limit", Config{CurrentLimit: -1}, ErrInvalidCurrentLimit},
		{"NaN limit", Config{CurrentLimit: math.NaN()}, ErrInvalidCurrentLimit},
		{"infinite limit", Config{CurrentLimit: math.Inf(1)}, ErrInvalidCurrentLimit},
		{"bad topology", Config{CurrentLimit: 16, Topology: 7}, ErrInvalidTopology},
		{"bad regulation", Config{CurrentLimit: 16, Regulation: 9}, ErrInvalidRegulation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestParseTopology(t *testing.T) {
	top, err := ParseTopology("1 phase")
	require.NoError(t, err)
	assert.Equal(t, SinglePhase, top)

	top, err = ParseTopology("3 phase")
	require.NoError(t, err)
	assert.Equal(t, ThreePhase, top)

	top, err = ParseTopology("3")
	require.NoError(t, err)
	assert.Equal(t, ThreePhase, top)

	_, err = ParseTopology("2 phase")
	assert.ErrorIs(t, err, ErrInvalidTopology)
}

func TestParseRegulation(t *testing.T) {
	r, err := ParseRegulation("import")
	require.NoError(t, err)
	assert.Equal(t, RegulateImport, r)

	r, err = ParseRegulation("")
	require.NoError(t, err)
	assert.Equal(t, RegulateSurplus, r)

	_, err = ParseRegulation("both")
	assert.ErrorIs(t, err, ErrInvalidRegulation)
}

func TestImportRegulationConvergesUpOnNetImport(t *testing.T) {
	c := newController(t, 25, SinglePhase, RegulateImport)

	prev := c.Deductions()[0]
	saturated := false
	for cycle := 0; cycle < 10; cycle++ {
		got := c.Update(netImport)
		for phase := 1; phase < 3; phase++ {
			assert.Equal(t, got[0], got[phase])
		}
		if prev == 25 {
			assert.Equal(t, 25.0, got[0], "cycle %d", cycle)
			saturated = true
		} else {
			assert.Greater(t, got[0], prev, "cycle %d", cycle)
		}
		prev = got[0]
	}
	assert.True(t, saturated)
	assert.Equal(t, telegram.PhaseCurrents{0, 0, 0}, c.Allowances())
}

func TestImportRegulationConvergesDownOnNetExport(t *testing.T) {
	c := newController(t, 25, SinglePhase, RegulateImport)
	for i := 0; i < 5; i++ {
		c.Update(netImport)
	}
	require.Equal(t, 25.0, c.Deductions()[0])

	prev := 25.0
	for cycle := 0; cycle < 10; cycle++ {
		got := c.Update(netExport)[0]
		if prev == 0 {
			assert.Zero(t, got, "cycle %d", cycle)
		} else {
			assert.Less(t, got, prev, "cycle %d", cycle)
		}
		prev = got
	}
	assert.Zero(t, prev)
}

func TestSurplusRegulationFollowsExport(t *testing.T) {
	c := newController(t, 25, SinglePhase, RegulateSurplus)

	assert.Equal(t, Deductions{8, 8, 8}, c.Update(netExport))
	assert.Equal(t, Deductions{16, 16, 16}, c.Update(netExport))
	assert.Equal(t, Deductions{8, 8, 8}, c.Update(netImport))
	assert.Equal(t, Deductions{0, 0, 0}, c.Update(netImport))
	assert.Equal(t, Deductions{0, 0, 0}, c.Update(netImport), "clamped at zero")

	for i := 0; i < 5; i++ {
		c.Update(netExport)
	}
	assert.Equal(t, Deductions{25, 25, 25}, c.Deductions(), "clamped at the limit")
}

func TestBalancedSignalLeavesDeductionUnchanged(t *testing.T) {
	for _, regulation := range []Regulation{RegulateSurplus, RegulateImport} {
		c := newController(t, 25, SinglePhase, regulation)
		c.Update(netExport)
		c.Update(netImport)
		c.Update(netImport)
		before := c.Deductions()

		assert.Equal(t, before, c.Update(balanced), regulation.String())
		assert.Equal(t, before, c.Update(balanced), regulation.String())
	}
}

func TestThreePhaseStepIsAThird(t *testing.T) {
	c := newController(t, 25, ThreePhase, RegulateImport)
	got := c.Update(Inputs{ConsumptionKW: 3, CurrentA: 9})
	assert.Equal(t, Deductions{3, 3, 3}, got)

	single := newController(t, 25, SinglePhase, RegulateImport)
	assert.Equal(t, Deductions{9, 9, 9}, single.Update(Inputs{ConsumptionKW: 3, CurrentA: 9}))
}

func TestInputsFromSumsPhases(t *testing.T) {
	d := telegram.NewDecoder(25)
	d.Decode("1-0:21.7.0(01.000*kW)\r\n1-0:41.7.0(00.500*kW)\r\n1-0:61.7.0(00.250*kW)\r\n" +
		"1-0:22.7.0(00.100*kW)\r\n1-0:42.7.0(00.200*kW)\r\n1-0:62.7.0(00.300*kW)\r\n" +
		"1-0:31.7.0(004*A)\r\n1-0:51.7.0(002*A)\r\n1-0:71.7.0(030*A)\r\n")

	in := InputsFrom(d.Registry())
	assert.InDelta(t, 1.75, in.ConsumptionKW, 1e-9)
	assert.InDelta(t, 0.6, in.GenerationKW, 1e-9)
	assert.Equal(t, 31.0, in.CurrentA, "third phase clamped to 25 at decode")
}

func TestEndToEndSinglePhaseImport(t *testing.T) {
	d := telegram.NewDecoder(25)
	c := newController(t, 25, SinglePhase, RegulateImport)

	d.Decode("/XMX5LGF0010455445332\r\n\r\n1-0:21.7.0(02.000*kW)\r\n1-0:22.7.0(00.000*kW)\r\n1-0:31.7.0(008.000*A)\r\n!")
	c.Update(InputsFrom(d.Registry()))

	assert.Equal(t, 8.0, c.Deductions()[0])
	assert.Equal(t, 17.0, c.Allowances()[0])

	frame := string(telegram.NewEncoder().Encode(d.Registry(), c.Allowances()))
	assert.Contains(t, frame, "1-0:31.7.0(17.000*A)\r\n")
}

func TestEndToEndSinglePhaseSurplus(t *testing.T) {
	d := telegram.NewDecoder(25)
	c := newController(t, 25, SinglePhase, RegulateSurplus)

	d.Decode("1-0:21.7.0(02.000*kW)\r\n1-0:31.7.0(008.000*A)\r\n")
	c.Update(InputsFrom(d.Registry()))

	frame := string(telegram.NewEncoder().Encode(d.Registry(), c.Allowances()))
	assert.Contains(t, frame, "1-0:31.7.0(25.000*A)\r\n")
}

package cycle

import (
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/controller"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
)

func buildSnapshot(
	cycle uint64,
	now time.Time,
	r telegram.Reader,
	inputs controller.Inputs,
	ctrl *controller.Controller,
	stats telegram.Stats,
	queued bool,
) types.CycleSnapshot {
	cfg := ctrl.Config()

	return types.CycleSnapshot{
		Cycle:         cycle,
		Time:          now,
		CurrentLimit:  cfg.CurrentLimit,
		Topology:      cfg.Topology.String(),
		Regulation:    cfg.Regulation.String(),
		ConsumptionKW: inputs.ConsumptionKW,
		GenerationKW:  inputs.GenerationKW,
		MeasuredA:     inputs.CurrentA,
		Deduction:     ctrl.Deductions(),
		Allowance:     ctrl.Allowances(),
		Queued:        queued,
		Reading:       readingFrom(r),
		Decoder:       types.DecoderStats(stats),
	}
}

func readingFrom(r telegram.Reader) types.MeterReading {
	reading := types.MeterReading{
		Header:            r.Header(),
		Timestamp:         r.Text(telegram.FieldTimestamp),
		EquipmentID:       r.Text(telegram.FieldEquipmentID),
		Tariff:            r.Integer(telegram.FieldTariff),
		PowerImportKW:     r.Number(telegram.FieldPowerImport),
		PowerExportKW:     r.Number(telegram.FieldPowerExport),
		EnergyImportT1KWH: r.Number(telegram.FieldEnergyImportT1),
		EnergyImportT2KWH: r.Number(telegram.FieldEnergyImportT2),
		EnergyExportT1KWH: r.Number(telegram.FieldEnergyExportT1),
		EnergyExportT2KWH: r.Number(telegram.FieldEnergyExportT2),
	}

	for phase := 0; phase < 3; phase++ {
		reading.PhaseImportKW[phase] = r.Number(telegram.PowerImportFields[phase])
		reading.PhaseExportKW[phase] = r.Number(telegram.PowerExportFields[phase])
		reading.VoltageV[phase] = r.Number(telegram.VoltageFields[phase])
		reading.CurrentA[phase] = r.Number(telegram.CurrentFields[phase])
	}
	return reading
}

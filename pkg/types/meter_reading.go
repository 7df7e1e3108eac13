package types

import (
	"encoding/json"
	"time"
)

// MeterReading is the decoded meter state at the moment of a cycle.
type MeterReading struct {
	Header      string `json:"header"`
	Timestamp   string `json:"timestamp"`
	EquipmentID string `json:"equipment_id"`
	Tariff      int64  `json:"tariff"`

	// Current consumption/production
	PowerImportKW float64    `json:"power_import_kw"`
	PowerExportKW float64    `json:"power_export_kw"`
	PhaseImportKW [3]float64 `json:"phase_import_kw"`
	PhaseExportKW [3]float64 `json:"phase_export_kw"`

	// Totals
	EnergyImportT1KWH float64 `json:"energy_import_t1_kwh"`
	EnergyImportT2KWH float64 `json:"energy_import_t2_kwh"`
	EnergyExportT1KWH float64 `json:"energy_export_t1_kwh"`
	EnergyExportT2KWH float64 `json:"energy_export_t2_kwh"`

	// Electrical info
	VoltageV [3]float64 `json:"voltage_v"`
	CurrentA [3]float64 `json:"current_a"`
}

// DecoderStats mirrors the decoder counters.
type DecoderStats struct {
	Lines          uint64 `json:"lines"`
	Frames         uint64 `json:"frames"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	ParseErrors    uint64 `json:"parse_errors"`
}

// CycleSnapshot is published after every control cycle.
type CycleSnapshot struct {
	Cycle        uint64    `json:"cycle"`
	Time         time.Time `json:"time"`
	CurrentLimit float64   `json:"current_limit_a"`
	Topology     string    `json:"topology"`
	Regulation   string    `json:"regulation"`

	ConsumptionKW float64 `json:"consumption_kw"`
	GenerationKW  float64 `json:"generation_kw"`
	MeasuredA     float64 `json:"measured_a"`

	Deduction [3]float64 `json:"deduction_a"`
	Allowance [3]float64 `json:"allowance_a"`

	// Queued is false when the output port was still busy with the previous
	// frame and this cycle's frame was dropped.
	Queued bool `json:"queued"`

	Reading MeterReading `json:"reading"`
	Decoder DecoderStats `json:"decoder"`
}

func (s *CycleSnapshot) ToJsonBytes() []byte {
	data, err := json.Marshal(s)
	if err != nil {
		return []byte("{}")
	}
	return data
}

// SnapshotFromJsonBytes returns nil when data is not a snapshot.
func SnapshotFromJsonBytes(data []byte) *CycleSnapshot {
	var s CycleSnapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil
	}
	return &s
}

package telegram

import (
	"regexp"
)

// Schema lists every field in the order it is written to the charge controller.
var Schema = []Descriptor{
	{ID: FieldVersion, Tag: "1-3:0.2.8", Kind: KindVersion, Name: "version"},
	{ID: FieldTimestamp, Tag: "0-0:1.0.0", Kind: KindText, Name: "timestamp"},
	{ID: FieldEquipmentID, Tag: "0-0:96.1.1", Kind: KindText, Name: "equipment_id"},
	{ID: FieldEnergyImportT1, Tag: "1-0:1.8.1", Kind: KindDecimal, Unit: "kWh", Name: "energy_import_t1_kwh"},
	{ID: FieldEnergyImportT2, Tag: "1-0:1.8.2", Kind: KindDecimal, Unit: "kWh", Name: "energy_import_t2_kwh"},
	{ID: FieldEnergyExportT1, Tag: "1-0:2.8.1", Kind: KindDecimal, Unit: "kWh", Name: "energy_export_t1_kwh"},
	{ID: FieldEnergyExportT2, Tag: "1-0:2.8.2", Kind: KindDecimal, Unit: "kWh", Name: "energy_export_t2_kwh"},
	{ID: FieldTariff, Tag: "0-0:96.14.0", Kind: KindInteger, Width: 4, Name: "tariff"},
	{ID: FieldPowerImport, Tag: "1-0:1.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_import_kw"},
	{ID: FieldPowerExport, Tag: "1-0:2.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_export_kw"},
	{ID: FieldPowerFailures, Tag: "0-0:96.7.21", Kind: KindInteger, Width: 5, Name: "power_failures"},
	{ID: FieldLongPowerFailures, Tag: "0-0:96.7.9", Kind: KindInteger, Width: 5, Name: "long_power_failures"},
	{ID: FieldPowerFailureLog, Tag: "1-0:99.97.0", Kind: KindText, Name: "power_failure_log"},
	{ID: FieldVoltageSagsL1, Tag: "1-0:32.32.0", Kind: KindInteger, Width: 5, Name: "voltage_sags_l1"},
	{ID: FieldVoltageSagsL2, Tag: "1-0:52.32.0", Kind: KindInteger, Width: 5, Name: "voltage_sags_l2"},
	{ID: FieldVoltageSagsL3, Tag: "1-0:72.32.0", Kind: KindInteger, Width: 5, Name: "voltage_sags_l3"},
	{ID: FieldVoltageSwellsL1, Tag: "1-0:32.36.0", Kind: KindInteger, Width: 5, Name: "voltage_swells_l1"},
	{ID: FieldVoltageSwellsL2, Tag: "1-0:52.36.0", Kind: KindInteger, Width: 5, Name: "voltage_swells_l2"},
	{ID: FieldVoltageSwellsL3, Tag: "1-0:72.36.0", Kind: KindInteger, Width: 5, Name: "voltage_swells_l3"},
	{ID: FieldVoltageL1, Tag: "1-0:32.7.0", Kind: KindDecimal, Unit: "V", Name: "voltage_l1_v"},
	{ID: FieldVoltageL2, Tag: "1-0:52.7.0", Kind: KindDecimal, Unit: "V", Name: "voltage_l2_v"},
	{ID: FieldVoltageL3, Tag: "1-0:72.7.0", Kind: KindDecimal, Unit: "V", Name: "voltage_l3_v"},
	{ID: FieldCurrentL1, Tag: "1-0:31.7.0", Kind: KindDecimal, Unit: "A", Name: "current_l1_a"},
	{ID: FieldCurrentL2, Tag: "1-0:51.7.0", Kind: KindDecimal, Unit: "A", Name: "current_l2_a"},
	{ID: FieldCurrentL3, Tag: "1-0:71.7.0", Kind: KindDecimal, Unit: "A", Name: "current_l3_a"},
	{ID: FieldPowerImportL1, Tag: "1-0:21.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_import_l1_kw"},
	{ID: FieldPowerImportL2, Tag: "1-0:41.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_import_l2_kw"},
	{ID: FieldPowerImportL3, Tag: "1-0:61.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_import_l3_kw"},
	{ID: FieldPowerExportL1, Tag: "1-0:22.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_export_l1_kw"},
	{ID: FieldPowerExportL2, Tag: "1-0:42.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_export_l2_kw"},
	{ID: FieldPowerExportL3, Tag: "1-0:62.7.0", Kind: KindDecimal, Unit: "kW", Name: "power_export_l3_kw"},
}

// Per-phase groups, L1 first.
var (
	CurrentFields     = [3]FieldID{FieldCurrentL1, FieldCurrentL2, FieldCurrentL3}
	PowerImportFields = [3]FieldID{FieldPowerImportL1, FieldPowerImportL2, FieldPowerImportL3}
	PowerExportFields = [3]FieldID{FieldPowerExportL1, FieldPowerExportL2, FieldPowerExportL3}
	VoltageFields     = [3]FieldID{FieldVoltageL1, FieldVoltageL2, FieldVoltageL3}
)

// Lookup returns the descriptor of id.
func Lookup(id FieldID) Descriptor {
	return Schema[schemaIndex[id]]
}

func (id FieldID) String() string {
	if id < 0 || id >= fieldCount {
		return "unknown"
	}
	return Lookup(id).Name
}

var (
	schemaIndex [fieldCount]int
	patterns    [fieldCount]*regexp.Regexp
	headerRe    = regexp.MustCompile(`(?m)^/([^\r\n]+)`)
)

func init() {
	for i, d := range Schema {
		schemaIndex[d.ID] = i
		patterns[d.ID] = regexp.MustCompile(pattern(d))
	}
}

// pattern builds the extraction regexp of a descriptor. The value is always
// the first capture group.
func pattern(d Descriptor) string {
	tag := regexp.QuoteMeta(d.Tag)

	switch d.Kind {
	case KindDecimal:
		return tag + `\(([\d\.]+)\*` + regexp.QuoteMeta(d.Unit) + `\)`
	case KindVersion:
		return tag + `\(([\d\.]+)\)`
	case KindInteger:
		return tag + `\((\d+)\)`
	}

	switch d.ID {
	case FieldTimestamp:
		return tag + `\(([\d\.]+[SW])\)`
	case FieldEquipmentID:
		return tag + `\(([0-9A-Fa-f]+)\)`
	default:
		// Greedy up to the last ')' of the line, so nested groups survive.
		return tag + `\((.+)\)`
	}
}

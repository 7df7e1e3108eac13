package telegram

// FieldID identifies one tagged attribute of the telegram.
type FieldID int

const (
	FieldVersion FieldID = iota
	FieldTimestamp
	FieldEquipmentID
	FieldEnergyImportT1
	FieldEnergyImportT2
	FieldEnergyExportT1
	FieldEnergyExportT2
	FieldTariff
	FieldPowerImport
	FieldPowerExport
	FieldPowerFailures
	FieldLongPowerFailures
	FieldPowerFailureLog
	FieldVoltageSagsL1
	FieldVoltageSagsL2
	FieldVoltageSagsL3
	FieldVoltageSwellsL1
	FieldVoltageSwellsL2
	FieldVoltageSwellsL3
	FieldVoltageL1
	FieldVoltageL2
	FieldVoltageL3
	FieldCurrentL1
	FieldCurrentL2
	FieldCurrentL3
	FieldPowerImportL1
	FieldPowerImportL2
	FieldPowerImportL3
	FieldPowerExportL1
	FieldPowerExportL2
	FieldPowerExportL3

	fieldCount
)

// Kind is the value type of a field.
type Kind uint8

const (
	// KindDecimal is a number followed by a unit, e.g. 1-0:1.8.1(001234.567*kWh).
	KindDecimal Kind = iota
	// KindVersion is a unitless decimal, e.g. 1-3:0.2.8(50).
	KindVersion
	// KindInteger is a zero padded counter or code, e.g. 0-0:96.14.0(0002).
	KindInteger
	// KindText is copied verbatim.
	KindText
)

func (k Kind) String() string {
	switch k {
	case KindDecimal:
		return "decimal"
	case KindVersion:
		return "version"
	case KindInteger:
		return "integer"
	case KindText:
		return "text"
	default:
		return "unknown"
	}
}

// Descriptor describes how a field appears on the wire.
type Descriptor struct {
	ID   FieldID
	Tag  string
	Kind Kind
	// Unit follows the value after '*'. Only set for KindDecimal.
	Unit string
	// Width is the zero padded output width of a KindInteger value when the
	// encoder pads integers.
	Width int
	// Name is the stable key used in logs and JSON.
	Name string
}

// PhaseCurrents holds one value in amperes per phase, L1 first.
type PhaseCurrents [3]float64

// Reader gives read-only access to decoded field values.
type Reader interface {
	Number(id FieldID) float64
	Integer(id FieldID) int64
	Text(id FieldID) string
	Header() string
}

type value struct {
	number  float64
	integer int64
	text    string
}

// Registry holds the latest value of every field.
// Values start at zero/empty and are only overwritten by a successful match.
type Registry struct {
	header string
	values [fieldCount]value
}

// DefaultHeader is the meter identification emitted until a header line was received.
const DefaultHeader = "XMX5LGF0010455445332"

func NewRegistry() *Registry {
	return &Registry{header: DefaultHeader}
}

func (r *Registry) Number(id FieldID) float64 {
	return r.values[id].number
}

func (r *Registry) Integer(id FieldID) int64 {
	return r.values[id].integer
}

func (r *Registry) Text(id FieldID) string {
	return r.values[id].text
}

func (r *Registry) Header() string {
	return r.header
}

func (r *Registry) setNumber(id FieldID, v float64) {
	r.values[id].number = v
}

func (r *Registry) setInteger(id FieldID, v int64) {
	r.values[id].integer = v
}

func (r *Registry) setText(id FieldID, v string) {
	r.values[id].text = v
}

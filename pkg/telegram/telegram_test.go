package telegram

import (
	"strings"
	"testing"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/checksum"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var sampleLines = []string{
	"/XMX5LGBBFG1012650850",
	"",
	"1-3:0.2.8(50)",
	"0-0:1.0.0(240615123005S)",
	"0-0:96.1.1(4530303331303033303031363939353135)",
	"1-0:1.8.1(001234.567*kWh)",
	"1-0:1.8.2(002345.678*kWh)",
	"1-0:2.8.1(000123.456*kWh)",
	"1-0:2.8.2(000234.567*kWh)",
	"0-0:96.14.0(0002)",
	"1-0:1.7.0(02.000*kW)",
	"1-0:2.7.0(00.000*kW)",
	"0-0:96.7.21(00004)",
	"0-0:96.7.9(00002)",
	"1-0:99.97.0(1)(0-0:96.7.19)(180101000000W)(0000000237*s)",
	"1-0:32.32.0(00001)",
	"1-0:52.32.0(00002)",
	"1-0:72.32.0(00003)",
	"1-0:32.36.0(00000)",
	"1-0:52.36.0(00000)",
	"1-0:72.36.0(00000)",
	"1-0:32.7.0(230.1*V)",
	"1-0:52.7.0(231.2*V)",
	"1-0:72.7.0(229.8*V)",
	"1-0:31.7.0(008*A)",
	"1-0:51.7.0(000*A)",
	"1-0:71.7.0(000*A)",
	"1-0:21.7.0(02.000*kW)",
	"1-0:41.7.0(00.000*kW)",
	"1-0:61.7.0(00.000*kW)",
	"1-0:22.7.0(00.000*kW)",
	"1-0:42.7.0(00.000*kW)",
	"1-0:62.7.0(00.000*kW)",
	"!",
}

// sampleTelegram is a DSMR 5 telegram with a valid checksum.
func sampleTelegram() string {
	return strings.Join(sampleLines, "\r\n") + "0F84\r\n"
}

func TestSampleTelegramChecksum(t *testing.T) {
	assert.True(t, checksum.Valid(sampleTelegram()))
}

func TestDecodeSample(t *testing.T) {
	d := NewDecoder(25)
	updated := d.Decode(sampleTelegram())
	assert.Equal(t, len(Schema), updated)

	r := d.Registry()
	assert.Equal(t, "XMX5LGBBFG1012650850", r.Header())
	assert.Equal(t, 50.0, r.Number(FieldVersion))
	assert.Equal(t, "240615123005S", r.Text(FieldTimestamp))
	assert.Equal(t, "4530303331303033303031363939353135", r.Text(FieldEquipmentID))
	assert.Equal(t, 1234.567, r.Number(FieldEnergyImportT1))
	assert.Equal(t, 234.567, r.Number(FieldEnergyExportT2))
	assert.Equal(t, int64(2), r.Integer(FieldTariff))
	assert.Equal(t, int64(4), r.Integer(FieldPowerFailures))
	assert.Equal(t, "1)(0-0:96.7.19)(180101000000W)(0000000237*s", r.Text(FieldPowerFailureLog))
	assert.Equal(t, int64(3), r.Integer(FieldVoltageSagsL3))
	assert.Equal(t, 231.2, r.Number(FieldVoltageL2))
	assert.Equal(t, 8.0, r.Number(FieldCurrentL1))
	assert.Equal(t, 2.0, r.Number(FieldPowerImportL1))
	assert.Equal(t, 0.0, r.Number(FieldPowerExportL3))
}

func TestNewRegistryDefaults(t *testing.T) {
	r := NewRegistry()
	assert.Equal(t, DefaultHeader, r.Header())
	for _, desc := range Schema {
		assert.Zero(t, r.Number(desc.ID), desc.Name)
		assert.Zero(t, r.Integer(desc.ID), desc.Name)
		assert.Empty(t, r.Text(desc.ID), desc.Name)
	}
}

func TestDecodeMissingTagKeepsPreviousValue(t *testing.T) {
	d := NewDecoder(25)
	d.Decode(sampleTelegram())

	var partial []string
	for _, l := range sampleLines {
		if strings.HasPrefix(l, "1-0:32.7.0") || strings.HasPrefix(l, "0-0:1.0.0") {
			continue
		}
		partial = append(partial, strings.Replace(l, "1-0:1.8.1(001234.567", "1-0:1.8.1(001240.000", 1))
	}
	d.Decode(strings.Join(partial, "\r\n"))

	r := d.Registry()
	assert.Equal(t, 230.1, r.Number(FieldVoltageL1))
	assert.Equal(t, "240615123005S", r.Text(FieldTimestamp))
	assert.Equal(t, 1240.0, r.Number(FieldEnergyImportT1))
}

func TestDecodeClampsPhaseCurrents(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  float64
	}{
		{"above limit", "1-0:31.7.0(032.5*A)", 25},
		{"at limit", "1-0:31.7.0(025.000*A)", 25},
		{"below limit", "1-0:31.7.0(012.25*A)", 12.25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDecoder(25)
			d.Decode(tt.input)
			assert.Equal(t, tt.want, d.Registry().Number(FieldCurrentL1))
		})
	}

	d := NewDecoder(10)
	d.Decode("1-0:51.7.0(040*A)\r\n1-0:71.7.0(011*A)\r\n1-0:32.7.0(400.0*V)")
	assert.Equal(t, 10.0, d.Registry().Number(FieldCurrentL2))
	assert.Equal(t, 10.0, d.Registry().Number(FieldCurrentL3))
	assert.Equal(t, 400.0, d.Registry().Number(FieldVoltageL1), "only currents are clamped")
}

func TestDecodeMalformedNumberKeepsPreviousValue(t *testing.T) {
	d := NewDecoder(25)
	d.Decode("1-0:32.7.0(230.0*V)")
	updated := d.Decode("1-0:32.7.0(23.0.1*V)\r\n1-0:52.7.0(231.0*V)")

	assert.Equal(t, 1, updated)
	assert.Equal(t, 230.0, d.Registry().Number(FieldVoltageL1))
	assert.Equal(t, 231.0, d.Registry().Number(FieldVoltageL2))
	assert.Equal(t, uint64(1), d.Stats().ParseErrors)
}

func TestDecodeTimestamp(t *testing.T) {
	d := NewDecoder(25)
	d.Decode("0-0:1.0.0(240615120000S)\r\n")
	assert.Equal(t, "240615120000S", d.Registry().Text(FieldTimestamp))

	d.Decode("0-0:1.0.0(240615.120000W)\r\n")
	assert.Equal(t, "240615.120000W", d.Registry().Text(FieldTimestamp))

	// No season letter: not a timestamp, the previous value stays.
	d.Decode("0-0:1.0.0(240615120000)\r\n")
	assert.Equal(t, "240615.120000W", d.Registry().Text(FieldTimestamp))
}

func TestDecodeDoesNotConfuseSimilarTags(t *testing.T) {
	d := NewDecoder(25)
	d.Decode("1-0:22.7.0(01.500*kW)\r\n1-0:21.7.0(00.700*kW)")

	r := d.Registry()
	assert.Zero(t, r.Number(FieldPowerExport))
	assert.Zero(t, r.Number(FieldPowerImport))
	assert.Equal(t, 1.5, r.Number(FieldPowerExportL1))
	assert.Equal(t, 0.7, r.Number(FieldPowerImportL1))
}

func TestWriteAssemblesLinesAcrossChunks(t *testing.T) {
	input := sampleTelegram()

	for _, size := range []int{1, 3, 7, 64, 256} {
		d := NewDecoder(25)
		for start := 0; start < len(input); start += size {
			end := min(start+size, len(input))
			n, err := d.Write([]byte(input[start:end]))
			require.NoError(t, err)
			require.Equal(t, end-start, n)
		}

		r := d.Registry()
		assert.Equal(t, 1234.567, r.Number(FieldEnergyImportT1), "chunk size %d", size)
		assert.Equal(t, 229.8, r.Number(FieldVoltageL3), "chunk size %d", size)
		assert.Equal(t, "XMX5LGBBFG1012650850", r.Header(), "chunk size %d", size)

		stats := d.Stats()
		assert.Equal(t, uint64(1), stats.Frames, "chunk size %d", size)
		assert.Zero(t, stats.ChecksumErrors, "chunk size %d", size)
	}
}

func TestWriteCountsChecksumMismatch(t *testing.T) {
	d := NewDecoder(25)
	corrupt := strings.Replace(sampleTelegram(), "0F84", "1234", 1)
	_, err := d.Write([]byte(corrupt))
	require.NoError(t, err)

	assert.Equal(t, uint64(1), d.Stats().ChecksumErrors)
	// Values are still applied.
	assert.Equal(t, 8.0, d.Registry().Number(FieldCurrentL1))
}

func TestFlushCompletesUnterminatedTelegram(t *testing.T) {
	d := NewDecoder(25)
	_, err := d.Write([]byte(strings.TrimSuffix(sampleTelegram(), "\r\n")))
	require.NoError(t, err)
	assert.Zero(t, d.Stats().Frames)

	d.Flush()
	assert.Equal(t, uint64(1), d.Stats().Frames)
	assert.Zero(t, d.Stats().ChecksumErrors)
	assert.Empty(t, d.pending)

	// Nothing left to flush.
	d.Flush()
	assert.Equal(t, uint64(1), d.Stats().Frames)
}

func TestWriteDecodesOversizedPartialLine(t *testing.T) {
	d := NewDecoder(25)
	junk := strings.Repeat("x", maxPendingLine) + "1-0:32.7.0(230.0*V)"
	_, err := d.Write([]byte(junk))
	require.NoError(t, err)

	assert.Equal(t, 230.0, d.Registry().Number(FieldVoltageL1))
	assert.Empty(t, d.pending)
}

func TestEncodeAllZeroGolden(t *testing.T) {
	frame := string(NewEncoder().Encode(NewRegistry(), PhaseCurrents{25, 25, 25}))

	want := "/XMX5LGF0010455445332\r\n\r\n" +
		"1-3:0.2.8(0)\r\n" +
		"0-0:1.0.0()\r\n" +
		"0-0:96.1.1()\r\n" +
		"1-0:1.8.1(0.000*kWh)\r\n" +
		"1-0:1.8.2(0.000*kWh)\r\n" +
		"1-0:2.8.1(0.000*kWh)\r\n" +
		"1-0:2.8.2(0.000*kWh)\r\n" +
		"0-0:96.14.0(0)\r\n" +
		"1-0:1.7.0(0.000*kW)\r\n" +
		"1-0:2.7.0(0.000*kW)\r\n" +
		"0-0:96.7.21(0)\r\n" +
		"0-0:96.7.9(0)\r\n" +
		"1-0:99.97.0()\r\n" +
		"1-0:32.32.0(0)\r\n" +
		"1-0:52.32.0(0)\r\n" +
		"1-0:72.32.0(0)\r\n" +
		"1-0:32.36.0(0)\r\n" +
		"1-0:52.36.0(0)\r\n" +
		"1-0:72.36.0(0)\r\n" +
		"1-0:32.7.0(0.000*V)\r\n" +
		"1-0:52.7.0(0.000*V)\r\n" +
		"1-0:72.7.0(0.000*V)\r\n" +
		"1-0:31.7.0(25.000*A)\r\n" +
		"1-0:51.7.0(25.000*A)\r\n" +
		"1-0:71.7.0(25.000*A)\r\n" +
		"1-0:21.7.0(0.000*kW)\r\n" +
		"1-0:41.7.0(0.000*kW)\r\n" +
		"1-0:61.7.0(0.000*kW)\r\n" +
		"1-0:22.7.0(0.000*kW)\r\n" +
		"1-0:42.7.0(0.000*kW)\r\n" +
		"1-0:62.7.0(0.000*kW)\r\n" +
		"!486F\r\n"

	assert.Equal(t, want, frame)
	assert.True(t, checksum.Valid(frame))
}

func TestEncodeAllZeroGoldenZeroPadded(t *testing.T) {
	frame := string(NewEncoder(WithZeroPadding()).Encode(NewRegistry(), PhaseCurrents{25, 25, 25}))

	want := "/XMX5LGF0010455445332\r\n\r\n" +
		"1-3:0.2.8(0)\r\n" +
		"0-0:1.0.0()\r\n" +
		"0-0:96.1.1()\r\n" +
		"1-0:1.8.1(0.000*kWh)\r\n" +
		"1-0:1.8.2(0.000*kWh)\r\n" +
		"1-0:2.8.1(0.000*kWh)\r\n" +
		"1-0:2.8.2(0.000*kWh)\r\n" +
		"0-0:96.14.0(0000)\r\n" +
		"1-0:1.7.0(0.000*kW)\r\n" +
		"1-0:2.7.0(0.000*kW)\r\n" +
		"0-0:96.7.21(00000)\r\n" +
		"0-0:96.7.9(00000)\r\n" +
		"1-0:99.97.0()\r\n" +
		"1-0:32.32.0(00000)\r\n" +
		"1-0:52.32.0(00000)\r\n" +
		"1-0:72.32.0(00000)\r\n" +
		"1-0:32.36.0(00000)\r\n" +
		"1-0:52.36.0(00000)\r\n" +
		"1-0:72.36.0(00000)\r\n" +
		"1-0:32.7.0(0.000*V)\r\n" +
		"1-0:52.7.0(0.000*V)\r\n" +
		"1-0:72.7.0(0.000*V)\r\n" +
		"1-0:31.7.0(25.000*A)\r\n" +
		"1-0:51.7.0(25.000*A)\r\n" +
		"1-0:71.7.0(25.000*A)\r\n" +
		"1-0:21.7.0(0.000*kW)\r\n" +
		"1-0:41.7.0(0.000*kW)\r\n" +
		"1-0:61.7.0(0.000*kW)\r\n" +
		"1-0:22.7.0(0.000*kW)\r\n" +
		"1-0:42.7.0(0.000*kW)\r\n" +
		"1-0:62.7.0(0.000*kW)\r\n" +
		"!BBA0\r\n"

	assert.Equal(t, want, frame)
	assert.True(t, checksum.Valid(frame))
}

func TestEncodeWritesAllowanceInsteadOfMeasuredCurrent(t *testing.T) {
	d := NewDecoder(25)
	d.Decode(sampleTelegram())

	frame := string(NewEncoder().Encode(d.Registry(), PhaseCurrents{17, 20.5, 25}))

	assert.Contains(t, frame, "1-0:31.7.0(17.000*A)\r\n")
	assert.Contains(t, frame, "1-0:51.7.0(20.500*A)\r\n")
	assert.Contains(t, frame, "1-0:71.7.0(25.000*A)\r\n")
	assert.Contains(t, frame, "1-3:0.2.8(50)\r\n")
	assert.Contains(t, frame, "0-0:96.14.0(2)\r\n")
	assert.Contains(t, frame, "0-0:96.7.21(4)\r\n")
	assert.Contains(t, frame, "1-0:32.7.0(230.100*V)\r\n")
	assert.Contains(t, frame, "1-0:99.97.0(1)(0-0:96.7.19)(180101000000W)(0000000237*s)\r\n")
	assert.True(t, strings.HasPrefix(frame, "/XMX5LGBBFG1012650850\r\n\r\n"))
	assert.True(t, checksum.Valid(frame))
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	src := NewDecoder(25)
	src.Decode(sampleTelegram())

	allowance := PhaseCurrents{3, 4, 5}
	frame := NewEncoder().Encode(src.Registry(), allowance)

	dst := NewDecoder(25)
	_, err := dst.Write(frame)
	require.NoError(t, err)
	assert.Zero(t, dst.Stats().ChecksumErrors)

	a, b := src.Registry(), dst.Registry()
	assert.Equal(t, a.Header(), b.Header())
	for _, desc := range Schema {
		switch desc.ID {
		case FieldCurrentL1, FieldCurrentL2, FieldCurrentL3:
			continue
		}
		assert.Equal(t, a.Number(desc.ID), b.Number(desc.ID), desc.Name)
		assert.Equal(t, a.Integer(desc.ID), b.Integer(desc.ID), desc.Name)
		assert.Equal(t, a.Text(desc.ID), b.Text(desc.ID), desc.Name)
	}
	for phase, id := range CurrentFields {
		assert.Equal(t, allowance[phase], b.Number(id))
	}
}

func TestSchemaCoversEveryField(t *testing.T) {
	seen := map[FieldID]bool{}
	tags := map[string]bool{}
	for _, desc := range Schema {
		assert.False(t, seen[desc.ID], "duplicate id %d", desc.ID)
		assert.False(t, tags[desc.Tag], "duplicate tag %s", desc.Tag)
		seen[desc.ID] = true
		tags[desc.Tag] = true
		assert.Equal(t, desc.ID, Lookup(desc.ID).ID)
	}
	assert.Len(t, seen, int(fieldCount))
}

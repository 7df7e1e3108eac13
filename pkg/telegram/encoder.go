package telegram

import (
	"strconv"
	"strings"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/checksum"
)

const lineEnd = "\r\n"

// Encoder renders a registry back into telegram text.
type Encoder struct {
	padIntegers bool
}

type EncoderOption func(*Encoder)

// WithZeroPadding writes integer fields zero padded to their DSMR width
// (0002 instead of 2), the way meters send them.
func WithZeroPadding() EncoderOption {
	return func(e *Encoder) { e.padIntegers = true }
}

// NewEncoder returns an encoder that writes integers without padding.
func NewEncoder(opts ...EncoderOption) *Encoder {
	e := &Encoder{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode writes every schema field of r in schema order, replacing the three
// phase currents with allowance, and terminates the frame with '!' and its
// checksum.
func (e *Encoder) Encode(r Reader, allowance PhaseCurrents) []byte {
	var b strings.Builder
	b.Grow(1024)

	b.WriteString("/")
	b.WriteString(r.Header())
	b.WriteString(lineEnd)
	b.WriteString(lineEnd)

	for _, desc := range Schema {
		b.WriteString(desc.Tag)
		b.WriteByte('(')
		b.WriteString(e.formatValue(desc, r, allowance))
		b.WriteByte(')')
		b.WriteString(lineEnd)
	}
	b.WriteByte('!')

	body := b.String()
	return []byte(body + checksum.Hex([]byte(body)) + lineEnd)
}

func (e *Encoder) formatValue(desc Descriptor, r Reader, allowance PhaseCurrents) string {
	switch desc.Kind {
	case KindDecimal:
		v := r.Number(desc.ID)
		for phase, id := range CurrentFields {
			if id == desc.ID {
				v = allowance[phase]
			}
		}
		return strconv.FormatFloat(v, 'f', 3, 64) + "*" + desc.Unit
	case KindVersion:
		return strconv.FormatFloat(r.Number(desc.ID), 'g', 6, 64)
	case KindInteger:
		if e.padIntegers {
			return padInteger(r.Integer(desc.ID), desc.Width)
		}
		return strconv.FormatInt(r.Integer(desc.ID), 10)
	default:
		return r.Text(desc.ID)
	}
}

func padInteger(v int64, width int) string {
	s := strconv.FormatInt(v, 10)
	if len(s) >= width {
		return s
	}
	return strings.Repeat("0", width-len(s)) + s
}

package telegram

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/checksum"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// maxPendingLine bounds the bytes kept while waiting for a line terminator.
const maxPendingLine = 4096

// Stats counts decoder activity since construction.
type Stats struct {
	Lines          uint64 `json:"lines"`
	Frames         uint64 `json:"frames"`
	ChecksumErrors uint64 `json:"checksum_errors"`
	ParseErrors    uint64 `json:"parse_errors"`
}

// Decoder extracts field values from incoming telegram text into its Registry.
// It is the only writer of the registry and is not safe for concurrent use.
type Decoder struct {
	registry     *Registry
	currentLimit float64
	logger       zerolog.Logger

	pending []byte
	frame   strings.Builder
	inFrame bool
	stats   Stats
}

type Option func(*Decoder)

// WithLogger replaces the decoder's component logger.
func WithLogger(l zerolog.Logger) Option {
	return func(d *Decoder) { d.logger = l }
}

// NewDecoder returns a decoder with a fresh registry. Phase currents above
// currentLimit are stored as currentLimit.
func NewDecoder(currentLimit float64, opts ...Option) *Decoder {
	d := &Decoder{
		registry:     NewRegistry(),
		currentLimit: currentLimit,
		logger:       log.With().Str("component", "decoder").Logger(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Registry returns a read-only view of the decoded values.
func (d *Decoder) Registry() Reader {
	return d.registry
}

func (d *Decoder) Stats() Stats {
	return d.stats
}

// Decode searches chunk for every known field and stores the first match of
// each. Fields without a match keep their previous value. It returns the
// number of fields that were updated.
func (d *Decoder) Decode(chunk string) int {
	if m := headerRe.FindStringSubmatch(chunk); m != nil {
		d.registry.header = strings.TrimRight(m[1], "\r")
	}

	updated := 0
	for _, desc := range Schema {
		m := patterns[desc.ID].FindStringSubmatch(chunk)
		if m == nil {
			continue
		}
		if d.store(desc, m[1]) {
			updated++
		}
	}
	return updated
}

func (d *Decoder) store(desc Descriptor, raw string) bool {
	switch desc.Kind {
	case KindDecimal, KindVersion:
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			d.parseError(desc, raw, err)
			return false
		}
		if d.isCurrent(desc.ID) && v > d.currentLimit {
			v = d.currentLimit
		}
		d.registry.setNumber(desc.ID, v)
	case KindInteger:
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			d.parseError(desc, raw, err)
			return false
		}
		d.registry.setInteger(desc.ID, v)
	case KindText:
		d.registry.setText(desc.ID, raw)
	}
	return true
}

func (d *Decoder) isCurrent(id FieldID) bool {
	return id == FieldCurrentL1 || id == FieldCurrentL2 || id == FieldCurrentL3
}

func (d *Decoder) parseError(desc Descriptor, raw string, err error) {
	d.stats.ParseErrors++
	d.logger.Warn().
		Str("field", desc.Name).
		Str("tag", desc.Tag).
		Str("raw", raw).
		Err(err).
		Msg("Unparsable value, keeping previous")
}

// Write buffers p and decodes every complete line, so that a tag split over
// two serial reads is still decoded intact. It never returns an error.
func (d *Decoder) Write(p []byte) (int, error) {
	d.pending = append(d.pending, p...)

	for {
		idx := bytes.IndexByte(d.pending, '\n')
		if idx < 0 {
			break
		}
		line := string(d.pending[:idx+1])
		d.pending = d.pending[idx+1:]
		d.line(line)
	}

	if len(d.pending) > maxPendingLine {
		d.logger.Warn().Int("bytes", len(d.pending)).Msg("No line terminator, decoding partial data")
		d.Decode(string(d.pending))
		d.pending = d.pending[:0]
	}

	// Drop the backing array once drained.
	if len(d.pending) == 0 {
		d.pending = nil
	}
	return len(p), nil
}

// Flush decodes whatever is buffered after the last line terminator as a
// final line. Use it at the end of a finite input such as a captured file.
func (d *Decoder) Flush() {
	if len(d.pending) == 0 {
		return
	}
	line := string(d.pending)
	d.pending = nil
	d.line(line)
}

func (d *Decoder) line(line string) {
	d.stats.Lines++
	trimmed := strings.TrimRight(line, "\r\n")

	switch {
	case strings.HasPrefix(trimmed, "/"):
		d.frame.Reset()
		d.inFrame = true
	case strings.HasPrefix(trimmed, "!"):
		if d.inFrame {
			d.frame.WriteString("!")
			d.endFrame(d.frame.String(), trimmed[1:])
		}
		d.inFrame = false
		d.frame.Reset()
		return
	}

	if d.inFrame {
		d.frame.WriteString(line)
	}
	d.Decode(line)
}

func (d *Decoder) endFrame(body, given string) {
	d.stats.Frames++
	if given == "" {
		// DSMR 2.2 telegrams carry no checksum.
		return
	}
	if !checksum.Valid(body + given) {
		d.stats.ChecksumErrors++
		d.logger.Warn().
			Str("given", given).
			Str("computed", checksum.Hex([]byte(body))).
			Msg("Telegram checksum mismatch")
	}
}

// Package relay forwards raw bytes from one port to another in batches.
//
// Nothing is parsed: everything read is buffered and written out once per
// interval, which is useful to check the wiring before enabling the limiter.
package relay

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const readBufferSize = 1024

type Relay struct {
	interval time.Duration
	logger   zerolog.Logger
}

func New(interval time.Duration) *Relay {
	return &Relay{
		interval: interval,
		logger:   log.With().Str("component", "relay").Logger(),
	}
}

// Run copies in to out until ctx is cancelled. Buffered bytes are flushed
// every interval; a read error stops reading, a write error drops the batch.
func (r *Relay) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	chunks := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		buf := make([]byte, readBufferSize)
		for {
			n, err := in.Read(buf)
			if n > 0 {
				chunk := make([]byte, n)
				copy(chunk, buf[:n])
				select {
				case chunks <- chunk:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	var pending []byte
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Int("unsent_bytes", len(pending)).Msg("Relay stopped")
			return nil

		case chunk := <-chunks:
			pending = append(pending, chunk...)

		case err := <-readErr:
			r.logger.Error().Err(err).Msg("Input port read failed, relay no longer reading")
			chunks, readErr = nil, nil

		case <-ticker.C:
			if len(pending) == 0 {
				continue
			}
			if _, err := out.Write(pending); err != nil {
				r.logger.Error().Err(err).Int("bytes", len(pending)).Msg("Writing to output port failed")
			} else {
				r.logger.Debug().Int("bytes", len(pending)).Msg("Flushed")
			}
			pending = nil
		}
	}
}

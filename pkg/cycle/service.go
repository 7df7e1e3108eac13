// Package cycle runs the decode loop and the periodic control cycle.
//
// One event loop owns the decoder and the controller. Serial reads arrive
// from a reader goroutine and cycles fire from a timer on the same loop, so
// a cycle always sees a registry that is not being written to.
package cycle

import (
	"context"
	"io"
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/controller"
	"github.com/NotCoffee418/p1_charge_limiter/pkg/telegram"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type Orchestrator struct {
	decoder    *telegram.Decoder
	controller *controller.Controller
	encoder    *telegram.Encoder
	interval   time.Duration
	observers  []Observer
	logger     zerolog.Logger

	cycle uint64
}

func New(dec *telegram.Decoder, ctrl *controller.Controller, enc *telegram.Encoder, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		decoder:    dec,
		controller: ctrl,
		encoder:    enc,
		interval:   DefaultInterval,
		logger:     log.With().Str("component", "cycle").Logger(),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Run decodes everything read from in and writes one modified telegram to
// out per interval until ctx is cancelled. A read error stops decoding but
// not the cycles; write errors are logged and never retried.
func (o *Orchestrator) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go readLoop(ctx, in, chunks, readErr)

	// One slot: a frame is dropped while the previous one is still being written.
	frames := make(chan []byte, 1)
	defer close(frames)
	go o.writeLoop(out, frames)

	o.logger.Info().Dur("interval", o.interval).Msg("Control loop started")

	next := time.Now().Add(o.interval)
	timer := time.NewTimer(o.interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			o.logger.Info().Uint64("cycles", o.cycle).Msg("Stop signal received, control loop stopped")
			return nil

		case chunk := <-chunks:
			o.decoder.Write(chunk)

		case err := <-readErr:
			o.logger.Error().Err(err).Msg("Input port read failed, decoding stopped")
			chunks, readErr = nil, nil

		case now := <-timer.C:
			o.runCycle(now, frames)

			var skipped int
			next, skipped = nextDeadline(next, o.interval, time.Now())
			if skipped > 0 {
				o.logger.Warn().Int("skipped", skipped).Msg("Cycle overran its interval")
			}
			timer.Reset(time.Until(next))
		}
	}
}

// nextDeadline advances prev by whole intervals until it lies after now,
// so processing time never accumulates as drift.
func nextDeadline(prev time.Time, interval time.Duration, now time.Time) (time.Time, int) {
	next := prev.Add(interval)
	skipped := 0
	for !next.After(now) {
		next = next.Add(interval)
		skipped++
	}
	return next, skipped
}

func (o *Orchestrator) runCycle(now time.Time, frames chan<- []byte) {
	o.cycle++
	registry := o.decoder.Registry()

	inputs := controller.InputsFrom(registry)
	o.controller.Update(inputs)
	allowance := o.controller.Allowances()
	frame := o.encoder.Encode(registry, allowance)

	queued := true
	select {
	case frames <- frame:
	default:
		queued = false
		o.logger.Warn().Uint64("cycle", o.cycle).Msg("Output port busy, dropping telegram")
	}

	snapshot := buildSnapshot(o.cycle, now, registry, inputs, o.controller, o.decoder.Stats(), queued)
	o.logger.Debug().
		Uint64("cycle", o.cycle).
		Float64("consumption_kw", inputs.ConsumptionKW).
		Float64("generation_kw", inputs.GenerationKW).
		Float64("current_a", inputs.CurrentA).
		Floats64("allowance_a", allowance[:]).
		Msg("Cycle complete")

	for _, obs := range o.observers {
		obs.Observe(snapshot)
	}
}

func readLoop(ctx context.Context, in io.Reader, chunks chan<- []byte, readErr chan<- error) {
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
}

func (o *Orchestrator) writeLoop(out io.Writer, frames <-chan []byte) {
	for frame := range frames {
		if _, err := out.Write(frame); err != nil {
			o.logger.Error().Err(err).Msg("Writing telegram to output port failed")
		}
	}
}

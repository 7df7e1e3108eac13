package cycle

import (
	"time"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/rs/zerolog"
)

const (
	// DefaultInterval matches the update rate charge controllers expect.
	DefaultInterval = 10 * time.Second

	readBufferSize = 256
)

// Observer receives a copy of every cycle's result. Observers run on the
// event loop and must return quickly.
type Observer interface {
	Observe(snapshot types.CycleSnapshot)
}

type ObserverFunc func(snapshot types.CycleSnapshot)

func (f ObserverFunc) Observe(snapshot types.CycleSnapshot) {
	f(snapshot)
}

type Option func(*Orchestrator)

func WithInterval(d time.Duration) Option {
	return func(o *Orchestrator) {
		if d > 0 {
			o.interval = d
		}
	}
}

func WithObserver(obs Observer) Option {
	return func(o *Orchestrator) { o.observers = append(o.observers, obs) }
}

func WithLogger(l zerolog.Logger) Option {
	return func(o *Orchestrator) { o.logger = l }
}

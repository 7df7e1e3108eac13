// Package metrics exports cycle results as Prometheus metrics.
package metrics

import (
	"strconv"
	"sync"

	"github.com/NotCoffee418/p1_charge_limiter/pkg/types"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "p1limiter"

type Metrics struct {
	cycles         prometheus.Counter
	droppedFrames  prometheus.Counter
	parseErrors    prometheus.Counter
	checksumErrors prometheus.Counter
	frames         prometheus.Counter

	currentLimit  prometheus.Gauge
	netPower      prometheus.Gauge
	consumption   prometheus.Gauge
	generation    prometheus.Gauge
	measured      *prometheus.GaugeVec
	deduction     *prometheus.GaugeVec
	allowance     *prometheus.GaugeVec
	lastCycleTime prometheus.Gauge

	mu        sync.Mutex
	lastStats types.DecoderStats
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	phase := []string{"phase"}
	m := &Metrics{
		cycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cycles_total",
			Help:      "Control cycles run.",
		}),
		droppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_telegrams_total",
			Help:      "Telegrams dropped because the output port was still busy.",
		}),
		parseErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "parse_errors_total",
			Help:      "Field values that could not be parsed.",
		}),
		checksumErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "checksum_errors_total",
			Help:      "Incoming telegrams with a checksum mismatch.",
		}),
		frames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "telegrams_received_total",
			Help:      "Complete telegrams received from the meter.",
		}),
		currentLimit: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "current_limit_amperes",
			Help:      "Configured current limit per phase.",
		}),
		netPower: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "net_power_kilowatts",
			Help:      "Consumption minus generation over all phases.",
		}),
		consumption: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "consumption_kilowatts",
			Help:      "Power imported over all phases.",
		}),
		generation: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "generation_kilowatts",
			Help:      "Power exported over all phases.",
		}),
		measured: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "measured_current_amperes",
			Help:      "Phase current reported by the meter, clamped to the limit.",
		}, phase),
		deduction: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "deduction_amperes",
			Help:      "Current withheld from the charger per phase.",
		}, phase),
		allowance: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "allowance_amperes",
			Help:      "Current advertised to the charger per phase.",
		}, phase),
		lastCycleTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_cycle_timestamp_seconds",
			Help:      "Unix time of the last completed cycle.",
		}),
	}

	reg.MustRegister(
		m.cycles,
		m.droppedFrames,
		m.parseErrors,
		m.checksumErrors,
		m.frames,
		m.currentLimit,
		m.netPower,
		m.consumption,
		m.generation,
		m.measured,
		m.deduction,
		m.allowance,
		m.lastCycleTime,
	)
	return m
}

func (m *Metrics) Observe(s types.CycleSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cycles.Inc()
	if !s.Queued {
		m.droppedFrames.Inc()
	}

	// Decoder stats are running totals.
	m.frames.Add(float64(delta(s.Decoder.Frames, m.lastStats.Frames)))
	m.parseErrors.Add(float64(delta(s.Decoder.ParseErrors, m.lastStats.ParseErrors)))
	m.checksumErrors.Add(float64(delta(s.Decoder.ChecksumErrors, m.lastStats.ChecksumErrors)))
	m.lastStats = s.Decoder

	m.currentLimit.Set(s.CurrentLimit)
	m.consumption.Set(s.ConsumptionKW)
	m.generation.Set(s.GenerationKW)
	m.netPower.Set(s.ConsumptionKW - s.GenerationKW)
	m.lastCycleTime.Set(float64(s.Time.Unix()))

	for i := 0; i < 3; i++ {
		label := "L" + strconv.Itoa(i+1)
		m.measured.WithLabelValues(label).Set(s.Reading.CurrentA[i])
		m.deduction.WithLabelValues(label).Set(s.Deduction[i])
		m.allowance.WithLabelValues(label).Set(s.Allowance[i])
	}
}

func delta(now, prev uint64) uint64 {
	if now < prev {
		return now
	}
	return now - prev
}

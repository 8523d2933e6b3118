// Package sampler turns the remote's buttons and sticks into commands.
package sampler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
)

// DigitalReader reads a button pin. True means pressed.
type DigitalReader interface {
	ReadDigital(pin int) bool
}

// AnalogReader reads a 16-bit ADC channel.
type AnalogReader interface {
	ReadAnalog(pin int) uint16
}

// Acknowledger gives the operator feedback for a fired rule. It must not block.
type Acknowledger interface {
	Acknowledge(r Rule)
}

// Publisher writes a command to the channel.
type Publisher interface {
	Publish(c command.Command) error
}

// Link is the part of the link manager the sampler needs.
type Link interface {
	State() link.State
	Fail(err error)
}

// Sample is the outcome of one tick.
type Sample struct {
	Reading   Reading
	Rule      Rule
	State     link.State
	Published bool
	Err       error
}

// Options are optional collaborators.
type Options struct {
	Acknowledger Acknowledger
	Log          *zap.Logger
}

// Sampler reads the inputs every tick and publishes the resolved command
// while connected.
type Sampler struct {
	cfg     Config
	rules   []Rule
	digital DigitalReader
	analog  AnalogReader
	pub     Publisher
	link    Link
	ack     Acknowledger
	log     *zap.Logger

	idle    rate.Sometimes
	samples chan Sample
}

// New creates a sampler. Zero High, Low and Tick fall back to the defaults.
func New(cfg Config, digital DigitalReader, analog AnalogReader, pub Publisher, l Link, opts Options) *Sampler {
	if cfg.High == 0 {
		cfg.High = DefaultHigh
	}
	if cfg.Low == 0 {
		cfg.Low = DefaultLow
	}
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &Sampler{
		cfg:     cfg,
		rules:   Rules(cfg),
		digital: digital,
		analog:  analog,
		pub:     pub,
		link:    l,
		ack:     opts.Acknowledger,
		log:     log.Named("sampler"),
		idle:    rate.Sometimes{Interval: 5 * time.Second},
		samples: make(chan Sample, 1),
	}
}

// Samples returns a channel carrying the latest sample. Older samples are
// dropped when the reader falls behind.
func (s *Sampler) Samples() <-chan Sample {
	return s.samples
}

// Read takes one snapshot of the configured inputs.
func (s *Sampler) Read() Reading {
	r := Reading{
		Buttons: make(map[int]bool, len(s.cfg.Buttons)),
		At:      time.Now(),
	}
	for _, b := range s.cfg.Buttons {
		r.Buttons[b.Pin] = s.digital.ReadDigital(b.Pin)
	}
	for i, pin := range s.cfg.AxisPins {
		r.Axes[i] = s.analog.ReadAnalog(pin)
	}
	return r
}

// Run samples every tick until ctx is cancelled.
func (s *Sampler) Run(ctx context.Context) error {
	s.log.Info("sampler started", zap.Duration("tick", s.cfg.Tick))

	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.sendSample(s.Step())
		}
	}
}

// Step runs one tick: sample, resolve, acknowledge and publish.
func (s *Sampler) Step() Sample {
	reading := s.Read()
	rule := Resolve(s.rules, reading)
	out := Sample{Reading: reading, Rule: rule, State: s.link.State()}

	if rule.Command != command.NoOp && s.ack != nil {
		s.ack.Acknowledge(rule)
	}

	if out.State != link.StateConnected {
		s.idle.Do(func() {
			s.log.Debug("not connected, holding commands", zap.Stringer("state", out.State))
		})
		return out
	}

	if err := s.pub.Publish(rule.Command); err != nil {
		out.Err = fmt.Errorf("sampler: %w", err)
		s.log.Warn("publish failed", zap.Stringer("command", rule.Command), zap.Error(err))
		s.link.Fail(err)
		return out
	}
	out.Published = true
	if rule.Command != command.NoOp {
		s.log.Debug("sent", zap.Stringer("command", rule.Command), zap.String("rule", rule.Name))
	}
	return out
}

func (s *Sampler) sendSample(v Sample) {
	select {
	case s.samples <- v:
	default:
		select {
		case <-s.samples:
		default:
		}
		select {
		case s.samples <- v:
		default:
		}
	}
}

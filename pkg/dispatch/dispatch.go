// Package dispatch runs on the robot. Every tick it reads the latest command
// from the channel and, when the command is actionable, runs the matching
// motion routine to completion before reading again.
package dispatch

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/channel"
	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
)

// Library runs motion routines by name. Invoke blocks until the routine is done.
type Library interface {
	Invoke(ctx context.Context, routine string) error
}

// Observer is told about every routine the dispatcher ran.
type Observer interface {
	Dispatched(req command.MotionRequest, took time.Duration, err error)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(req command.MotionRequest, took time.Duration, err error)

func (f ObserverFunc) Dispatched(req command.MotionRequest, took time.Duration, err error) {
	f(req, took, err)
}

// Config controls polling.
type Config struct {
	Tick        time.Duration
	ReadTimeout time.Duration
}

// DefaultConfig polls every 10ms with a 500ms read bound.
func DefaultConfig() Config {
	return Config{
		Tick:        10 * time.Millisecond,
		ReadTimeout: 500 * time.Millisecond,
	}
}

// Stats counts what the dispatcher did across sessions.
type Stats struct {
	Reads      uint64
	Dispatched uint64
	Failed     uint64
	Last       command.MotionRequest
}

// Dispatcher implements link.SessionHandler.
type Dispatcher struct {
	lib      Library
	cfg      Config
	observer Observer
	log      *zap.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a dispatcher invoking routines on lib. observer may be nil.
func New(lib Library, cfg Config, observer Observer, log *zap.Logger) *Dispatcher {
	def := DefaultConfig()
	if cfg.Tick <= 0 {
		cfg.Tick = def.Tick
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Dispatcher{
		lib:      lib,
		cfg:      cfg,
		observer: observer,
		log:      log.Named("dispatch"),
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

// Serve polls src until a read fails or ctx is cancelled. Read faults end
// the session; routine failures do not.
func (d *Dispatcher) Serve(ctx context.Context, src link.Readable) error {
	reader := channel.NewReader(src, d.cfg.ReadTimeout)

	ticker := time.NewTicker(d.cfg.Tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return link.Classify("serve", ctx.Err())
		case <-ticker.C:
		}

		c, err := reader.Next(ctx)
		if err != nil {
			return err
		}
		d.count(func(s *Stats) { s.Reads++ })

		d.Dispatch(ctx, c)
	}
}

// Dispatch runs the routine for c, if any, and reports whether one ran.
// The routine is not cancelled when ctx is: a motion is never cut short by
// a dropped link.
func (d *Dispatcher) Dispatch(ctx context.Context, c command.Command) bool {
	req, ok := command.NewRequest(c, time.Now())
	if !ok {
		return false
	}

	d.log.Info("dispatch", zap.Stringer("command", c), zap.String("routine", req.Routine))
	err := d.lib.Invoke(context.WithoutCancel(ctx), req.Routine)
	took := time.Since(req.IssuedAt)

	d.count(func(s *Stats) {
		s.Dispatched++
		s.Last = req
		if err != nil {
			s.Failed++
		}
	})
	if err != nil {
		d.log.Error("routine failed", zap.String("routine", req.Routine), zap.Error(err))
	} else {
		d.log.Debug("routine done", zap.String("routine", req.Routine), zap.Duration("took", took))
	}

	if d.observer != nil {
		d.observer.Dispatched(req, took, err)
	}
	return true
}

func (d *Dispatcher) count(f func(*Stats)) {
	d.mu.Lock()
	f(&d.stats)
	d.mu.Unlock()
}

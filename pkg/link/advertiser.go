package link

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// AdvertiserConfig configures the remote's link manager.
type AdvertiserConfig struct {
	Advertisement Advertisement
	// RetryDelay is waited after the radio itself fails to advertise.
	RetryDelay time.Duration
}

// Advertiser runs the peripheral side of the link: advertise, accept one
// central, wait for it to leave, advertise again.
type Advertiser struct {
	radio Peripheral
	cfg   AdvertiserConfig
	state *Tracker
	log   *zap.Logger

	mu   sync.Mutex
	conn Conn
}

// NewAdvertiser creates an advertiser that reports to state.
func NewAdvertiser(radio Peripheral, state *Tracker, cfg AdvertiserConfig, log *zap.Logger) *Advertiser {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 100 * time.Millisecond
	}
	return &Advertiser{
		radio: radio,
		cfg:   cfg,
		state: state,
		log:   log.Named("link"),
	}
}

// State returns the current link state.
func (a *Advertiser) State() State {
	return a.state.State()
}

// Conn returns the live connection, or nil.
func (a *Advertiser) Conn() Conn {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn
}

// Fail tears down the live connection after a write failure. The run loop
// notices the closed handle and goes back to advertising.
func (a *Advertiser) Fail(err error) {
	c := a.Conn()
	if c == nil {
		return
	}
	a.log.Warn("dropping connection", zap.String("session", c.ID()), zap.Error(Classify("write", err)))
	if cerr := c.Close(); cerr != nil {
		a.log.Debug("close connection", zap.Error(cerr))
	}
}

// Run advertises until ctx is cancelled. It only returns ctx.Err().
func (a *Advertiser) Run(ctx context.Context) error {
	defer a.state.set(StateIdle, "", "shutdown")

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		a.state.set(StateAdvertising, "", "advertise")
		a.log.Debug("advertising", zap.String("name", a.cfg.Advertisement.LocalName))

		conn, err := a.radio.Advertise(ctx, a.cfg.Advertisement)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			a.log.Warn("advertise failed", zap.Error(err))
			a.state.set(StateIdle, "", "advertise failed")
			if !sleep(ctx, a.cfg.RetryDelay) {
				return ctx.Err()
			}
			continue
		}

		a.hold(ctx, conn)
	}
}

// hold keeps the connection until the peer leaves or ctx ends.
func (a *Advertiser) hold(ctx context.Context, conn Conn) {
	a.mu.Lock()
	prev := a.conn
	a.conn = conn
	a.mu.Unlock()
	if prev != nil {
		prev.Close()
	}

	a.state.set(StateConnected, conn.ID(), "peer connected")
	a.log.Info("connected", zap.String("session", conn.ID()), zap.String("peer", conn.Peer()))

	reason := "peer disconnected"
	select {
	case <-conn.Disconnected():
	case <-ctx.Done():
		reason = "shutdown"
	}

	a.state.set(StateDisconnecting, "", reason)
	a.mu.Lock()
	if a.conn == conn {
		a.conn = nil
	}
	a.mu.Unlock()
	if err := conn.Close(); err != nil {
		a.log.Debug("close connection", zap.Error(err))
	}
	a.state.set(StateIdle, "", reason)
	a.log.Info("disconnected", zap.String("session", conn.ID()), zap.String("reason", reason))
}

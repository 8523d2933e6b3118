package link

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// SessionHandler consumes a discovered command characteristic until it
// fails or ctx is cancelled by a disconnect.
type SessionHandler interface {
	Serve(ctx context.Context, src Readable) error
}

// SessionHandlerFunc adapts a function to SessionHandler.
type SessionHandlerFunc func(ctx context.Context, src Readable) error

func (f SessionHandlerFunc) Serve(ctx context.Context, src Readable) error {
	return f(ctx, src)
}

// ScannerConfig configures the robot's link manager.
type ScannerConfig struct {
	// LocalName and Service filter advertisements; both must match.
	LocalName string
	Service   UUID

	// CommandService and Characteristic are looked up after connecting.
	CommandService UUID
	Characteristic UUID

	Scan             ScanParams
	ConnectTimeout   time.Duration
	DiscoveryTimeout time.Duration
	// RetryDelay is waited only after radio errors.
	RetryDelay time.Duration
}

// Scanner runs the central side of the link.
type Scanner struct {
	radio   Central
	handler SessionHandler
	cfg     ScannerConfig
	state   *Tracker
	log     *zap.Logger

	idle rate.Sometimes

	mu      sync.Mutex
	session Session
}

// NewScanner creates a scanner that hands each session to h.
func NewScanner(radio Central, h SessionHandler, state *Tracker, cfg ScannerConfig, log *zap.Logger) *Scanner {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Scan.Duration <= 0 {
		cfg.Scan.Duration = 5 * time.Second
	}
	if cfg.ConnectTimeout <= 0 {
		cfg.ConnectTimeout = 5 * time.Second
	}
	if cfg.DiscoveryTimeout <= 0 {
		cfg.DiscoveryTimeout = 5 * time.Second
	}
	return &Scanner{
		radio:   radio,
		handler: h,
		cfg:     cfg,
		state:   state,
		log:     log.Named("link"),
		idle:    rate.Sometimes{Interval: 30 * time.Second},
	}
}

// State returns the current link state.
func (s *Scanner) State() State {
	return s.state.State()
}

// Session returns the live session, or nil.
func (s *Scanner) Session() Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.session
}

// Match reports whether adv belongs to the remote.
func (s *Scanner) Match(adv Advertisement) bool {
	return adv.LocalName == s.cfg.LocalName && adv.HasService(s.cfg.Service)
}

// Run scans, connects and serves sessions until ctx is cancelled. It only
// returns ctx.Err().
func (s *Scanner) Run(ctx context.Context) error {
	defer s.state.set(StateIdle, "", "shutdown")

	for {
		err := s.attempt(ctx)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.report(err)

		if isRadioError(err) && !sleep(ctx, s.cfg.RetryDelay) {
			return ctx.Err()
		}
	}
}

func (s *Scanner) report(err error) {
	if f, ok := AsFault(err); ok {
		s.log.Warn("session ended", zap.Stringer("kind", f.Kind), zap.Error(err))
		return
	}
	switch {
	case err == nil:
	case errors.Is(err, ErrNotFound):
		s.idle.Do(func() {
			s.log.Info("remote not found, still scanning", zap.String("name", s.cfg.LocalName))
		})
	case errors.Is(err, ErrConnectTimeout), errors.Is(err, ErrDiscovery):
		s.log.Warn("connection attempt failed", zap.Error(err))
	default:
		s.log.Error("radio error", zap.Error(err))
	}
}

func isRadioError(err error) bool {
	if err == nil {
		return false
	}
	if _, ok := AsFault(err); ok {
		return false
	}
	return !errors.Is(err, ErrNotFound) &&
		!errors.Is(err, ErrConnectTimeout) &&
		!errors.Is(err, ErrDiscovery)
}

// attempt runs one scan-connect-discover-serve cycle.
func (s *Scanner) attempt(ctx context.Context) error {
	s.state.set(StateScanning, "", "scan")

	scanCtx, cancel := context.WithTimeout(ctx, s.cfg.Scan.Duration)
	peer, err := s.radio.Scan(scanCtx, s.cfg.Scan, s.Match)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrNotFound
		}
		return fmt.Errorf("scan: %w", err)
	}
	s.log.Debug("found remote", zap.String("addr", peer.Address), zap.Int16("rssi", peer.RSSI))

	connCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	sess, err := s.radio.Connect(connCtx, peer)
	cancel()
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			err = ErrConnectTimeout
		}
		return fmt.Errorf("connect %s: %w", peer.Address, err)
	}

	discCtx, cancel := context.WithTimeout(ctx, s.cfg.DiscoveryTimeout)
	src, err := sess.Discover(discCtx, s.cfg.CommandService, s.cfg.Characteristic)
	cancel()
	if err != nil {
		sess.Close()
		if !errors.Is(err, ErrDiscovery) {
			err = fmt.Errorf("%w: %w", ErrDiscovery, err)
		}
		return fmt.Errorf("discover %s/%s: %w", s.cfg.CommandService, s.cfg.Characteristic, err)
	}

	return s.serve(ctx, sess, src)
}

// serve hands src to the session handler and tears the session down when
// the handler returns.
func (s *Scanner) serve(ctx context.Context, sess Session, src Readable) error {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()

	s.state.set(StateConnected, sess.ID(), "command characteristic discovered")
	s.log.Info("connected", zap.String("session", sess.ID()), zap.String("peer", sess.Peer()))

	sessCtx, cancel := context.WithCancel(ctx)
	go func() {
		select {
		case <-sess.Disconnected():
			cancel()
		case <-sessCtx.Done():
		}
	}()

	err := s.handler.Serve(sessCtx, src)
	disconnected := sessCtx.Err() != nil && ctx.Err() == nil
	cancel()

	s.state.set(StateDisconnecting, "", "session ended")
	s.mu.Lock()
	s.session = nil
	s.mu.Unlock()
	if cerr := sess.Close(); cerr != nil {
		s.log.Debug("close session", zap.Error(cerr))
	}
	s.state.set(StateIdle, "", "session ended")

	if err == nil || (disconnected && errors.Is(err, context.Canceled)) {
		err = &Fault{Kind: FaultDisconnected, Op: "session", Err: ErrClosed}
	}
	return Classify("session", err)
}

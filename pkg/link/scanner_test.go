package link_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/thething/pkg/link"
)

// stallingCentral always finds the remote, then never finishes connecting
// (stallConnect) or never finishes discovery.
type stallingCentral struct {
	stallConnect bool

	mu       sync.Mutex
	attempts int
	closed   int
}

func (c *stallingCentral) Scan(ctx context.Context, _ link.ScanParams, match func(link.Advertisement) bool) (link.Peer, error) {
	adv := link.DefaultAdvertisement()
	if !match(adv) {
		<-ctx.Done()
		return link.Peer{}, ctx.Err()
	}
	return link.Peer{Address: "AA:BB:CC:DD:EE:FF", Advertisement: adv}, nil
}

func (c *stallingCentral) Connect(ctx context.Context, _ link.Peer) (link.Session, error) {
	c.mu.Lock()
	c.attempts++
	c.mu.Unlock()
	if c.stallConnect {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	return &stallingSession{central: c, id: link.NewSessionID()}, nil
}

func (c *stallingCentral) counts() (attempts, closed int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attempts, c.closed
}

type stallingSession struct {
	central *stallingCentral
	id      string
	sig     link.Signal
}

func (s *stallingSession) ID() string { return s.id }

func (s *stallingSession) Peer() string { return "AA:BB:CC:DD:EE:FF" }

func (s *stallingSession) Disconnected() <-chan struct{} { return s.sig.Done() }

func (s *stallingSession) Close() error {
	if !s.sig.Fired() {
		s.central.mu.Lock()
		s.central.closed++
		s.central.mu.Unlock()
	}
	s.sig.Fire()
	return nil
}

func (s *stallingSession) Discover(ctx context.Context, _, _ link.UUID) (link.Readable, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestScanner_StalledAttemptsTimeOut(t *testing.T) {
	tests := []struct {
		name         string
		stallConnect bool
	}{
		{"connect", true},
		{"discovery", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			radio := &stallingCentral{stallConnect: tt.stallConnect}
			tracker := link.NewTracker()
			transitions, unsubscribe := tracker.Subscribe(256)
			defer unsubscribe()

			cfg := testScannerConfig()
			cfg.ConnectTimeout = 20 * time.Millisecond
			cfg.DiscoveryTimeout = 20 * time.Millisecond
			served := make(chan struct{}, 1)
			handler := link.SessionHandlerFunc(func(ctx context.Context, _ link.Readable) error {
				served <- struct{}{}
				return nil
			})
			s := link.NewScanner(radio, handler, tracker, cfg, nil)

			ctx, cancel := context.WithCancel(context.Background())
			done := make(chan error, 1)
			go func() { done <- s.Run(ctx) }()

			waitFor(t, "three attempts", func() bool {
				attempts, _ := radio.counts()
				return attempts >= 3
			})
			cancel()
			if err := <-done; !errors.Is(err, context.Canceled) {
				t.Errorf("Run = %v, want context.Canceled", err)
			}

			attempts, closed := radio.counts()
			if !tt.stallConnect && closed < attempts-1 {
				t.Errorf("closed %d of %d sessions after discovery timeouts", closed, attempts)
			}
			select {
			case <-served:
				t.Error("handler ran without discovery")
			default:
			}
			for {
				select {
				case tr := <-transitions:
					if tr.To == link.StateConnected {
						t.Fatalf("entered connected: %+v", tr)
					}
					continue
				default:
				}
				break
			}
			if s.Session() != nil {
				t.Error("Session() set after stalled attempts")
			}
		})
	}
}

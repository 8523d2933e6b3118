package link

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// UUID is a 16-bit Bluetooth SIG assigned number.
type UUID uint16

// Identity of the remote on the air and the layout of its command service.
const (
	RemoteName        = "TheThing"
	AppearanceRemote  = 384
	AdvertiseInterval = 250 * time.Millisecond

	AdvertisedService     UUID = 0x1800
	CommandService        UUID = 0x1848
	CommandCharacteristic UUID = 0x2A6E
)

// DefaultAdvertisement is what the remote broadcasts.
func DefaultAdvertisement() Advertisement {
	return Advertisement{
		LocalName:    RemoteName,
		Appearance:   AppearanceRemote,
		ServiceUUIDs: []UUID{AdvertisedService},
		Interval:     AdvertiseInterval,
	}
}

// DefaultScannerConfig returns the robot's discovery parameters.
func DefaultScannerConfig() ScannerConfig {
	return ScannerConfig{
		LocalName:      RemoteName,
		Service:        AdvertisedService,
		CommandService: CommandService,
		Characteristic: CommandCharacteristic,
		Scan: ScanParams{
			Duration: 5 * time.Second,
			Interval: 30 * time.Millisecond,
			Window:   30 * time.Millisecond,
			Active:   true,
		},
		ConnectTimeout:   5 * time.Second,
		DiscoveryTimeout: 5 * time.Second,
	}
}

func (u UUID) String() string {
	return fmt.Sprintf("0x%04x", uint16(u))
}

// Advertisement is what a peripheral broadcasts and what a central filters on.
type Advertisement struct {
	LocalName    string
	Appearance   uint16
	ServiceUUIDs []UUID
	Interval     time.Duration
}

// HasService reports whether u is among the advertised services.
func (a Advertisement) HasService(u UUID) bool {
	return slices.Contains(a.ServiceUUIDs, u)
}

// ScanParams bound one scan window. Interval and Window are hints; backends
// that cannot set them ignore them.
type ScanParams struct {
	Duration time.Duration
	Interval time.Duration
	Window   time.Duration
	Active   bool
}

// Peer is a scan result that passed the filter.
type Peer struct {
	Address       string
	RSSI          int16
	Advertisement Advertisement
}

// Conn is a live connection handle. Close must close the Disconnected
// channel; every operation after that fails with ErrClosed.
type Conn interface {
	ID() string
	Peer() string
	Disconnected() <-chan struct{}
	Close() error
}

// Readable is a remote attribute the robot polls.
type Readable interface {
	Read(p []byte) (int, error)
}

// Session is a central-side connection that can run GATT discovery.
type Session interface {
	Conn
	Discover(ctx context.Context, service, characteristic UUID) (Readable, error)
}

// Peripheral is the remote's radio.
type Peripheral interface {
	// Advertise broadcasts adv and blocks until a central connects.
	Advertise(ctx context.Context, adv Advertisement) (Conn, error)
}

// Central is the robot's radio.
type Central interface {
	// Scan returns the first peer accepted by match, or ErrNotFound / the
	// context error when the scan window closes first.
	Scan(ctx context.Context, params ScanParams, match func(Advertisement) bool) (Peer, error)
	Connect(ctx context.Context, peer Peer) (Session, error)
}

// NewSessionID returns a fresh identifier for a connection handle.
func NewSessionID() string {
	return uuid.NewString()
}

// Signal is a close-once notification used by backends to implement
// Conn.Disconnected.
type Signal struct {
	once sync.Once
	ch   chan struct{}
	init sync.Once
}

func (s *Signal) lazy() {
	s.init.Do(func() { s.ch = make(chan struct{}) })
}

// Fire closes the channel. Safe to call more than once.
func (s *Signal) Fire() {
	s.lazy()
	s.once.Do(func() { close(s.ch) })
}

// Done returns the channel closed by Fire.
func (s *Signal) Done() <-chan struct{} {
	s.lazy()
	return s.ch
}

// Fired reports whether Fire has been called.
func (s *Signal) Fired() bool {
	select {
	case <-s.Done():
		return true
	default:
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Package sim is an in-memory radio joining one simulated remote and one
// simulated robot. It implements link.Peripheral and link.Central and can
// inject the faults the real link produces: dropped connections, failing
// reads, failing discovery and a remote that stops advertising.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gwillem/thething/pkg/channel"
	"github.com/gwillem/thething/pkg/link"
)

const (
	remoteAddress = "sim:remote"
	scanPoll      = 2 * time.Millisecond
)

// Air is the shared medium. The remote's command attribute lives in Value.
type Air struct {
	value *channel.Value

	mu          sync.Mutex
	adv         *advertising
	hidden      bool
	readErr     error
	discoverErr error
	conn        *conn
	connects    int
	reads       int
}

type advertising struct {
	adv      link.Advertisement
	accepted chan *conn
}

// NewAir returns an empty medium whose command attribute reads as no-op.
func NewAir() *Air {
	return &Air{value: channel.NewValue()}
}

// Value is the remote's command attribute.
func (a *Air) Value() *channel.Value { return a.value }

// Peripheral returns the remote's radio.
func (a *Air) Peripheral() link.Peripheral { return peripheral{a} }

// Central returns the robot's radio.
func (a *Air) Central() link.Central { return central{a} }

// Drop breaks the live connection as if the radio link was lost.
func (a *Air) Drop() {
	a.mu.Lock()
	c := a.conn
	a.mu.Unlock()
	if c != nil {
		c.Close()
	}
}

// FailReads makes every read on the command attribute return err until it
// is called again with nil.
func (a *Air) FailReads(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.readErr = err
}

// FailDiscovery makes service discovery return err until called with nil.
func (a *Air) FailDiscovery(err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.discoverErr = err
}

// Hide stops the robot from seeing the remote's advertisements.
func (a *Air) Hide(hidden bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.hidden = hidden
}

// Connected reports whether a connection is live.
func (a *Air) Connected() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.conn != nil && !a.conn.sig.Fired()
}

// Connects returns how many connections have been established.
func (a *Air) Connects() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.connects
}

// Reads returns how many reads reached the command attribute.
func (a *Air) Reads() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reads
}

type peripheral struct{ air *Air }

func (p peripheral) Advertise(ctx context.Context, adv link.Advertisement) (link.Conn, error) {
	a := p.air
	ad := &advertising{adv: adv, accepted: make(chan *conn, 1)}

	a.mu.Lock()
	if a.adv != nil {
		a.mu.Unlock()
		return nil, fmt.Errorf("advertise: already advertising")
	}
	a.adv = ad
	a.mu.Unlock()

	select {
	case c := <-ad.accepted:
		return c, nil
	case <-ctx.Done():
		a.mu.Lock()
		if a.adv == ad {
			a.adv = nil
		}
		a.mu.Unlock()
		// A connect may have raced the cancellation.
		select {
		case c := <-ad.accepted:
			c.Close()
		default:
		}
		return nil, ctx.Err()
	}
}

type central struct{ air *Air }

func (c central) Scan(ctx context.Context, params link.ScanParams, match func(link.Advertisement) bool) (link.Peer, error) {
	a := c.air
	t := time.NewTicker(scanPoll)
	defer t.Stop()

	for {
		a.mu.Lock()
		ad, hidden := a.adv, a.hidden
		a.mu.Unlock()

		if ad != nil && !hidden && match(ad.adv) {
			return link.Peer{Address: remoteAddress, RSSI: -40, Advertisement: ad.adv}, nil
		}

		select {
		case <-ctx.Done():
			return link.Peer{}, ctx.Err()
		case <-t.C:
		}
	}
}

func (c central) Connect(ctx context.Context, peer link.Peer) (link.Session, error) {
	a := c.air
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.adv == nil || peer.Address != remoteAddress {
		return nil, fmt.Errorf("connect %s: %w", peer.Address, link.ErrClosed)
	}

	cn := &conn{air: a, id: link.NewSessionID()}
	a.adv.accepted <- cn
	a.adv = nil
	a.conn = cn
	a.connects++
	return cn, nil
}

// conn is shared by both ends: closing either side disconnects both.
type conn struct {
	air *Air
	id  string
	sig link.Signal
}

func (c *conn) ID() string { return c.id }

func (c *conn) Peer() string { return remoteAddress }

func (c *conn) Disconnected() <-chan struct{} { return c.sig.Done() }

func (c *conn) Close() error {
	c.sig.Fire()
	c.air.mu.Lock()
	if c.air.conn == c {
		c.air.conn = nil
	}
	c.air.mu.Unlock()
	return nil
}

func (c *conn) Discover(ctx context.Context, service, characteristic link.UUID) (link.Readable, error) {
	if c.sig.Fired() {
		return nil, link.ErrClosed
	}
	c.air.mu.Lock()
	err := c.air.discoverErr
	c.air.mu.Unlock()
	if err != nil {
		return nil, err
	}
	if service != link.CommandService || characteristic != link.CommandCharacteristic {
		return nil, fmt.Errorf("%w: no %s/%s on remote", link.ErrDiscovery, service, characteristic)
	}
	return &attribute{conn: c}, nil
}

type attribute struct {
	conn *conn
}

func (at *attribute) Read(p []byte) (int, error) {
	if at.conn.sig.Fired() {
		return 0, link.ErrClosed
	}
	a := at.conn.air
	a.mu.Lock()
	err := a.readErr
	a.reads++
	a.mu.Unlock()
	if err != nil {
		return 0, err
	}
	return a.value.Read(p)
}

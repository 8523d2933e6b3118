package ble

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/gwillem/thething/pkg/link"
)

// Scan implements link.Central. The adapter ignores params.Interval and
// params.Window.
func (r *Radio) Scan(ctx context.Context, params link.ScanParams, match func(link.Advertisement) bool) (link.Peer, error) {
	if params.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, params.Duration)
		defer cancel()
	}

	found := make(chan bluetooth.ScanResult, 1)
	scanErr := make(chan error, 1)
	r.adapter.StopScan()
	go func() {
		scanErr <- r.adapter.Scan(func(a *bluetooth.Adapter, result bluetooth.ScanResult) {
			if !match(r.advertisement(result)) {
				return
			}
			a.StopScan()
			select {
			case found <- result:
			default:
			}
		})
	}()

	select {
	case result := <-found:
		return r.peer(result), nil
	case err := <-scanErr:
		// Scan returns once the callback has stopped it.
		select {
		case result := <-found:
			return r.peer(result), nil
		default:
		}
		if err == nil {
			err = link.ErrNotFound
		}
		return link.Peer{}, err
	case <-ctx.Done():
		r.adapter.StopScan()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return link.Peer{}, link.ErrNotFound
		}
		return link.Peer{}, ctx.Err()
	}
}

func (r *Radio) peer(result bluetooth.ScanResult) link.Peer {
	addr := result.Address.String()
	r.mu.Lock()
	r.found[addr] = result.Address
	r.mu.Unlock()
	return link.Peer{
		Address:       addr,
		RSSI:          result.RSSI,
		Advertisement: r.advertisement(result),
	}
}

func (r *Radio) advertisement(result bluetooth.ScanResult) link.Advertisement {
	adv := link.Advertisement{LocalName: result.LocalName()}
	for _, u := range r.probe {
		if result.HasServiceUUID(toUUID(u)) {
			adv.ServiceUUIDs = append(adv.ServiceUUIDs, u)
		}
	}
	return adv
}

// Connect implements link.Central. The peer must come from Scan.
func (r *Radio) Connect(ctx context.Context, peer link.Peer) (link.Session, error) {
	r.mu.Lock()
	addr, ok := r.found[peer.Address]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("connect %s: %w", peer.Address, link.ErrNotFound)
	}

	type result struct {
		device bluetooth.Device
		err    error
	}
	done := make(chan result, 1)
	go func() {
		d, err := r.adapter.Connect(addr, bluetooth.ConnectionParams{})
		done <- result{d, err}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("connect %s: %w", peer.Address, res.err)
		}
		r.log.Debug("connected", zap.String("addr", peer.Address), zap.Int16("rssi", peer.RSSI))
		return &session{conn: conn{
			id:     link.NewSessionID(),
			peer:   peer.Address,
			device: res.device,
			sig:    r.conns.add(peer.Address),
			conns:  r.conns,
		}}, nil
	case <-ctx.Done():
		// A late connection is torn down as soon as it lands.
		go func() {
			if res := <-done; res.err == nil {
				res.device.Disconnect()
			}
		}()
		return nil, ctx.Err()
	}
}

type session struct {
	conn
}

// Discover implements link.Session.
func (s *session) Discover(ctx context.Context, service, characteristic link.UUID) (link.Readable, error) {
	type result struct {
		char bluetooth.DeviceCharacteristic
		err  error
	}
	done := make(chan result, 1)
	go func() {
		services, err := s.device.DiscoverServices([]bluetooth.UUID{toUUID(service)})
		if err != nil || len(services) == 0 {
			done <- result{err: fmt.Errorf("service %s: %w", service, orMissing(err))}
			return
		}
		chars, err := services[0].DiscoverCharacteristics([]bluetooth.UUID{toUUID(characteristic)})
		if err != nil || len(chars) == 0 {
			done <- result{err: fmt.Errorf("characteristic %s: %w", characteristic, orMissing(err))}
			return
		}
		done <- result{char: chars[0]}
	}()

	select {
	case res := <-done:
		if res.err != nil {
			return nil, res.err
		}
		return &remoteAttribute{char: res.char, sig: s.sig}, nil
	case <-s.sig.Done():
		return nil, link.ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func orMissing(err error) error {
	if err == nil {
		return link.ErrDiscovery
	}
	return err
}

// remoteAttribute reads the command characteristic of a connected remote.
type remoteAttribute struct {
	char bluetooth.DeviceCharacteristic
	sig  *link.Signal
}

func (a *remoteAttribute) Read(p []byte) (int, error) {
	if a.sig.Fired() {
		return 0, link.ErrClosed
	}
	return a.char.Read(p)
}

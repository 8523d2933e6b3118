package ble

import (
	"context"
	"fmt"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
)

// Command returns the remote's command characteristic as a writable
// attribute. Writes fail until the first Advertise has registered the
// GATT services.
func (r *Radio) Command() *CommandAttribute {
	return &CommandAttribute{r: r}
}

// CommandAttribute is the remote's side of the command channel.
type CommandAttribute struct {
	r *Radio
}

func (a *CommandAttribute) Write(p []byte) (int, error) {
	if err := a.r.services(); err != nil {
		return 0, err
	}
	return a.r.command.Write(p)
}

// services registers the command and device information services once.
func (r *Radio) services() error {
	r.setup.Do(func() {
		err := r.adapter.AddService(&bluetooth.Service{
			UUID: toUUID(link.CommandService),
			Characteristics: []bluetooth.CharacteristicConfig{{
				Handle: &r.command,
				UUID:   toUUID(link.CommandCharacteristic),
				Value:  command.NoOp.Bytes(),
				Flags:  bluetooth.CharacteristicReadPermission | bluetooth.CharacteristicNotifyPermission,
			}},
		})
		if err != nil {
			r.setupErr = fmt.Errorf("add command service: %w", err)
			return
		}
		err = r.adapter.AddService(&bluetooth.Service{
			UUID:            toUUID(DeviceInfoService),
			Characteristics: r.info.characteristics(),
		})
		if err != nil {
			r.setupErr = fmt.Errorf("add device info service: %w", err)
		}
	})
	return r.setupErr
}

// Advertise implements link.Peripheral.
func (r *Radio) Advertise(ctx context.Context, adv link.Advertisement) (link.Conn, error) {
	if err := r.services(); err != nil {
		return nil, err
	}

	uuids := make([]bluetooth.UUID, 0, len(adv.ServiceUUIDs))
	for _, u := range adv.ServiceUUIDs {
		uuids = append(uuids, toUUID(u))
	}
	ad := r.adapter.DefaultAdvertisement()
	if err := ad.Configure(bluetooth.AdvertisementOptions{
		LocalName:    adv.LocalName,
		ServiceUUIDs: uuids,
		Interval:     bluetooth.NewDuration(adv.Interval),
	}); err != nil {
		return nil, fmt.Errorf("configure advertisement: %w", err)
	}

	accepted := make(chan bluetooth.Device, 1)
	r.mu.Lock()
	r.waiting = accepted
	r.mu.Unlock()
	defer func() {
		r.mu.Lock()
		r.waiting = nil
		r.mu.Unlock()
	}()

	if err := ad.Start(); err != nil {
		return nil, fmt.Errorf("start advertising: %w", err)
	}
	r.log.Debug("advertising", zap.String("name", adv.LocalName))

	select {
	case <-ctx.Done():
		ad.Stop()
		return nil, ctx.Err()
	case device := <-accepted:
		ad.Stop()
		addr := device.Address.String()
		return &conn{
			id:     link.NewSessionID(),
			peer:   addr,
			device: device,
			sig:    r.conns.add(addr),
			conns:  r.conns,
		}, nil
	}
}

// conn is a connection handle on either side.
type conn struct {
	id     string
	peer   string
	device bluetooth.Device
	sig    *link.Signal
	conns  *registry
}

func (c *conn) ID() string { return c.id }

func (c *conn) Peer() string { return c.peer }

func (c *conn) Disconnected() <-chan struct{} { return c.sig.Done() }

func (c *conn) Close() error {
	if c.sig.Fired() {
		return nil
	}
	err := c.device.Disconnect()
	c.conns.remove(c.peer, c.sig)
	return err
}

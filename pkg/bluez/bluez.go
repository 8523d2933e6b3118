// Package bluez checks the host Bluetooth stack over the system D-Bus before
// a radio is opened, and reports when the adapter loses power.
package bluez

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	busName      = "org.bluez"
	adapterIface = "org.bluez.Adapter1"
	propsIface   = "org.freedesktop.DBus.Properties"
	propsSignal  = "org.freedesktop.DBus.Properties.PropertiesChanged"
)

var (
	ErrNoDaemon   = errors.New("org.bluez not found on system bus, is bluetooth.service running?")
	ErrPoweredOff = errors.New("adapter is powered off")
)

// AdapterPath returns the object path of an adapter such as "hci0".
func AdapterPath(name string) dbus.ObjectPath {
	return dbus.ObjectPath("/org/bluez/" + name)
}

// DevicePath converts "AA:BB:CC:DD:EE:FF" to the device object path under
// the adapter.
func DevicePath(adapter, addr string) dbus.ObjectPath {
	return dbus.ObjectPath(string(AdapterPath(adapter)) + "/dev_" + strings.ReplaceAll(addr, ":", "_"))
}

// Client is a system bus connection with BlueZ on it.
type Client struct {
	conn *dbus.Conn
	log  *zap.Logger
}

func Open(log *zap.Logger) (*Client, error) {
	if log == nil {
		log = zap.NewNop()
	}
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, fmt.Errorf("connect to system bus: %w", err)
	}
	var names []string
	if err := conn.BusObject().Call("org.freedesktop.DBus.ListNames", 0).Store(&names); err != nil {
		conn.Close()
		return nil, fmt.Errorf("list bus names: %w", err)
	}
	if !slices.Contains(names, busName) {
		conn.Close()
		return nil, ErrNoDaemon
	}
	return &Client{conn: conn, log: log.Named("bluez")}, nil
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) prop(path dbus.ObjectPath, iface, name string) (dbus.Variant, error) {
	var v dbus.Variant
	err := c.conn.Object(busName, path).Call(propsIface+".Get", 0, iface, name).Store(&v)
	return v, err
}

// Powered reports whether the adapter is switched on.
func (c *Client) Powered(adapter string) (bool, error) {
	v, err := c.prop(AdapterPath(adapter), adapterIface, "Powered")
	if err != nil {
		return false, fmt.Errorf("%s: %w", adapter, err)
	}
	on, ok := v.Value().(bool)
	if !ok {
		return false, fmt.Errorf("%s: Powered is %T", adapter, v.Value())
	}
	return on, nil
}

func (c *Client) SetPowered(adapter string, on bool) error {
	return c.conn.Object(busName, AdapterPath(adapter)).
		Call(propsIface+".Set", 0, adapterIface, "Powered", dbus.MakeVariant(on)).Err
}

// Address returns the adapter's own address.
func (c *Client) Address(adapter string) (string, error) {
	v, err := c.prop(AdapterPath(adapter), adapterIface, "Address")
	if err != nil {
		return "", fmt.Errorf("%s: %w", adapter, err)
	}
	s, _ := v.Value().(string)
	return s, nil
}

// Ensure fails with ErrPoweredOff unless the adapter is on. With powerOn set
// it switches the adapter on instead.
func (c *Client) Ensure(adapter string, powerOn bool) error {
	on, err := c.Powered(adapter)
	if err != nil {
		return err
	}
	if on {
		return nil
	}
	if !powerOn {
		return fmt.Errorf("%s: %w", adapter, ErrPoweredOff)
	}
	c.log.Info("powering on adapter", zap.String("adapter", adapter))
	if err := c.SetPowered(adapter, true); err != nil {
		return fmt.Errorf("power on %s: %w", adapter, err)
	}
	return nil
}

// Watch calls fn with every change of the adapter's Powered property until
// ctx is cancelled.
func (c *Client) Watch(ctx context.Context, adapter string, fn func(powered bool)) error {
	path := AdapterPath(adapter)
	if err := c.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(path),
		dbus.WithMatchInterface(propsIface),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		return fmt.Errorf("watch %s: %w", adapter, err)
	}
	ch := make(chan *dbus.Signal, 16)
	c.conn.Signal(ch)
	defer c.conn.RemoveSignal(ch)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case sig, ok := <-ch:
			if !ok {
				return nil
			}
			if on, ok := poweredChange(sig, path); ok {
				c.log.Info("adapter power changed", zap.String("adapter", adapter), zap.Bool("powered", on))
				fn(on)
			}
		}
	}
}

// poweredChange extracts a Powered update from a PropertiesChanged signal.
// Body: [interface string, changed map[string]Variant, invalidated []string]
func poweredChange(sig *dbus.Signal, path dbus.ObjectPath) (bool, bool) {
	if sig == nil || sig.Name != propsSignal || sig.Path != path || len(sig.Body) < 2 {
		return false, false
	}
	if iface, ok := sig.Body[0].(string); !ok || iface != adapterIface {
		return false, false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false, false
	}
	v, ok := changed["Powered"]
	if !ok {
		return false, false
	}
	on, ok := v.Value().(bool)
	return on, ok
}

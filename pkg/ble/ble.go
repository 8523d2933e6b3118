// Package ble drives a real Bluetooth LE adapter through
// tinygo.org/x/bluetooth. Radio implements link.Peripheral for the remote
// and link.Central for the robot; a process uses one side only.
package ble

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"go.uber.org/zap"
	"tinygo.org/x/bluetooth"

	"github.com/gwillem/thething/pkg/link"
)

// Device information service and its characteristics.
const (
	DeviceInfoService link.UUID = 0x180A
	ManufacturerName  link.UUID = 0x2A29
	ModelNumber       link.UUID = 0x2A24
	SerialNumber      link.UUID = 0x2A25
	FirmwareRevision  link.UUID = 0x2A26
	HardwareRevision  link.UUID = 0x2A27
)

func toUUID(u link.UUID) bluetooth.UUID {
	return bluetooth.New16BitUUID(uint16(u))
}

// DeviceInfo is the content of the device information service.
type DeviceInfo struct {
	Manufacturer string
	Model        string
	Serial       string
	Hardware     string
	Firmware     string
}

// DefaultDeviceInfo describes this host as a remote.
func DefaultDeviceInfo() DeviceInfo {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}
	return DeviceInfo{
		Manufacturer: "TheThingRemote",
		Model:        "1.0",
		Serial:       host,
		Hardware:     runtime.Version(),
		Firmware:     "1.0",
	}
}

func (d DeviceInfo) characteristics() []bluetooth.CharacteristicConfig {
	entries := []struct {
		uuid  link.UUID
		value string
	}{
		{ManufacturerName, d.Manufacturer},
		{ModelNumber, d.Model},
		{SerialNumber, d.Serial},
		{HardwareRevision, d.Hardware},
		{FirmwareRevision, d.Firmware},
	}
	chars := make([]bluetooth.CharacteristicConfig, 0, len(entries))
	for _, e := range entries {
		chars = append(chars, bluetooth.CharacteristicConfig{
			UUID:  toUUID(e.uuid),
			Value: []byte(e.value),
			Flags: bluetooth.CharacteristicReadPermission,
		})
	}
	return chars
}

// Options configure a Radio.
type Options struct {
	// Info is served by the remote. Zero means DefaultDeviceInfo.
	Info DeviceInfo
	// Probe lists the services a scan result is checked for, since the
	// adapter only answers membership questions.
	Probe []link.UUID
	Log   *zap.Logger
}

// Radio is one enabled adapter.
type Radio struct {
	adapter *bluetooth.Adapter
	info    DeviceInfo
	probe   []link.UUID
	log     *zap.Logger
	conns   *registry

	setup    sync.Once
	setupErr error
	command  bluetooth.Characteristic

	mu      sync.Mutex
	waiting chan bluetooth.Device
	found   map[string]bluetooth.Address
}

// Open enables the default adapter.
func Open(opts Options) (*Radio, error) {
	if opts.Log == nil {
		opts.Log = zap.NewNop()
	}
	if opts.Info == (DeviceInfo{}) {
		opts.Info = DefaultDeviceInfo()
	}
	if len(opts.Probe) == 0 {
		opts.Probe = []link.UUID{link.AdvertisedService, link.CommandService}
	}

	r := &Radio{
		adapter: bluetooth.DefaultAdapter,
		info:    opts.Info,
		probe:   opts.Probe,
		log:     opts.Log.Named("ble"),
		conns:   newRegistry(),
		found:   make(map[string]bluetooth.Address),
	}
	if err := r.adapter.Enable(); err != nil {
		return nil, fmt.Errorf("enable adapter: %w", err)
	}
	r.adapter.SetConnectHandler(r.onConnect)
	return r, nil
}

func (r *Radio) onConnect(device bluetooth.Device, connected bool) {
	addr := device.Address.String()
	r.log.Debug("connection event", zap.String("addr", addr), zap.Bool("connected", connected))
	if !connected {
		r.conns.drop(addr)
		return
	}

	r.mu.Lock()
	waiting := r.waiting
	r.mu.Unlock()
	if waiting != nil {
		select {
		case waiting <- device:
		default:
		}
	}
}

// registry maps peer addresses to live connections so disconnect events
// reach the right handle.
type registry struct {
	mu    sync.Mutex
	conns map[string]*link.Signal
}

func newRegistry() *registry {
	return &registry{conns: make(map[string]*link.Signal)}
}

func (r *registry) add(addr string) *link.Signal {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.conns[addr]; ok {
		old.Fire()
	}
	sig := &link.Signal{}
	r.conns[addr] = sig
	return sig
}

func (r *registry) drop(addr string) {
	r.mu.Lock()
	sig, ok := r.conns[addr]
	delete(r.conns, addr)
	r.mu.Unlock()
	if ok {
		sig.Fire()
	}
}

func (r *registry) remove(addr string, sig *link.Signal) {
	r.mu.Lock()
	if r.conns[addr] == sig {
		delete(r.conns, addr)
	}
	r.mu.Unlock()
	sig.Fire()
}

func (r *registry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.conns)
}

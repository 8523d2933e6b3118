// Package config loads and saves the thething configuration file. JSON is
// the default; files ending in .yaml or .yml are read and written as YAML.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/dispatch"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/motion"
	"github.com/gwillem/thething/pkg/sampler"
)

const DefaultConfigFile = "thething.json"

// Config holds the configuration of both devices.
type Config struct {
	Controller ControllerConfig `json:"controller" yaml:"controller"`
	Robot      RobotConfig      `json:"robot" yaml:"robot"`
	Link       LinkConfig       `json:"link" yaml:"link"`
	Hand       HandConfig       `json:"hand" yaml:"hand"`
	Log        LogConfig        `json:"log" yaml:"log"`
}

// ControllerConfig is the remote's input wiring.
type ControllerConfig struct {
	Adapter  string         `json:"adapter" yaml:"adapter"`
	PowerOn  bool           `json:"power_on" yaml:"power_on"`
	Buttons  []ButtonConfig `json:"buttons" yaml:"buttons"`
	AxisPins [3]int         `json:"axis_pins" yaml:"axis_pins"`
	High     uint16         `json:"high" yaml:"high"`
	Low      uint16         `json:"low" yaml:"low"`
	Tick     Duration       `json:"tick" yaml:"tick"`
}

// ButtonConfig wires one action button.
type ButtonConfig struct {
	Name    string `json:"name" yaml:"name"`
	Command string `json:"command" yaml:"command"`
	Pin     int    `json:"pin" yaml:"pin"`
	LED     int    `json:"led" yaml:"led"`
}

// RobotConfig is the robot's polling and monitoring setup.
type RobotConfig struct {
	Adapter     string   `json:"adapter" yaml:"adapter"`
	PowerOn     bool     `json:"power_on" yaml:"power_on"`
	Tick        Duration `json:"tick" yaml:"tick"`
	ReadTimeout Duration `json:"read_timeout" yaml:"read_timeout"`
	Monitor     string   `json:"monitor,omitempty" yaml:"monitor,omitempty"`
}

// LinkConfig is the radio identity and discovery timing.
type LinkConfig struct {
	Name              string   `json:"name" yaml:"name"`
	AdvertiseInterval Duration `json:"advertise_interval" yaml:"advertise_interval"`
	ScanDuration      Duration `json:"scan_duration" yaml:"scan_duration"`
	ScanInterval      Duration `json:"scan_interval" yaml:"scan_interval"`
	ScanWindow        Duration `json:"scan_window" yaml:"scan_window"`
	ActiveScan        bool     `json:"active_scan" yaml:"active_scan"`
	ConnectTimeout    Duration `json:"connect_timeout" yaml:"connect_timeout"`
	DiscoveryTimeout  Duration `json:"discovery_timeout" yaml:"discovery_timeout"`
}

// HandConfig is the servo bus of the hand.
type HandConfig struct {
	Port        string             `json:"port" yaml:"port"`
	BaudRate    int                `json:"baud_rate" yaml:"baud_rate"`
	Calibration motion.Calibration `json:"calibration,omitempty" yaml:"calibration,omitempty"`
}

// LogConfig selects the logger.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// Default returns the configuration of the original hardware.
func Default() *Config {
	sc := sampler.DefaultConfig()
	buttons := make([]ButtonConfig, 0, len(sc.Buttons))
	for _, b := range sc.Buttons {
		buttons = append(buttons, ButtonConfig{Name: b.Name, Command: b.Command.String(), Pin: b.Pin, LED: b.LED})
	}
	lc := link.DefaultScannerConfig()
	dc := dispatch.DefaultConfig()

	return &Config{
		Controller: ControllerConfig{
			Adapter:  "hci0",
			Buttons:  buttons,
			AxisPins: sc.AxisPins,
			High:     sc.High,
			Low:      sc.Low,
			Tick:     Duration(sc.Tick),
		},
		Robot: RobotConfig{
			Adapter:     "hci0",
			Tick:        Duration(dc.Tick),
			ReadTimeout: Duration(dc.ReadTimeout),
		},
		Link: LinkConfig{
			Name:              link.RemoteName,
			AdvertiseInterval: Duration(link.AdvertiseInterval),
			ScanDuration:      Duration(lc.Scan.Duration),
			ScanInterval:      Duration(lc.Scan.Interval),
			ScanWindow:        Duration(lc.Scan.Window),
			ActiveScan:        lc.Scan.Active,
			ConnectTimeout:    Duration(lc.ConnectTimeout),
			DiscoveryTimeout:  Duration(lc.DiscoveryTimeout),
		},
		Hand: HandConfig{
			BaudRate:    1_000_000,
			Calibration: motion.DefaultCalibration(),
		},
		Log: LogConfig{Level: "info", Format: "console"},
	}
}

// Validate reports the first problem found.
func (c *Config) Validate() error {
	if c.Link.Name == "" {
		return errors.New("link.name is empty")
	}
	if c.Controller.Low >= c.Controller.High {
		return fmt.Errorf("controller.low %d must be below controller.high %d", c.Controller.Low, c.Controller.High)
	}
	if c.Controller.Tick <= 0 || c.Robot.Tick <= 0 {
		return errors.New("tick must be positive")
	}
	if c.Link.ScanDuration <= 0 {
		return errors.New("link.scan_duration must be positive")
	}

	seen := map[command.Command]bool{}
	pins := map[int]bool{}
	for _, b := range c.Controller.Buttons {
		cmd, err := parseCommand(b.Command)
		if err != nil {
			return fmt.Errorf("button %s: %w", b.Name, err)
		}
		if seen[cmd] {
			return fmt.Errorf("button %s: command %s bound twice", b.Name, cmd)
		}
		if pins[b.Pin] {
			return fmt.Errorf("button %s: pin %d used twice", b.Name, b.Pin)
		}
		seen[cmd], pins[b.Pin] = true, true
	}

	if len(c.Hand.Calibration) > 0 {
		if err := c.Hand.Calibration.Validate(); err != nil {
			return err
		}
	}
	return nil
}

func parseCommand(s string) (command.Command, error) {
	if len(s) != 1 {
		return 0, fmt.Errorf("command %q must be one character", s)
	}
	c := command.Command(s[0])
	if _, ok := c.Routine(); !ok {
		return 0, fmt.Errorf("command %q is not actionable", s)
	}
	return c, nil
}

// Sampler returns the remote's input configuration.
func (c *Config) Sampler() sampler.Config {
	buttons := make([]sampler.Button, 0, len(c.Controller.Buttons))
	for _, b := range c.Controller.Buttons {
		cmd, err := parseCommand(b.Command)
		if err != nil {
			continue
		}
		buttons = append(buttons, sampler.Button{Name: b.Name, Command: cmd, Pin: b.Pin, LED: b.LED})
	}
	return sampler.Config{
		Buttons:  buttons,
		AxisPins: c.Controller.AxisPins,
		High:     c.Controller.High,
		Low:      c.Controller.Low,
		Tick:     time.Duration(c.Controller.Tick),
	}
}

// Advertisement returns what the remote broadcasts.
func (c *Config) Advertisement() link.Advertisement {
	adv := link.DefaultAdvertisement()
	adv.LocalName = c.Link.Name
	adv.Interval = time.Duration(c.Link.AdvertiseInterval)
	return adv
}

// Scanner returns the robot's discovery parameters.
func (c *Config) Scanner() link.ScannerConfig {
	sc := link.DefaultScannerConfig()
	sc.LocalName = c.Link.Name
	sc.Scan = link.ScanParams{
		Duration: time.Duration(c.Link.ScanDuration),
		Interval: time.Duration(c.Link.ScanInterval),
		Window:   time.Duration(c.Link.ScanWindow),
		Active:   c.Link.ActiveScan,
	}
	sc.ConnectTimeout = time.Duration(c.Link.ConnectTimeout)
	sc.DiscoveryTimeout = time.Duration(c.Link.DiscoveryTimeout)
	return sc
}

// Dispatch returns the robot's polling configuration.
func (c *Config) Dispatch() dispatch.Config {
	return dispatch.Config{
		Tick:        time.Duration(c.Robot.Tick),
		ReadTimeout: time.Duration(c.Robot.ReadTimeout),
	}
}

// IsCalibrated reports whether the hand has calibration data.
func (h *HandConfig) IsCalibrated() bool {
	return len(h.Calibration) > 0
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads a configuration file on top of the defaults, so missing keys
// keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := Default()
	if isYAML(path) {
		err = yaml.Unmarshal(data, cfg)
	} else {
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// LoadOrDefault is Load, except that a missing file yields the defaults.
func LoadOrDefault(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// Save writes the configuration to path.
func (c *Config) Save(path string) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Exists returns true if path exists.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

package sampler

import (
	"time"

	"github.com/gwillem/thething/pkg/command"
)

// Stick thresholds on the 16-bit ADC scale. Values strictly above High or
// strictly below Low count; everything in between is dead band.
const (
	DefaultHigh uint16 = 40000
	DefaultLow  uint16 = 20000
)

// DefaultTick is the sampling period.
const DefaultTick = 10 * time.Millisecond

// Button is one action button and its indicator LED.
type Button struct {
	Name    string
	Command command.Command
	Pin     int
	LED     int
}

// Config holds the remote's input wiring.
type Config struct {
	// Buttons in priority order.
	Buttons []Button

	// Axis pins: left stick vertical, right stick vertical, left stick
	// horizontal. The third axis is sampled but maps to no command.
	AxisPins [3]int

	High uint16
	Low  uint16
	Tick time.Duration
}

// DefaultConfig returns the wiring of the original remote.
func DefaultConfig() Config {
	return Config{
		Buttons: []Button{
			{Name: "green", Command: command.FingerStamp, Pin: 4, LED: 11},
			{Name: "red", Command: command.Crouch, Pin: 5, LED: 12},
			{Name: "blue", Command: command.Stand, Pin: 6, LED: 13},
			{Name: "yellow", Command: command.PointFinger, Pin: 7, LED: 9},
			{Name: "white", Command: command.BowDown, Pin: 2, LED: 8},
			{Name: "black", Command: command.RiseUp, Pin: 3, LED: 10},
		},
		AxisPins: [3]int{26, 28, 27},
		High:     DefaultHigh,
		Low:      DefaultLow,
		Tick:     DefaultTick,
	}
}

// Reading is one snapshot of the raw inputs, keyed by pin.
type Reading struct {
	Buttons map[int]bool
	Axes    [3]uint16
	At      time.Time
}

// Centered returns a reading with no button pressed and both sticks at rest.
func Centered() Reading {
	return Reading{
		Buttons: map[int]bool{},
		Axes:    [3]uint16{32768, 32768, 32768},
	}
}

// Rule maps a predicate over a Reading to a command. LED is the indicator
// lit when the rule fires, or -1.
type Rule struct {
	Name    string
	Command command.Command
	Label   string
	LED     int
	Match   func(Reading) bool
}

// NoOpRule is returned by Resolve when nothing matches.
var NoOpRule = Rule{
	Name:    "idle",
	Command: command.NoOp,
	LED:     -1,
	Match:   func(Reading) bool { return true },
}

// Rules builds the ordered rule table: buttons first, then axis 1 high,
// axis 1 low, axis 2 high.
func Rules(cfg Config) []Rule {
	rules := make([]Rule, 0, len(cfg.Buttons)+3)
	for _, b := range cfg.Buttons {
		pin := b.Pin
		rules = append(rules, Rule{
			Name:    b.Name,
			Command: b.Command,
			Label:   b.Command.Label(),
			LED:     b.LED,
			Match:   func(r Reading) bool { return r.Buttons[pin] },
		})
	}

	high, low := cfg.High, cfg.Low
	rules = append(rules,
		Rule{
			Name:    "axis1 high",
			Command: command.CrouchForward,
			Label:   command.CrouchForward.Label(),
			LED:     -1,
			Match:   func(r Reading) bool { return r.Axes[0] > high },
		},
		Rule{
			Name:    "axis1 low",
			Command: command.CrouchBackward,
			Label:   command.CrouchBackward.Label(),
			LED:     -1,
			Match:   func(r Reading) bool { return r.Axes[0] < low },
		},
		Rule{
			Name:    "axis2 high",
			Command: command.StandWalk,
			Label:   command.StandWalk.Label(),
			LED:     -1,
			Match:   func(r Reading) bool { return r.Axes[1] > high },
		},
	)
	return rules
}

// Resolve returns the first rule matching r, or NoOpRule.
func Resolve(rules []Rule, r Reading) Rule {
	for _, rule := range rules {
		if rule.Match(r) {
			return rule
		}
	}
	return NoOpRule
}

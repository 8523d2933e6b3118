// Package console is the remote's hardware rendered in a terminal: the
// keyboard stands in for the buttons and thumb sticks, and the screen shows
// the LEDs and the status display.
package console

import (
	"sync"
	"time"

	"github.com/gwillem/thething/pkg/sampler"
)

const (
	// DefaultHold is how long a key press keeps a button down. Terminals
	// report presses but not releases.
	DefaultHold = 150 * time.Millisecond
	// AxisStep is how far one arrow key press moves a stick.
	AxisStep = 8192
	center   = 32768
)

// Board is the simulated input and output hardware. It implements
// sampler.DigitalReader, sampler.AnalogReader, status.LED, status.Display
// and status.PinWriter.
type Board struct {
	hold time.Duration
	now  func() time.Time
	keys map[string]int
	axis map[int]int

	mu      sync.Mutex
	pressed map[int]time.Time
	axes    [3]int
	outputs map[int]bool
	led     bool
	text    string
}

// NewBoard wires each button's command key to its pin.
func NewBoard(cfg sampler.Config, hold time.Duration) *Board {
	if hold <= 0 {
		hold = DefaultHold
	}
	b := &Board{
		hold:    hold,
		now:     time.Now,
		keys:    make(map[string]int),
		axis:    make(map[int]int),
		pressed: make(map[int]time.Time),
		outputs: make(map[int]bool),
		axes:    [3]int{center, center, center},
	}
	for _, btn := range cfg.Buttons {
		b.keys[btn.Command.String()] = btn.Pin
	}
	for i, pin := range cfg.AxisPins {
		b.axis[pin] = i
	}
	return b
}

// Press handles a key. It reports false for keys the board does not use.
func (b *Board) Press(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	if pin, ok := b.keys[key]; ok {
		b.pressed[pin] = b.now().Add(b.hold)
		return true
	}
	switch key {
	case "up":
		b.nudge(0, AxisStep)
	case "down":
		b.nudge(0, -AxisStep)
	case "right":
		b.nudge(1, AxisStep)
	case "left":
		b.nudge(1, -AxisStep)
	case "pgup":
		b.nudge(2, AxisStep)
	case "pgdown":
		b.nudge(2, -AxisStep)
	case " ":
		b.axes = [3]int{center, center, center}
	default:
		return false
	}
	return true
}

func (b *Board) nudge(axis, delta int) {
	b.axes[axis] = min(max(b.axes[axis]+delta, 0), 0xFFFF)
}

// ReadDigital implements sampler.DigitalReader.
func (b *Board) ReadDigital(pin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	until, ok := b.pressed[pin]
	if !ok {
		return false
	}
	if b.now().After(until) {
		delete(b.pressed, pin)
		return false
	}
	return true
}

// ReadAnalog implements sampler.AnalogReader. Unknown pins read centered.
func (b *Board) ReadAnalog(pin int) uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	i, ok := b.axis[pin]
	if !ok {
		return center
	}
	return uint16(b.axes[i])
}

// Axes returns the stick positions.
func (b *Board) Axes() [3]uint16 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return [3]uint16{uint16(b.axes[0]), uint16(b.axes[1]), uint16(b.axes[2])}
}

// Set implements status.LED.
func (b *Board) Set(on bool) {
	b.mu.Lock()
	b.led = on
	b.mu.Unlock()
}

// LED reports the heartbeat LED.
func (b *Board) LED() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.led
}

// Show implements status.Display.
func (b *Board) Show(text string) error {
	b.mu.Lock()
	b.text = text
	b.mu.Unlock()
	return nil
}

// Text is what the display shows.
func (b *Board) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.text
}

// WriteDigital implements status.PinWriter.
func (b *Board) WriteDigital(pin int, on bool) {
	b.mu.Lock()
	b.outputs[pin] = on
	b.mu.Unlock()
}

// Output reports a digital output pin.
func (b *Board) Output(pin int) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.outputs[pin]
}

// Package status drives operator feedback: the heartbeat LED on both
// devices, and the remote's text display and per-button LEDs. None of it may stall the
// sampling loop, so the display sits behind a latest-wins mailbox.
package status

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/sampler"
)

// Blink periods.
const (
	ConnectedPeriod = 1000 * time.Millisecond
	SearchingPeriod = 250 * time.Millisecond
)

// SplashTexts are shown in order while the remote boots.
var SplashTexts = []string{"The THING", "INITIALIZING", "CAPACITOR CHARGE", "READY!"}

// LED is a single on/off indicator.
type LED interface {
	Set(on bool)
}

// Display shows one line of status text. It may be slow.
type Display interface {
	Show(text string) error
}

// PinWriter drives digital outputs.
type PinWriter interface {
	WriteDigital(pin int, on bool)
}

// Blinker toggles the heartbeat LED, slowly while connected and quickly
// otherwise.
type Blinker struct {
	led  LED
	link link.StateReader

	mu sync.Mutex
	on bool
}

func NewBlinker(led LED, l link.StateReader) *Blinker {
	return &Blinker{led: led, link: l}
}

// Period returns the current half-cycle.
func (b *Blinker) Period() time.Duration {
	if b.link.State() == link.StateConnected {
		return ConnectedPeriod
	}
	return SearchingPeriod
}

// On reports whether the LED is currently lit.
func (b *Blinker) On() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.on
}

// Run blinks until ctx is cancelled, leaving the LED off.
func (b *Blinker) Run(ctx context.Context) error {
	defer func() {
		b.mu.Lock()
		b.on = false
		b.mu.Unlock()
		b.led.Set(false)
	}()

	for {
		b.mu.Lock()
		b.on = !b.on
		on := b.on
		b.mu.Unlock()
		b.led.Set(on)

		t := time.NewTimer(b.Period())
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
}

// Mailbox holds the next text for a Display. Show never blocks; a text not
// yet drawn is replaced by a newer one.
type Mailbox struct {
	display Display
	next    chan string
	log     *zap.Logger

	mu   sync.Mutex
	last string
}

func NewMailbox(d Display, log *zap.Logger) *Mailbox {
	if log == nil {
		log = zap.NewNop()
	}
	return &Mailbox{display: d, next: make(chan string, 1), log: log.Named("display")}
}

// Show queues text, dropping any text still waiting.
func (m *Mailbox) Show(text string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if text == m.last {
		return
	}
	m.last = text

	select {
	case m.next <- text:
	default:
		select {
		case <-m.next:
		default:
		}
		m.next <- text
	}
}

// Last returns the most recently queued text.
func (m *Mailbox) Last() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Run draws queued texts until ctx is cancelled.
func (m *Mailbox) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case text := <-m.next:
			if err := m.display.Show(text); err != nil {
				m.log.Warn("show failed", zap.String("text", text), zap.Error(err))
			}
		}
	}
}

// Splash shows the boot texts, step apart.
func Splash(ctx context.Context, m *Mailbox, step time.Duration) error {
	for _, text := range SplashTexts {
		m.Show(text)
		t := time.NewTimer(step)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}
	return nil
}

// Panel is the bank of per-button LEDs. At most one is lit.
type Panel struct {
	out  PinWriter
	pins []int

	mu  sync.Mutex
	lit int
}

func NewPanel(out PinWriter, pins []int) *Panel {
	return &Panel{out: out, pins: pins, lit: -1}
}

// Light turns every LED off, then pin on.
func (p *Panel) Light(pin int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.pins {
		p.out.WriteDigital(q, false)
	}
	p.out.WriteDigital(pin, true)
	p.lit = pin
}

// Off turns every LED off.
func (p *Panel) Off() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, q := range p.pins {
		p.out.WriteDigital(q, false)
	}
	p.lit = -1
}

// Lit returns the lit pin, or -1.
func (p *Panel) Lit() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lit
}

// Indicator acknowledges fired rules on the display and the panel.
type Indicator struct {
	Mailbox *Mailbox
	Panel   *Panel
}

// Acknowledge implements sampler.Acknowledger.
func (i Indicator) Acknowledge(r sampler.Rule) {
	if i.Panel != nil && r.LED >= 0 {
		i.Panel.Light(r.LED)
	}
	if i.Mailbox != nil && r.Label != "" {
		i.Mailbox.Show(r.Label)
	}
}

// PanelPins returns the LED pins of the configured buttons.
func PanelPins(cfg sampler.Config) []int {
	pins := make([]int, 0, len(cfg.Buttons))
	for _, b := range cfg.Buttons {
		pins = append(pins, b.LED)
	}
	return pins
}

package status

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/sampler"
)

type fixedState link.State

func (s fixedState) State() link.State { return link.State(s) }

type countingLED struct {
	mu      sync.Mutex
	toggles int
	on      bool
}

func (l *countingLED) Set(on bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.toggles++
	l.on = on
}

func (l *countingLED) Toggles() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.toggles
}

type slowDisplay struct {
	mu    sync.Mutex
	shown []string
	delay time.Duration
}

func (d *slowDisplay) Show(text string) error {
	time.Sleep(d.delay)
	d.mu.Lock()
	defer d.mu.Unlock()
	d.shown = append(d.shown, text)
	return nil
}

func (d *slowDisplay) Shown() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.shown...)
}

type pinRecorder struct {
	state map[int]bool
}

func (p *pinRecorder) WriteDigital(pin int, on bool) { p.state[pin] = on }

func TestBlinker_Period(t *testing.T) {
	tests := []struct {
		state link.State
		want  time.Duration
	}{
		{link.StateConnected, ConnectedPeriod},
		{link.StateAdvertising, SearchingPeriod},
		{link.StateIdle, SearchingPeriod},
		{link.StateDisconnecting, SearchingPeriod},
	}
	for _, tt := range tests {
		b := NewBlinker(&countingLED{}, fixedState(tt.state))
		if got := b.Period(); got != tt.want {
			t.Errorf("Period() while %s = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestBlinker_RunTogglesAndStopsOff(t *testing.T) {
	led := &countingLED{}
	b := NewBlinker(led, fixedState(link.StateAdvertising))

	ctx, cancel := context.WithTimeout(context.Background(), 600*time.Millisecond)
	defer cancel()
	b.Run(ctx)

	// 600ms at 250ms per half cycle is three toggles, plus the final off.
	if n := led.Toggles(); n < 3 || n > 5 {
		t.Errorf("toggles = %d, want about 4", n)
	}
	if led.on || b.On() {
		t.Error("LED left on after Run")
	}
}

func TestMailbox_LatestWins(t *testing.T) {
	d := &slowDisplay{delay: 50 * time.Millisecond}
	m := NewMailbox(d, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	m.Show("FINGER STAMP")
	time.Sleep(10 * time.Millisecond)

	start := time.Now()
	for _, s := range []string{"CROUCH POS", "STAND POS", "POINT FINGER"} {
		m.Show(s)
	}
	if took := time.Since(start); took > 20*time.Millisecond {
		t.Errorf("Show blocked for %v", took)
	}

	time.Sleep(200 * time.Millisecond)
	shown := d.Shown()
	if len(shown) != 2 || shown[0] != "FINGER STAMP" || shown[1] != "POINT FINGER" {
		t.Errorf("shown = %v, want [FINGER STAMP POINT FINGER]", shown)
	}
	if m.Last() != "POINT FINGER" {
		t.Errorf("Last() = %q", m.Last())
	}
}

func TestPanel_LightsOne(t *testing.T) {
	rec := &pinRecorder{state: map[int]bool{}}
	p := NewPanel(rec, PanelPins(sampler.DefaultConfig()))

	p.Light(11)
	p.Light(12)
	for pin, on := range rec.state {
		if on != (pin == 12) {
			t.Errorf("pin %d on = %v", pin, on)
		}
	}
	if p.Lit() != 12 {
		t.Errorf("Lit() = %d, want 12", p.Lit())
	}

	p.Off()
	if p.Lit() != -1 || rec.state[12] {
		t.Error("Off() left an LED lit")
	}
}

func TestIndicator_Acknowledge(t *testing.T) {
	rec := &pinRecorder{state: map[int]bool{}}
	cfg := sampler.DefaultConfig()
	ind := Indicator{
		Mailbox: NewMailbox(&slowDisplay{}, nil),
		Panel:   NewPanel(rec, PanelPins(cfg)),
	}

	rules := sampler.Rules(cfg)
	ind.Acknowledge(rules[0])
	if ind.Panel.Lit() != 11 {
		t.Errorf("green LED not lit, Lit() = %d", ind.Panel.Lit())
	}
	if ind.Mailbox.Last() != command.FingerStamp.Label() {
		t.Errorf("display = %q, want %q", ind.Mailbox.Last(), command.FingerStamp.Label())
	}

	// Stick rules change the text but leave the panel alone.
	stick := sampler.Resolve(rules, sampler.Reading{Buttons: map[int]bool{}, Axes: [3]uint16{45000, 0, 0}})
	ind.Acknowledge(stick)
	if ind.Panel.Lit() != 11 {
		t.Errorf("stick rule changed the panel to %d", ind.Panel.Lit())
	}
	if ind.Mailbox.Last() != "CROUCH FWD" {
		t.Errorf("display = %q, want CROUCH FWD", ind.Mailbox.Last())
	}
}

func TestSplash(t *testing.T) {
	m := NewMailbox(&slowDisplay{}, nil)
	if err := Splash(context.Background(), m, time.Millisecond); err != nil {
		t.Fatalf("Splash: %v", err)
	}
	if m.Last() != "READY!" {
		t.Errorf("Last() = %q, want READY!", m.Last())
	}
}

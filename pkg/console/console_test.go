package console

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/sampler"
)

func newTestBoard() (*Board, *time.Time) {
	now := time.Unix(1000, 0)
	b := NewBoard(sampler.DefaultConfig(), 100*time.Millisecond)
	b.now = func() time.Time { return now }
	return b, &now
}

func TestBoard_ButtonHold(t *testing.T) {
	b, now := newTestBoard()

	if !b.Press("g") {
		t.Fatal("g not handled")
	}
	if !b.ReadDigital(4) {
		t.Error("green not pressed after g")
	}
	if b.ReadDigital(5) {
		t.Error("red pressed after g")
	}

	*now = now.Add(150 * time.Millisecond)
	if b.ReadDigital(4) {
		t.Error("green still pressed after hold expired")
	}

	if b.Press("x") {
		t.Error("x handled, want ignored")
	}
}

func TestBoard_Sticks(t *testing.T) {
	b, _ := newTestBoard()
	cfg := sampler.DefaultConfig()

	tests := []struct {
		keys []string
		want [3]uint16
	}{
		{nil, [3]uint16{32768, 32768, 32768}},
		{[]string{"up"}, [3]uint16{40960, 32768, 32768}},
		{[]string{"up", "up", "up", "up", "up"}, [3]uint16{65535, 32768, 32768}},
		{[]string{"down", "down", "down", "down", "down"}, [3]uint16{0, 32768, 32768}},
		{[]string{"right", "pgdown"}, [3]uint16{32768, 40960, 24576}},
	}
	for _, tt := range tests {
		b.Press(" ")
		for _, k := range tt.keys {
			b.Press(k)
		}
		var got [3]uint16
		for i, pin := range cfg.AxisPins {
			got[i] = b.ReadAnalog(pin)
		}
		if got != tt.want {
			t.Errorf("keys %v: axes = %v, want %v", tt.keys, got, tt.want)
		}
	}
	if got := b.ReadAnalog(99); got != center {
		t.Errorf("unknown pin = %d, want centered", got)
	}
}

func TestBoard_ResolvesThroughSampler(t *testing.T) {
	b, _ := newTestBoard()
	cfg := sampler.DefaultConfig()
	s := sampler.New(cfg, b, b, nil, nil, sampler.Options{})

	b.Press("up")
	b.Press("up")
	if got := sampler.Resolve(sampler.Rules(cfg), s.Read()).Command; got != command.CrouchForward {
		t.Errorf("stick up resolves to %s, want x", got)
	}
	b.Press("k")
	if got := sampler.Resolve(sampler.Rules(cfg), s.Read()).Command; got != command.RiseUp {
		t.Errorf("k resolves to %s, want k", got)
	}
}

func TestBoard_Outputs(t *testing.T) {
	b, _ := newTestBoard()
	b.Set(true)
	b.Show("CROUCH POS")
	b.WriteDigital(12, true)

	if !b.LED() || b.Text() != "CROUCH POS" || !b.Output(12) || b.Output(11) {
		t.Errorf("led=%v text=%q out12=%v out11=%v", b.LED(), b.Text(), b.Output(12), b.Output(11))
	}
}

func TestModel_KeysAndSamples(t *testing.T) {
	b, _ := newTestBoard()
	cfg := sampler.DefaultConfig()
	tracker := link.NewTracker()
	m := NewModel(b, cfg, tracker, nil, nil)

	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'r'}})
	m = next.(Model)
	if !b.ReadDigital(5) {
		t.Error("r key did not press red")
	}

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyUp})
	m = next.(Model)
	if b.Axes()[0] != 40960 {
		t.Errorf("up key: axis1 = %d", b.Axes()[0])
	}

	rule := sampler.Rules(cfg)[1]
	next, _ = m.Update(sampleMsg(sampler.Sample{Rule: rule, Published: true, Reading: sampler.Centered()}))
	m = next.(Model)
	b.Show("CROUCH POS")

	view := m.View()
	for _, want := range []string{"TheThing Remote", "idle", "CROUCH POS", "sending: r", "[g] green"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q:\n%s", want, view)
		}
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'q'}})
	if cmd == nil || !next.(Model).quitting {
		t.Error("q did not quit")
	}
}

func TestModel_Logs(t *testing.T) {
	b, _ := newTestBoard()
	m := NewModel(b, sampler.DefaultConfig(), nil, nil, nil)
	for i := range 8 {
		next, _ := m.Update(logMsg(strings.Repeat("x", i) + "\n"))
		m = next.(Model)
	}
	if len(m.logs) != maxLogs || m.logs[0] != "xxx" {
		t.Errorf("logs = %q", m.logs)
	}
}

func TestScaleAxis(t *testing.T) {
	if got := scaleAxis(32768); got != 0 {
		t.Errorf("center = %v", got)
	}
	if got := scaleAxis(0); got != -100 {
		t.Errorf("low = %v", got)
	}
}

func TestFeed(t *testing.T) {
	b, _ := newTestBoard()
	err := Feed(context.Background(), strings.NewReader("up up wait:1ms b\nright space pgup"), b)
	if err != nil {
		t.Fatalf("Feed: %v", err)
	}
	if !b.ReadDigital(6) {
		t.Error("blue not pressed")
	}
	if got := b.Axes(); got != [3]uint16{32768, 32768, 40960} {
		t.Errorf("axes = %v", got)
	}

	if err := Feed(context.Background(), strings.NewReader("g nope"), b); err == nil {
		t.Error("unknown key accepted")
	}
	if err := Feed(context.Background(), strings.NewReader("wait:soon"), b); err == nil {
		t.Error("bad wait accepted")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Feed(ctx, strings.NewReader("g"), b); err != context.Canceled {
		t.Errorf("cancelled Feed = %v", err)
	}
}

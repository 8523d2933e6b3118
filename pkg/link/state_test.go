package link

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestState_String(t *testing.T) {
	tests := []struct {
		s    State
		want string
	}{
		{StateIdle, "idle"},
		{StateAdvertising, "advertising"},
		{StateScanning, "scanning"},
		{StateConnected, "connected"},
		{StateDisconnecting, "disconnecting"},
		{State(42), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.s.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.s, got, tt.want)
		}
	}
}

func TestTracker_Transitions(t *testing.T) {
	tr := NewTracker()
	if tr.State() != StateIdle {
		t.Fatalf("initial state = %s, want idle", tr.State())
	}

	ch, unsubscribe := tr.Subscribe(8)
	defer unsubscribe()

	tr.set(StateScanning, "ignored", "scan")
	if tr.Session() != "" {
		t.Errorf("Session() = %q while scanning, want empty", tr.Session())
	}
	tr.set(StateScanning, "", "scan again")
	tr.set(StateConnected, "abc", "up")

	want := []Transition{
		{From: StateIdle, To: StateScanning},
		{From: StateScanning, To: StateConnected, Session: "abc"},
	}
	for i, w := range want {
		select {
		case got := <-ch:
			if got.From != w.From || got.To != w.To || got.Session != w.Session {
				t.Errorf("transition %d = %+v, want %+v", i, got, w)
			}
		case <-time.After(time.Second):
			t.Fatalf("transition %d not delivered", i)
		}
	}
	select {
	case extra := <-ch:
		t.Errorf("unexpected transition %+v", extra)
	default:
	}

	if tr.Session() != "abc" {
		t.Errorf("Session() = %q, want abc", tr.Session())
	}
}

func TestTracker_SlowSubscriberDoesNotBlock(t *testing.T) {
	tr := NewTracker()
	_, unsubscribe := tr.Subscribe(0)
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		tr.set(StateAdvertising, "", "a")
		tr.set(StateConnected, "s", "b")
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("set blocked on a full subscriber")
	}
	if tr.State() != StateConnected {
		t.Errorf("State() = %s, want connected", tr.State())
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		err  error
		want FaultKind
	}{
		{errors.New("att error"), FaultTransport},
		{fmt.Errorf("read: %w", ErrTimeout), FaultTimeout},
		{context.DeadlineExceeded, FaultTimeout},
		{ErrClosed, FaultDisconnected},
		{context.Canceled, FaultDisconnected},
		{fmt.Errorf("x: %w", ErrTypeMismatch), FaultTypeMismatch},
	}
	for _, tt := range tests {
		f, ok := AsFault(Classify("read", tt.err))
		if !ok {
			t.Errorf("Classify(%v) is not a Fault", tt.err)
			continue
		}
		if f.Kind != tt.want {
			t.Errorf("Classify(%v).Kind = %s, want %s", tt.err, f.Kind, tt.want)
		}
		if !errors.Is(f, tt.err) {
			t.Errorf("Classify(%v) does not unwrap to the cause", tt.err)
		}
	}

	if Classify("read", nil) != nil {
		t.Error("Classify(nil) should be nil")
	}

	orig := &Fault{Kind: FaultTimeout, Op: "write", Err: ErrTimeout}
	if got := Classify("read", fmt.Errorf("wrapped: %w", orig)); !errors.Is(got, orig) {
		t.Errorf("Classify should pass existing faults through, got %v", got)
	}
}

func TestSignal(t *testing.T) {
	var s Signal
	if s.Fired() {
		t.Fatal("zero Signal reports fired")
	}
	s.Fire()
	s.Fire()
	select {
	case <-s.Done():
	default:
		t.Fatal("Done not closed after Fire")
	}
}

func TestScanner_Match(t *testing.T) {
	s := NewScanner(nil, nil, NewTracker(), DefaultScannerConfig(), nil)
	tests := []struct {
		name string
		adv  Advertisement
		want bool
	}{
		{"remote", DefaultAdvertisement(), true},
		{"wrong name", Advertisement{LocalName: "Other", ServiceUUIDs: []UUID{AdvertisedService}}, false},
		{"wrong service", Advertisement{LocalName: RemoteName, ServiceUUIDs: []UUID{0x180F}}, false},
		{"no services", Advertisement{LocalName: RemoteName}, false},
	}
	for _, tt := range tests {
		if got := s.Match(tt.adv); got != tt.want {
			t.Errorf("Match(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

package command

import (
	"testing"
	"time"
)

func TestRoutine_Mapping(t *testing.T) {
	tests := []struct {
		cmd     Command
		routine string
	}{
		{'g', RoutineFingerStamp},
		{'r', RoutineCrouch},
		{'b', RoutineGetUp},
		{'y', RoutinePointFinger},
		{'w', RoutineBowDown},
		{'k', RoutineRiseUp},
		{'x', RoutineCrouchForward},
		{'z', RoutineCrouchBackward},
		{'v', RoutineStandWalk},
	}

	for _, tt := range tests {
		got, ok := tt.cmd.Routine()
		if !ok {
			t.Errorf("Routine(%s) not actionable", tt.cmd)
			continue
		}
		if got != tt.routine {
			t.Errorf("Routine(%s) = %q, want %q", tt.cmd, got, tt.routine)
		}
	}
}

func TestRoutine_TotalOverAllBytes(t *testing.T) {
	actionable := 0
	for b := 0; b < 256; b++ {
		c := Command(b)
		_, ok := c.Routine()
		if ok {
			actionable++
			if !c.Valid() {
				t.Errorf("actionable command %s reported invalid", c)
			}
		}
	}
	if actionable != len(All()) {
		t.Errorf("actionable commands = %d, want %d", actionable, len(All()))
	}
}

func TestNoOp_NotActionable(t *testing.T) {
	if _, ok := NoOp.Routine(); ok {
		t.Error("NoOp should not map to a routine")
	}
	if !NoOp.Valid() {
		t.Error("NoOp should be part of the alphabet")
	}
	if _, ok := NewRequest(NoOp, time.Now()); ok {
		t.Error("NewRequest(NoOp) should report false")
	}
}

func TestUnknownBytes_AreIdle(t *testing.T) {
	for _, c := range []Command{'a', 'q', 0x00, 0xff, '?'} {
		if c.Valid() {
			t.Errorf("%s should not be valid", c)
		}
		if _, ok := c.Routine(); ok {
			t.Errorf("%s should not be actionable", c)
		}
		if c.Label() != "" {
			t.Errorf("%s label = %q, want empty", c, c.Label())
		}
	}
}

func TestDecode(t *testing.T) {
	if got := Decode(nil); got != NoOp {
		t.Errorf("Decode(nil) = %s, want !", got)
	}
	if got := Decode([]byte("v")); got != StandWalk {
		t.Errorf("Decode(v) = %s, want v", got)
	}
}

func TestString(t *testing.T) {
	if got := CrouchForward.String(); got != "x" {
		t.Errorf("String() = %q, want x", got)
	}
	if got := Command(0x07).String(); got != "0x07" {
		t.Errorf("String() = %q, want 0x07", got)
	}
}

func TestNewRequest(t *testing.T) {
	at := time.Unix(100, 0)
	req, ok := NewRequest(CrouchForward, at)
	if !ok {
		t.Fatal("NewRequest(x) returned false")
	}
	if req.Routine != RoutineCrouchForward || !req.IssuedAt.Equal(at) || req.Command != CrouchForward {
		t.Errorf("NewRequest(x) = %+v", req)
	}
}

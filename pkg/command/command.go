// Package command defines the single-byte command alphabet shared by the
// remote and the robot, and the fixed mapping from commands to motion routines.
package command

import (
	"fmt"
	"time"
)

// Command is one byte on the command channel.
type Command byte

// The canonical alphabet. Discrete commands come from the six action buttons,
// axis commands from the thumb sticks.
const (
	FingerStamp Command = 'g'
	Crouch      Command = 'r'
	Stand       Command = 'b'
	PointFinger Command = 'y'
	BowDown     Command = 'w'
	RiseUp      Command = 'k'

	CrouchForward  Command = 'x'
	CrouchBackward Command = 'z'
	StandWalk      Command = 'v'

	NoOp Command = '!'
)

// Routine names in the motion library.
const (
	RoutineFingerStamp    = "finger_stamp"
	RoutineCrouch         = "crouch_pos"
	RoutineGetUp          = "get_up"
	RoutinePointFinger    = "point_finger"
	RoutineBowDown        = "bow_down"
	RoutineRiseUp         = "rise_up"
	RoutineCrouchForward  = "crouch_walk_forward"
	RoutineCrouchBackward = "crouch_walk_backward"
	RoutineStandWalk      = "stand_walk"
)

type entry struct {
	routine string
	label   string
}

var table = map[Command]entry{
	FingerStamp:    {RoutineFingerStamp, "FINGER STAMP"},
	Crouch:         {RoutineCrouch, "CROUCH POS"},
	Stand:          {RoutineGetUp, "STAND POS"},
	PointFinger:    {RoutinePointFinger, "POINT FINGER"},
	BowDown:        {RoutineBowDown, "LED ON"},
	RiseUp:         {RoutineRiseUp, "BOW DOWN"},
	CrouchForward:  {RoutineCrouchForward, "CROUCH FWD"},
	CrouchBackward: {RoutineCrouchBackward, "CROUCH BWD"},
	StandWalk:      {RoutineStandWalk, "STAND WALK"},
}

// All returns every actionable command in canonical order.
func All() []Command {
	return []Command{
		FingerStamp, Crouch, Stand, PointFinger, BowDown, RiseUp,
		CrouchForward, CrouchBackward, StandWalk,
	}
}

// Valid reports whether c is part of the alphabet, including NoOp.
func (c Command) Valid() bool {
	if c == NoOp {
		return true
	}
	_, ok := table[c]
	return ok
}

// Routine returns the motion routine for c. Unknown bytes and NoOp report
// false, so callers treat them as idle.
func (c Command) Routine() (string, bool) {
	e, ok := table[c]
	if !ok {
		return "", false
	}
	return e.routine, true
}

// Label is the operator-facing text the remote shows when c is sent.
// The labels for w and k are the ones printed on the remote's buttons.
func (c Command) Label() string {
	if e, ok := table[c]; ok {
		return e.label
	}
	return ""
}

func (c Command) String() string {
	if c >= 0x21 && c <= 0x7e {
		return string(rune(c))
	}
	return fmt.Sprintf("0x%02x", byte(c))
}

// Bytes returns the wire encoding of c.
func (c Command) Bytes() []byte {
	return []byte{byte(c)}
}

// Decode maps a raw attribute value to a command. An empty value is the
// idle default.
func Decode(b []byte) Command {
	if len(b) == 0 {
		return NoOp
	}
	return Command(b[0])
}

// MotionRequest pairs a received command with the routine chosen for it.
type MotionRequest struct {
	Command  Command
	Routine  string
	IssuedAt time.Time
}

// NewRequest builds a MotionRequest for c, or reports false when c is not
// actionable.
func NewRequest(c Command, at time.Time) (MotionRequest, bool) {
	routine, ok := c.Routine()
	if !ok {
		return MotionRequest{}, false
	}
	return MotionRequest{Command: c, Routine: routine, IssuedAt: at}, true
}

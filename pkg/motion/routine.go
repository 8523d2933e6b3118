package motion

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalid is returned for malformed routines.
var ErrInvalid = errors.New("invalid routine")

// Routine is a named, fixed sequence of joint moves.
type Routine struct {
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Steps       []Step `json:"steps" yaml:"steps"`
}

// Step does one thing, then waits WaitMS: move joints (Set), run another
// routine (Call), repeat nested steps (Repeat/Steps) or move joints through
// a range of angles (Sweep). A step with only WaitMS is a pause.
type Step struct {
	Set    map[Joint]float64 `json:"set,omitempty" yaml:"set,omitempty"`
	Call   string            `json:"call,omitempty" yaml:"call,omitempty"`
	Repeat int               `json:"repeat,omitempty" yaml:"repeat,omitempty"`
	Steps  []Step            `json:"steps,omitempty" yaml:"steps,omitempty"`
	Sweep  *Sweep            `json:"sweep,omitempty" yaml:"sweep,omitempty"`
	WaitMS int               `json:"wait_ms,omitempty" yaml:"wait_ms,omitempty"`
}

// Sweep moves every joint through From..To inclusive, one degree (or Step)
// at a time, waiting WaitMS after each position.
type Sweep struct {
	Joints []Joint `json:"joints" yaml:"joints"`
	From   float64 `json:"from" yaml:"from"`
	To     float64 `json:"to" yaml:"to"`
	Step   float64 `json:"step,omitempty" yaml:"step,omitempty"`
	WaitMS int     `json:"wait_ms,omitempty" yaml:"wait_ms,omitempty"`
}

// Angles returns the positions the sweep visits.
func (s Sweep) Angles() []float64 {
	step := s.Step
	if step <= 0 {
		step = 1
	}
	var out []float64
	if s.From <= s.To {
		for a := s.From; a <= s.To; a += step {
			out = append(out, a)
		}
	} else {
		for a := s.From; a >= s.To; a -= step {
			out = append(out, a)
		}
	}
	return out
}

func (s Step) wait() time.Duration {
	return time.Duration(s.WaitMS) * time.Millisecond
}

// Validate checks the routine on its own. Calls are resolved by the Library.
func (r Routine) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalid)
	}
	if len(r.Steps) == 0 {
		return fmt.Errorf("%w: %s: no steps", ErrInvalid, r.Name)
	}
	for i, s := range r.Steps {
		if err := s.validate(); err != nil {
			return fmt.Errorf("%w: %s: step %d: %v", ErrInvalid, r.Name, i, err)
		}
	}
	return nil
}

func (s Step) validate() error {
	kinds := 0
	if len(s.Set) > 0 {
		kinds++
	}
	if s.Call != "" {
		kinds++
	}
	if s.Repeat != 0 || len(s.Steps) > 0 {
		kinds++
	}
	if s.Sweep != nil {
		kinds++
	}
	switch {
	case kinds > 1:
		return errors.New("more than one action")
	case kinds == 0 && s.WaitMS <= 0:
		return errors.New("empty step")
	case s.WaitMS < 0:
		return fmt.Errorf("negative wait %d", s.WaitMS)
	}

	for j, a := range s.Set {
		if err := checkJoint(j, a); err != nil {
			return err
		}
	}

	if s.Repeat != 0 || len(s.Steps) > 0 {
		if s.Repeat < 1 {
			return fmt.Errorf("repeat %d", s.Repeat)
		}
		if len(s.Steps) == 0 {
			return errors.New("repeat without steps")
		}
		for i, sub := range s.Steps {
			if err := sub.validate(); err != nil {
				return fmt.Errorf("repeat step %d: %w", i, err)
			}
		}
	}

	if sw := s.Sweep; sw != nil {
		if len(sw.Joints) == 0 {
			return errors.New("sweep without joints")
		}
		for _, j := range sw.Joints {
			if err := checkJoint(j, sw.From); err != nil {
				return err
			}
			if err := checkJoint(j, sw.To); err != nil {
				return err
			}
		}
		if sw.Step < 0 || sw.WaitMS < 0 {
			return errors.New("negative sweep step or wait")
		}
	}
	return nil
}

func checkJoint(j Joint, angle float64) error {
	if !j.Valid() {
		return fmt.Errorf("unknown joint %q", j)
	}
	if angle < 0 || angle > MaxAngle {
		return fmt.Errorf("%s: angle %.1f outside 0-%.0f", j, angle, MaxAngle)
	}
	return nil
}

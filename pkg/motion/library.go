package motion

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

//go:embed data/*.json
var embedded embed.FS

var (
	ErrNotFound = errors.New("routine not found")
	ErrBusy     = errors.New("a routine is already running")
)

// maxDepth bounds nested calls; cycles are rejected before that.
const maxDepth = 8

// Embedded returns the routines compiled into the binary.
func Embedded() ([]Routine, error) {
	return LoadDir(embedded, "data")
}

// LoadDir reads every .json, .yaml and .yml routine in dir.
func LoadDir(fsys fs.FS, dir string) ([]Routine, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("read routines: %w", err)
	}

	var out []Routine
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(path.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(dir, e.Name()))
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", e.Name(), err)
		}

		var r Routine
		if ext == ".json" {
			err = json.Unmarshal(data, &r)
		} else {
			err = yaml.Unmarshal(data, &r)
		}
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", e.Name(), err)
		}
		if r.Name == "" {
			r.Name = strings.TrimSuffix(e.Name(), path.Ext(e.Name()))
		}
		out = append(out, r)
	}
	return out, nil
}

// Library holds routines by name and plays them on an actuator, one at a time.
type Library struct {
	routines map[string]Routine
	act      Actuator
	log      *zap.Logger
	busy     atomic.Bool
}

// NewLibrary validates routines, including that every call resolves and
// no routine calls itself, directly or not.
func NewLibrary(act Actuator, log *zap.Logger, routines ...Routine) (*Library, error) {
	if log == nil {
		log = zap.NewNop()
	}
	l := &Library{
		routines: make(map[string]Routine, len(routines)),
		act:      act,
		log:      log.Named("motion"),
	}
	for _, r := range routines {
		if err := r.Validate(); err != nil {
			return nil, err
		}
		if _, dup := l.routines[r.Name]; dup {
			return nil, fmt.Errorf("%w: duplicate routine %s", ErrInvalid, r.Name)
		}
		l.routines[r.Name] = r
	}
	for _, name := range l.Names() {
		if err := l.checkCalls(name, nil); err != nil {
			return nil, err
		}
	}
	return l, nil
}

func (l *Library) checkCalls(name string, stack []string) error {
	if slices.Contains(stack, name) {
		return fmt.Errorf("%w: call cycle %s -> %s", ErrInvalid, strings.Join(stack, " -> "), name)
	}
	if len(stack) >= maxDepth {
		return fmt.Errorf("%w: calls nested deeper than %d at %s", ErrInvalid, maxDepth, name)
	}
	r, ok := l.routines[name]
	if !ok {
		return fmt.Errorf("%w: %s calls %s", ErrNotFound, stack[len(stack)-1], name)
	}
	stack = append(stack, name)
	var check func(steps []Step) error
	check = func(steps []Step) error {
		for _, s := range steps {
			if s.Call != "" {
				if err := l.checkCalls(s.Call, stack); err != nil {
					return err
				}
			}
			if err := check(s.Steps); err != nil {
				return err
			}
		}
		return nil
	}
	return check(r.Steps)
}

// Names returns every routine name, sorted.
func (l *Library) Names() []string {
	names := make([]string, 0, len(l.routines))
	for name := range l.routines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Get returns a routine by name.
func (l *Library) Get(name string) (Routine, error) {
	r, ok := l.routines[name]
	if !ok {
		return Routine{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return r, nil
}

// Duration is the time a routine spends waiting, which is close to how long
// it takes to play.
func (l *Library) Duration(name string) (time.Duration, error) {
	r, err := l.Get(name)
	if err != nil {
		return 0, err
	}
	return l.stepsDuration(r.Steps), nil
}

func (l *Library) stepsDuration(steps []Step) time.Duration {
	var d time.Duration
	for _, s := range steps {
		d += s.wait()
		switch {
		case s.Call != "":
			if r, ok := l.routines[s.Call]; ok {
				d += l.stepsDuration(r.Steps)
			}
		case s.Repeat > 0:
			d += time.Duration(s.Repeat) * l.stepsDuration(s.Steps)
		case s.Sweep != nil:
			d += time.Duration(len(s.Sweep.Angles())*s.Sweep.WaitMS) * time.Millisecond
		}
	}
	return d
}

// Invoke plays the named routine and blocks until it finishes. Only one
// routine runs at a time; a concurrent call fails with ErrBusy.
func (l *Library) Invoke(ctx context.Context, name string) error {
	r, err := l.Get(name)
	if err != nil {
		return err
	}
	if !l.busy.CompareAndSwap(false, true) {
		return fmt.Errorf("%w: cannot start %s", ErrBusy, name)
	}
	defer l.busy.Store(false)

	start := time.Now()
	l.log.Debug("routine started", zap.String("routine", name))
	if err := l.play(ctx, r.Steps, 0); err != nil {
		return fmt.Errorf("play %s: %w", name, err)
	}
	l.log.Debug("routine finished", zap.String("routine", name), zap.Duration("took", time.Since(start)))
	return nil
}

// Busy reports whether a routine is playing.
func (l *Library) Busy() bool {
	return l.busy.Load()
}

func (l *Library) play(ctx context.Context, steps []Step, depth int) error {
	if depth > maxDepth {
		return fmt.Errorf("%w: nesting too deep", ErrInvalid)
	}
	for _, s := range steps {
		switch {
		case len(s.Set) > 0:
			if err := l.apply(ctx, s.Set); err != nil {
				return err
			}
		case s.Call != "":
			r, err := l.Get(s.Call)
			if err != nil {
				return err
			}
			if err := l.play(ctx, r.Steps, depth+1); err != nil {
				return err
			}
		case s.Repeat > 0:
			for i := 0; i < s.Repeat; i++ {
				if err := l.play(ctx, s.Steps, depth+1); err != nil {
					return err
				}
			}
		case s.Sweep != nil:
			if err := l.sweep(ctx, *s.Sweep); err != nil {
				return err
			}
		}
		if err := wait(ctx, s.wait()); err != nil {
			return err
		}
	}
	return nil
}

// apply writes a pose in joint order so playback is deterministic.
func (l *Library) apply(ctx context.Context, pose map[Joint]float64) error {
	for _, j := range append(AllJoints(), WristLED) {
		a, ok := pose[j]
		if !ok {
			continue
		}
		if err := l.act.WriteActuator(ctx, j, a); err != nil {
			return fmt.Errorf("write %s: %w", j, err)
		}
	}
	return nil
}

func (l *Library) sweep(ctx context.Context, sw Sweep) error {
	d := time.Duration(sw.WaitMS) * time.Millisecond
	for _, a := range sw.Angles() {
		for _, j := range sw.Joints {
			if err := l.act.WriteActuator(ctx, j, a); err != nil {
				return fmt.Errorf("write %s: %w", j, err)
			}
		}
		if err := wait(ctx, d); err != nil {
			return err
		}
	}
	return nil
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

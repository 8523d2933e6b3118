package motion

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Actuator moves one joint. Angles are degrees in [0, 180]; implementations
// clamp anything outside.
type Actuator interface {
	WriteActuator(ctx context.Context, joint Joint, angle float64) error
}

// Write is one recorded actuator call.
type Write struct {
	Joint Joint
	Angle float64
}

// RecordingActuator remembers every write and the resulting pose.
type RecordingActuator struct {
	mu     sync.Mutex
	writes []Write
	pose   map[Joint]float64
	err    error
}

// NewRecordingActuator returns an actuator that records writes. When err is
// non-nil every write fails with it.
func NewRecordingActuator(err error) *RecordingActuator {
	return &RecordingActuator{pose: make(map[Joint]float64), err: err}
}

func (r *RecordingActuator) WriteActuator(ctx context.Context, joint Joint, angle float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	angle = Clamp(angle)
	r.writes = append(r.writes, Write{Joint: joint, Angle: angle})
	r.pose[joint] = angle
	return nil
}

// Writes returns a copy of the recorded writes.
func (r *RecordingActuator) Writes() []Write {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Write(nil), r.writes...)
}

// Pose returns the last angle written to each joint.
func (r *RecordingActuator) Pose() map[Joint]float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[Joint]float64, len(r.pose))
	for j, a := range r.pose {
		out[j] = a
	}
	return out
}

// LogActuator only logs; used for dry runs.
type LogActuator struct {
	Log *zap.Logger
}

func (l LogActuator) WriteActuator(ctx context.Context, joint Joint, angle float64) error {
	if l.Log != nil {
		l.Log.Debug("actuate", zap.String("joint", string(joint)), zap.Float64("angle", Clamp(angle)))
	}
	return nil
}

package motion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.uber.org/zap"
)

// HandConfig opens a hand on a feetech serial bus.
type HandConfig struct {
	Port        string
	BaudRate    int
	Timeout     time.Duration
	Calibration Calibration
	Log         *zap.Logger
}

// FeetechHand drives the hand's servos over an STS bus. The wrist LED is
// not on the bus; its state is only tracked.
type FeetechHand struct {
	bus   *feetech.Bus
	group *feetech.ServoGroup
	cal   Calibration
	log   *zap.Logger

	mu  sync.Mutex
	led bool
}

// NewFeetechHand opens the bus and builds a servo group from the calibration.
func NewFeetechHand(cfg HandConfig) (*FeetechHand, error) {
	if err := cfg.Calibration.Validate(); err != nil {
		return nil, err
	}
	if cfg.BaudRate == 0 {
		cfg.BaudRate = 1_000_000
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}

	bus, err := feetech.NewBus(feetech.BusConfig{
		Port:     cfg.Port,
		BaudRate: cfg.BaudRate,
		Protocol: feetech.ProtocolSTS,
		Timeout:  cfg.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}

	return &FeetechHand{
		bus:   bus,
		group: feetech.NewServoGroupByIDs(bus, cfg.Calibration.IDs()...),
		cal:   cfg.Calibration,
		log:   cfg.Log.Named("hand"),
	}, nil
}

// Close closes the bus.
func (h *FeetechHand) Close() error {
	return h.bus.Close()
}

// Enable turns torque on for every servo.
func (h *FeetechHand) Enable(ctx context.Context) error {
	if err := h.group.EnableAll(ctx); err != nil {
		return fmt.Errorf("enable torque: %w", err)
	}
	return nil
}

// Disable turns torque off so the hand can be posed by hand.
func (h *FeetechHand) Disable(ctx context.Context) error {
	if err := h.group.DisableAll(ctx); err != nil {
		return fmt.Errorf("disable torque: %w", err)
	}
	return nil
}

// WriteActuator moves one joint.
func (h *FeetechHand) WriteActuator(ctx context.Context, joint Joint, angle float64) error {
	if joint == WristLED {
		h.mu.Lock()
		h.led = angle >= MaxAngle/2
		h.mu.Unlock()
		return nil
	}
	return h.WritePose(ctx, map[Joint]float64{joint: angle})
}

// WritePose moves several joints with one sync write.
func (h *FeetechHand) WritePose(ctx context.Context, pose map[Joint]float64) error {
	raw := make(feetech.PositionMap, len(pose))
	for j, a := range pose {
		jc, ok := h.cal[j]
		if !ok {
			return fmt.Errorf("joint %s: not calibrated", j)
		}
		raw[jc.ID] = jc.ToRaw(a)
	}
	if err := h.group.SetPositions(ctx, raw); err != nil {
		return fmt.Errorf("write positions: %w", err)
	}
	return nil
}

// Angles reads every servo and returns joint angles in degrees.
func (h *FeetechHand) Angles(ctx context.Context) (map[Joint]float64, error) {
	raw, err := h.group.Positions(ctx)
	if err != nil {
		return nil, fmt.Errorf("read positions: %w", err)
	}

	angles := make(map[Joint]float64, len(raw))
	for id, pos := range raw {
		j, jc, ok := h.cal.ByID(id)
		if !ok {
			continue
		}
		angles[j] = jc.ToAngle(pos)
	}
	return angles, nil
}

// LED reports the last wrist LED state written.
func (h *FeetechHand) LED() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.led
}

// Missing lists calibrated servos that do not answer a bus scan.
func (h *FeetechHand) Missing(ctx context.Context) ([]Joint, error) {
	ids := h.cal.IDs()
	if len(ids) == 0 {
		return nil, errors.New("empty calibration")
	}
	lo, hi := ids[0], ids[0]
	for _, id := range ids {
		lo, hi = min(lo, id), max(hi, id)
	}

	found, err := h.bus.Scan(ctx, lo, hi)
	if err != nil {
		return nil, fmt.Errorf("scan bus: %w", err)
	}
	present := make(map[int]bool, len(found))
	for _, s := range found {
		present[s.ID] = true
	}

	var missing []Joint
	for _, j := range AllJoints() {
		if jc, ok := h.cal[j]; ok && !present[jc.ID] {
			missing = append(missing, j)
		}
	}
	return missing, nil
}

package motion

import (
	"encoding/json"
	"fmt"
	"os"
)

// MaxAngle is the top of a joint's travel in degrees.
const MaxAngle = 180.0

// JointCalibration maps a joint's 0-180 degree travel onto raw servo positions.
type JointCalibration struct {
	ID       int  `json:"id" yaml:"id"`
	RangeMin int  `json:"range_min" yaml:"range_min"`
	RangeMax int  `json:"range_max" yaml:"range_max"`
	Inverted bool `json:"inverted,omitempty" yaml:"inverted,omitempty"`
}

// Calibration holds calibration data for all joints, keyed by joint name.
type Calibration map[Joint]JointCalibration

// DefaultCalibration gives every joint the middle half turn of an STS servo
// (1024-3072 of 0-4095) and the servo ID channel+1.
func DefaultCalibration() Calibration {
	cal := make(Calibration, len(AllJoints()))
	for j, ch := range DefaultChannels() {
		cal[j] = JointCalibration{ID: ch + 1, RangeMin: 1024, RangeMax: 3072}
	}
	return cal
}

// LoadCalibration loads calibration data from a JSON file.
func LoadCalibration(path string) (Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read calibration file: %w", err)
	}

	var cal Calibration
	if err := json.Unmarshal(data, &cal); err != nil {
		return nil, fmt.Errorf("parse calibration JSON: %w", err)
	}
	return cal, nil
}

// Clamp limits angle to [0, MaxAngle].
func Clamp(angle float64) float64 {
	switch {
	case angle < 0:
		return 0
	case angle > MaxAngle:
		return MaxAngle
	}
	return angle
}

// ToRaw converts an angle in degrees to a raw servo position.
func (c JointCalibration) ToRaw(angle float64) int {
	angle = Clamp(angle)
	if c.Inverted {
		angle = MaxAngle - angle
	}
	rangeSize := float64(c.RangeMax - c.RangeMin)
	return int(angle/MaxAngle*rangeSize+0.5) + c.RangeMin
}

// ToAngle converts a raw servo position to degrees.
func (c JointCalibration) ToAngle(raw int) float64 {
	rangeSize := float64(c.RangeMax - c.RangeMin)
	if rangeSize == 0 {
		return 0
	}
	angle := float64(raw-c.RangeMin) / rangeSize * MaxAngle
	if c.Inverted {
		angle = MaxAngle - angle
	}
	return angle
}

// IDs returns the servo IDs in joint order.
func (c Calibration) IDs() []int {
	ids := make([]int, 0, len(c))
	for _, j := range AllJoints() {
		if jc, ok := c[j]; ok {
			ids = append(ids, jc.ID)
		}
	}
	return ids
}

// ByID returns the joint and calibration for a servo ID.
func (c Calibration) ByID(id int) (Joint, JointCalibration, bool) {
	for j, jc := range c {
		if jc.ID == id {
			return j, jc, true
		}
	}
	return "", JointCalibration{}, false
}

// Validate checks that every joint is known and IDs are unique.
func (c Calibration) Validate() error {
	seen := make(map[int]Joint, len(c))
	for j, jc := range c {
		if !j.Valid() || j == WristLED {
			return fmt.Errorf("calibration: unknown joint %q", j)
		}
		if jc.ID < 1 || jc.ID > 253 {
			return fmt.Errorf("calibration: %s: servo id %d out of range", j, jc.ID)
		}
		if other, dup := seen[jc.ID]; dup {
			return fmt.Errorf("calibration: %s and %s share servo id %d", other, j, jc.ID)
		}
		seen[jc.ID] = j
		if jc.RangeMax <= jc.RangeMin {
			return fmt.Errorf("calibration: %s: empty range %d-%d", j, jc.RangeMin, jc.RangeMax)
		}
	}
	return nil
}

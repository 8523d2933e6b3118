package motion

import (
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestJointCalibration_ToRaw(t *testing.T) {
	cal := JointCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		angle    float64
		expected int
	}{
		{0, 1000},   // 0 -> min
		{180, 3000}, // 180 -> max
		{90, 2000},  // 90 -> mid
		{45, 1500},  // quarter
		{135, 2500}, // three-quarter
		{-10, 1000}, // clamped low
		{193, 3000}, // clamped high
	}

	for _, tt := range tests {
		got := cal.ToRaw(tt.angle)
		if got != tt.expected {
			t.Errorf("ToRaw(%f) = %d, want %d", tt.angle, got, tt.expected)
		}
	}
}

func TestJointCalibration_ToAngle(t *testing.T) {
	cal := JointCalibration{
		RangeMin: 1000,
		RangeMax: 3000,
	}

	tests := []struct {
		raw      int
		expected float64
	}{
		{1000, 0},
		{3000, 180},
		{2000, 90},
		{1500, 45},
	}

	for _, tt := range tests {
		got := cal.ToAngle(tt.raw)
		if math.Abs(got-tt.expected) > 0.001 {
			t.Errorf("ToAngle(%d) = %f, want %f", tt.raw, got, tt.expected)
		}
	}
}

func TestJointCalibration_Inverted(t *testing.T) {
	cal := JointCalibration{RangeMin: 1000, RangeMax: 3000, Inverted: true}
	if got := cal.ToRaw(0); got != 3000 {
		t.Errorf("ToRaw(0) inverted = %d, want 3000", got)
	}
	if got := cal.ToAngle(3000); math.Abs(got) > 0.001 {
		t.Errorf("ToAngle(3000) inverted = %f, want 0", got)
	}
}

func TestJointCalibration_RoundTrip(t *testing.T) {
	cal := JointCalibration{
		RangeMin: 823,
		RangeMax: 3540,
	}

	for raw := cal.RangeMin; raw <= cal.RangeMax; raw += 100 {
		angle := cal.ToAngle(raw)
		back := cal.ToRaw(angle)
		if math.Abs(float64(back-raw)) > 1 {
			t.Errorf("Round-trip failed: %d -> %f -> %d", raw, angle, back)
		}
	}
}

func TestDefaultCalibration(t *testing.T) {
	cal := DefaultCalibration()
	if err := cal.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	ids := cal.IDs()
	if len(ids) != len(AllJoints()) {
		t.Fatalf("IDs returned %d IDs, want %d", len(ids), len(AllJoints()))
	}
	// index_base is on channel 8.
	if ids[0] != 9 {
		t.Errorf("IDs()[0] = %d, want 9", ids[0])
	}

	j, jc, ok := cal.ByID(16)
	if !ok || j != Wrist || jc.RangeMin != 1024 {
		t.Errorf("ByID(16) = %s %+v %v", j, jc, ok)
	}
	if _, _, ok := cal.ByID(99); ok {
		t.Error("ByID(99) should return false")
	}
}

func TestCalibration_ValidateRejects(t *testing.T) {
	tests := []struct {
		name string
		cal  Calibration
	}{
		{"unknown joint", Calibration{"elbow": {ID: 1, RangeMin: 0, RangeMax: 10}}},
		{"led", Calibration{WristLED: {ID: 1, RangeMin: 0, RangeMax: 10}}},
		{"duplicate id", Calibration{
			IndexBase: {ID: 1, RangeMin: 0, RangeMax: 10},
			IndexMid:  {ID: 1, RangeMin: 0, RangeMax: 10},
		}},
		{"empty range", Calibration{IndexBase: {ID: 1, RangeMin: 10, RangeMax: 10}}},
		{"bad id", Calibration{IndexBase: {ID: 0, RangeMin: 0, RangeMax: 10}}},
	}
	for _, tt := range tests {
		if err := tt.cal.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}

func TestLoadCalibration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hand.json")
	data := `{"index_base": {"id": 9, "range_min": 900, "range_max": 3100, "inverted": true}}`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cal, err := LoadCalibration(path)
	if err != nil {
		t.Fatalf("LoadCalibration: %v", err)
	}
	jc, ok := cal[IndexBase]
	if !ok || jc.ID != 9 || jc.RangeMax != 3100 || !jc.Inverted {
		t.Errorf("index_base = %+v", jc)
	}

	if _, err := LoadCalibration(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("LoadCalibration(missing) should fail")
	}
}

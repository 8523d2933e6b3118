package motion

import (
	"context"
	"errors"
	"sync"
	"testing"
	"testing/fstest"
	"time"

	"github.com/gwillem/thething/pkg/command"
)

func TestEmbedded_LoadsAndValidates(t *testing.T) {
	routines, err := Embedded()
	if err != nil {
		t.Fatalf("Embedded: %v", err)
	}
	lib, err := NewLibrary(NewRecordingActuator(nil), nil, routines...)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	want := []string{
		"straight_fingers", "tap_fingers", "struggle", "wrist_led_seq",
		"trick_or_treat", "finger_count", "finger_count_ready",
	}
	for _, c := range command.All() {
		r, _ := c.Routine()
		want = append(want, r)
	}
	for _, name := range want {
		if _, err := lib.Get(name); err != nil {
			t.Errorf("Get(%q): %v", name, err)
		}
	}
}

func TestEmbedded_Durations(t *testing.T) {
	routines, err := Embedded()
	if err != nil {
		t.Fatal(err)
	}
	lib, err := NewLibrary(NewRecordingActuator(nil), nil, routines...)
	if err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name string
		want time.Duration
	}{
		{"straight_fingers", time.Second},
		{"crouch_pos", 0},
		{"get_up", 2 * time.Second},
		{"finger_stamp", 10 * 400 * time.Millisecond},
		// two 4s open-close cycles, then three 490ms beckons
		{"trick_or_treat", 9470 * time.Millisecond},
		// four counts of 1s ready, 1s hold, 600ms shake, 1s settle
		{"finger_count", 4 * 3600 * time.Millisecond},
	}
	for _, tt := range tests {
		got, err := lib.Duration(tt.name)
		if err != nil {
			t.Errorf("Duration(%s): %v", tt.name, err)
			continue
		}
		if got != tt.want {
			t.Errorf("Duration(%s) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestInvoke_PlaysStepsInOrder(t *testing.T) {
	act := NewRecordingActuator(nil)
	lib, err := NewLibrary(act, nil,
		Routine{Name: "wave", Steps: []Step{
			{Set: map[Joint]float64{Wrist: 80, IndexBase: 10}},
			{Repeat: 2, Steps: []Step{{Set: map[Joint]float64{Wrist: 100}}}},
			{Sweep: &Sweep{Joints: []Joint{ThumbTip}, From: 3, To: 1}},
			{Call: "rest"},
		}},
		Routine{Name: "rest", Steps: []Step{{Set: map[Joint]float64{Wrist: 90}, WaitMS: 1}}},
	)
	if err != nil {
		t.Fatalf("NewLibrary: %v", err)
	}

	if err := lib.Invoke(context.Background(), "wave"); err != nil {
		t.Fatalf("Invoke: %v", err)
	}

	want := []Write{
		{IndexBase, 10}, {Wrist, 80},
		{Wrist, 100}, {Wrist, 100},
		{ThumbTip, 3}, {ThumbTip, 2}, {ThumbTip, 1},
		{Wrist, 90},
	}
	got := act.Writes()
	if len(got) != len(want) {
		t.Fatalf("writes = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("write %d = %v, want %v", i, got[i], want[i])
		}
	}
}

func TestInvoke_StraightFingersPose(t *testing.T) {
	routines, err := Embedded()
	if err != nil {
		t.Fatal(err)
	}
	act := NewRecordingActuator(nil)
	lib, err := NewLibrary(act, nil, routines...)
	if err != nil {
		t.Fatal(err)
	}
	if err := lib.Invoke(context.Background(), "crouch_pos"); err != nil {
		t.Fatal(err)
	}
	pose := act.Pose()
	if pose[IndexMid] != 119 || pose[ThumbTip] != 46 {
		t.Errorf("crouch pose index_mid=%v thumb_tip=%v, want 119 and 46", pose[IndexMid], pose[ThumbTip])
	}
}

func TestInvoke_Errors(t *testing.T) {
	boom := errors.New("servo 9: no status packet")
	lib, err := NewLibrary(NewRecordingActuator(boom), nil,
		Routine{Name: "one", Steps: []Step{{Set: map[Joint]float64{Wrist: 1}}}})
	if err != nil {
		t.Fatal(err)
	}

	if err := lib.Invoke(context.Background(), "nope"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Invoke(nope) = %v, want ErrNotFound", err)
	}
	if err := lib.Invoke(context.Background(), "one"); !errors.Is(err, boom) {
		t.Errorf("Invoke(one) = %v, want %v", err, boom)
	}
	if lib.Busy() {
		t.Error("library still busy after a failed routine")
	}
}

func TestInvoke_Busy(t *testing.T) {
	lib, err := NewLibrary(NewRecordingActuator(nil), nil,
		Routine{Name: "slow", Steps: []Step{{WaitMS: 100}}})
	if err != nil {
		t.Fatal(err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		lib.Invoke(context.Background(), "slow")
	}()
	time.Sleep(20 * time.Millisecond)

	if err := lib.Invoke(context.Background(), "slow"); !errors.Is(err, ErrBusy) {
		t.Errorf("concurrent Invoke = %v, want ErrBusy", err)
	}
	wg.Wait()
}

func TestNewLibrary_Rejects(t *testing.T) {
	tests := []struct {
		name     string
		routines []Routine
		want     error
	}{
		{"unknown joint", []Routine{{Name: "a", Steps: []Step{{Set: map[Joint]float64{"elbow": 1}}}}}, ErrInvalid},
		{"angle out of range", []Routine{{Name: "a", Steps: []Step{{Set: map[Joint]float64{Wrist: 190}}}}}, ErrInvalid},
		{"two actions", []Routine{{Name: "a", Steps: []Step{{Set: map[Joint]float64{Wrist: 1}, Call: "b"}}}}, ErrInvalid},
		{"empty step", []Routine{{Name: "a", Steps: []Step{{}}}}, ErrInvalid},
		{"no steps", []Routine{{Name: "a"}}, ErrInvalid},
		{"missing call", []Routine{{Name: "a", Steps: []Step{{Call: "b"}}}}, ErrNotFound},
		{"cycle", []Routine{
			{Name: "a", Steps: []Step{{Call: "b"}}},
			{Name: "b", Steps: []Step{{Repeat: 2, Steps: []Step{{Call: "a"}}}}},
		}, ErrInvalid},
		{"duplicate", []Routine{
			{Name: "a", Steps: []Step{{WaitMS: 1}}},
			{Name: "a", Steps: []Step{{WaitMS: 1}}},
		}, ErrInvalid},
	}
	for _, tt := range tests {
		_, err := NewLibrary(NewRecordingActuator(nil), nil, tt.routines...)
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: NewLibrary = %v, want %v", tt.name, err, tt.want)
		}
	}
}

func TestLoadDir_YAML(t *testing.T) {
	fsys := fstest.MapFS{
		"r/wave.yaml": {Data: []byte("steps:\n  - set: {wrist: 45}\n    wait_ms: 5\n")},
		"r/notes.txt": {Data: []byte("ignored")},
	}
	routines, err := LoadDir(fsys, "r")
	if err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if len(routines) != 1 {
		t.Fatalf("loaded %d routines, want 1", len(routines))
	}
	r := routines[0]
	if r.Name != "wave" || r.Steps[0].Set[Wrist] != 45 || r.Steps[0].WaitMS != 5 {
		t.Errorf("routine = %+v", r)
	}
}

func TestSweep_Angles(t *testing.T) {
	up := Sweep{From: 1, To: 4}.Angles()
	if len(up) != 4 || up[0] != 1 || up[3] != 4 {
		t.Errorf("up = %v", up)
	}
	down := Sweep{From: 10, To: 4, Step: 3}.Angles()
	if len(down) != 3 || down[2] != 4 {
		t.Errorf("down = %v", down)
	}
}

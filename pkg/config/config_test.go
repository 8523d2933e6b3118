package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/motion"
)

func TestDefault_Valid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	sc := cfg.Sampler()
	if len(sc.Buttons) != 6 || sc.Buttons[0].Command != command.FingerStamp || sc.Buttons[0].Pin != 4 {
		t.Errorf("sampler buttons = %+v", sc.Buttons)
	}
	if sc.Tick != 10*time.Millisecond {
		t.Errorf("sampler tick = %v", sc.Tick)
	}

	adv := cfg.Advertisement()
	if adv.LocalName != "TheThing" || !adv.HasService(link.AdvertisedService) || adv.Interval != 250*time.Millisecond {
		t.Errorf("advertisement = %+v", adv)
	}

	scan := cfg.Scanner()
	if scan.Scan.Duration != 5*time.Second || scan.Characteristic != link.CommandCharacteristic {
		t.Errorf("scanner = %+v", scan)
	}
	if got := cfg.Dispatch().Tick; got != 10*time.Millisecond {
		t.Errorf("dispatch tick = %v", got)
	}
}

func TestSaveLoad_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultConfigFile)
	cfg := Default()
	cfg.Hand.Port = "/dev/ttyACM0"
	cfg.Link.ScanDuration = Duration(2 * time.Second)

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), `"scan_duration": "2s"`) {
		t.Errorf("durations not written as strings:\n%s", data)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Hand.Port != "/dev/ttyACM0" || got.Link.ScanDuration != Duration(2*time.Second) {
		t.Errorf("loaded = %+v", got)
	}
	if got.Hand.Calibration[motion.Wrist].ID != 16 {
		t.Errorf("calibration lost: %+v", got.Hand.Calibration[motion.Wrist])
	}
}

func TestLoad_YAMLPartial(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thething.yaml")
	data := `
link:
  name: OtherThing
  connect_timeout: 1500
robot:
  monitor: ":8080"
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Link.Name != "OtherThing" || cfg.Robot.Monitor != ":8080" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.Link.ConnectTimeout != Duration(1500*time.Millisecond) {
		t.Errorf("connect_timeout = %v, want 1.5s", cfg.Link.ConnectTimeout)
	}
	// Untouched keys keep their defaults.
	if cfg.Controller.High != 40000 || cfg.Link.ScanDuration != Duration(5*time.Second) {
		t.Errorf("defaults lost: high=%d scan=%v", cfg.Controller.High, cfg.Link.ScanDuration)
	}
}

func TestSave_YAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "thething.yml")
	cfg := Default()
	cfg.Log.Level = "debug"
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Log.Level != "debug" || got.Controller.Tick != Duration(10*time.Millisecond) {
		t.Errorf("loaded = %+v", got)
	}
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty name", func(c *Config) { c.Link.Name = "" }},
		{"inverted thresholds", func(c *Config) { c.Controller.Low = 50000 }},
		{"zero tick", func(c *Config) { c.Robot.Tick = 0 }},
		{"no-op button", func(c *Config) { c.Controller.Buttons[0].Command = "!" }},
		{"long command", func(c *Config) { c.Controller.Buttons[0].Command = "gg" }},
		{"duplicate command", func(c *Config) { c.Controller.Buttons[1].Command = "g" }},
		{"duplicate pin", func(c *Config) { c.Controller.Buttons[1].Pin = 4 }},
		{"bad calibration", func(c *Config) {
			c.Hand.Calibration[motion.IndexMid] = c.Hand.Calibration[motion.IndexBase]
		}},
	}
	for _, tt := range tests {
		cfg := Default()
		tt.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Errorf("%s: Validate() = nil, want error", tt.name)
		}
	}
}

func TestLoadOrDefault_Missing(t *testing.T) {
	cfg, err := LoadOrDefault(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("LoadOrDefault: %v", err)
	}
	if cfg.Link.Name != link.RemoteName {
		t.Errorf("name = %q", cfg.Link.Name)
	}
	if Exists(filepath.Join(t.TempDir(), "nope.json")) {
		t.Error("Exists reported a missing file")
	}
}

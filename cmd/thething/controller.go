package main

import (
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/thething/internal/logging"
	"github.com/gwillem/thething/pkg/ble"
	"github.com/gwillem/thething/pkg/bluez"
	"github.com/gwillem/thething/pkg/channel"
	"github.com/gwillem/thething/pkg/link"
)

type ControllerCommand struct {
	Headless bool          `long:"headless" description:"No console; log to stderr and read keys from --script or stdin"`
	Script   string        `long:"script" description:"Key script for headless mode"`
	Hold     time.Duration `long:"hold" default:"150ms" description:"How long a key press holds a button down"`
}

func (c *ControllerCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	lines := logging.NewLines(64)
	var out io.Writer = lines
	if c.Headless {
		out = os.Stderr
	}
	log, err := newLogger(cfg, out)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	bz, err := preflight(cfg.Controller.Adapter, cfg.Controller.PowerOn, log)
	if err != nil {
		return err
	}
	if bz != nil {
		defer bz.Close()
	}

	radio, err := ble.Open(ble.Options{Log: log})
	if err != nil {
		return fmt.Errorf("open radio: %w", err)
	}

	tracker := link.NewTracker()
	adv := link.NewAdvertiser(radio, tracker, link.AdvertiserConfig{Advertisement: cfg.Advertisement()}, log)
	rem := newRemote(cfg, tracker, adv, channel.NewWriter(radio.Command()), c.Hold, log)

	log.Info("controller starting", zap.String("name", cfg.Link.Name))

	tasks := append(rem.tasks(), task{name: "advertiser", run: adv.Run})
	if bz != nil {
		tasks = append(tasks, watchAdapter(bz, cfg.Controller.Adapter, func() { adv.Fail(bluez.ErrPoweredOff) }))
	}
	if c.Headless {
		tasks = append(tasks, rem.script(c.Script))
	} else {
		tasks = append(tasks, rem.ui(lines.C()))
	}
	return runTasks(ctx, log, tasks...)
}

package main

import (
	"context"
	"io"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/thething/internal/logging"
	"github.com/gwillem/thething/pkg/channel"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/motion"
	"github.com/gwillem/thething/pkg/sim"
)

type SimCommand struct {
	Script    string        `long:"script" description:"Drive the remote from a key script instead of the console (- for stdin)"`
	Monitor   string        `long:"monitor" description:"Serve /status and /events on this address"`
	Hold      time.Duration `long:"hold" default:"150ms" description:"How long a key press holds a button down"`
	DropEvery time.Duration `long:"drop-every" description:"Break the simulated link at this interval"`
}

func (c *SimCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Monitor != "" {
		cfg.Robot.Monitor = c.Monitor
	}

	lines := logging.NewLines(64)
	var out io.Writer = lines
	if c.Script != "" {
		out = os.Stderr
	}
	log, err := newLogger(cfg, out)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	air := sim.NewAir()

	remoteState := link.NewTracker()
	adv := link.NewAdvertiser(air.Peripheral(), remoteState, link.AdvertiserConfig{Advertisement: cfg.Advertisement()}, log.Named("remote"))
	rem := newRemote(cfg, remoteState, adv, channel.NewWriter(air.Value()), c.Hold, log.Named("remote"))

	robotState := link.NewTracker()
	rob, err := newRobot(cfg, air.Central(), robotState, motion.LogActuator{Log: log.Named("hand")}, log.Named("robot"))
	if err != nil {
		return err
	}

	tasks := append(rem.tasks(), task{name: "advertiser", run: adv.Run})
	tasks = append(tasks, rob.tasks(cfg.Robot.Monitor)...)
	if c.DropEvery > 0 {
		tasks = append(tasks, task{name: "dropper", run: func(ctx context.Context) error {
			t := time.NewTicker(c.DropEvery)
			defer t.Stop()
			for {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-t.C:
					if air.Connected() {
						log.Info("dropping simulated link")
						air.Drop()
					}
				}
			}
		}})
	}

	switch c.Script {
	case "":
		tasks = append(tasks, rem.ui(lines.C()))
	case "-":
		tasks = append(tasks, rem.script(""))
	default:
		tasks = append(tasks, rem.script(c.Script))
	}

	log.Info("simulation starting", zap.Int("routines", len(rob.lib.Names())))
	return runTasks(ctx, log, tasks...)
}

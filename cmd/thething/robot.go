package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/ble"
	"github.com/gwillem/thething/pkg/bluez"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/motion"
)

type RobotCommand struct {
	DryRun  bool   `long:"dry-run" description:"Log joint writes instead of driving the servos"`
	Port    string `long:"port" description:"Servo bus serial port (overrides config)"`
	Monitor string `long:"monitor" description:"Serve /status and /events on this address (overrides config)"`
}

func (c *RobotCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if c.Port != "" {
		cfg.Hand.Port = c.Port
	}
	if c.Monitor != "" {
		cfg.Robot.Monitor = c.Monitor
	}

	log, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, stop := signalContext()
	defer stop()

	act, closeHand, err := openActuator(ctx, cfg.Hand.Port, cfg.Hand.BaudRate, cfg.Hand.Calibration, c.DryRun, log)
	if err != nil {
		return err
	}
	defer closeHand()

	bz, err := preflight(cfg.Robot.Adapter, cfg.Robot.PowerOn, log)
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
	rob, err := newRobot(cfg, radio, tracker, act, log)
	if err != nil {
		return err
	}
	rob.rest(ctx)

	log.Info("robot starting", zap.String("remote", cfg.Link.Name), zap.Bool("dry_run", c.DryRun))

	tasks := rob.tasks(cfg.Robot.Monitor)
	if bz != nil {
		tasks = append(tasks, watchAdapter(bz, cfg.Robot.Adapter, rob.dropSession))
	}
	return runTasks(ctx, log, tasks...)
}

// openActuator returns the hand, or a logging stand-in for dry runs. The
// returned func releases the servos.
func openActuator(ctx context.Context, port string, baud int, cal motion.Calibration, dryRun bool, log *zap.Logger) (motion.Actuator, func(), error) {
	if dryRun {
		return motion.LogActuator{Log: log.Named("hand")}, func() {}, nil
	}
	if port == "" {
		return nil, nil, errors.New("hand not configured. Run 'thething setup' first, or use --dry-run")
	}
	if len(cal) == 0 {
		cal = motion.DefaultCalibration()
	}

	hand, err := motion.NewFeetechHand(motion.HandConfig{
		Port:        port,
		BaudRate:    baud,
		Timeout:     100 * time.Millisecond,
		Calibration: cal,
		Log:         log,
	})
	if err != nil {
		return nil, nil, err
	}
	if missing, err := hand.Missing(ctx); err != nil {
		log.Warn("servo scan failed", zap.Error(err))
	} else if len(missing) > 0 {
		log.Warn("servos not answering", zap.Any("joints", missing))
	}
	if err := hand.Enable(ctx); err != nil {
		hand.Close()
		return nil, nil, fmt.Errorf("enable servos: %w", err)
	}
	return hand, func() {
		hand.Disable(context.Background())
		hand.Close()
	}, nil
}

// watchAdapter runs onOff whenever the adapter loses power.
func watchAdapter(bz *bluez.Client, adapter string, onOff func()) task {
	return task{name: "adapter", run: func(ctx context.Context) error {
		return bz.Watch(ctx, adapter, func(powered bool) {
			if !powered {
				onOff()
			}
		})
	}}
}

package main

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/config"
	"github.com/gwillem/thething/pkg/console"
	"github.com/gwillem/thething/pkg/dispatch"
	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/monitor"
	"github.com/gwillem/thething/pkg/motion"
	"github.com/gwillem/thething/pkg/sampler"
	"github.com/gwillem/thething/pkg/status"
)

const splashStep = 400 * time.Millisecond

// remote is the controller's sampling and feedback side.
type remote struct {
	cfg     sampler.Config
	tracker *link.Tracker
	board   *console.Board
	mailbox *status.Mailbox
	blinker *status.Blinker
	sampler *sampler.Sampler
}

func newRemote(cfg *config.Config, tracker *link.Tracker, l sampler.Link, pub sampler.Publisher, hold time.Duration, log *zap.Logger) *remote {
	sc := cfg.Sampler()
	board := console.NewBoard(sc, hold)
	mailbox := status.NewMailbox(board, log)
	panel := status.NewPanel(board, status.PanelPins(sc))
	return &remote{
		cfg:     sc,
		tracker: tracker,
		board:   board,
		mailbox: mailbox,
		blinker: status.NewBlinker(board, tracker),
		sampler: sampler.New(sc, board, board, pub, l, sampler.Options{
			Acknowledger: status.Indicator{Mailbox: mailbox, Panel: panel},
			Log:          log,
		}),
	}
}

func (r *remote) tasks() []task {
	return []task{
		{name: "display", run: r.mailbox.Run},
		{name: "splash", run: func(ctx context.Context) error { return status.Splash(ctx, r.mailbox, splashStep) }},
		{name: "blinker", run: r.blinker.Run},
		{name: "sampler", run: r.sampler.Run},
	}
}

// ui runs the console until the operator quits.
func (r *remote) ui(lines <-chan string) task {
	return task{name: "console", final: true, run: func(ctx context.Context) error {
		model := console.NewModel(r.board, r.cfg, r.tracker, r.sampler.Samples(), lines)
		p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))
		if _, err := p.Run(); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	}}
}

// script presses the keys in path, or stdin when path is empty, and keeps
// the remote running afterwards.
func (r *remote) script(path string) task {
	return task{name: "script", run: func(ctx context.Context) error {
		in := os.Stdin
		if path != "" {
			f, err := os.Open(path)
			if err != nil {
				return err
			}
			defer f.Close()
			in = f
		}
		if err := console.Feed(ctx, in, r.board); err != nil {
			return err
		}
		<-ctx.Done()
		return nil
	}}
}

// robot is the robot's discovery, dispatch and monitoring side. Its
// heartbeat LED is the monitor's led field.
type robot struct {
	lib        *motion.Library
	dispatcher *dispatch.Dispatcher
	scanner    *link.Scanner
	monitor    *monitor.Server
	blinker    *status.Blinker
	log        *zap.Logger
}

func newRobot(cfg *config.Config, central link.Central, tracker *link.Tracker, act motion.Actuator, log *zap.Logger) (*robot, error) {
	routines, err := motion.Embedded()
	if err != nil {
		return nil, fmt.Errorf("load routines: %w", err)
	}
	lib, err := motion.NewLibrary(act, log, routines...)
	if err != nil {
		return nil, err
	}
	mon := monitor.New(tracker, log)
	d := dispatch.New(lib, cfg.Dispatch(), mon, log)
	return &robot{
		lib:        lib,
		dispatcher: d,
		scanner:    link.NewScanner(central, d, tracker, cfg.Scanner(), log),
		monitor:    mon,
		blinker:    status.NewBlinker(mon, tracker),
		log:        log,
	}, nil
}

func (r *robot) tasks(monitorAddr string) []task {
	tasks := []task{
		{name: "scanner", run: r.scanner.Run},
		{name: "blinker", run: r.blinker.Run},
	}
	if monitorAddr != "" {
		tasks = append(tasks,
			task{name: "monitor", run: func(ctx context.Context) error { return r.monitor.ListenAndServe(ctx, monitorAddr) }},
			task{name: "follow", run: r.monitor.Follow},
		)
	}
	return tasks
}

// dropSession closes the live session, if any.
func (r *robot) dropSession() {
	if s := r.scanner.Session(); s != nil {
		s.Close()
	}
}

// rest moves the hand to its neutral pose before the link comes up.
func (r *robot) rest(ctx context.Context) {
	if err := r.lib.Invoke(ctx, "straight_fingers"); err != nil {
		r.log.Warn("rest pose", zap.Error(err))
	}
}

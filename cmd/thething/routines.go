package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"go.uber.org/zap"

	"github.com/gwillem/thething/pkg/command"
	"github.com/gwillem/thething/pkg/motion"
)

var (
	headerStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	subHeaderStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("14"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	cellStyle      = lipgloss.NewStyle().Padding(0, 1)
)

type RoutinesCommand struct {
	Play   string `long:"play" description:"Play the named routine on the hand"`
	DryRun bool   `long:"dry-run" description:"Log joint writes instead of driving the servos"`
	Angles bool   `long:"angles" description:"Read and print the hand's joint angles"`
	Dir    string `long:"dir" description:"Also load routines from this directory (.json, .yaml)"`
}

func (c *RoutinesCommand) Execute(args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	log, err := newLogger(cfg, nil)
	if err != nil {
		return err
	}
	defer log.Sync()

	routines, err := motion.Embedded()
	if err != nil {
		return err
	}
	if c.Dir != "" {
		extra, err := motion.LoadDir(os.DirFS(c.Dir), ".")
		if err != nil {
			return err
		}
		routines = append(routines, extra...)
	}

	if c.Play == "" && !c.Angles {
		lib, err := motion.NewLibrary(nil, log, routines...)
		if err != nil {
			return err
		}
		fmt.Println(routineTable(lib))
		return nil
	}

	ctx, stop := signalContext()
	defer stop()

	if c.Angles {
		return c.printAngles(ctx, cfg.Hand.Port, cfg.Hand.BaudRate, cfg.Hand.Calibration, log)
	}

	act, closeHand, err := openActuator(ctx, cfg.Hand.Port, cfg.Hand.BaudRate, cfg.Hand.Calibration, c.DryRun, log)
	if err != nil {
		return err
	}
	defer closeHand()

	lib, err := motion.NewLibrary(act, log, routines...)
	if err != nil {
		return err
	}
	d, err := lib.Duration(c.Play)
	if err != nil {
		return err
	}
	fmt.Printf("Playing %s (%s)...\n", headerStyle.Render(c.Play), d)
	start := time.Now()
	if err := lib.Invoke(ctx, c.Play); err != nil {
		return err
	}
	fmt.Println(successStyle.Render(fmt.Sprintf("Done in %s", time.Since(start).Round(time.Millisecond))))
	return nil
}

// routineTable lists every routine with the command that triggers it.
func routineTable(lib *motion.Library) string {
	triggers := make(map[string]string)
	for _, c := range command.All() {
		r, _ := c.Routine()
		triggers[r] = c.String()
	}

	rows := make([][]string, 0, len(lib.Names()))
	for _, name := range lib.Names() {
		r, _ := lib.Get(name)
		d, _ := lib.Duration(name)
		rows = append(rows, []string{name, triggers[name], fmt.Sprintf("%d", len(r.Steps)), d.String(), r.Description})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Routine", "Key", "Steps", "Duration", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			if col == 0 {
				return subHeaderStyle.Padding(0, 1)
			}
			return cellStyle
		})
	return t.Render()
}

func (c *RoutinesCommand) printAngles(ctx context.Context, port string, baud int, cal motion.Calibration, log *zap.Logger) error {
	if port == "" {
		return fmt.Errorf("hand not configured. Run 'thething setup' first")
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
		return err
	}
	defer hand.Close()

	angles, err := hand.Angles(ctx)
	if err != nil {
		return err
	}
	rows := make([][]string, 0, len(angles))
	for _, j := range motion.AllJoints() {
		a, ok := angles[j]
		if !ok {
			continue
		}
		rows = append(rows, []string{string(j), fmt.Sprintf("%d", cal[j].ID), fmt.Sprintf("%.1f", a)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "ID", "Angle").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	return nil
}

package main

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/hipsterbrown/feetech-servo/feetech"
	"go.bug.st/serial"

	"github.com/gwillem/thething/pkg/config"
	"github.com/gwillem/thething/pkg/motion"
)

type SetupCommand struct {
	Port     string `long:"port" description:"Use this serial port instead of scanning"`
	BaudRate int    `long:"baud" default:"1000000" description:"Servo bus baud rate"`
}

func (c *SetupCommand) Execute(args []string) error {
	fmt.Println(headerStyle.Render("TheThing Setup"))
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━"))
	fmt.Println()

	cfg, err := config.LoadOrDefault(opts.Config)
	if err != nil {
		return err
	}
	if !cfg.Hand.IsCalibrated() {
		cfg.Hand.Calibration = motion.DefaultCalibration()
	}
	cfg.Hand.BaudRate = c.BaudRate

	// Step 1: find the servo bus
	port := c.Port
	if port == "" {
		port, err = c.pickPort(cfg.Hand.Calibration)
		if err != nil {
			return err
		}
	}
	cfg.Hand.Port = port

	if err := cfg.Save(opts.Config); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	// Step 2: optionally record joint ranges
	record := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Record the range of every joint now?").
				Description("Without it each servo uses the default range 1024-3072").
				Affirmative("Record").
				Negative("Skip").
				Value(&record),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		return nil
	}
	if record {
		fmt.Println()
		fmt.Println(subHeaderStyle.Render("━━━ Calibrating Hand ━━━"))
		fmt.Println()
		cal, err := c.recordRanges(port, cfg.Hand.Calibration)
		if err != nil {
			return err
		}
		cfg.Hand.Calibration = cal
		if err := cfg.Save(opts.Config); err != nil {
			return fmt.Errorf("save config: %w", err)
		}
	}

	fmt.Println()
	fmt.Println(dimStyle.Render("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"))
	fmt.Println(successStyle.Render("Setup complete!"))
	fmt.Printf("Configuration saved to %s\n", opts.Config)
	fmt.Println()
	fmt.Println("Start the robot with: " + headerStyle.Render("thething robot"))
	return nil
}

type busInfo struct {
	port   string
	servos []feetech.FoundServo
}

func (b busInfo) ids() []int {
	ids := make([]int, 0, len(b.servos))
	for _, s := range b.servos {
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)
	return ids
}

func (c *SetupCommand) pickPort(cal motion.Calibration) (string, error) {
	fmt.Println("Scanning serial ports for servo buses...")
	fmt.Println()

	want := cal.IDs()
	buses := findBuses(slices.Min(want), slices.Max(want), c.BaudRate)
	if len(buses) == 0 {
		return "", fmt.Errorf("no servo bus found; make sure the hand is connected and powered on")
	}

	rows := make([][]string, 0, len(buses))
	for _, b := range buses {
		missing := missingIDs(want, b.ids())
		rows = append(rows, []string{b.port, fmt.Sprintf("%d/%d", len(b.servos), len(want)), formatIDs(missing)})
	}
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Port", "Servos", "Missing IDs").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
	fmt.Println(t.Render())
	fmt.Println()

	if len(buses) == 1 {
		fmt.Printf("Using %s\n", buses[0].port)
		return buses[0].port, nil
	}

	options := make([]huh.Option[int], 0, len(buses))
	for i, b := range buses {
		options = append(options, huh.NewOption(fmt.Sprintf("%s (%d servos)", b.port, len(b.servos)), i))
	}
	for {
		var pick int
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewSelect[int]().
					Title("Which port is the hand on?").
					Description("The wrist wiggles to confirm").
					Options(options...).
					Value(&pick),
			),
		)
		if err := form.Run(); err != nil {
			return "", err
		}
		if confirmWithWiggle(buses[pick], c.BaudRate, cal[motion.Wrist].ID) {
			return buses[pick].port, nil
		}
	}
}

func findBuses(lo, hi, baud int) []busInfo {
	ports, err := serial.GetPortsList()
	if err != nil {
		fmt.Printf("Error listing ports: %v\n", err)
		return nil
	}

	var buses []busInfo
	for _, port := range ports {
		// Skip Bluetooth ports on macOS
		if strings.Contains(port, "Bluetooth") {
			continue
		}

		bus, err := openBus(port, baud)
		if err != nil {
			continue
		}
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		servos, err := bus.Scan(ctx, lo, hi)
		cancel()
		bus.Close()

		if err != nil || len(servos) == 0 {
			continue
		}
		fmt.Printf("  Found %d servo(s) on %s\n", len(servos), port)
		buses = append(buses, busInfo{port: port, servos: servos})
	}
	return buses
}

func openBus(port string, baud int) (*feetech.Bus, error) {
	return feetech.NewBus(feetech.BusConfig{
		Port:     port,
		BaudRate: baud,
		Protocol: feetech.ProtocolSTS,
		Timeout:  100 * time.Millisecond,
	})
}

func missingIDs(want, have []int) []int {
	var missing []int
	for _, id := range want {
		if !slices.Contains(have, id) {
			missing = append(missing, id)
		}
	}
	return missing
}

func formatIDs(ids []int) string {
	if len(ids) == 0 {
		return "-"
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprintf("%d", id)
	}
	return strings.Join(parts, ",")
}

// confirmWithWiggle nudges the wrist servo and asks whether it moved.
func confirmWithWiggle(b busInfo, baud, wristID int) bool {
	idx := slices.IndexFunc(b.servos, func(s feetech.FoundServo) bool { return s.ID == wristID })
	if idx < 0 {
		fmt.Printf("  No wrist servo (id %d) on %s\n", wristID, b.port)
		return false
	}
	port := b.port
	bus, err := openBus(port, baud)
	if err != nil {
		fmt.Printf("  Error opening %s: %v\n", port, err)
		return false
	}
	defer bus.Close()

	ctx := context.Background()
	servo := feetech.NewServo(bus, wristID, b.servos[idx].Model)
	originalPos, err := servo.Position(ctx)
	if err != nil {
		fmt.Printf("  Error reading wrist: %v\n", err)
		return false
	}
	if err := servo.Enable(ctx); err != nil {
		fmt.Printf("  Error enabling wrist: %v\n", err)
		return false
	}

	fmt.Printf("\n  Wiggling wrist on %s...\n", port)

	wiggleAmount := 60
	moveTimeMs := 400
	for _, pos := range []int{originalPos + wiggleAmount, originalPos - wiggleAmount, originalPos} {
		servo.SetPositionWithTime(ctx, pos, moveTimeMs)
		time.Sleep(time.Duration(moveTimeMs+100) * time.Millisecond)
	}
	servo.Disable(ctx)

	moved := false
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title("Did the wrist move?").
				Value(&moved),
		),
	)
	if err := form.Run(); err != nil {
		fmt.Println()
		os.Exit(0)
	}
	return moved
}

// recordRanges lets the operator move every joint through its range while
// the min and max raw positions are tracked.
func (c *SetupCommand) recordRanges(port string, cal motion.Calibration) (motion.Calibration, error) {
	bus, err := openBus(port, c.BaudRate)
	if err != nil {
		return nil, fmt.Errorf("open bus: %w", err)
	}
	defer bus.Close()

	group := feetech.NewServoGroupByIDs(bus, cal.IDs()...)
	ctx := context.Background()
	group.DisableAll(ctx)

	fmt.Println(subHeaderStyle.Render("Record range of motion"))
	fmt.Println("Bend and straighten every finger joint, then turn the wrist both ways.")
	fmt.Println()

	joints := motion.AllJoints()
	model := newCalibrationModel(joints, cal, group)
	if raw, err := group.Positions(ctx); err == nil {
		model.observe(raw)
	}

	p := tea.NewProgram(model)
	finalModel, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("run calibration: %w", err)
	}
	cm := finalModel.(calibrationModel)

	out := make(motion.Calibration, len(cal))
	for j, jc := range cal {
		if r, ok := cm.ranges[j]; ok && r.max > r.min {
			jc.RangeMin, jc.RangeMax = r.min, r.max
		}
		out[j] = jc
	}
	fmt.Println("Hand calibrated.")
	return out, out.Validate()
}

type jointRange struct {
	cur, min, max int
}

// Calibration TUI model
type calibrationModel struct {
	joints   []motion.Joint
	cal      motion.Calibration
	group    *feetech.ServoGroup
	ranges   map[motion.Joint]jointRange
	quitting bool
}

type tickMsg time.Time

func newCalibrationModel(joints []motion.Joint, cal motion.Calibration, group *feetech.ServoGroup) calibrationModel {
	return calibrationModel{
		joints: joints,
		cal:    cal,
		group:  group,
		ranges: make(map[motion.Joint]jointRange),
	}
}

// observe folds raw positions keyed by servo ID into the tracked ranges.
func (m calibrationModel) observe(raw feetech.PositionMap) {
	for id, pos := range raw {
		j, _, ok := m.cal.ByID(id)
		if !ok {
			continue
		}
		r, seen := m.ranges[j]
		if !seen {
			r = jointRange{cur: pos, min: pos, max: pos}
		}
		r.cur = pos
		r.min = min(r.min, pos)
		r.max = max(r.max, pos)
		m.ranges[j] = r
	}
}

func calibrationTick() tea.Cmd {
	return tea.Tick(100*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m calibrationModel) Init() tea.Cmd {
	return calibrationTick()
}

func (m calibrationModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}

	case tickMsg:
		if raw, err := m.group.Positions(context.Background()); err == nil {
			m.observe(raw)
		}
		return m, calibrationTick()
	}

	return m, nil
}

func (m calibrationModel) View() string {
	if m.quitting {
		return ""
	}

	var sb strings.Builder

	tableHeaderStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12")).Padding(0, 1)
	tableJointStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("14")).Padding(0, 1)
	tableCurrentStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Padding(0, 1)
	tableRangeGoodStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Padding(0, 1)
	tableRangeLowStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Padding(0, 1)

	rows := make([][]string, 0, len(m.joints))
	spans := make([]int, 0, len(m.joints))
	for _, j := range m.joints {
		r := m.ranges[j]
		span := r.max - r.min
		spans = append(spans, span)
		rows = append(rows, []string{
			string(j),
			fmt.Sprintf("%d", m.cal[j].ID),
			fmt.Sprintf("%d", r.cur),
			fmt.Sprintf("%d", r.min),
			fmt.Sprintf("%d", r.max),
			fmt.Sprintf("%d", span),
		})
	}

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(dimStyle).
		Headers("Joint", "ID", "Current", "Min", "Max", "Range").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return tableHeaderStyle
			}
			switch col {
			case 0:
				return tableJointStyle
			case 2:
				return tableCurrentStyle
			case 5:
				if row >= 0 && row < len(spans) && spans[row] > 500 {
					return tableRangeGoodStyle
				}
				return tableRangeLowStyle
			default:
				return cellStyle
			}
		})

	sb.WriteString(t.Render())
	sb.WriteString("\n\n")
	sb.WriteString(dimStyle.Render("Press Enter when done"))

	return sb.String()
}

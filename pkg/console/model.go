package console

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/NimbleMarkets/ntcharts/canvas/runes"
	"github.com/NimbleMarkets/ntcharts/linechart/streamlinechart"

	"github.com/gwillem/thething/pkg/link"
	"github.com/gwillem/thething/pkg/sampler"
)

const (
	headerHeight = 6 // title, display, buttons, sending, blanks
	legendHeight = 2
	footerHeight = 7 // log box height
	maxLogs      = 5
	borderSize   = 2
	refresh      = 50 * time.Millisecond
)

var axisNames = [3]string{"axis1", "axis2", "axis3"}

var axisColors = [3]string{"196", "46", "51"}

// Button colors follow the caps on the remote.
var buttonColors = map[string]string{
	"green":  "46",
	"red":    "196",
	"blue":   "33",
	"yellow": "226",
	"white":  "255",
	"black":  "244",
}

var (
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	chartStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("240"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	displayStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1)
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("238"))
)

// Model is the bubbletea model of the remote.
type Model struct {
	board   *Board
	cfg     sampler.Config
	state   link.StateReader
	samples <-chan sampler.Sample
	lines   <-chan string

	chart    *streamlinechart.Model
	width    int
	height   int
	logs     []string
	last     sampler.Sample
	lastAxes [3]uint16
	quitting bool
}

type sampleMsg sampler.Sample
type logMsg string
type tickMsg time.Time

// NewModel builds the view. samples and lines may be nil.
func NewModel(board *Board, cfg sampler.Config, state link.StateReader, samples <-chan sampler.Sample, lines <-chan string) Model {
	chart := streamlinechart.New(80, 12,
		streamlinechart.WithYRange(-100, 100),
	)
	for i, name := range axisNames {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[i]))
		chart.SetDataSetStyles(name, runes.ThinLineStyle, style)
	}
	return Model{
		board:    board,
		cfg:      cfg,
		state:    state,
		samples:  samples,
		lines:    lines,
		chart:    &chart,
		lastAxes: [3]uint16{center, center, center},
	}
}

func waitForSample(ch <-chan sampler.Sample) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		s, ok := <-ch
		if !ok {
			return nil
		}
		return sampleMsg(s)
	}
}

func waitForLog(ch <-chan string) tea.Cmd {
	if ch == nil {
		return nil
	}
	return func() tea.Msg {
		l, ok := <-ch
		if !ok {
			return nil
		}
		return logMsg(l)
	}
}

func tick() tea.Cmd {
	return tea.Tick(refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		waitForSample(m.samples),
		waitForLog(m.lines),
		tick(),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resizeChart()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit
		}
		m.board.Press(msg.String())
		return m, nil

	case sampleMsg:
		m.last = sampler.Sample(msg)
		axes := m.last.Reading.Axes
		if axes != m.lastAxes {
			for i, v := range axes {
				m.chart.PushDataSet(axisNames[i], scaleAxis(v))
			}
			m.chart.DrawAll()
			m.lastAxes = axes
		}
		return m, waitForSample(m.samples)

	case logMsg:
		m.addLog(string(msg))
		return m, waitForLog(m.lines)

	case tickMsg:
		return m, tick()
	}
	return m, nil
}

func (m *Model) addLog(msg string) {
	m.logs = append(m.logs, strings.TrimRight(msg, "\n"))
	if len(m.logs) > maxLogs {
		m.logs = m.logs[len(m.logs)-maxLogs:]
	}
}

// scaleAxis maps a raw stick reading to -100..100.
func scaleAxis(v uint16) float64 {
	return (float64(v) - center) / center * 100
}

func (m *Model) chartSize() (width, height int) {
	if m.width == 0 || m.height == 0 {
		return 80, 12
	}
	width = max(m.width-borderSize-2, 40)
	height = max(m.height-headerHeight-legendHeight-footerHeight-borderSize, 6)
	return width, height
}

func (m *Model) resizeChart() {
	w, h := m.chartSize()
	m.chart.Resize(w, h)
}

func (m Model) View() string {
	if m.quitting {
		return "Remote stopped.\n"
	}

	var sb strings.Builder

	sb.WriteString(titleStyle.Render("TheThing Remote"))
	sb.WriteString("  " + m.renderState())
	sb.WriteString("\n")

	text := m.board.Text()
	if text == "" {
		text = " "
	}
	sb.WriteString(displayStyle.Render(text))
	sb.WriteString("\n")

	sb.WriteString(m.renderButtons())
	sb.WriteString("\n")
	sb.WriteString(m.renderSending())
	sb.WriteString("\n\n")

	sb.WriteString(chartStyle.Render(m.chart.View()))
	sb.WriteString("\n")
	sb.WriteString(renderLegend())
	sb.WriteString("\n")

	logStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240")).
		Width(max(m.width-4, 20))

	var logLines string
	if len(m.logs) == 0 {
		logLines = statusStyle.Render("keys: g r b y w k buttons, arrows and pgup/pgdown sticks, space centers, q quits")
	} else {
		logLines = strings.Join(m.logs, "\n")
	}
	sb.WriteString(logStyle.Render(logLines))
	sb.WriteString("\n")

	return sb.String()
}

func (m Model) renderState() string {
	dot := dimStyle.Render("●")
	if m.board.LED() {
		dot = lipgloss.NewStyle().Foreground(lipgloss.Color("46")).Render("●")
	}
	state := link.StateIdle
	if m.state != nil {
		state = m.state.State()
	}
	return dot + " " + statusStyle.Render(state.String())
}

func (m Model) renderButtons() string {
	items := make([]string, 0, len(m.cfg.Buttons))
	for _, b := range m.cfg.Buttons {
		label := fmt.Sprintf("[%s] %s", b.Command, b.Name)
		if m.board.Output(b.LED) {
			color := buttonColors[b.Name]
			if color == "" {
				color = "15"
			}
			items = append(items, lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(color)).Render(label))
		} else {
			items = append(items, dimStyle.Render(label))
		}
	}
	return strings.Join(items, "  ")
}

func (m Model) renderSending() string {
	r := m.last.Rule
	if r.Name == "" {
		return statusStyle.Render("sending: -")
	}
	s := fmt.Sprintf("sending: %s", r.Command)
	if r.Label != "" {
		s += " (" + r.Label + ")"
	}
	if !m.last.Published {
		s += " not published"
	}
	return statusStyle.Render(s)
}

func renderLegend() string {
	var items []string
	for i, name := range axisNames {
		style := lipgloss.NewStyle().Foreground(lipgloss.Color(axisColors[i])).Bold(true)
		items = append(items, style.Render("━━")+" "+name)
	}
	return strings.Join(items, "  ")
}

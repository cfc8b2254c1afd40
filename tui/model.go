package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"go-sloth/config"
	"go-sloth/host"
	"go-sloth/midi"
	"go-sloth/theme"
	"go-sloth/widgets"
)

const (
	histBins   = 48
	histHeight = 6
	barWidth   = 32
)

var keyHelp = []widgets.KeySection{
	{Keys: []widgets.KeyBinding{
		{Key: "↑/+ ↓/-", Desc: "variance ±1 ms"},
		{Key: "] [", Desc: "variance ±0.1 ms"},
		{Key: "r", Desc: "reset histogram"},
		{Key: "s", Desc: "save config"},
		{Key: "q", Desc: "quit"},
	}},
}

type Model struct {
	Engine    *host.Engine
	DeviceMgr *midi.DeviceManager // nil when running without ports
	Store     *config.Store
	Config    *config.Config
	Theme     *theme.Theme

	hist     *widgets.Histogram
	inPort   string
	outPort  string
	status   string
	quitting bool
}

type UpdateMsg struct{}

type DeviceEventMsg midi.DeviceEvent

func NewModel(engine *host.Engine, deviceMgr *midi.DeviceManager, store *config.Store, cfg *config.Config, th *theme.Theme) Model {
	return Model{
		Engine:    engine,
		DeviceMgr: deviceMgr,
		Store:     store,
		Config:    cfg,
		Theme:     th,
		hist:      widgets.NewHistogram(histBins, 4*engine.Variance().Get()),
	}
}

func ListenForUpdates(engine *host.Engine) tea.Cmd {
	return func() tea.Msg {
		<-engine.UpdateChan
		return UpdateMsg{}
	}
}

func ListenForDevices(deviceMgr *midi.DeviceManager) tea.Cmd {
	if deviceMgr == nil {
		return nil
	}
	return func() tea.Msg {
		event, ok := <-deviceMgr.Events()
		if !ok {
			return nil
		}
		return DeviceEventMsg(event)
	}
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(
		ListenForUpdates(m.Engine),
		ListenForDevices(m.DeviceMgr),
	)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		v := m.Engine.Variance()
		switch msg.String() {
		case "q", "ctrl+c":
			m.quitting = true
			return m, tea.Quit

		case "up", "+", "=":
			v.Add(0.001)
			m.rescale()
		case "down", "-", "_":
			v.Add(-0.001)
			m.rescale()
		case "]":
			v.Add(0.0001)
			m.rescale()
		case "[":
			v.Add(-0.0001)
			m.rescale()

		case "r":
			m.hist.Reset(4 * v.Get())
			m.status = ""

		case "s":
			m.status = m.save()
		}

	case UpdateMsg:
		m.collectDelays()
		return m, ListenForUpdates(m.Engine)

	case DeviceEventMsg:
		event := midi.DeviceEvent(msg)
		name := event.Name
		if event.Type == midi.DeviceDisconnected {
			name = ""
		}
		if event.Dir == midi.DirIn {
			m.inPort = name
		} else {
			m.outPort = name
		}
		return m, ListenForDevices(m.DeviceMgr)
	}

	return m, nil
}

// rescale restarts the histogram at 4σ once the variance has moved more
// than a factor of two from the one its span was sized for
func (m Model) rescale() {
	span := 4 * m.Engine.Variance().Get()
	if span > 2*m.hist.Span() || span < m.hist.Span()/2 {
		m.hist.Reset(span)
	}
}

// collectDelays moves whatever the engine published into the histogram
func (m Model) collectDelays() {
	m.rescale()
	for {
		select {
		case d := <-m.Engine.Delays():
			m.hist.Add(d)
		default:
			return
		}
	}
}

func (m Model) save() string {
	if m.Store == nil || m.Config == nil {
		return "no config store"
	}
	m.Config.Humanize.VarianceMs = m.Engine.Variance().Get() * 1000
	if err := m.Store.Save(m.Config); err != nil {
		return fmt.Sprintf("save failed: %v", err)
	}
	return "saved " + m.Store.Path()
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	v := m.Engine.Variance()
	st := m.Engine.Stats()

	headerStyle := lipgloss.NewStyle().Foreground(m.Theme.Accent())
	dimStyle := lipgloss.NewStyle().Foreground(m.Theme.Muted())
	valueStyle := lipgloss.NewStyle().Foreground(m.Theme.FG())
	activeStyle := lipgloss.NewStyle().Foreground(m.Theme.Active())
	warnStyle := lipgloss.NewStyle().Foreground(m.Theme.Warning())

	header := headerStyle.Render(fmt.Sprintf("go-sloth  %s %s", v.Name(), v.Text()))
	bar := activeStyle.Render(widgets.RenderBar(v.Normalized(), barWidth, m.Theme.Symbols.BarFull, m.Theme.Symbols.BarEmpty))
	scale := dimStyle.Render(fmt.Sprintf("0 … %.0f ms", v.Max()*1000))

	ports := dimStyle.Render(fmt.Sprintf("in: %s  out: %s", orNone(m.inPort), orNone(m.outPort)))

	counters := valueStyle.Render(fmt.Sprintf(
		"in %d  delayed %d  passed %d  released %d  pending %d  sent %d",
		st.Submitted, st.Delayed, st.Passed, st.Released, st.Pending, st.Sent,
	))

	var problems []string
	if st.Overflowed > 0 {
		problems = append(problems, fmt.Sprintf("overflow %d", st.Overflowed))
	}
	if st.OutDropped > 0 {
		problems = append(problems, fmt.Sprintf("out dropped %d", st.OutDropped))
	}
	if st.SendErrors > 0 {
		problems = append(problems, fmt.Sprintf("send errors %d", st.SendErrors))
	}
	if m.DeviceMgr != nil {
		if n := m.DeviceMgr.Dropped(); n > 0 {
			problems = append(problems, fmt.Sprintf("in dropped %d", n))
		}
	}
	if st.LateBlocks > 0 {
		problems = append(problems, fmt.Sprintf("late blocks %d", st.LateBlocks))
	}

	histTitle := dimStyle.Render(fmt.Sprintf("recent delays: %d  mean %.2f ms  max %.2f ms",
		m.hist.Count(), m.hist.Mean()*1000, m.hist.Max()*1000))

	var out strings.Builder
	out.WriteString("\n")
	out.WriteString(header)
	out.WriteString("\n")
	out.WriteString(bar + " " + scale)
	out.WriteString("\n")
	out.WriteString(ports)
	out.WriteString("\n\n")
	out.WriteString(counters)
	if len(problems) > 0 {
		out.WriteString("\n")
		out.WriteString(warnStyle.Render(strings.Join(problems, "  ")))
	}
	out.WriteString("\n\n")
	out.WriteString(histTitle)
	out.WriteString("\n")
	out.WriteString(m.hist.View(m.Theme, histHeight, v.Get()))
	out.WriteString("\n\n")
	out.WriteString(dimStyle.Render(widgets.RenderKeyHelp(keyHelp)))

	if m.status != "" {
		out.WriteString("\n")
		out.WriteString(valueStyle.Render(m.status))
	}

	return out.String()
}

func orNone(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

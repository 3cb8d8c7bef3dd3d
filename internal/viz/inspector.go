package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/stagesim/internal/integrators"
	"github.com/san-kum/stagesim/internal/physics"
	"github.com/san-kum/stagesim/internal/stage"
	"github.com/san-kum/stagesim/internal/state"
	"github.com/san-kum/stagesim/internal/system"
)

const historyCapacity = 200

// Inspector is a bubbletea model for walking a state through its stages by
// hand: realize one stage at a time, invalidate, take integrator steps and
// nudge Q to watch what gets retracted.
type Inspector struct {
	sys   *system.System
	st    *state.State
	integ integrators.Integrator
	dt    float64

	styles   Styles
	theme    int
	showDump bool
	nudge    float64

	energy        []float64
	steps         int
	status        string
	err           error
	width, height int
}

func NewInspector(sys *system.System, st *state.State, integ integrators.Integrator, dt float64) Inspector {
	return Inspector{
		sys:    sys,
		st:     st,
		integ:  integ,
		dt:     dt,
		styles: NewStyles(Themes[0]),
		nudge:  0.05,
		width:  80,
		height: 24,
	}
}

func (m Inspector) Init() tea.Cmd { return nil }

func (m Inspector) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Inspector) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	m.err = nil
	switch msg.String() {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "right", "l", "n":
		m.realize(m.st.SystemStage().Next())
	case "left", "h", "i":
		at := m.st.SystemStage()
		if at == stage.Empty {
			m.status = "already empty"
			break
		}
		m.sys.Invalidate(m.st, at)
		m.status = fmt.Sprintf("invalidated %s", at)
	case "r":
		m.realize(stage.Report)
	case "s", " ":
		m.step()
	case "p":
		m.perturb(m.nudge)
	case "P":
		m.perturb(-m.nudge)
	case "d":
		m.showDump = !m.showDump
	case "t":
		m.theme = (m.theme + 1) % len(Themes)
		m.styles = NewStyles(Themes[m.theme])
		m.status = "theme " + Themes[m.theme].Name
	}
	return m, nil
}

// realize runs a system realization, turning contract violations into an
// error shown on screen.
func (m *Inspector) realize(g stage.Stage) {
	var err error
	if cerr := state.Catch(func() { err = m.sys.Realize(m.st, g) }); cerr != nil {
		err = cerr
	}
	if err != nil {
		m.err = err
		return
	}
	m.status = fmt.Sprintf("realized %s", m.st.SystemStage())
	m.record()
}

func (m *Inspector) step() {
	if m.st.SystemStage() < stage.Model {
		m.realize(stage.Model)
		if m.err != nil {
			return
		}
	}
	var err error
	if cerr := state.Catch(func() { err = m.integ.Step(m.sys, m.st, m.dt) }); cerr != nil {
		err = cerr
	}
	if err != nil {
		m.err = err
		return
	}
	m.steps++
	m.realize(stage.Report)
	if m.err == nil {
		m.status = fmt.Sprintf("step %d, t=%.3f", m.steps, m.st.Time())
	}
}

func (m *Inspector) perturb(dq float64) {
	if m.st.SystemStage() < stage.Model || m.st.NQ() == 0 {
		m.status = "nothing to perturb"
		return
	}
	m.st.UpdQ()[0] += dq
	m.status = fmt.Sprintf("q0 %+g, back to %s", dq, m.st.SystemStage())
}

func (m *Inspector) record() {
	if m.st.SystemStage() < stage.Report {
		return
	}
	m.energy = append(m.energy, physics.TotalEnergy(m.sys, m.st.View()))
	if len(m.energy) > historyCapacity {
		m.energy = m.energy[len(m.energy)-historyCapacity:]
	}
}

func (m Inspector) View() string {
	st := m.styles
	v := m.st.View()

	var left strings.Builder
	left.WriteString(st.Title.Render("stagesim inspector") + "  " + st.Label.Render(m.sys.Name()))
	left.WriteString("\n\n")
	left.WriteString(StageTable(v, st))

	if v.SystemStage() >= stage.Model {
		left.WriteString("\n")
		left.WriteString(st.Label.Render("t ") + st.Value.Render(fmt.Sprintf("%.4f", v.Time())))
		left.WriteString(st.Label.Render("   y ") + st.Value.Render(clip(v.Y().String(), 48)))
		left.WriteString("\n")
	}
	if len(m.energy) > 1 {
		left.WriteString("\n")
		left.WriteString(asciigraph.Plot(m.energy, asciigraph.Height(4), asciigraph.Width(40), asciigraph.Caption("energy")))
		left.WriteString("\n")
	}

	var right string
	if v.SystemStage() >= stage.Position {
		if c, err := Scene(m.sys, v, 30, 12); err == nil {
			right = st.Panel.Render(c.String())
		}
	}
	body := lipgloss.JoinHorizontal(lipgloss.Top, left.String(), "  ", right)

	var b strings.Builder
	b.WriteString(body)
	b.WriteString("\n")
	if m.showDump {
		b.WriteString(StateDump(v, st))
		b.WriteString("\n")
	}
	if m.err != nil {
		b.WriteString(st.ErrorMsg.Render(m.err.Error()))
	} else if m.status != "" {
		b.WriteString(st.Status.Render(m.status))
	}
	b.WriteString("\n")
	b.WriteString(st.KeyHint.Render("→ realize  ← invalidate  r report  s step  p/P nudge q0  d dump  t theme  q quit"))
	return b.String()
}

// State returns the inspected state.
func (m Inspector) State() *state.State { return m.st }

func (m Inspector) Err() error { return m.err }

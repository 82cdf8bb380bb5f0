// SPDX-License-Identifier: MIT
package tui

import (
	"fmt"
	"math"
	"strings"

	"timegrapher/internal/detector"
	"timegrapher/internal/meter"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

const (
	maxBarWidth = 60
	levelCells  = 20
)

var quitKeys = key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"))

// Measurer runs measurement sessions. *meter.Meter satisfies it.
type Measurer interface {
	Start(cb meter.Callbacks) error
	Stop() error
}

type progressMsg meter.Progress

type resultMsg detector.Result

type errMsg struct {
	err error
}

// MeasureModel renders one running session: phase, countdown, input level and
// live statistics. It quits when the result arrives.
type MeasureModel struct {
	title          string
	sessionSeconds float64
	threshold      float64

	bar      progress.Model
	last     meter.Progress
	started  bool
	result   *detector.Result
	err      error
	canceled bool
}

// NewMeasureModel creates the view for a session of the given length. The
// threshold scales the level meter.
func NewMeasureModel(title string, sessionSeconds, threshold float64) MeasureModel {
	return MeasureModel{
		title:          title,
		sessionSeconds: sessionSeconds,
		threshold:      threshold,
		bar:            progress.New(progress.WithDefaultGradient(), progress.WithWidth(maxBarWidth)),
	}
}

// Init implements tea.Model.
func (m MeasureModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m MeasureModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.bar.Width = min(msg.Width-4, maxBarWidth)

	case tea.KeyMsg:
		if key.Matches(msg, quitKeys) {
			m.canceled = true
			return m, tea.Quit
		}

	case progressMsg:
		m.last = meter.Progress(msg)
		m.started = true

	case resultMsg:
		r := detector.Result(msg)
		m.result = &r
		return m, tea.Quit

	case errMsg:
		m.err = msg.err
		return m, tea.Quit
	}

	return m, nil
}

// Result returns the session result once it has arrived.
func (m MeasureModel) Result() (detector.Result, bool) {
	if m.result == nil {
		return detector.Result{}, false
	}
	return *m.result, true
}

// View implements tea.Model.
func (m MeasureModel) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render(m.title))
	sb.WriteString("\n\n")

	switch {
	case m.err != nil:
		sb.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		sb.WriteString("\n")
		return sb.String()
	case m.result != nil:
		sb.WriteString(renderResult(*m.result))
		sb.WriteString("\n")
		return sb.String()
	case !m.started:
		sb.WriteString(dimStyle.Render("Waiting for audio..."))
		sb.WriteString("\n")
		return sb.String()
	}

	p := m.last
	fmt.Fprintf(&sb, "%s  %2ds left  %d ticks\n\n", phaseBadge(p.Phase), p.SecondsRemaining, p.Ticks)

	fraction := 0.0
	if m.sessionSeconds > 0 {
		fraction = math.Min(1, p.Elapsed/m.sessionSeconds)
	}
	sb.WriteString(m.bar.ViewAs(fraction))
	sb.WriteString("\n\n")

	fmt.Fprintf(&sb, "Level %s\n\n", levelMeter(p.Level, m.threshold))

	if p.Stats != nil {
		sb.WriteString(highlightStyle.Render(p.Stats.String()))
	} else {
		sb.WriteString(dimStyle.Render("Listening for the beat..."))
	}
	sb.WriteString("\n\n")
	sb.WriteString(infoStyle.Render("q: Cancel"))
	sb.WriteString("\n")
	return sb.String()
}

func phaseBadge(p detector.Phase) string {
	color := "#FFD75F"
	switch p {
	case detector.PhaseMeasuring:
		color = "#25A065"
	case detector.PhaseFinished:
		color = "#5FAFFF"
	}
	return badgeStyle.Background(lipgloss.Color(color)).Render(p.String())
}

// levelMeter draws the block peak on a log scale where the detection threshold
// sits at the middle of the meter.
func levelMeter(level, threshold float64) string {
	filled := 0
	if level > 0 && threshold > 0 {
		// Two decades either side of the threshold.
		db := math.Log10(level / threshold)
		filled = int(math.Round((db + 2) / 4 * levelCells))
	}
	filled = max(0, min(levelCells, filled))

	bar := strings.Repeat("█", filled) + strings.Repeat("░", levelCells-filled)
	if filled > levelCells/2 {
		return highlightStyle.Render(bar)
	}
	return dimStyle.Render(bar)
}

func renderResult(r detector.Result) string {
	if r.Error != "" {
		return errorStyle.Render(r.Error) + "\n" + dimStyle.Render(fmt.Sprintf("%d ticks", r.Ticks))
	}
	return highlightStyle.Render(fmt.Sprintf("%d BPH (measured %d)", r.BPH, r.BPHActual)) + "\n" +
		fmt.Sprintf("Rate:       %+.1f s/d\n", r.Rate) +
		fmt.Sprintf("Beat error: %.1f ms\n", r.BeatError) +
		dimStyle.Render(fmt.Sprintf("%d ticks", r.Ticks))
}

// RunMeasurement starts a session on mt and shows it until the result arrives
// or the user quits. Quitting stops the session and returns meter.ErrCancelled.
func RunMeasurement(mt Measurer, model MeasureModel) (detector.Result, error) {
	p := tea.NewProgram(model)

	err := mt.Start(meter.Callbacks{
		OnProgress: func(pr meter.Progress) { p.Send(progressMsg(pr)) },
		OnResult:   func(r detector.Result) { p.Send(resultMsg(r)) },
	})
	if err != nil {
		return detector.Result{}, err
	}

	final, err := p.Run()
	if err != nil {
		mt.Stop()
		return detector.Result{}, fmt.Errorf("measurement view failed: %w", err)
	}

	if res, ok := final.(MeasureModel).Result(); ok {
		return res, nil
	}
	if err := mt.Stop(); err != nil {
		return detector.Result{}, err
	}
	return detector.Result{}, meter.ErrCancelled
}

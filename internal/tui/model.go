// Package tui renders live per-slot progress. The display loop is fully
// independent of the workers: it ticks at a fixed cadence, takes read-only
// snapshots of the slot table and never mutates worker state.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/seriesdl/seriesdl/internal/pool"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#bd93f9"))
	slotIDStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#8be9fd")).
			Width(8)
	statusStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#a9b1d6"))
	footerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#44475a"))
)

type tickMsg time.Time

// Model is the bubbletea model for the batch display.
type Model struct {
	series   string
	slots    *pool.SlotTable
	workers  *pool.WorkerPool
	total    int
	interval time.Duration
	bar      progress.Model
	quitting bool
}

// NewModel returns a display over the given slot table and pool.
func NewModel(series string, slots *pool.SlotTable, workers *pool.WorkerPool, total int, interval time.Duration) Model {
	return Model{
		series:   series,
		slots:    slots,
		workers:  workers,
		total:    total,
		interval: interval,
		bar:      progress.New(progress.WithDefaultGradient(), progress.WithWidth(30)),
	}
}

func (m Model) Init() tea.Cmd {
	return m.tick()
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			// Quit the display only. Dispatched transfers keep running in
			// the background; the caller still waits for the pool.
			m.quitting = true
			return m, tea.Quit
		}
	case tickMsg:
		if m.workers.Outstanding() == 0 {
			m.quitting = true
			return m, tea.Quit
		}
		return m, m.tick()
	}
	return m, nil
}

func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("Downloading series %q", m.series)))
	b.WriteString("\n\n")

	for i, s := range m.slots.Snapshot() {
		b.WriteString(slotIDStyle.Render(fmt.Sprintf("slot %d", i)))
		if s.Percent >= 0 {
			b.WriteString(m.bar.ViewAs(float64(s.Percent) / 100))
			b.WriteString("  ")
		}
		b.WriteString(statusStyle.Render(s.Text))
		b.WriteString("\n")
	}

	done := m.workers.Processed()
	b.WriteString("\n")
	b.WriteString(footerStyle.Render(fmt.Sprintf("%d of %d done · q to hide (downloads continue)", done, m.total)))
	b.WriteString("\n")
	return b.String()
}

// Run drives the display until all work concludes or the user interrupts.
func Run(m Model) error {
	p := tea.NewProgram(m)
	_, err := p.Run()
	return err
}

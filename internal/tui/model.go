// Package tui is a terminal front end for a Pipeline.
package tui

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/shpitdev/prospect-pipeline/internal/export"
	"github.com/shpitdev/prospect-pipeline/internal/lead"
	"github.com/shpitdev/prospect-pipeline/internal/pipeline"
)

const maxSourcesShown = 8

// Messages
type snapshotMsg pipeline.Snapshot

type exportedMsg struct {
	Path string
	Err  error
}

// Model is the root bubbletea model.
type Model struct {
	pipeline  *pipeline.Pipeline
	exportDir string

	updates     <-chan pipeline.Snapshot
	unsubscribe func()

	input   textinput.Model
	spinner spinner.Model
	table   table.Model

	snap   pipeline.Snapshot
	notice string
	width  int
	height int
}

// New builds a model bound to p. Exports are written to exportDir.
func New(p *pipeline.Pipeline, exportDir string) Model {
	ti := textinput.New()
	ti.Placeholder = "e.g. Marketing Agencies in London"
	ti.CharLimit = 200
	ti.Width = 60
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = stepActiveStyle

	updates, unsubscribe := p.Subscribe()

	if exportDir == "" {
		exportDir = "."
	}
	m := Model{
		pipeline:    p,
		exportDir:   exportDir,
		updates:     updates,
		unsubscribe: unsubscribe,
		input:       ti,
		spinner:     sp,
		snap:        p.Snapshot(),
	}
	m.table = newLeadTable(nil, 80)
	return m
}

func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.spinner.Tick, waitForSnapshot(m.updates))
}

func waitForSnapshot(ch <-chan pipeline.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-ch
		if !ok {
			return nil
		}
		return snapshotMsg(snap)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.table = newLeadTable(m.snap.Leads, m.width)
		return m, nil

	case snapshotMsg:
		prev := m.snap.Status
		m.snap = pipeline.Snapshot(msg)
		if m.snap.Status.Settled() && prev != m.snap.Status {
			m.table = newLeadTable(m.snap.Leads, m.width)
		}
		if m.snap.Status == pipeline.Discovery {
			m.table = newLeadTable(nil, m.width)
		}
		return m, waitForSnapshot(m.updates)

	case exportedMsg:
		if msg.Err != nil {
			m.notice = "Export failed: " + msg.Err.Error()
		} else {
			m.notice = "Exported " + msg.Path
		}
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.unsubscribe()
			return m, tea.Quit
		case "tab":
			if m.input.Focused() {
				m.input.Blur()
				m.table.Focus()
				return m, nil
			}
			m.table.Blur()
			return m, m.input.Focus()
		case "enter":
			if m.input.Focused() {
				return m.start()
			}
		case "ctrl+e":
			return m, m.exportCmd(export.FormatCSV)
		case "ctrl+x":
			return m, m.exportCmd(export.FormatXLSX)
		}
	}

	var cmd tea.Cmd
	if m.input.Focused() {
		m.input, cmd = m.input.Update(msg)
	} else {
		m.table, cmd = m.table.Update(msg)
	}
	return m, cmd
}

func (m Model) start() (tea.Model, tea.Cmd) {
	keyword := m.input.Value()
	if strings.TrimSpace(keyword) == "" {
		return m, nil
	}
	if !m.pipeline.Start(context.Background(), keyword) {
		m.notice = "A run is already in progress."
		return m, nil
	}
	m.notice = ""
	m.snap = m.pipeline.Snapshot()
	m.table = newLeadTable(nil, m.width)
	return m, nil
}

func (m Model) exportCmd(format export.Format) tea.Cmd {
	snap := m.snap
	dir := m.exportDir
	return func() tea.Msg {
		if len(snap.Leads) == 0 {
			return exportedMsg{Err: export.ErrNothingToExport}
		}
		path := filepath.Join(dir, export.Filename(snap.Keyword, format))
		f, err := os.Create(path)
		if err != nil {
			return exportedMsg{Err: err}
		}
		if err := export.Write(f, format, snap.Leads); err != nil {
			f.Close()
			return exportedMsg{Err: err}
		}
		return exportedMsg{Path: path, Err: f.Close()}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Prospector"))
	b.WriteString("\n")
	b.WriteString(m.input.View())
	b.WriteString("\n\n")
	b.WriteString(m.stepper())
	b.WriteString("\n")

	switch {
	case m.snap.Status == pipeline.Error:
		b.WriteString("\n" + errorStyle.Render(m.snap.Error) + "\n")
	case m.snap.Status == pipeline.Completed && m.snap.Malformed:
		b.WriteString("\n" + warningStyle.Render("The model answered, but its response could not be read. No leads were stored.") + "\n")
	case m.snap.Status == pipeline.Completed && len(m.snap.Leads) == 0:
		b.WriteString("\n" + mutedStyle.Render("No leads found.") + "\n")
	}

	if len(m.snap.Leads) > 0 {
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render(fmt.Sprintf("Leads (%d)", len(m.snap.Leads))))
		b.WriteString("\n")
		b.WriteString(borderStyle.Render(m.table.View()))
		b.WriteString("\n")
	}

	if len(m.snap.Sources) > 0 {
		b.WriteString("\n")
		b.WriteString(subtitleStyle.Render("Sources"))
		b.WriteString("\n")
		for i, src := range m.snap.Sources {
			if i == maxSourcesShown {
				b.WriteString(mutedStyle.Render(fmt.Sprintf("  … and %d more", len(m.snap.Sources)-maxSourcesShown)) + "\n")
				break
			}
			b.WriteString(textStyle.Render("  "+sourceLabel(src)) + mutedStyle.Render("  "+src.URI) + "\n")
		}
	}

	if m.notice != "" {
		b.WriteString("\n" + textStyle.Render(m.notice) + "\n")
	}

	help := "enter: search • tab: switch focus • esc: quit"
	if len(m.snap.Leads) > 0 {
		help = "enter: search • tab: switch focus • ctrl+e: export csv • ctrl+x: export xlsx • esc: quit"
	}
	b.WriteString(statusBarStyle.Render(help))

	return lipgloss.NewStyle().Padding(1, 2).Render(b.String())
}

var steps = []struct {
	status pipeline.Status
	label  string
}{
	{pipeline.Discovery, "Discovery"},
	{pipeline.Enriching, "Enrichment"},
	{pipeline.AiValidation, "AI Validation"},
	{pipeline.Completed, "Completed"},
}

func (m Model) stepper() string {
	if m.snap.Status == pipeline.Idle {
		return mutedStyle.Render("Enter a keyword to start prospecting.")
	}
	parts := make([]string, 0, len(steps))
	for _, st := range steps {
		switch {
		case m.snap.Status == pipeline.Completed || m.snap.Status > st.status && m.snap.Status != pipeline.Error:
			parts = append(parts, stepDoneStyle.Render("✓ "+st.label))
		case m.snap.Status == st.status:
			parts = append(parts, stepActiveStyle.Render(m.spinner.View()+st.label))
		default:
			parts = append(parts, stepPendingStyle.Render("○ "+st.label))
		}
	}
	return strings.Join(parts, mutedStyle.Render("  ›  "))
}

func sourceLabel(src lead.Source) string {
	title := src.Title
	if title == "" {
		title = src.URI
	}
	if src.Kind == lead.SourceMaps {
		return "[maps] " + title
	}
	return title
}

// Run starts the TUI and blocks until the user quits.
func Run(ctx context.Context, p *pipeline.Pipeline, exportDir string) error {
	prog := tea.NewProgram(New(p, exportDir), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := prog.Run()
	return err
}

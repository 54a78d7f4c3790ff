package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"

	"github.com/shpitdev/prospect-pipeline/internal/lead"
)

func newLeadTable(leads []lead.Lead, width int) table.Model {
	nameW, emailW, phoneW, webW, waW, scoreW, confW := 24, 24, 16, 22, 3, 5, 6
	if width > 120 {
		extra := width - 120
		nameW += extra * 4 / 10
		emailW += extra * 3 / 10
		webW += extra * 3 / 10
	}

	columns := []table.Column{
		{Title: "Business", Width: nameW},
		{Title: "Email", Width: emailW},
		{Title: "Phone", Width: phoneW},
		{Title: "WA", Width: waW},
		{Title: "Website", Width: webW},
		{Title: "Score", Width: scoreW},
		{Title: "Conf.", Width: confW},
	}

	rows := make([]table.Row, len(leads))
	for i, l := range leads {
		wa := ""
		if l.HasWhatsApp {
			wa = "✓"
		}
		rows[i] = table.Row{
			truncate(l.BusinessName, nameW),
			truncate(l.Email, emailW),
			truncate(l.Phone, phoneW),
			wa,
			truncate(l.Website, webW),
			fmt.Sprintf("%.2f", l.RelevanceScore),
			truncate(string(l.Confidence), confW),
		}
	}

	height := len(rows) + 1
	if height > 12 {
		height = 12
	}
	if height < 3 {
		height = 3
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(height),
	)
	t.SetStyles(tableStyles())
	return t
}

func tableStyles() table.Styles {
	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(colorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(colorSecondary)
	s.Selected = s.Selected.
		Foreground(lipgloss.Color("#FFFFFF")).
		Background(colorPrimary).
		Bold(true)
	return s
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}

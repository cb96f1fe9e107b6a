package cli

import (
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"timetrack-go/internal/core"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("252")).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("230")).Background(lipgloss.Color("62"))
)

func renderTable(header []string, rows [][]string) string {
	if len(header) == 0 {
		return mutedStyle.Render("(empty)")
	}
	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(mutedStyle).
		Headers(header...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		})
	out := t.Render()
	if len(rows) == 0 {
		out += "\n" + mutedStyle.Render("(no rows)")
	}
	return out
}

func renderState(state core.ExportedState) string {
	var b strings.Builder
	if state.CurrentTask != nil {
		b.WriteString("current: " + activeStyle.Render(" #"+strconv.FormatInt(int64(state.CurrentTask.ID), 10)+" "+state.CurrentTask.Name+" ") + "\n")
	} else {
		b.WriteString("current: " + mutedStyle.Render("none") + "\n")
	}

	rows := make([][]string, 0, len(state.AllTasks))
	for _, t := range state.AllTasks {
		rows = append(rows, []string{strconv.FormatInt(int64(t.ID), 10), strconv.FormatBool(t.Enabled), t.Name})
	}
	b.WriteString(renderTable([]string{"id", "enabled", "name"}, rows))
	return b.String()
}
